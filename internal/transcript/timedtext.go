package transcript

import (
	"encoding/xml"
	"fmt"
	"html"
	"strings"
)

type timedTextDoc struct {
	XMLName xml.Name
	// format 1: <transcript><text start="s" dur="s">...</text></transcript>
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",innerxml"`
	} `xml:"text"`
	// format 3: <timedtext><body><p t="ms" d="ms">...</p></body></timedtext>
	Paragraphs []struct {
		T    int64  `xml:"t,attr"`
		D    int64  `xml:"d,attr"`
		Body string `xml:",innerxml"`
	} `xml:"body>p"`
}

// ParseTimedText parses the XML caption formats served by the timedtext endpoint.
func ParseTimedText(data []byte) ([]Cue, error) {
	var doc timedTextDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse timedtext: %w", err)
	}
	var cues []Cue
	for _, t := range doc.Texts {
		cues = append(cues, Cue{Start: t.Start, Duration: t.Dur, Text: timedTextBody(t.Body)})
	}
	for _, p := range doc.Paragraphs {
		text := timedTextBody(p.Body)
		if strings.TrimSpace(text) == "" {
			continue
		}
		cues = append(cues, Cue{Start: float64(p.T) / 1000, Duration: float64(p.D) / 1000, Text: text})
	}
	return cues, nil
}

// timedTextBody strips markup and undoes the double entity escaping of caption text.
func timedTextBody(raw string) string {
	s := vttTag.ReplaceAllString(raw, "")
	s = html.UnescapeString(html.UnescapeString(s))
	return strings.TrimSpace(s)
}
