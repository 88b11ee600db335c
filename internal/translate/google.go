package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultEndpoint is the public web-client translation endpoint.
const DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// Google translates through the public "gtx" web-client endpoint. Source language is auto-detected.
type Google struct {
	endpoint string
	target   string
	client   *http.Client
}

// NewGoogle returns a translator into target. Empty endpoint uses DefaultEndpoint; nil client uses http.DefaultClient.
func NewGoogle(endpoint, target string, client *http.Client) *Google {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if target == "" {
		target = "en"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Google{endpoint: endpoint, target: target, client: client}
}

// Translate sends text to the endpoint and joins the translated sentences.
func (g *Google) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", "auto")
	params.Set("tl", g.target)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translation service returned %d: %s", resp.StatusCode, string(b))
	}

	var body []interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode translation response: %w", err)
	}
	return parseSentences(body)
}

// parseSentences reads [[["translated","original",...],...],...] and joins the translated parts.
func parseSentences(body []interface{}) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("empty translation response")
	}
	sentences, ok := body[0].([]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected translation response shape")
	}
	var sb strings.Builder
	for _, s := range sentences {
		parts, ok := s.([]interface{})
		if !ok || len(parts) == 0 {
			continue
		}
		if str, ok := parts[0].(string); ok {
			sb.WriteString(str)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("translation response contained no text")
	}
	return sb.String(), nil
}
