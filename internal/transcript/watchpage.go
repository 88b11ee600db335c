package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hyperjump/ytrag/internal/models"
)

const (
	// DefaultWatchURL is the page that embeds the player response with caption tracks.
	DefaultWatchURL = "https://www.youtube.com/watch"
	playerResponseMarker = "ytInitialPlayerResponse"
	userAgent            = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// WatchPage reads caption tracks from the video's watch page and downloads the chosen track.
type WatchPage struct {
	watchURL string
	client   *http.Client
}

// NewWatchPage returns a fetcher. Empty watchURL uses DefaultWatchURL; nil client uses a client with a 30s timeout.
func NewWatchPage(watchURL string, client *http.Client) *WatchPage {
	if watchURL == "" {
		watchURL = DefaultWatchURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WatchPage{watchURL: watchURL, client: client}
}

// Name returns the source name used in errors and logs.
func (w *WatchPage) Name() string { return "watchpage" }

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

func (t captionTrack) generated() bool { return t.Kind == "asr" }

// Fetch implements Fetcher.
func (w *WatchPage) Fetch(ctx context.Context, videoID string, languages []string) (*models.Transcript, error) {
	page, err := w.get(ctx, w.watchURL+"?v="+url.QueryEscape(videoID))
	if err != nil {
		return nil, newError(KindUnknown, videoID, w.Name(), err)
	}
	player, err := extractPlayerResponse(page)
	if err != nil {
		return nil, newError(KindUnknown, videoID, w.Name(), err)
	}
	if player == nil {
		return nil, newError(KindVideoUnavailable, videoID, w.Name(), nil)
	}
	switch player.PlayabilityStatus.Status {
	case "", "OK":
	default:
		reason := player.PlayabilityStatus.Reason
		if reason == "" {
			reason = player.PlayabilityStatus.Status
		}
		return nil, newError(KindVideoUnavailable, videoID, w.Name(), fmt.Errorf("%s", reason))
	}
	if player.Captions == nil || len(player.Captions.Renderer.CaptionTracks) == 0 {
		return nil, newError(KindTranscriptsDisabled, videoID, w.Name(), nil)
	}

	track, ok := chooseTrack(player.Captions.Renderer.CaptionTracks, languages)
	if !ok {
		return nil, newError(KindNoTranscriptFound, videoID, w.Name(),
			fmt.Errorf("no track for languages %v", languages))
	}

	body, err := w.get(ctx, track.BaseURL)
	if err != nil {
		return nil, newError(KindUnknown, videoID, w.Name(), err)
	}
	cues, err := ParseTimedText(body)
	if err != nil {
		return nil, newError(KindUnknown, videoID, w.Name(), err)
	}
	if len(cues) == 0 {
		return nil, newError(KindNoTranscriptFound, videoID, w.Name(), fmt.Errorf("track %s is empty", track.LanguageCode))
	}
	lang := resolveLanguage(track.LanguageCode, cues)
	return &models.Transcript{
		VideoID:          videoID,
		DetectedLanguage: lang,
		Source:           w.Name(),
		Entries:          EntriesFromCues(cues, lang),
		FetchedAt:        time.Now(),
	}, nil
}

func (w *WatchPage) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", req.URL.Host, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// extractPlayerResponse finds the inline player response script. Returns nil, nil when the page has none.
func extractPlayerResponse(page []byte) (*playerResponse, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse watch page: %w", err)
	}
	var script string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if strings.Contains(text, playerResponseMarker) {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return nil, nil
	}
	idx := strings.Index(script, playerResponseMarker)
	brace := strings.Index(script[idx:], "{")
	if brace < 0 {
		return nil, fmt.Errorf("player response has no JSON body")
	}
	var player playerResponse
	if err := json.NewDecoder(strings.NewReader(script[idx+brace:])).Decode(&player); err != nil {
		return nil, fmt.Errorf("failed to decode player response: %w", err)
	}
	return &player, nil
}

// chooseTrack picks a track by preferred languages, manual tracks before generated ones.
// With no preference, the first manual track (or else the first track) is used.
func chooseTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	manual := make([]captionTrack, 0, len(tracks))
	generated := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.generated() {
			generated = append(generated, t)
		} else {
			manual = append(manual, t)
		}
	}
	if len(languages) == 0 {
		if len(manual) > 0 {
			return manual[0], true
		}
		return generated[0], true
	}
	for _, group := range [][]captionTrack{manual, generated} {
		codes := make([]string, len(group))
		for i, t := range group {
			codes[i] = t.LanguageCode
		}
		if i := pickLanguage(languages, codes); i >= 0 {
			return group[i], true
		}
	}
	return captionTrack{}, false
}
