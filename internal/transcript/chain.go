package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/ytrag/internal/models"
	"go.uber.org/zap"
)

// Chain tries fetchers in order and returns the first transcript obtained.
type Chain struct {
	fetchers []Fetcher
	logger   *zap.Logger
}

// NewChain returns a chain over fetchers. logger may be nil.
func NewChain(logger *zap.Logger, fetchers ...Fetcher) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{fetchers: fetchers, logger: logger}
}

// Name returns the source name used in errors and logs.
func (c *Chain) Name() string { return "chain" }

// Fetch implements Fetcher. When every fetcher fails, the most specific failure is returned:
// an unavailable video beats disabled transcripts, which beat a missing track, which beats unknown errors.
func (c *Chain) Fetch(ctx context.Context, videoID string, languages []string) (*models.Transcript, error) {
	if len(c.fetchers) == 0 {
		return nil, newError(KindUnknown, videoID, c.Name(), fmt.Errorf("no transcript sources configured"))
	}
	var best error
	for _, f := range c.fetchers {
		t, err := f.Fetch(ctx, videoID, languages)
		if err == nil {
			c.logger.Debug("transcript fetched",
				zap.String("video_id", videoID),
				zap.String("source", f.Name()),
				zap.Int("entries", len(t.Entries)))
			return t, nil
		}
		c.logger.Debug("transcript source failed",
			zap.String("video_id", videoID),
			zap.String("source", f.Name()),
			zap.Error(err))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if best == nil || rank(err) > rank(best) {
			best = err
		}
	}
	return nil, best
}

func rank(err error) int {
	switch {
	case errors.Is(err, ErrVideoUnavailable):
		return 3
	case errors.Is(err, ErrTranscriptsDisabled):
		return 2
	case errors.Is(err, ErrNoTranscriptFound):
		return 1
	}
	return 0
}
