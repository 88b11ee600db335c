// Package pipeline ties transcript fetching, segmentation and the per-video collection
// together into the ingest, query and moments operations served by the CLI and HTTP API.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/internal/collection"
	"github.com/hyperjump/ytrag/internal/config"
	"github.com/hyperjump/ytrag/internal/ingestlock"
	"github.com/hyperjump/ytrag/internal/keyword"
	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/internal/segmenter"
	"github.com/hyperjump/ytrag/internal/storage"
	"github.com/hyperjump/ytrag/internal/transcript"
	"github.com/hyperjump/ytrag/internal/translate"
	"github.com/hyperjump/ytrag/internal/vector"
	"github.com/hyperjump/ytrag/pkg/utils"
)

// ErrInvalidInput marks requests that can never succeed as given.
var ErrInvalidInput = errors.New("invalid input")

// StorageWarning is reported when the transcript was fetched but could not be stored for retrieval.
const StorageWarning = "Failed to store in vector database"

const previewLength = 100

// Pipeline runs ingestion and retrieval for videos.
type Pipeline struct {
	store      *collection.Store
	segmenter  *segmenter.Segmenter
	fetcher    transcript.Fetcher
	translator translate.Translator
	cache      storage.Storage
	moments    keyword.MomentIndex
	locker     ingestlock.Locker
	retrieval  config.RetrievalConfig
	logger     *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = utils.OrNop(l) }
}

// WithTranslator enables chunk translation. Each ingestion gets its own breaker around t.
func WithTranslator(t translate.Translator) Option {
	return func(p *Pipeline) { p.translator = t }
}

// WithCache stores fetched transcripts so cached videos can be served without refetching.
func WithCache(s storage.Storage) Option {
	return func(p *Pipeline) { p.cache = s }
}

// WithMomentIndex enables keyword moments.
func WithMomentIndex(m keyword.MomentIndex) Option {
	return func(p *Pipeline) { p.moments = m }
}

// WithLocker serialises ingestion per video.
func WithLocker(l ingestlock.Locker) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.locker = l
		}
	}
}

// WithRetrieval sets query defaults. Zero fields fall back to the built-in defaults.
func WithRetrieval(cfg config.RetrievalConfig) Option {
	return func(p *Pipeline) { p.retrieval = cfg }
}

// New creates a pipeline over store, seg and fetcher.
func New(store *collection.Store, seg *segmenter.Segmenter, fetcher transcript.Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		segmenter: seg,
		fetcher:   fetcher,
		locker:    ingestlock.Noop{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.retrieval.OverviewK <= 0 {
		p.retrieval.OverviewK = 2
	}
	if p.retrieval.OverviewQuery == "" {
		p.retrieval.OverviewQuery = config.DefaultOverviewQuery
	}
	if p.retrieval.MomentsLimit <= 0 {
		p.retrieval.MomentsLimit = 10
	}
	return p
}

// Ingest makes a video's transcript available for retrieval. A video whose collection
// already holds points is not refetched or reinserted. Fetch failures are reported in
// the result with Success false; only invalid input and cancellation return an error.
func (p *Pipeline) Ingest(ctx context.Context, videoRef string, languages []string) (*models.IngestResult, error) {
	videoID, err := transcript.ParseVideoID(videoRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	logger := p.logger.With(zap.String("video_id", videoID))

	release, err := p.locker.Acquire(ctx, videoID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("ingest lock unavailable, continuing unlocked", zap.Error(err))
		release = func() {}
	}
	defer release()

	count, err := p.store.Count(ctx, videoID)
	if err != nil {
		logger.Warn("failed to count collection points", zap.Error(err))
		count = 0
	}

	var result *models.IngestResult
	if count > 0 {
		result, err = p.ingestCached(ctx, videoID, languages, count)
	} else {
		result, err = p.ingestFresh(ctx, videoID, languages)
	}
	if err != nil || !result.Success {
		return result, err
	}

	hits := p.store.SimilaritySearch(ctx, videoID, p.retrieval.OverviewQuery, p.retrieval.OverviewK)
	result.Overview = Timestamps(hits)
	return result, nil
}

func (p *Pipeline) ingestCached(ctx context.Context, videoID string, languages []string, count int) (*models.IngestResult, error) {
	p.logger.Debug("collection already populated, skipping insert",
		zap.String("video_id", videoID), zap.Int("points", count))
	var t *models.Transcript
	if p.cache != nil {
		cached, err := p.cache.GetTranscript(ctx, videoID)
		switch {
		case err == nil:
			t = cached
		case !errors.Is(err, storage.ErrNotFound):
			p.logger.Warn("failed to read cached transcript", zap.String("video_id", videoID), zap.Error(err))
		}
	}
	if t == nil {
		fetched, res, err := p.fetch(ctx, videoID, languages)
		if fetched == nil {
			return res, err
		}
		t = fetched
		p.remember(ctx, t)
	}
	return &models.IngestResult{
		Success:          true,
		VideoID:          videoID,
		Data:             t.Entries,
		DetectedLanguage: t.DetectedLanguage,
		Cached:           true,
	}, nil
}

func (p *Pipeline) ingestFresh(ctx context.Context, videoID string, languages []string) (*models.IngestResult, error) {
	t, res, err := p.fetch(ctx, videoID, languages)
	if t == nil {
		return res, err
	}
	p.remember(ctx, t)

	var tr translate.Translator
	if p.translator != nil {
		tr = translate.NewBreaker(p.translator, p.logger)
	}
	chunks := p.segmenter.Segment(ctx, t.Entries, videoID, t.DetectedLanguage, tr)

	result := &models.IngestResult{
		Success:          true,
		VideoID:          videoID,
		Data:             t.Entries,
		DetectedLanguage: t.DetectedLanguage,
	}
	if len(chunks) == 0 {
		return result, nil
	}
	if err := p.store.Insert(ctx, videoID, chunks); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Error("failed to store chunks", zap.String("video_id", videoID), zap.Int("chunks", len(chunks)), zap.Error(err))
		result.Warning = StorageWarning
		return result, nil
	}
	result.ChunksProcessed = len(chunks)
	p.logger.Info("video ingested",
		zap.String("video_id", videoID),
		zap.String("language", t.DetectedLanguage),
		zap.Int("entries", len(t.Entries)),
		zap.Int("chunks", len(chunks)))
	return result, nil
}

// fetch returns either the transcript, or a failed result, or an error on cancellation.
func (p *Pipeline) fetch(ctx context.Context, videoID string, languages []string) (*models.Transcript, *models.IngestResult, error) {
	t, err := p.fetcher.Fetch(ctx, videoID, languages)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		p.logger.Info("transcript unavailable",
			zap.String("video_id", videoID),
			zap.String("kind", transcript.KindOf(err).String()),
			zap.Error(err))
		return nil, &models.IngestResult{Success: false, VideoID: videoID, Error: err.Error()}, nil
	}
	if t.VideoID == "" {
		t.VideoID = videoID
	}
	return t, nil, nil
}

// remember saves t to the transcript cache and the moment index. Failures are logged only.
func (p *Pipeline) remember(ctx context.Context, t *models.Transcript) {
	if p.cache != nil {
		if err := p.cache.SaveTranscript(ctx, t); err != nil {
			p.logger.Warn("failed to cache transcript", zap.String("video_id", t.VideoID), zap.Error(err))
		}
	}
	if p.moments != nil {
		if err := p.moments.IndexTranscript(ctx, t); err != nil {
			p.logger.Warn("failed to index transcript moments", zap.String("video_id", t.VideoID), zap.Error(err))
		}
	}
}

// Query returns the k chunks of a video closest to question. k <= 0 uses the store default.
// Storage problems yield an empty result, not an error.
func (p *Pipeline) Query(ctx context.Context, videoRef, question string, k int) ([]*models.ScoredChunk, error) {
	videoID, err := transcript.ParseVideoID(videoRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	}
	if k <= 0 {
		k = p.retrieval.DefaultK
	}
	if p.retrieval.MaxK > 0 && k > p.retrieval.MaxK {
		k = p.retrieval.MaxK
	}
	return p.store.SimilaritySearch(ctx, videoID, question, k), nil
}

// Moments returns the transcript entries of a video that mention query, best first.
func (p *Pipeline) Moments(ctx context.Context, videoRef, query string, limit int) ([]*models.Moment, error) {
	videoID, err := transcript.ParseVideoID(videoRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = p.retrieval.MomentsLimit
	}
	moments := []*models.Moment{}
	if p.moments == nil {
		return moments, nil
	}
	hits, err := p.moments.Search(ctx, videoID, query, limit, &keyword.SearchOptions{
		PhraseBoost:   2.0,
		FuzzyFallback: true,
		Fuzziness:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search moments: %w", err)
	}
	for _, h := range hits {
		moments = append(moments, &models.Moment{
			VideoID: h.VideoID,
			Index:   h.Index,
			Time:    utils.FormatTimestamp(h.StartTime),
			Seconds: h.StartTime,
			Text:    strings.TrimSpace(h.Text),
			Score:   h.Score,
		})
	}
	return moments, nil
}

// Timestamps turns retrieved chunks into clickable references with a short preview.
func Timestamps(chunks []*models.ScoredChunk) []*models.Timestamp {
	out := make([]*models.Timestamp, 0, len(chunks))
	for _, sc := range chunks {
		if sc == nil || sc.Chunk == nil {
			continue
		}
		out = append(out, &models.Timestamp{
			Time:    utils.FormatTimestamp(sc.Chunk.StartTime),
			Seconds: sc.Chunk.StartTime,
			Text:    utils.Truncate(utils.CollapseWhitespace(sc.Chunk.Content), previewLength),
			Score:   sc.Score,
		})
	}
	return out
}

// Diagnose reports the reachability of each vector-index transport.
func (p *Pipeline) Diagnose(ctx context.Context) []vector.TransportStatus {
	return p.store.Diagnose(ctx)
}
