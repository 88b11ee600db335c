package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/internal/collection"
	"github.com/hyperjump/ytrag/internal/config"
	"github.com/hyperjump/ytrag/internal/embedding"
	"github.com/hyperjump/ytrag/internal/ingestlock"
	"github.com/hyperjump/ytrag/internal/keyword"
	"github.com/hyperjump/ytrag/internal/pipeline"
	"github.com/hyperjump/ytrag/internal/segmenter"
	"github.com/hyperjump/ytrag/internal/storage"
	"github.com/hyperjump/ytrag/internal/transcript"
	"github.com/hyperjump/ytrag/internal/translate"
	"github.com/hyperjump/ytrag/internal/vector"
)

// Components holds initialized dependencies for the CLI and server.
type Components struct {
	Storage     storage.Storage
	Embedder    embedding.Embedder
	VectorIndex vector.Index
	MomentIndex keyword.MomentIndex
	Locker      ingestlock.Locker
	Store       *collection.Store
	Pipeline    *pipeline.Pipeline
}

// Close releases every component that was opened.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.MomentIndex != nil {
		_ = c.MomentIndex.Close()
	}
	if c.Locker != nil {
		_ = c.Locker.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	db, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = db

	emb, err := embedding.New(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = emb

	idx, err := vector.New(ctx, &cfg.Vector, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	c.VectorIndex = idx
	logger.Info("vector index initialized",
		zap.String("driver", cfg.Vector.Driver),
		zap.String("url", cfg.Vector.URL),
		zap.String("embedding_provider", cfg.Embedding.Provider))

	var moments *keyword.BleveIndex
	if cfg.Storage.KeywordIndexPath == "" {
		moments, err = keyword.NewMemBleveIndex()
	} else {
		moments, err = keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.MomentIndex = moments

	c.Locker = buildLocker(cfg, logger)

	fetcher, err := buildFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}
	tr, err := buildTranslator(cfg)
	if err != nil {
		return nil, err
	}

	c.Store = collection.NewStore(idx, emb, collection.WithLogger(logger))
	seg := segmenter.New(cfg.Segmenter.TargetSize, cfg.Segmenter.OverlapEntries,
		segmenter.WithLogger(logger),
		segmenter.WithTargetLanguage(cfg.Translation.TargetLanguage))
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithCache(db),
		pipeline.WithMomentIndex(moments),
		pipeline.WithLocker(c.Locker),
		pipeline.WithRetrieval(cfg.Retrieval),
	}
	if tr != nil {
		opts = append(opts, pipeline.WithTranslator(tr))
	}
	c.Pipeline = pipeline.New(c.Store, seg, fetcher, opts...)

	ok = true
	return c, nil
}

func buildLocker(cfg *config.Config, logger *zap.Logger) ingestlock.Locker {
	if cfg.Lock.RedisAddr == "" {
		return ingestlock.NewLocal()
	}
	logger.Info("using redis ingest lock", zap.String("addr", cfg.Lock.RedisAddr))
	return ingestlock.NewRedis(ingestlock.RedisOptions{
		Addr:     cfg.Lock.RedisAddr,
		Password: cfg.Lock.RedisPassword,
		DB:       cfg.Lock.RedisDB,
		TTL:      time.Duration(cfg.Lock.TTLSeconds) * time.Second,
		Wait:     time.Duration(cfg.Lock.WaitSeconds) * time.Second,
		Logger:   logger,
	})
}

func buildFetcher(cfg *config.Config, logger *zap.Logger) (transcript.Fetcher, error) {
	timeout := time.Duration(cfg.Transcript.TimeoutSeconds) * time.Second
	var fetchers []transcript.Fetcher
	for _, src := range cfg.Transcript.Sources {
		switch src {
		case "files":
			fetchers = append(fetchers, transcript.NewFiles(cfg.Transcript.CaptionsDir))
		case "watchpage":
			fetchers = append(fetchers, transcript.NewWatchPage(cfg.Transcript.WatchURL, &http.Client{Timeout: timeout}))
		case "ytdlp", "yt-dlp":
			y := transcript.NewYtDlp(cfg.Transcript.YtDlpPath, timeout)
			if !y.Available() {
				logger.Info("yt-dlp not found, source disabled", zap.String("path", cfg.Transcript.YtDlpPath))
				continue
			}
			fetchers = append(fetchers, y)
		default:
			return nil, fmt.Errorf("unknown transcript source: %q (supported: files, watchpage, ytdlp)", src)
		}
	}
	return transcript.NewChain(logger, fetchers...), nil
}

func buildTranslator(cfg *config.Config) (translate.Translator, error) {
	tc := cfg.Translation
	if !tc.EnabledOrDefault() {
		return nil, nil
	}
	timeout := time.Duration(tc.TimeoutSeconds) * time.Second
	switch tc.Mode {
	case "process", "":
		args := []string{"--target", tc.TargetLanguage}
		if tc.Endpoint != "" {
			args = append(args, "--endpoint", tc.Endpoint)
		}
		p, err := translate.SelfProcess(timeout, args...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "inline":
		return translate.WithTimeout(translate.NewGoogle(tc.Endpoint, tc.TargetLanguage, nil), timeout), nil
	default:
		return nil, fmt.Errorf("unknown translation mode: %q (supported: process, inline)", tc.Mode)
	}
}
