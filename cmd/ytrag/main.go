// Package main is the ytrag CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/internal/cli"
	"github.com/hyperjump/ytrag/internal/config"
	"github.com/hyperjump/ytrag/internal/embedding"
	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/internal/pipeline"
	"github.com/hyperjump/ytrag/internal/server"
	"github.com/hyperjump/ytrag/internal/storage"
	"github.com/hyperjump/ytrag/internal/transcript"
	"github.com/hyperjump/ytrag/internal/translate"
	"github.com/hyperjump/ytrag/internal/watcher"
	"github.com/hyperjump/ytrag/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ytrag/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml in the
// current directory takes precedence, and a missing default file means built-in defaults.
// Environment overrides are applied last. Returns the config and the path actually loaded
// ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			config.ApplyEnv(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg)
	return cfg, path, nil
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "moments":
		runMoments()
	case "status":
		runStatus()
	case "init":
		runInit()
	case translate.WorkerCommand:
		runTranslateWorker()
	case "version", "--version", "-v":
		fmt.Printf("ytrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config and builds a logger. CLI commands log to stderr only in debug mode.
func setup(configPath string, debug bool, quiet bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	if quiet && !debugMode {
		return cfg, resolved, zap.NewNop()
	}
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug, false)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath), zap.Bool("debug", cfg.Debug || *debug))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	components.Pipeline.Diagnose(ctx)

	if cfg.Watch.Enabled {
		w := watcher.New(cfg.Transcript.CaptionsDir,
			captionHandler(ctx, components.Pipeline, cfg.Transcript.Languages, logger),
			watcher.WithExtensions(cfg.Watch.Extensions...),
			watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
			watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start caption watcher", zap.Error(err))
		}
		defer w.Stop()
		go w.SyncExistingFiles()
	}

	srv := server.NewServer(components.Pipeline, components.Storage, components.MomentIndex, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// captionHandler ingests the video a dropped caption file belongs to.
func captionHandler(ctx context.Context, p *pipeline.Pipeline, languages []string, logger *zap.Logger) watcher.Handler {
	return func(path string) {
		videoID, err := transcript.VideoIDFromCaptionPath(path)
		if err != nil {
			logger.Warn("caption file name does not contain a video id", zap.String("path", path), zap.Error(err))
			return
		}
		res, err := p.Ingest(ctx, videoID, languages)
		if err != nil {
			logger.Warn("caption ingest failed", zap.String("path", path), zap.Error(err))
			return
		}
		if !res.Success {
			logger.Warn("caption ingest failed", zap.String("path", path), zap.String("error", res.Error))
			return
		}
		logger.Info("caption file ingested",
			zap.String("video_id", videoID),
			zap.Bool("cached", res.Cached),
			zap.Int("chunks", res.ChunksProcessed))
	}
}

// argsReorder moves flags that appear after positional arguments to the front so
// that flag.Parse sees them ("ytrag query VIDEO what is said -k 3").
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args so multi-word queries work with or without quotes.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFormat(s string) cli.OutputFormat {
	f, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return f
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	languages := fs.String("languages", "", "preferred caption languages, comma separated (default from config)")
	serverURL := fs.String("server", "", "server URL (empty = ingest directly)")
	apiKey := fs.String("api-key", "", "embedding API key sent as X-API-Key")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ytrag ingest [flags] <video id or URL>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := parseFormat(*output)
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	langs := transcript.ParseLanguages(*languages)

	if *serverURL != "" {
		for _, ref := range fs.Args() {
			res, err := ingestViaHTTP(*serverURL, ref, langs, *apiKey)
			if err != nil {
				fatalf("Ingest failed: %v", err)
			}
			_ = cli.WriteIngestResult(os.Stdout, res, format)
		}
		return
	}

	cfg, _, logger := setup(*configPath, *debug, true)
	defer logger.Sync()
	if len(langs) == 0 {
		langs = cfg.Transcript.Languages
	}
	ctx := embedding.WithAPIKey(context.Background(), *apiKey)
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	failed := false
	for _, ref := range fs.Args() {
		res, err := components.Pipeline.Ingest(ctx, ref, langs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest %s failed: %v\n", ref, err)
			failed = true
			continue
		}
		if !res.Success {
			failed = true
		}
		if err := cli.WriteIngestResult(os.Stdout, res, format); err != nil {
			fatalf("Output failed: %v", err)
		}
	}
	if failed {
		components.Close()
		os.Exit(1)
	}
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	k := fs.Int("k", 0, "number of segments to return (default from config)")
	serverURL := fs.String("server", "", "server URL (empty = query directly)")
	apiKey := fs.String("api-key", "", "embedding API key sent as X-API-Key")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ytrag query [flags] <video id or URL> <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := parseFormat(*output)
	if fs.NArg() < 2 {
		fs.Usage()
		os.Exit(1)
	}
	videoRef := fs.Arg(0)
	question := joinArgs(fs.Args()[1:])
	req := &models.QueryRequest{VideoID: videoRef, Query: question, K: *k}

	var resp *models.QueryResponse
	if *serverURL != "" {
		var err error
		resp, err = queryViaHTTP(*serverURL, req, *apiKey)
		if err != nil {
			fatalf("Query failed: %v", err)
		}
	} else {
		cfg, _, logger := setup(*configPath, *debug, true)
		defer logger.Sync()
		ctx := embedding.WithAPIKey(context.Background(), *apiKey)
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()

		start := time.Now()
		chunks, err := components.Pipeline.Query(ctx, videoRef, question, *k)
		if err != nil {
			fatalf("Query failed: %v", err)
		}
		resp = &models.QueryResponse{
			Success:    true,
			VideoID:    videoRef,
			Query:      question,
			Chunks:     chunks,
			Timestamps: pipeline.Timestamps(chunks),
			QueryTime:  time.Since(start).Milliseconds(),
		}
	}
	if err := cli.WriteQueryResults(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runMoments() {
	fs := flag.NewFlagSet("moments", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	limit := fs.Int("limit", 0, "maximum number of moments (default from config)")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ytrag moments [flags] <video id or URL> <words>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := parseFormat(*output)
	if fs.NArg() < 2 {
		fs.Usage()
		os.Exit(1)
	}
	videoRef := fs.Arg(0)
	query := joinArgs(fs.Args()[1:])

	cfg, _, logger := setup(*configPath, *debug, true)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	moments, err := components.Pipeline.Moments(ctx, videoRef, query, *limit)
	if err != nil {
		fatalf("Moments failed: %v", err)
	}
	if err := cli.WriteMoments(os.Stdout, videoRef, query, moments, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	serverURL := fs.String("server", "", "server URL (empty = inspect directly)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*output)

	var st *cli.Status
	if *serverURL != "" {
		var err error
		st, err = statusViaHTTP(*serverURL)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, _, logger := setup(*configPath, *debug, true)
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()

		st = &cli.Status{Transports: components.Pipeline.Diagnose(ctx)}
		if st.Videos, err = components.Storage.CountVideos(ctx); err != nil {
			fatalf("Count videos failed: %v", err)
		}
		if st.Entries, err = components.Storage.CountEntries(ctx); err != nil {
			fatalf("Count entries failed: %v", err)
		}
		if n, err := components.MomentIndex.DocCount(); err == nil {
			st.MomentEntries = n
		}
		paths := append(storage.DatabaseFiles(cfg.Storage.DatabasePath), cfg.Storage.KeywordIndexPath)
		if n, err := storage.DiskUsageBytes(paths...); err == nil {
			st.DiskUsageBytes = n
		}
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "where to write the config file")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if _, err := os.Stat(*configPath); err == nil && !*force {
		fatalf("Config %s already exists (use --force to overwrite)", *configPath)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := config.Save(*configPath, cfg); err != nil {
		fatalf("Failed to write config: %v", err)
	}
	fmt.Printf("Wrote default config to %s\n", *configPath)
}

// runTranslateWorker translates stdin to stdout. It is started by the process translator
// so that a hung translation can be killed without affecting the caller.
func runTranslateWorker() {
	fs := flag.NewFlagSet(translate.WorkerCommand, flag.ExitOnError)
	target := fs.String("target", "en", "target language")
	endpoint := fs.String("endpoint", "", "translation endpoint (default: public web endpoint)")
	_ = fs.Parse(os.Args[2:])

	t := translate.NewGoogle(*endpoint, *target, &http.Client{Timeout: 30 * time.Second})
	if err := translate.RunWorker(context.Background(), t, os.Stdin, os.Stdout); err != nil {
		fatalf("%v", err)
	}
}

func ingestViaHTTP(serverURL, videoRef string, languages []string, apiKey string) (*models.IngestResult, error) {
	q := url.Values{}
	q.Set("video_id", videoRef)
	if len(languages) > 0 {
		q.Set("languages", strings.Join(languages, ","))
	}
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(serverURL, "/")+"/api/transcript?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var res models.IngestResult
	if err := doJSON(req, apiKey, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func queryViaHTTP(serverURL string, query *models.QueryRequest, apiKey string) (*models.QueryResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(serverURL, "/")+"/api/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var resp models.QueryResponse
	if err := doJSON(req, apiKey, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(serverURL, "/")+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	var st cli.Status
	if err := doJSON(req, "", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func doJSON(req *http.Request, apiKey string, out interface{}) error {
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printUsage() {
	fmt.Println(`ytrag - Retrieval over YouTube transcripts

Usage:
  ytrag server [flags]                        Start the HTTP server
  ytrag ingest [flags] <video>...             Fetch, segment and store transcripts
  ytrag query [flags] <video> <question>      Retrieve the segments closest to a question
  ytrag moments [flags] <video> <words>       Find where words are spoken
  ytrag status [flags]                        Show vector index and storage status
  ytrag init [flags]                          Write a default config file
  ytrag version                               Show version
  ytrag help                                  Show this help

<video> is an 11-character id or any youtube.com / youtu.be URL.

Common Flags:
  --config string    Config file path (default: /usr/local/etc/ytrag/config.yaml,
                     or ./config.yaml when present)
  --debug            Enable debug logging
  --output string    Output format: text or json (default: text)

Ingest / Query Flags:
  --server string    Server URL; empty runs against storage directly
  --api-key string   Embedding API key (sent as X-API-Key)
  --languages string Preferred caption languages, comma separated (ingest)
  --k int            Number of segments (query)

Environment:
  QDRANT_URL, QDRANT_API_KEY, DATABASE_URL, EMBEDDING_API_KEY (or GOOGLE_API_KEY),
  REDIS_ADDR, REDIS_PASSWORD override the config file. A .env file in the
  current directory is loaded first.

Examples:
  ytrag ingest https://www.youtube.com/watch?v=dQw4w9WgXcQ
  ytrag query dQw4w9WgXcQ what is the main argument
  ytrag query --output json -k 6 dQw4w9WgXcQ "pricing model"
  ytrag moments dQw4w9WgXcQ rocket engine
  ytrag status --server http://localhost:8000`)
}
