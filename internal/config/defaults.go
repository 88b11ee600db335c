package config

// Default values shared with the packages that consume them.
const (
	DefaultOverviewQuery = "main topics discussed content overview summary"
	DefaultDataDir       = "/usr/local/var/ytrag/data"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = DefaultDataDir + "/db/transcripts.db"
	}
	if cfg.Vector.Driver == "" {
		cfg.Vector.Driver = "qdrant"
	}
	if cfg.Vector.URL == "" {
		cfg.Vector.URL = "http://localhost:6333"
	}
	if cfg.Vector.GRPCPort == 0 {
		cfg.Vector.GRPCPort = 6334
	}
	if cfg.Vector.TimeoutSeconds == 0 {
		cfg.Vector.TimeoutSeconds = 30
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.Model = "text-embedding-004"
	}
	if cfg.Embedding.Dimensions == 0 && cfg.Embedding.Provider != "onnx" {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Segmenter.TargetSize == 0 {
		cfg.Segmenter.TargetSize = 2500
	}
	if cfg.Segmenter.OverlapEntries == 0 {
		cfg.Segmenter.OverlapEntries = 2
	}
	if cfg.Translation.Mode == "" {
		cfg.Translation.Mode = "process"
	}
	if cfg.Translation.TargetLanguage == "" {
		cfg.Translation.TargetLanguage = "en"
	}
	if cfg.Translation.TimeoutSeconds == 0 {
		cfg.Translation.TimeoutSeconds = 5
	}
	if cfg.Transcript.Sources == nil {
		cfg.Transcript.Sources = []string{"files", "watchpage", "ytdlp"}
	}
	if cfg.Transcript.CaptionsDir == "" {
		cfg.Transcript.CaptionsDir = DefaultDataDir + "/captions"
	}
	if cfg.Transcript.YtDlpPath == "" {
		cfg.Transcript.YtDlpPath = "yt-dlp"
	}
	if cfg.Transcript.Languages == nil {
		cfg.Transcript.Languages = []string{"en"}
	}
	if cfg.Transcript.TimeoutSeconds == 0 {
		cfg.Transcript.TimeoutSeconds = 30
	}
	if cfg.Retrieval.DefaultK == 0 {
		cfg.Retrieval.DefaultK = 4
	}
	if cfg.Retrieval.MaxK == 0 {
		cfg.Retrieval.MaxK = 50
	}
	if cfg.Retrieval.OverviewK == 0 {
		cfg.Retrieval.OverviewK = 2
	}
	if cfg.Retrieval.OverviewQuery == "" {
		cfg.Retrieval.OverviewQuery = DefaultOverviewQuery
	}
	if cfg.Retrieval.MomentsLimit == 0 {
		cfg.Retrieval.MomentsLimit = 10
	}
	if cfg.Lock.TTLSeconds == 0 {
		cfg.Lock.TTLSeconds = 120
	}
	if cfg.Lock.WaitSeconds == 0 {
		cfg.Lock.WaitSeconds = 60
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".vtt"}
	}
}
