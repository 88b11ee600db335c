package config

import "os"

// ApplyEnv overrides secrets and service addresses from the environment.
// Empty variables leave the file value in place.
func ApplyEnv(cfg *Config) {
	setFromEnv(&cfg.Vector.URL, "QDRANT_URL")
	setFromEnv(&cfg.Vector.APIKey, "QDRANT_API_KEY")
	setFromEnv(&cfg.Vector.PostgresURL, "DATABASE_URL")
	setFromEnv(&cfg.Embedding.APIKey, "GOOGLE_API_KEY")
	setFromEnv(&cfg.Embedding.APIKey, "EMBEDDING_API_KEY")
	setFromEnv(&cfg.Lock.RedisAddr, "REDIS_ADDR")
	setFromEnv(&cfg.Lock.RedisPassword, "REDIS_PASSWORD")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
