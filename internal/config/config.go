package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr string `yaml:"addr"`

	// DatabaseURL switches the record store to postgres when set; empty
	// keeps the in-process store.
	DatabaseURL string `yaml:"databaseUrl"`

	// RedisURL switches session storage to redis when set.
	RedisURL string `yaml:"redisUrl"`

	MeiliURL       string `yaml:"meiliUrl"`
	MeiliMasterKey string `yaml:"meiliMasterKey"`

	// RevisionsDir enables per-document content history when set.
	RevisionsDir string `yaml:"revisionsDir"`

	// Archive settings; empty endpoint disables the deleted-record sink.
	ArchiveEndpoint  string `yaml:"archiveEndpoint"`
	ArchiveAccessKey string `yaml:"archiveAccessKey"`
	ArchiveSecretKey string `yaml:"archiveSecretKey"`
	ArchiveBucket    string `yaml:"archiveBucket"`
	ArchiveUseSSL    bool   `yaml:"archiveUseSsl"`

	ValidatorEndpoint     string        `yaml:"validatorEndpoint"`
	ValidatorTimeout      time.Duration `yaml:"validatorTimeout"`
	ValidatorMaxRetries   int           `yaml:"validatorMaxRetries"`
	ValidatorInitialDelay time.Duration `yaml:"validatorInitialDelay"`
	ValidatorMaxDelay     time.Duration `yaml:"validatorMaxDelay"`
}

// Load reads configuration from the environment, with an optional YAML file
// (AGORA_CONFIG_FILE) applied first so env vars win.
func Load() (Config, error) {
	cfg := Config{
		Addr:                  ":8787",
		MeiliURL:              "",
		ArchiveBucket:         "agora-archive",
		ValidatorTimeout:      5 * time.Second,
		ValidatorMaxRetries:   3,
		ValidatorInitialDelay: 100 * time.Millisecond,
		ValidatorMaxDelay:     2 * time.Second,
	}

	if path := os.Getenv("AGORA_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Addr = getenv("AGORA_ADDR", cfg.Addr)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.MeiliURL = getenv("MEILI_URL", cfg.MeiliURL)
	cfg.MeiliMasterKey = getenv("MEILI_MASTER_KEY", cfg.MeiliMasterKey)
	cfg.RevisionsDir = getenv("AGORA_REVISIONS_DIR", cfg.RevisionsDir)
	cfg.ArchiveEndpoint = getenv("AGORA_ARCHIVE_ENDPOINT", cfg.ArchiveEndpoint)
	cfg.ArchiveAccessKey = getenv("AGORA_ARCHIVE_ACCESS_KEY", cfg.ArchiveAccessKey)
	cfg.ArchiveSecretKey = getenv("AGORA_ARCHIVE_SECRET_KEY", cfg.ArchiveSecretKey)
	cfg.ArchiveBucket = getenv("AGORA_ARCHIVE_BUCKET", cfg.ArchiveBucket)
	cfg.ArchiveUseSSL = getenvBool("AGORA_ARCHIVE_USE_SSL", cfg.ArchiveUseSSL)
	cfg.ValidatorEndpoint = getenv("AGORA_VALIDATOR_ENDPOINT", cfg.ValidatorEndpoint)
	cfg.ValidatorTimeout = getenvDuration("AGORA_VALIDATOR_TIMEOUT", cfg.ValidatorTimeout)
	cfg.ValidatorMaxRetries = getenvInt("AGORA_VALIDATOR_MAX_RETRIES", cfg.ValidatorMaxRetries)
	cfg.ValidatorInitialDelay = getenvDuration("AGORA_VALIDATOR_INITIAL_DELAY", cfg.ValidatorInitialDelay)
	cfg.ValidatorMaxDelay = getenvDuration("AGORA_VALIDATOR_MAX_DELAY", cfg.ValidatorMaxDelay)

	return cfg, nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
