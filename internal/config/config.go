package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/speclint/internal/classify"
)

type Config struct {
	// Document set
	Root          string
	SchemaDir     string // empty uses the bundled schemas
	IgnoreFile    string
	UnmanagedFile string

	// Validation
	Workers          int
	MaxErrors        int
	UnmatchedPolicy  string
	WarningsAsErrors bool

	// External links
	CheckLinks  bool
	LinkTimeout time.Duration
	LinkWorkers int

	// HTTP API
	Port           string
	APIKey         string
	MaxUploadBytes int64
	RunTTL         time.Duration
}

func Load() Config {
	cfg := Config{
		Root:          envOr("SPECLINT_ROOT", "."),
		SchemaDir:     os.Getenv("SPECLINT_SCHEMA_DIR"),
		IgnoreFile:    envOr("SPECLINT_IGNORE_FILE", ".specignore"),
		UnmanagedFile: envOr("SPECLINT_UNMANAGED_FILE", ".specunmanaged"),

		Workers:          envInt("SPECLINT_WORKERS", 4),
		MaxErrors:        envInt("SPECLINT_MAX_ERRORS", 0),
		UnmatchedPolicy:  envOr("SPECLINT_UNMATCHED_POLICY", string(classify.PolicyUnmanaged)),
		WarningsAsErrors: envBool("SPECLINT_WARNINGS_AS_ERRORS", false),

		CheckLinks:  envBool("SPECLINT_CHECK_LINKS", false),
		LinkTimeout: envDuration("SPECLINT_LINK_TIMEOUT", 10*time.Second),
		LinkWorkers: envInt("SPECLINT_LINK_WORKERS", 8),

		Port:           envOr("SPECLINT_PORT", "8091"),
		APIKey:         os.Getenv("SPECLINT_API_KEY"),
		MaxUploadBytes: envInt64("SPECLINT_MAX_UPLOAD_BYTES", 10485760), // 10MB
		RunTTL:         envDuration("SPECLINT_RUN_TTL", 1*time.Hour),
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.LinkWorkers <= 0 {
		cfg.LinkWorkers = 8
	}
	if cfg.LinkTimeout <= 0 {
		cfg.LinkTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("SPECLINT_ROOT is required")
	}
	if c.MaxErrors < 0 {
		return fmt.Errorf("SPECLINT_MAX_ERRORS must not be negative, got %d", c.MaxErrors)
	}
	if _, err := classify.ParsePolicy(c.UnmatchedPolicy); err != nil {
		return fmt.Errorf("SPECLINT_UNMATCHED_POLICY: %w", err)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("SPECLINT_PORT must be numeric, got %q", c.Port)
	}
	return nil
}

// Policy returns the parsed unmatched-file policy; call Validate first.
func (c Config) Policy() classify.Policy {
	p, err := classify.ParsePolicy(c.UnmatchedPolicy)
	if err != nil {
		return classify.PolicyUnmanaged
	}
	return p
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
