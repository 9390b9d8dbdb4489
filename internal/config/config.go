package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Config represents the global ~/.collatz/config.toml.
type Config struct {
	DefaultSession string          `toml:"default_session"`
	LogLevel       string          `toml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Supabase       SupabaseConfig  `toml:"supabase"`
	Embedding      EmbeddingConfig `toml:"embedding"`
	Jobs           JobsConfig      `toml:"jobs"`
	Recommend      RecommendConfig `toml:"recommend"`
	HTTP           HTTPConfig      `toml:"http"`
}

// SupabaseConfig points the daemon at the hosted backend.
type SupabaseConfig struct {
	URL          string `toml:"url" validate:"omitempty,url"`
	AnonKey      string `toml:"anon_key"`
	ImagesBucket string `toml:"images_bucket" validate:"required"`
}

// EmbeddingConfig selects the embedding provider. Dimensions is the single
// vector size used for both real and fallback embeddings.
type EmbeddingConfig struct {
	Provider   string  `toml:"provider" validate:"oneof=genai local"`
	Model      string  `toml:"model"`
	Dimensions int     `toml:"dimensions" validate:"gt=0"`
	LocalURL   string  `toml:"local_url" validate:"omitempty,url"`
	APIKey     string  `toml:"api_key,omitempty"`
	RatePerSec float64 `toml:"rate_per_sec" validate:"gt=0"`
	BatchSize  int     `toml:"batch_size" validate:"gt=0,lte=1000"`
}

// JobsConfig configures the external job board fetcher.
type JobsConfig struct {
	AppID          string   `toml:"app_id,omitempty"`
	AppKey         string   `toml:"app_key,omitempty"`
	BaseURL        string   `toml:"base_url" validate:"url"`
	Country        string   `toml:"country" validate:"len=2"`
	ResultsPerPage int      `toml:"results_per_page" validate:"gt=0,lte=50"`
	DailyBudget    int      `toml:"daily_budget" validate:"gte=0"`
	SearchTerms    []string `toml:"search_terms" validate:"dive,required"`
	StaleAfter     string   `toml:"stale_after"`
}

// RecommendConfig tunes the recommendation aggregator.
type RecommendConfig struct {
	Timeout      string  `toml:"timeout"`
	PageSize     int     `toml:"page_size" validate:"gt=0"`
	DefaultScore float64 `toml:"default_score" validate:"gte=0,lte=1"`
	MatchCount   int     `toml:"match_count" validate:"gt=0"`
}

// HTTPConfig configures the optional ops listener (/healthz, /metrics).
type HTTPConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Supabase: SupabaseConfig{
			ImagesBucket: "collatz-images",
		},
		Embedding: EmbeddingConfig{
			Provider:   "genai",
			Model:      "text-embedding-004",
			Dimensions: 768,
			LocalURL:   "http://127.0.0.1:5000",
			RatePerSec: 3,
			BatchSize:  1000,
		},
		Jobs: JobsConfig{
			BaseURL:        "https://api.adzuna.com/v1/api/jobs",
			Country:        "in",
			ResultsPerPage: 20,
			DailyBudget:    250,
			SearchTerms:    []string{"developer", "designer", "data"},
			StaleAfter:     "24h",
		},
		Recommend: RecommendConfig{
			Timeout:      "8s",
			PageSize:     5,
			DefaultScore: 0.8,
			MatchCount:   10,
		},
	}
}

// SourceTimeout returns the per-source deadline, zero when unset or invalid.
func (r RecommendConfig) SourceTimeout() time.Duration {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// StaleDuration returns how long a job may go unseen before it is pruned.
func (j JobsConfig) StaleDuration() time.Duration {
	d, err := time.ParseDuration(j.StaleAfter)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEffective builds the runtime configuration: defaults, then the file at
// path when it exists, then .env files, then environment overrides.
func LoadEffective(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints on a merged config.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&cfg.Supabase.URL, "COLLATZ_SUPABASE_URL", "SUPABASE_URL")
	set(&cfg.Supabase.AnonKey, "COLLATZ_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY")
	set(&cfg.Embedding.APIKey, "GEMINI_API_KEY")
	set(&cfg.Jobs.AppID, "ADZUNA_APP_ID")
	set(&cfg.Jobs.AppKey, "ADZUNA_APP_KEY")
	set(&cfg.HTTP.Listen, "COLLATZ_HTTP_LISTEN")
	set(&cfg.LogLevel, "COLLATZ_LOG_LEVEL")
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
