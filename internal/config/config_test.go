package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Supabase.URL = "https://abc.supabase.co"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Supabase.URL != "https://abc.supabase.co" {
		t.Errorf("Supabase.URL = %q", loaded.Supabase.URL)
	}
	if loaded.Embedding.Dimensions != 768 {
		t.Errorf("Embedding.Dimensions = %d, want 768", loaded.Embedding.Dimensions)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestLoadEffectiveDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadEffective(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadEffective() error = %v", err)
	}
	if cfg.Recommend.PageSize != 5 {
		t.Errorf("PageSize = %d, want 5", cfg.Recommend.PageSize)
	}
	if cfg.Recommend.DefaultScore != 0.8 {
		t.Errorf("DefaultScore = %v, want 0.8", cfg.Recommend.DefaultScore)
	}
	if got := cfg.Recommend.SourceTimeout().String(); got != "8s" {
		t.Errorf("SourceTimeout = %s, want 8s", got)
	}
}

func TestLoadEffectiveFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "default_session = \"lab\"\n\n[embedding]\nprovider = \"local\"\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadEffective(path)
	if err != nil {
		t.Fatalf("LoadEffective() error = %v", err)
	}
	if cfg.DefaultSession != "lab" {
		t.Errorf("DefaultSession = %q, want lab", cfg.DefaultSession)
	}
	if cfg.Embedding.Provider != "local" {
		t.Errorf("Provider = %q, want local", cfg.Embedding.Provider)
	}
	// Unset keys keep their defaults.
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("Dimensions = %d, want 768", cfg.Embedding.Dimensions)
	}
}

func TestLoadEffectiveEnvOverrides(t *testing.T) {
	t.Setenv("COLLATZ_SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("COLLATZ_SUPABASE_ANON_KEY", "anon-from-env")

	cfg, err := LoadEffective(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Supabase.URL != "https://env.supabase.co" {
		t.Errorf("URL = %q", cfg.Supabase.URL)
	}
	if cfg.Supabase.AnonKey != "anon-from-env" {
		t.Errorf("AnonKey = %q", cfg.Supabase.AnonKey)
	}
}

func TestLoadEffectiveDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("ADZUNA_APP_ID=app-123\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ADZUNA_APP_ID", "")
	_ = os.Unsetenv("ADZUNA_APP_ID")
	t.Cleanup(func() { _ = os.Unsetenv("ADZUNA_APP_ID") })

	cfg, err := LoadEffective(filepath.Join(dir, "absent.toml"), envPath, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Jobs.AppID != "app-123" {
		t.Errorf("AppID = %q, want app-123", cfg.Jobs.AppID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "openai" }, "Provider"},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, "Dimensions"},
		{"score above one", func(c *Config) { c.Recommend.DefaultScore = 1.5 }, "DefaultScore"},
		{"bad supabase url", func(c *Config) { c.Supabase.URL = "not a url" }, "URL"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "LogLevel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
