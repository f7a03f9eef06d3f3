package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/motiondex/motiondex/internal/core/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MOTIONDEX_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("BATCH_SIZE", "")
	t.Setenv("GEMINI_POLL_ATTEMPTS", "")

	cfg := Load()
	if cfg.ModelName != "gemini-2.0-flash" {
		t.Fatalf("expected default model, got %q", cfg.ModelName)
	}
	if cfg.PollAttempts != 30 {
		t.Fatalf("expected 30 poll attempts, got %d", cfg.PollAttempts)
	}
	if cfg.PollInterval.Seconds() != 5 {
		t.Fatalf("expected 5s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.BatchSize != 5 {
		t.Fatalf("expected default batch size 5, got %d", cfg.BatchSize)
	}
}

func TestLoadEnvAPIKeyBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "api_key: file-key\nmodel_name: file-model\nbatch_size: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MOTIONDEX_CONFIG", path)
	t.Setenv("GOOGLE_API_KEY", "env-key")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("BATCH_SIZE", "")

	cfg := Load()
	if cfg.GeminiAPIKey != "env-key" {
		t.Fatalf("expected env api key to win, got %q", cfg.GeminiAPIKey)
	}
	if cfg.ModelName != "file-model" {
		t.Fatalf("expected file model, got %q", cfg.ModelName)
	}
	if cfg.BatchSize != 3 {
		t.Fatalf("expected file batch size 3, got %d", cfg.BatchSize)
	}
}

func TestLoadFileAPIKeyUsedWhenEnvUnset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("api_key: file-key\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MOTIONDEX_CONFIG", path)
	t.Setenv("GOOGLE_API_KEY", "")

	cfg := Load()
	if cfg.GeminiAPIKey != "file-key" {
		t.Fatalf("expected file api key, got %q", cfg.GeminiAPIKey)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := Load()
	cfg.GeminiAPIKey = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing api key")
	}
	if !domain.IsKind(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated kind, got %v", err)
	}
}
