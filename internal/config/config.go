package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/motiondex/motiondex/internal/core/domain"
)

type Config struct {
	APIPort  string
	LogLevel string

	DBPath      string
	StoragePath string
	PromptDir   string
	ExportDir   string

	GeminiBaseURL string
	GeminiAPIKey  string
	ModelName     string

	PollAttempts int
	PollInterval time.Duration

	BatchSize         int
	RequestsPerMinute int

	ResultVersion string
}

// FileConfig mirrors the optional on-disk config. Environment variables win
// over every file value; GOOGLE_API_KEY in particular always beats api_key.
type FileConfig struct {
	APIKey    string `yaml:"api_key"`
	ModelName string `yaml:"model_name"`
	BatchSize int    `yaml:"batch_size"`
	DBPath    string `yaml:"db_path"`
	PromptDir string `yaml:"prompt_dir"`
}

func Load() Config {
	file := loadFile(mustEnv("MOTIONDEX_CONFIG", "./config/config.yaml"))

	cfg := Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		DBPath:      mustEnv("DB_PATH", firstNonEmpty(file.DBPath, "./data/motiondex.db")),
		StoragePath: mustEnv("STORAGE_PATH", "./data/uploads"),
		PromptDir:   mustEnv("PROMPT_DIR", firstNonEmpty(file.PromptDir, "./config/prompts")),
		ExportDir:   mustEnv("EXPORT_DIR", "./data/exports"),

		GeminiBaseURL: mustEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIKey:  firstNonEmpty(os.Getenv("GOOGLE_API_KEY"), file.APIKey),
		ModelName:     mustEnv("GEMINI_MODEL", firstNonEmpty(file.ModelName, "gemini-2.0-flash")),

		PollAttempts: mustEnvInt("GEMINI_POLL_ATTEMPTS", 30),
		PollInterval: time.Duration(mustEnvInt("GEMINI_POLL_INTERVAL_SECONDS", 5)) * time.Second,

		BatchSize:         mustEnvInt("BATCH_SIZE", nonZero(file.BatchSize, 5)),
		RequestsPerMinute: mustEnvInt("PROVIDER_REQUESTS_PER_MINUTE", 15),

		ResultVersion: mustEnv("RESULT_VERSION", "1.0"),
	}
	return cfg
}

// Validate enforces startup-fatal requirements. A missing API credential
// stops the system before any job is accepted.
func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return domain.WrapError(domain.ErrUnauthenticated, "load config",
			fmt.Errorf("set GOOGLE_API_KEY or api_key in the config file"))
	}
	if c.PollAttempts <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("poll budget must be positive: attempts=%d interval=%s", c.PollAttempts, c.PollInterval)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive: %d", c.BatchSize)
	}
	return nil
}

func loadFile(path string) FileConfig {
	var file FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		// The file is optional; env vars and defaults cover everything.
		return file
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return FileConfig{}
	}
	return file
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonZero(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}
