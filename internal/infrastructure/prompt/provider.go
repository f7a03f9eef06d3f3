// Package prompt loads named prompt configurations from a directory of JSON
// files and renders the analysis prompt for a given video.
package prompt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/motiondex/motiondex/internal/core/domain"
)

const DefaultConfigName = "default"

// FieldSpec describes one field the provider is asked to fill in.
type FieldSpec struct {
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Options     []string `json:"options,omitempty"`
}

// Config is one prompt configuration file. Field order inside the rendered
// prompt follows the sorted field names so output is stable across runs.
type Config struct {
	Name   string               `json:"-"`
	Fields map[string]FieldSpec `json:"fields"`
}

type Provider struct {
	dir    string
	logger *slog.Logger
}

func NewProvider(dir string, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create prompt dir: %w", err)
	}
	return &Provider{dir: dir, logger: logger}, nil
}

// Available lists the config names present in the directory, without the
// .json extension.
func (p *Provider) Available() []string {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		p.logger.Error("prompt_dir_unreadable", "dir", p.dir, "error", err)
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// LoadConfig reads and validates the named config. A missing or invalid
// non-default config falls back to "default"; a missing default is an error.
func (p *Provider) LoadConfig(name string) (*Config, error) {
	if name == "" {
		name = DefaultConfigName
	}

	path := filepath.Join(p.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if name != DefaultConfigName {
			p.logger.Warn("prompt_config_missing", "name", name)
			return p.LoadConfig(DefaultConfigName)
		}
		return nil, domain.WrapError(domain.ErrNotFound, "load prompt config", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		if name != DefaultConfigName {
			p.logger.Warn("prompt_config_unreadable", "name", name, "error", err)
			return p.LoadConfig(DefaultConfigName)
		}
		return nil, fmt.Errorf("parse prompt config %s: %w", name, err)
	}
	cfg.Name = name

	if err := cfg.validate(); err != nil {
		if name != DefaultConfigName {
			p.logger.Warn("prompt_config_invalid", "name", name, "error", err)
			return p.LoadConfig(DefaultConfigName)
		}
		return nil, fmt.Errorf("validate prompt config %s: %w", name, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("config has no fields")
	}
	for name, field := range c.Fields {
		if field.Description == "" {
			return fmt.Errorf("field %q has no description", name)
		}
		if field.Type == "" {
			return fmt.Errorf("field %q has no type", name)
		}
	}
	return nil
}

// GeneratePrompt loads the named config and renders the prompt for one
// video. The fallback behavior of LoadConfig applies.
func (p *Provider) GeneratePrompt(configName, videoPath string) (string, error) {
	cfg, err := p.LoadConfig(configName)
	if err != nil {
		return "", err
	}
	return cfg.Render(videoPath), nil
}

// Render produces the prompt text, embedding the file stem so the provider
// can use the file name as an analysis hint.
func (c *Config) Render(videoPath string) string {
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the motion in this video (file name: %s) and return JSON containing:\n", stem)

	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := c.Fields[name]
		description := field.Description
		if len(field.Options) > 0 {
			description = fmt.Sprintf("%s (choose from: %s)", description, strings.Join(field.Options, ", "))
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, description)
	}
	return b.String()
}
