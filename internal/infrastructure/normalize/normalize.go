package normalize

import (
	"log/slog"
	"strings"

	"github.com/motiondex/motiondex/internal/core/domain"
)

// Normalizer converts raw provider text into canonical fields and derived
// tags. Parse-quality degradation is recovered locally; normalization always
// produces some record.
type Normalizer struct {
	logger  *slog.Logger
	onLevel func(level string)
}

type Option func(*Normalizer)

// WithLevelObserver reports which parse strategy succeeded, one call per
// normalization.
func WithLevelObserver(fn func(level string)) Option {
	return func(n *Normalizer) {
		n.onLevel = fn
	}
}

func New(logger *slog.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{logger: logger}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Normalizer) Normalize(rawText string) domain.FieldMap {
	raw, level := parse(rawText)
	if n.onLevel != nil {
		n.onLevel(string(level))
	}

	if level == LevelRaw {
		n.logger.Warn("normalize_degraded", "level", level, "raw_bytes", len(rawText))
		// The key is present even for empty input, so a degraded record is
		// always recognizable by its raw_text.
		return domain.FieldMap{domain.FieldRawText: strings.TrimSpace(rawText)}
	}
	if level != LevelJSON {
		n.logger.Warn("normalize_degraded", "level", level, "pairs", len(raw))
	}

	fields := resolveAliases(raw)
	for _, required := range requiredFields {
		if _, ok := fields[required]; !ok {
			n.logger.Warn("normalize_missing_required_field", "field", required, "level", level)
		}
	}
	return fields
}

// tagNamespaces orders the derived tag families; each pairs a canonical
// field with its tag prefix.
var tagNamespaces = []struct {
	field  string
	prefix string
}{
	{domain.FieldScene, "scene"},
	{domain.FieldTempo, "tempo"},
	{domain.FieldIntensity, "intensity"},
	{domain.FieldLoopable, "loopable"},
	{domain.FieldCharacterGender, "gender"},
	{domain.FieldCharacterAgeGroup, "age"},
	{domain.FieldCharacterBodyType, "body"},
}

func (n *Normalizer) DeriveTags(fields domain.FieldMap) []string {
	tags := make([]string, 0, len(tagNamespaces))
	for _, ns := range tagNamespaces {
		if value, ok := fields.Get(ns.field); ok && value != "" {
			tags = append(tags, ns.prefix+":"+value)
		}
	}
	return tags
}
