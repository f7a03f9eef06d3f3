package normalize

import (
	"reflect"
	"testing"

	"github.com/motiondex/motiondex/internal/core/domain"
)

func TestNormalizeStrictJSON(t *testing.T) {
	n := New(nil)
	fields := n.Normalize(`{"Appropriate Scene": "combat", "character_gender": "male"}`)

	if got, _ := fields.Get(domain.FieldScene); got != "combat" {
		t.Fatalf("expected scene=combat, got %q", got)
	}
	if got, _ := fields.Get(domain.FieldCharacterGender); got != "male" {
		t.Fatalf("expected character_gender=male, got %q", got)
	}

	tags := n.DeriveTags(fields)
	want := []string{"scene:combat", "gender:male"}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("expected tags %v, got %v", want, tags)
	}
}

func TestNormalizeSingleQuotedLiteral(t *testing.T) {
	n := New(nil)
	fields := n.Normalize(`{'Appropriate Scene': 'combat', 'Tempo Speed': 'fast', 'Loopable': True}`)

	if got, _ := fields.Get(domain.FieldScene); got != "combat" {
		t.Fatalf("expected scene=combat, got %q", got)
	}
	if got, _ := fields.Get(domain.FieldTempo); got != "fast" {
		t.Fatalf("expected tempo=fast, got %q", got)
	}
	if got, _ := fields.Get(domain.FieldLoopable); got != "true" {
		t.Fatalf("expected loopable=true, got %q", got)
	}
}

func TestNormalizeLiteralWithEscapedQuote(t *testing.T) {
	n := New(nil)
	fields := n.Normalize(`{'Posture Detail': 'at arm\'s reach'}`)

	if got, _ := fields.Get(domain.FieldPostureDetail); got != "at arm's reach" {
		t.Fatalf("expected escaped quote preserved, got %q", got)
	}
}

func TestNormalizeRegexFallbackOnBareText(t *testing.T) {
	n := New(nil)
	fields := n.Normalize("Scene: combat, Tempo: fast")

	if len(fields) == 0 {
		t.Fatal("expected non-empty canonical map from regex fallback")
	}
	if got, _ := fields.Get(domain.FieldScene); got != "combat" {
		t.Fatalf("expected scene=combat, got %q", got)
	}
	if got, _ := fields.Get(domain.FieldTempo); got != "fast" {
		t.Fatalf("expected tempo=fast, got %q", got)
	}
}

func TestNormalizeUnparseableFallsBackToRawText(t *testing.T) {
	n := New(nil)
	raw := "the model had nothing structured to say"
	fields := n.Normalize(raw)

	if got, _ := fields.Get(domain.FieldRawText); got != raw {
		t.Fatalf("expected raw_text fallback, got %q", got)
	}
	for _, canonical := range domain.CanonicalFields {
		if _, ok := fields.Get(canonical); ok {
			t.Fatalf("expected canonical field %s to stay absent", canonical)
		}
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := New(nil)
	fields := n.Normalize("")
	if len(fields) != 1 {
		t.Fatalf("expected only raw_text for empty input, got %v", fields)
	}
	if got, ok := fields[domain.FieldRawText]; !ok || got != "" {
		t.Fatalf("raw_text = %q (present=%v), want empty string present", got, ok)
	}
}

func TestNormalizeAliasDrift(t *testing.T) {
	n := New(nil)
	cases := map[string]string{
		`{"Appropriate Scene": "combat"}`: "combat",
		`{"appropriate_scene": "town"}`:   "town",
		`{"Scene": "dungeon"}`:            "dungeon",
		`{"scene": "field"}`:              "field",
		`{"APPROPRIATE SCENE": "castle"}`: "castle",
	}
	for raw, want := range cases {
		fields := n.Normalize(raw)
		if got, _ := fields.Get(domain.FieldScene); got != want {
			t.Fatalf("input %s: expected scene=%q, got %q", raw, want, got)
		}
	}
}

func TestNormalizeKeepsUnknownKeysAsCustomParams(t *testing.T) {
	n := New(nil)
	fields := n.Normalize(`{"Appropriate Scene": "combat", "Camera Angle": "low"}`)

	if got, _ := fields.Get("custom_camera_angle"); got != "low" {
		t.Fatalf("expected custom param for unknown key, got %q", got)
	}
}

func TestNormalizeStripsMarkdownFences(t *testing.T) {
	n := New(nil)
	fields := n.Normalize("```json\n{\"Appropriate Scene\": \"combat\"}\n```")

	if got, _ := fields.Get(domain.FieldScene); got != "combat" {
		t.Fatalf("expected fenced json to parse, got %q", got)
	}
}

func TestNormalizeReportsParseLevel(t *testing.T) {
	var levels []string
	n := New(nil, WithLevelObserver(func(level string) {
		levels = append(levels, level)
	}))

	n.Normalize(`{"scene": "a"}`)
	n.Normalize(`{'scene': 'b'}`)
	n.Normalize("Scene: c")
	n.Normalize("....")

	want := []string{"json", "literal", "regex", "raw"}
	if !reflect.DeepEqual(levels, want) {
		t.Fatalf("expected levels %v, got %v", want, levels)
	}
}

func TestDeriveTagsSkipsAbsentFields(t *testing.T) {
	n := New(nil)
	tags := n.DeriveTags(domain.FieldMap{
		domain.FieldTempo:             "slow",
		domain.FieldCharacterBodyType: "slim",
	})
	want := []string{"tempo:slow", "body:slim"}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("expected %v, got %v", want, tags)
	}
}

func TestFoldKey(t *testing.T) {
	cases := map[string]string{
		"Appropriate Scene":  "appropriate_scene",
		"appropriate_scene":  "appropriate_scene",
		"  Tempo-Speed  ":    "tempo_speed",
		"Camera   Angle!!":   "camera_angle",
		"character_gender":   "character_gender",
		"Character  Gender ": "character_gender",
	}
	for in, want := range cases {
		if got := foldKey(in); got != want {
			t.Fatalf("foldKey(%q) = %q, want %q", in, got, want)
		}
	}
}
