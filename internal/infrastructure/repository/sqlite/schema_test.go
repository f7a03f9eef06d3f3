package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/motiondex/motiondex/internal/core/domain"
)

func openTestDB(t *testing.T) *VideoRepository {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "videos.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewVideoRepository(db, nil)
}

func TestEnsureSchemaUpgradesOldDatabase(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	// Tables as an earlier release wrote them: no prompt_name, no raw_text,
	// no canonical result columns.
	oldShape := `
CREATE TABLE videos (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL UNIQUE,
	file_name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'UNPROCESSED',
	progress INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE analysis_results (
	id TEXT PRIMARY KEY,
	video_id TEXT NOT NULL REFERENCES videos(id),
	result_json TEXT NOT NULL,
	version TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE tags (
	id TEXT PRIMARY KEY,
	video_id TEXT NOT NULL REFERENCES videos(id),
	tag TEXT NOT NULL,
	source TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`
	if _, err := repo.db.ExecContext(ctx, oldShape); err != nil {
		t.Fatalf("create old tables: %v", err)
	}

	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	video, err := repo.UpsertVideo(ctx, "/clips/walk.mp4")
	if err != nil {
		t.Fatalf("UpsertVideo() error = %v", err)
	}
	if err := repo.SetPromptName(ctx, video.ID, "humanoid"); err != nil {
		t.Fatalf("SetPromptName() against upgraded table: %v", err)
	}

	rawText := "RAW PROVIDER TEXT {\"appropriate_scene\": \"combat\"} trailing junk"
	attempt := &domain.AnalysisAttempt{
		VideoID: video.ID,
		RawText: rawText,
		Fields:  domain.FieldMap{domain.FieldScene: "combat"},
		Version: "1.0",
	}
	if err := repo.InsertAttempt(ctx, attempt); err != nil {
		t.Fatalf("InsertAttempt() against upgraded table: %v", err)
	}

	latest, err := repo.LatestAttempt(ctx, video.ID)
	if err != nil {
		t.Fatalf("LatestAttempt() error = %v", err)
	}
	if latest.RawText != rawText {
		t.Fatalf("RawText = %q, want the provider text verbatim", latest.RawText)
	}
	if got := latest.Fields[domain.FieldScene]; got != "combat" {
		t.Fatalf("appropriate_scene = %q, want combat", got)
	}

	got, err := repo.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.PromptName != "humanoid" {
		t.Fatalf("PromptName = %q, want humanoid", got.PromptName)
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("first EnsureSchema() error = %v", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema() error = %v", err)
	}

	columns, err := repo.tableColumns(ctx, "analysis_results")
	if err != nil {
		t.Fatalf("tableColumns() error = %v", err)
	}
	if !columns["raw_text"] {
		t.Fatalf("expected raw_text column, columns = %v", columns)
	}
	for _, canonical := range domain.CanonicalFields {
		if !columns[canonical] {
			t.Fatalf("missing canonical column %q", canonical)
		}
	}
}
