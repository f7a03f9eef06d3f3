package sqlite

import (
	"context"
	"fmt"

	"github.com/motiondex/motiondex/internal/core/domain"
)

const baseSchema = `
CREATE TABLE IF NOT EXISTS videos (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL UNIQUE,
	file_name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'UNPROCESSED',
	progress INTEGER NOT NULL DEFAULT 0,
	prompt_name TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_results (
	id TEXT PRIMARY KEY,
	video_id TEXT NOT NULL REFERENCES videos(id),
	raw_text TEXT NOT NULL DEFAULT '',
	result_json TEXT NOT NULL,
	version TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	video_id TEXT NOT NULL REFERENCES videos(id),
	tag TEXT NOT NULL,
	source TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status);
CREATE INDEX IF NOT EXISTS idx_results_video ON analysis_results(video_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tags_video ON tags(video_id);
`

// EnsureSchema creates missing tables and then brings older database files
// forward by probing for optional columns and adding whatever is absent.
// Databases written by earlier schema versions keep working without a
// separate migration step.
func (r *VideoRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, baseSchema); err != nil {
		return domain.WrapError(domain.ErrStore, "ensure schema", err)
	}

	if err := r.addMissingColumns(ctx, "videos", []string{"prompt_name"}); err != nil {
		return err
	}
	resultColumns := append([]string{"raw_text"}, domain.CanonicalFields...)
	if err := r.addMissingColumns(ctx, "analysis_results", resultColumns); err != nil {
		return err
	}
	return nil
}

func (r *VideoRepository) addMissingColumns(ctx context.Context, table string, columns []string) error {
	existing, err := r.tableColumns(ctx, table)
	if err != nil {
		return err
	}
	for _, column := range columns {
		if existing[column] {
			continue
		}
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT DEFAULT NULL", table, column)
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return domain.WrapError(domain.ErrStore, "add column "+table+"."+column, err)
		}
		r.logger.Info("schema_column_added", "table", table, "column", column)
	}
	return nil
}

func (r *VideoRepository) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "probe columns of "+table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, domain.WrapError(domain.ErrStore, "scan column info", err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "iterate column info", err)
	}
	return columns, nil
}
