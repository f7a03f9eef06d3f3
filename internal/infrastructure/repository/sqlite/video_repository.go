package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/motiondex/motiondex/internal/core/domain"
)

type VideoRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewVideoRepository(db *sql.DB, logger *slog.Logger) *VideoRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoRepository{db: db, logger: logger}
}

// UpsertVideo is idempotent by file path: a duplicate insert is recovered by
// returning the existing row instead of failing.
func (r *VideoRepository) UpsertVideo(ctx context.Context, filePath string) (*domain.Video, error) {
	now := time.Now().UTC()
	video := &domain.Video{
		ID:        uuid.NewString(),
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		Status:    domain.DefaultVideoStatus(),
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO videos (id, file_path, file_name, status, progress, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, video.ID, video.FilePath, video.FileName, string(video.Status), video.Progress, video.CreatedAt, video.UpdatedAt)
	if err == nil {
		return video, nil
	}
	if !isUniqueViolation(err) {
		return nil, domain.WrapError(domain.ErrStore, "insert video", err)
	}

	existing, err := r.videoByPath(ctx, filePath)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("video_already_known", "file_path", filePath, "video_id", existing.ID)
	return existing, nil
}

func (r *VideoRepository) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, file_path, file_name, status, progress, prompt_name, created_at, updated_at
FROM videos
WHERE id = ?
`, id)
	return scanVideo(row)
}

func (r *VideoRepository) videoByPath(ctx context.Context, filePath string) (*domain.Video, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, file_path, file_name, status, progress, prompt_name, created_at, updated_at
FROM videos
WHERE file_path = ?
`, filePath)
	return scanVideo(row)
}

func (r *VideoRepository) ListVideos(ctx context.Context) ([]domain.Video, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT v.id, v.file_path, v.file_name, v.status, v.progress, v.prompt_name,
       v.created_at, v.updated_at, GROUP_CONCAT(t.tag) AS tags
FROM videos v
LEFT JOIN tags t ON v.id = t.video_id
GROUP BY v.id
ORDER BY v.created_at DESC
`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "list videos", err)
	}
	defer rows.Close()

	out := make([]domain.Video, 0)
	for rows.Next() {
		var (
			video      domain.Video
			promptName sql.NullString
			tags       sql.NullString
		)
		if err := rows.Scan(&video.ID, &video.FilePath, &video.FileName, &video.Status,
			&video.Progress, &promptName, &video.CreatedAt, &video.UpdatedAt, &tags); err != nil {
			return nil, domain.WrapError(domain.ErrStore, "scan video row", err)
		}
		video.PromptName = promptName.String
		if tags.Valid && tags.String != "" {
			video.Tags = strings.Split(tags.String, ",")
		}
		out = append(out, video)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "iterate videos", err)
	}
	return out, nil
}

// UpdateStatus rejects statuses outside the lifecycle enum before touching
// the database; a nil progress leaves the stored progress alone.
func (r *VideoRepository) UpdateStatus(ctx context.Context, id string, status domain.VideoStatus, progress *int) error {
	if !status.Valid() {
		return domain.WrapError(domain.ErrInvalidStatus, "update status", fmt.Errorf("status %q", status))
	}

	var (
		result sql.Result
		err    error
	)
	now := time.Now().UTC()
	if progress != nil {
		result, err = r.db.ExecContext(ctx, `
UPDATE videos SET status = ?, progress = ?, updated_at = ? WHERE id = ?
`, string(status), *progress, now, id)
	} else {
		result, err = r.db.ExecContext(ctx, `
UPDATE videos SET status = ?, updated_at = ? WHERE id = ?
`, string(status), now, id)
	}
	if err != nil {
		return domain.WrapError(domain.ErrStore, "update status", err)
	}
	return requireRow(result, "update status", id)
}

func (r *VideoRepository) SetPromptName(ctx context.Context, id, promptName string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE videos SET prompt_name = ?, updated_at = ? WHERE id = ?
`, promptName, time.Now().UTC(), id)
	if err != nil {
		return domain.WrapError(domain.ErrStore, "set prompt name", err)
	}
	return requireRow(result, "set prompt name", id)
}

// InsertAttempt appends one analysis attempt. Attempts are never updated.
// The literal provider response goes into raw_text untouched; the field map
// is marshaled into result_json, and canonical columns are duplicated out of
// it for the export and read tooling that consumes the database directly.
func (r *VideoRepository) InsertAttempt(ctx context.Context, attempt *domain.AnalysisAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	resultJSON, err := json.Marshal(attempt.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	args := []any{attempt.ID, attempt.VideoID, attempt.RawText, string(resultJSON), attempt.Version, attempt.CreatedAt}
	for _, canonical := range domain.CanonicalFields {
		args = append(args, nullable(attempt.Fields, canonical))
	}

	if _, err := r.db.ExecContext(ctx, insertAttemptSQL, args...); err != nil {
		return domain.WrapError(domain.ErrStore, "insert attempt", err)
	}
	return nil
}

var insertAttemptSQL = func() string {
	columns := []string{"id", "video_id", "raw_text", "result_json", "version", "created_at"}
	columns = append(columns, domain.CanonicalFields...)
	return fmt.Sprintf("INSERT INTO analysis_results (%s) VALUES (%s)",
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
}()

// LatestAttempt returns the attempt with the greatest created_at for the
// video, or nil when none exists.
func (r *VideoRepository) LatestAttempt(ctx context.Context, videoID string) (*domain.AnalysisAttempt, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, video_id, raw_text, result_json, version, created_at
FROM analysis_results
WHERE video_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1
`, videoID)

	var (
		attempt    domain.AnalysisAttempt
		resultJSON string
	)
	err := row.Scan(&attempt.ID, &attempt.VideoID, &attempt.RawText, &resultJSON, &attempt.Version, &attempt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "latest attempt", err)
	}

	if attempt.RawText == "" {
		// Rows upgraded from before the raw_text column carry only the json.
		attempt.RawText = resultJSON
	}
	if err := json.Unmarshal([]byte(resultJSON), &attempt.Fields); err != nil {
		attempt.Fields = domain.FieldMap{}
	}
	return &attempt, nil
}

// InsertTags appends tag rows. Duplicates against prior rows are tolerated.
func (r *VideoRepository) InsertTags(ctx context.Context, videoID string, tags []string, source domain.TagSource) error {
	now := time.Now().UTC()
	for _, tag := range tags {
		if _, err := r.db.ExecContext(ctx, `
INSERT INTO tags (id, video_id, tag, source, created_at)
VALUES (?, ?, ?, ?, ?)
`, uuid.NewString(), videoID, tag, string(source), now); err != nil {
			return domain.WrapError(domain.ErrStore, "insert tag", err)
		}
	}
	return nil
}

func (r *VideoRepository) ListTags(ctx context.Context, videoID string) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, video_id, tag, source, created_at
FROM tags
WHERE video_id = ?
ORDER BY created_at ASC
`, videoID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "list tags", err)
	}
	defer rows.Close()

	out := make([]domain.Tag, 0)
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.VideoID, &tag.Tag, &tag.Source, &tag.CreatedAt); err != nil {
			return nil, domain.WrapError(domain.ErrStore, "scan tag row", err)
		}
		out = append(out, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "iterate tags", err)
	}
	return out, nil
}

func scanVideo(row *sql.Row) (*domain.Video, error) {
	var (
		video      domain.Video
		promptName sql.NullString
	)
	err := row.Scan(&video.ID, &video.FilePath, &video.FileName, &video.Status,
		&video.Progress, &promptName, &video.CreatedAt, &video.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrNotFound, "get video", err)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "scan video", err)
	}
	video.PromptName = promptName.String
	return &video, nil
}

func requireRow(result sql.Result, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return domain.WrapError(domain.ErrStore, operation+" rows affected", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("video %s", id))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	// Keeps the recovery path testable with database/sql mocks.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullable(fields domain.FieldMap, key string) any {
	if value, ok := fields.Get(key); ok && value != "" {
		return value
	}
	return nil
}
