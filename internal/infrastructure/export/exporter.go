// Package export writes analysis results to timestamped CSV, JSON or XLSX
// files for downstream tooling.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/motiondex/motiondex/internal/core/domain"
	"github.com/motiondex/motiondex/internal/core/ports"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

type Exporter struct {
	store  ports.VideoStore
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

func New(store ports.VideoStore, dir string, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = "./exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{store: store, dir: dir, logger: logger, now: time.Now}, nil
}

// row is one exported video: base file info plus the latest normalized
// fields and derived tags. Videos without a result export file info only.
type row struct {
	FileInfo struct {
		FileName   string `json:"file_name"`
		FilePath   string `json:"file_path"`
		Status     string `json:"status"`
		PromptName string `json:"prompt_name,omitempty"`
		CreatedAt  string `json:"created_at"`
		UpdatedAt  string `json:"updated_at"`
	} `json:"file_info"`
	AnalysisResult  domain.FieldMap `json:"analysis_result,omitempty"`
	AnalysisVersion string          `json:"analysis_version,omitempty"`
	AnalysisDate    string          `json:"analysis_date,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
}

// Export writes all requested videos to one file and returns its path. An
// empty id list exports every video. A video whose result cannot be loaded
// still exports its file info; the export never aborts mid-way for one row.
func (e *Exporter) Export(ctx context.Context, format Format, videoIDs []string) (string, error) {
	rows, err := e.collect(ctx, videoIDs)
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, fmt.Sprintf("analysis_results_%s.%s",
		e.now().UTC().Format("20060102_150405"), format))

	switch format {
	case FormatCSV:
		err = writeCSV(path, rows)
	case FormatJSON:
		err = writeJSON(path, rows)
	case FormatXLSX:
		err = writeXLSX(path, rows)
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("export_written", "format", string(format), "path", path, "rows", len(rows))
	return path, nil
}

func (e *Exporter) collect(ctx context.Context, videoIDs []string) ([]row, error) {
	var videos []domain.Video
	if len(videoIDs) == 0 {
		all, err := e.store.ListVideos(ctx)
		if err != nil {
			return nil, err
		}
		videos = all
	} else {
		for _, id := range videoIDs {
			video, err := e.store.GetVideo(ctx, id)
			if err != nil {
				e.logger.Warn("export_video_skipped", "video_id", id, "error", err)
				continue
			}
			videos = append(videos, *video)
		}
	}

	rows := make([]row, 0, len(videos))
	for _, video := range videos {
		r := row{Tags: video.Tags}
		r.FileInfo.FileName = video.FileName
		r.FileInfo.FilePath = video.FilePath
		r.FileInfo.Status = string(video.Status)
		r.FileInfo.PromptName = video.PromptName
		r.FileInfo.CreatedAt = video.CreatedAt.UTC().Format(time.RFC3339)
		r.FileInfo.UpdatedAt = video.UpdatedAt.UTC().Format(time.RFC3339)

		attempt, err := e.store.LatestAttempt(ctx, video.ID)
		if err != nil {
			e.logger.Warn("export_result_unreadable", "video_id", video.ID, "error", err)
		} else if attempt != nil {
			r.AnalysisResult = attempt.Fields
			r.AnalysisVersion = attempt.Version
			r.AnalysisDate = attempt.CreatedAt.UTC().Format(time.RFC3339)
		}
		if len(r.Tags) == 0 {
			tags, err := e.store.ListTags(ctx, video.ID)
			if err == nil {
				for _, tag := range tags {
					r.Tags = append(r.Tags, tag.Tag)
				}
			}
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func tableHeaders() []string {
	headers := []string{"file_name"}
	headers = append(headers, domain.CanonicalFields...)
	return append(headers, "tags", "status", "prompt_name", "created_at", "updated_at")
}

func tableRow(r row) []string {
	out := []string{r.FileInfo.FileName}
	for _, canonical := range domain.CanonicalFields {
		out = append(out, r.AnalysisResult[canonical])
	}
	return append(out,
		strings.Join(r.Tags, ";"),
		r.FileInfo.Status,
		r.FileInfo.PromptName,
		r.FileInfo.CreatedAt,
		r.FileInfo.UpdatedAt,
	)
}

func writeCSV(path string, rows []row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tableHeaders()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(tableRow(r)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, rows []row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeXLSX(path string, rows []row) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	writeRow := func(rowIdx int, values []string) error {
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
		return nil
	}

	if err := writeRow(1, tableHeaders()); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, r := range rows {
		if err := writeRow(i+2, tableRow(r)); err != nil {
			return fmt.Errorf("write xlsx row: %w", err)
		}
	}
	return f.SaveAs(path)
}
