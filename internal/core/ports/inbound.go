package ports

import (
	"context"

	"github.com/motiondex/motiondex/internal/core/domain"
)

// VideoSubmitter is the surface the GUI/CLI layer drives.
type VideoSubmitter interface {
	// Submit is idempotent by path and returns the video id immediately;
	// the attempt itself runs asynchronously on the single worker lane.
	Submit(ctx context.Context, path string) (string, error)
	SubmitBatch(ctx context.Context, paths []string) ([]string, error)
	// Cancel requests best-effort cooperative cancellation for an in-flight
	// attempt. It is a no-op for videos that are not currently processing.
	Cancel(videoID string)
}

// ResultReader serves the read side of the store to the outer layers.
type ResultReader interface {
	Video(ctx context.Context, id string) (*domain.Video, error)
	Videos(ctx context.Context) ([]domain.Video, error)
	LatestResult(ctx context.Context, videoID string) (*domain.AnalysisAttempt, error)
}
