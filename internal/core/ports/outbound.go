package ports

import (
	"context"
	"io"

	"github.com/motiondex/motiondex/internal/core/domain"
)

// VideoStore persists videos, analysis attempts and derived tags.
type VideoStore interface {
	// UpsertVideo returns the existing video when the file path is already
	// known; otherwise it inserts one with status UNPROCESSED and progress 0.
	UpsertVideo(ctx context.Context, filePath string) (*domain.Video, error)
	GetVideo(ctx context.Context, id string) (*domain.Video, error)
	ListVideos(ctx context.Context) ([]domain.Video, error)
	UpdateStatus(ctx context.Context, id string, status domain.VideoStatus, progress *int) error
	SetPromptName(ctx context.Context, id, promptName string) error
	InsertAttempt(ctx context.Context, attempt *domain.AnalysisAttempt) error
	LatestAttempt(ctx context.Context, videoID string) (*domain.AnalysisAttempt, error)
	InsertTags(ctx context.Context, videoID string, tags []string, source domain.TagSource) error
	ListTags(ctx context.Context, videoID string) ([]domain.Tag, error)
}

// FileHandle identifies an artifact uploaded to the analysis provider.
type FileHandle struct {
	Name        string
	URI         string
	DisplayName string
	MIMEType    string
}

// AnalysisClient is the narrow adapter over the multimodal provider.
// Invoke's return value is raw text and must be treated as untrusted input.
type AnalysisClient interface {
	Upload(ctx context.Context, path string) (FileHandle, error)
	AwaitReady(ctx context.Context, handle FileHandle) error
	Invoke(ctx context.Context, handle FileHandle, prompt string) (string, error)
}

// PromptProvider renders the analysis prompt for a video from a named
// configuration, falling back to "default" when the name resolves to
// nothing usable.
type PromptProvider interface {
	GeneratePrompt(configName, videoPath string) (string, error)
	Available() []string
}

// Normalizer converts raw provider text into canonical fields and tags.
type Normalizer interface {
	Normalize(rawText string) domain.FieldMap
	DeriveTags(fields domain.FieldMap) []string
}

// ObjectStorage lands files that arrive through the API before submission.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
