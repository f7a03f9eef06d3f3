package usecase

import (
	"context"
	"fmt"

	"github.com/motiondex/motiondex/internal/core/domain"
	"github.com/motiondex/motiondex/internal/core/ports"
)

// ResultsUseCase serves the read side: video listings and the latest
// normalized result per video.
type ResultsUseCase struct {
	store ports.VideoStore
}

func NewResultsUseCase(store ports.VideoStore) *ResultsUseCase {
	return &ResultsUseCase{store: store}
}

func (uc *ResultsUseCase) Video(ctx context.Context, id string) (*domain.Video, error) {
	video, err := uc.store.GetVideo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch video by id: %w", err)
	}
	return video, nil
}

func (uc *ResultsUseCase) Videos(ctx context.Context) ([]domain.Video, error) {
	videos, err := uc.store.ListVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// LatestResult returns the newest attempt for the video, or ErrNotFound when
// the video exists but has never been analyzed.
func (uc *ResultsUseCase) LatestResult(ctx context.Context, videoID string) (*domain.AnalysisAttempt, error) {
	if _, err := uc.store.GetVideo(ctx, videoID); err != nil {
		return nil, fmt.Errorf("fetch video by id: %w", err)
	}

	attempt, err := uc.store.LatestAttempt(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("fetch latest attempt: %w", err)
	}
	if attempt == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "fetch latest attempt",
			fmt.Errorf("video %s has no analysis result", videoID))
	}
	return attempt, nil
}
