package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/motiondex/motiondex/internal/core/domain"
	"github.com/motiondex/motiondex/internal/events"
)

func intPtr(v int) *int { return &v }

// runJob executes one analysis attempt end to end. The lane is held for the
// whole call; the video is released whatever the outcome.
func (s *Scheduler) runJob(ctx context.Context, j job) {
	started := time.Now()
	s.metrics.StartJob()
	s.metrics.ObserveLaneWait(serviceName, started.Sub(j.enqueuedAt))

	status := s.analyze(ctx, j)

	s.release(j.videoID)
	s.metrics.FinishJob(serviceName, string(status), time.Since(started))
}

func (s *Scheduler) analyze(ctx context.Context, j job) domain.VideoStatus {
	logger := s.logger.With("video_id", j.videoID, "path", j.path)

	if err := s.markStatus(ctx, j.videoID, domain.StatusProcessing, intPtr(0)); err != nil {
		logger.Error("job_start_failed", "error", err)
		return domain.StatusError
	}

	rawText, err := s.invokeProvider(ctx, j)
	if err != nil {
		return s.fail(ctx, logger, j.videoID, err)
	}

	// The only cancellation checkpoint: after the provider call, before
	// anything is persisted. A canceled attempt leaves no result rows.
	if s.takeCancel(j.videoID) {
		logger.Info("job_canceled")
		if err := s.markStatus(ctx, j.videoID, domain.StatusCanceled, nil); err != nil {
			logger.Error("cancel_status_failed", "error", err)
		}
		return domain.StatusCanceled
	}

	if err := s.markStatus(ctx, j.videoID, domain.StatusProcessing, intPtr(50)); err != nil {
		return s.fail(ctx, logger, j.videoID, err)
	}

	if err := s.persistResult(ctx, j, rawText); err != nil {
		return s.fail(ctx, logger, j.videoID, err)
	}

	if err := s.markStatus(ctx, j.videoID, domain.StatusFix, intPtr(100)); err != nil {
		logger.Error("finish_status_failed", "error", err)
		return domain.StatusError
	}

	logger.Info("job_done", "status", string(domain.StatusFix))
	return domain.StatusFix
}

func (s *Scheduler) invokeProvider(ctx context.Context, j job) (string, error) {
	prompt, err := s.prompts.GeneratePrompt(j.promptName, j.path)
	if err != nil {
		return "", fmt.Errorf("generate prompt: %w", err)
	}

	handle, err := s.client.Upload(ctx, j.path)
	if err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}

	if err := s.client.AwaitReady(ctx, handle); err != nil {
		return "", fmt.Errorf("await provider readiness: %w", err)
	}

	rawText, err := s.client.Invoke(ctx, handle, prompt)
	if err != nil {
		return "", fmt.Errorf("invoke provider: %w", err)
	}
	return rawText, nil
}

// persistResult normalizes the raw response and writes the attempt, its
// derived tags and the prompt name used. Parse degradation never fails the
// job; only store errors do.
func (s *Scheduler) persistResult(ctx context.Context, j job, rawText string) error {
	fields := s.normalizer.Normalize(rawText)
	tags := s.normalizer.DeriveTags(fields)

	attempt := &domain.AnalysisAttempt{
		VideoID: j.videoID,
		RawText: rawText,
		Fields:  fields,
		Version: s.cfg.ResultVersion,
	}
	if err := s.store.InsertAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("persist attempt: %w", err)
	}

	if len(tags) > 0 {
		if err := s.store.InsertTags(ctx, j.videoID, tags, domain.TagSourceAuto); err != nil {
			return fmt.Errorf("persist tags: %w", err)
		}
	}

	promptName := j.promptName
	if promptName == "" {
		promptName = "default"
	}
	if err := s.store.SetPromptName(ctx, j.videoID, promptName); err != nil {
		return fmt.Errorf("record prompt name: %w", err)
	}
	return nil
}

func (s *Scheduler) fail(ctx context.Context, logger *slog.Logger, videoID string, jobErr error) domain.VideoStatus {
	logger.Error("job_failed", "error", jobErr)

	if err := s.store.UpdateStatus(ctx, videoID, domain.StatusError, nil); err != nil {
		logger.Error("error_status_failed", "error", err)
	}
	s.sink.Publish(events.Event{Type: events.TypeStatus, VideoID: videoID, Status: domain.StatusError})
	s.sink.Publish(events.Event{Type: events.TypeError, VideoID: videoID, Message: jobErr.Error()})
	return domain.StatusError
}
