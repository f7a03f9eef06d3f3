package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/motiondex/motiondex/internal/core/domain"
	"github.com/motiondex/motiondex/internal/core/ports"
	"github.com/motiondex/motiondex/internal/events"
)

// PipelineMetrics is the slice of the metrics registry the scheduler
// records into.
type PipelineMetrics interface {
	StartJob()
	FinishJob(service, status string, duration time.Duration)
	ObserveLaneWait(service string, wait time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) StartJob()                               {}
func (noopMetrics) FinishJob(string, string, time.Duration) {}
func (noopMetrics) ObserveLaneWait(string, time.Duration)   {}

const serviceName = "scheduler"

type SchedulerConfig struct {
	// BatchSize bounds how many paths one batch chunk submits at a time.
	BatchSize int
	// QueueCapacity bounds the lane backlog; submissions beyond it fail fast.
	QueueCapacity int
	// ResultVersion stamps every persisted attempt.
	ResultVersion string
}

func (c *SchedulerConfig) normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 256
	}
	if c.ResultVersion == "" {
		c.ResultVersion = "1.0"
	}
}

type job struct {
	videoID    string
	path       string
	promptName string
	enqueuedAt time.Time
}

// Scheduler runs analysis jobs on a single lane: one runner goroutine
// consumes a FIFO queue, so at most one video is ever processing.
type Scheduler struct {
	store      ports.VideoStore
	client     ports.AnalysisClient
	prompts    ports.PromptProvider
	normalizer ports.Normalizer
	sink       events.Sink
	metrics    PipelineMetrics
	logger     *slog.Logger
	cfg        SchedulerConfig

	queue chan job

	mu       sync.Mutex
	inflight map[string]struct{}
	cancels  map[string]struct{}
}

func NewScheduler(
	store ports.VideoStore,
	client ports.AnalysisClient,
	prompts ports.PromptProvider,
	normalizer ports.Normalizer,
	sink events.Sink,
	metrics PipelineMetrics,
	logger *slog.Logger,
	cfg SchedulerConfig,
) *Scheduler {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Scheduler{
		store:      store,
		client:     client,
		prompts:    prompts,
		normalizer: normalizer,
		sink:       sink,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		queue:      make(chan job, cfg.QueueCapacity),
		inflight:   make(map[string]struct{}),
		cancels:    make(map[string]struct{}),
	}
}

// Run consumes the lane until ctx is canceled. It is meant to be started
// once, as a goroutine, before any submission.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-s.queue:
			s.runJob(ctx, j)
		}
	}
}

// Submit registers the path (idempotently) and enqueues one analysis
// attempt. A video already queued or processing is rejected with
// ErrDuplicate; the returned id is valid in both cases.
func (s *Scheduler) Submit(ctx context.Context, path string) (string, error) {
	video, err := s.store.UpsertVideo(ctx, path)
	if err != nil {
		return "", fmt.Errorf("register video: %w", err)
	}

	s.mu.Lock()
	if _, ok := s.inflight[video.ID]; ok {
		s.mu.Unlock()
		return video.ID, domain.WrapError(domain.ErrDuplicate, "submit video",
			fmt.Errorf("video %s already queued", video.ID))
	}
	// Any other in-flight video holds the lane until its job releases it,
	// so this submission will wait: record that as PENDING. Membership in
	// inflight spans enqueue through completion, which keeps the check
	// accurate even while the runner is between dequeue and first status.
	laneBusy := len(s.inflight) > 0
	s.inflight[video.ID] = struct{}{}
	s.mu.Unlock()

	if laneBusy {
		if err := s.markStatus(ctx, video.ID, domain.StatusPending, nil); err != nil {
			s.release(video.ID)
			return "", err
		}
	}

	j := job{videoID: video.ID, path: path, promptName: video.PromptName, enqueuedAt: time.Now()}
	select {
	case s.queue <- j:
		s.logger.Debug("job_enqueued", "video_id", video.ID, "path", path)
		return video.ID, nil
	default:
		s.release(video.ID)
		return "", domain.WrapError(domain.ErrTemporary, "submit video",
			errors.New("lane queue is full"))
	}
}

// SubmitBatch submits paths in chunks of the configured batch size. A path
// that fails to submit does not abort the rest; its error is logged and the
// batch continues. Returned ids cover the submissions that succeeded.
func (s *Scheduler) SubmitBatch(ctx context.Context, paths []string) ([]string, error) {
	ids := make([]string, 0, len(paths))
	for start := 0; start < len(paths); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(paths) {
			end = len(paths)
		}
		s.logger.Info("batch_chunk", "from", start, "to", end, "total", len(paths))

		for _, path := range paths[start:end] {
			if err := ctx.Err(); err != nil {
				return ids, err
			}
			id, err := s.Submit(ctx, path)
			if err != nil {
				if domain.IsKind(err, domain.ErrDuplicate) {
					ids = append(ids, id)
					continue
				}
				s.logger.Error("batch_submit_failed", "path", path, "error", err)
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Cancel flags an in-flight attempt for cooperative cancellation. The flag
// is observed at a single checkpoint after the provider call and before any
// result is persisted; a video that is not in-flight is left alone.
func (s *Scheduler) Cancel(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[videoID]; !ok {
		return
	}
	s.cancels[videoID] = struct{}{}
	s.logger.Info("cancel_requested", "video_id", videoID)
}

// takeCancel consumes the cancel flag for the video, reporting whether one
// was set. Flags do not survive past the checkpoint that observes them.
func (s *Scheduler) takeCancel(videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cancels[videoID]
	delete(s.cancels, videoID)
	return ok
}

func (s *Scheduler) release(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, videoID)
	delete(s.cancels, videoID)
}

func (s *Scheduler) markStatus(ctx context.Context, videoID string, status domain.VideoStatus, progress *int) error {
	if err := s.store.UpdateStatus(ctx, videoID, status, progress); err != nil {
		return fmt.Errorf("set status=%s: %w", status, err)
	}
	s.sink.Publish(events.Event{Type: events.TypeStatus, VideoID: videoID, Status: status})
	if progress != nil {
		s.sink.Publish(events.Event{Type: events.TypeProgress, VideoID: videoID, Progress: *progress})
	}
	return nil
}
