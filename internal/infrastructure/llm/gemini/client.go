package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/motiondex/motiondex/internal/core/domain"
	"github.com/motiondex/motiondex/internal/core/ports"
	"github.com/motiondex/motiondex/internal/infrastructure/resilience"
)

type fileState string

const (
	stateProcessing fileState = "PROCESSING"
	stateActive     fileState = "ACTIVE"
	stateFailed     fileState = "FAILED"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	PollAttempts int
	PollInterval time.Duration

	RequestsPerMinute int
}

// Client is the narrow I/O adapter over the Generative Language API:
// upload a video, poll the file until the provider has processed it, then
// invoke the model with a schema-constrained prompt. It holds no business
// logic and never interprets the response text.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	exec       *resilience.Executor
	logger     *slog.Logger

	onPollAttempts func(attempts int)
}

type Option func(*Client)

// WithPollObserver reports how many readiness polls one upload needed.
func WithPollObserver(fn func(attempts int)) Option {
	return func(c *Client) {
		c.onPollAttempts = fn
	}
}

func New(cfg Config, exec *resilience.Executor, logger *slog.Logger, opts ...Option) *Client {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 15
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 180 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		exec:       exec,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload transmits the file and returns the provider's opaque handle.
// Consumes provider quota.
func (c *Client) Upload(ctx context.Context, path string) (ports.FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ports.FileHandle{}, domain.WrapError(domain.ErrNotFound, "upload video",
			fmt.Errorf("no such file: %s", path))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return ports.FileHandle{}, fmt.Errorf("rate limit wait: %w", err)
	}

	var meta fileMetadata
	uploadErr := c.exec.Execute(ctx, "upload", func(ctx context.Context) error {
		var err error
		meta, err = c.uploadFile(ctx, path, mimeTypeFor(path))
		return err
	}, classifyGeminiError)
	if uploadErr != nil {
		return ports.FileHandle{}, fmt.Errorf("upload video: %w", uploadErr)
	}

	c.logger.Info("video_uploaded", "path", path, "file", meta.Name, "state", meta.State)
	return ports.FileHandle{
		Name:        meta.Name,
		URI:         meta.URI,
		DisplayName: meta.DisplayName,
		MIMEType:    meta.MIMEType,
	}, nil
}

// AwaitReady polls the provider until the uploaded file is processed. The
// retry budget is fixed: PollAttempts polls at PollInterval, no backoff.
// Failed and unknown states raise immediately; exhausting the budget raises
// a processing timeout.
func (c *Client) AwaitReady(ctx context.Context, handle ports.FileHandle) error {
	attempts := 0
	defer func() {
		if c.onPollAttempts != nil {
			c.onPollAttempts(attempts)
		}
	}()

	for attempts = 1; attempts <= c.cfg.PollAttempts; attempts++ {
		meta, err := c.getFile(ctx, handle.Name)
		if err != nil {
			return fmt.Errorf("poll file state: %w", err)
		}

		switch fileState(meta.State) {
		case stateActive:
			c.logger.Info("video_ready", "file", handle.Name, "attempts", attempts)
			return nil
		case stateFailed:
			return domain.WrapError(domain.ErrProcessingFailed, "await ready",
				fmt.Errorf("provider reported failure for %s", handle.Name))
		case stateProcessing:
			c.logger.Debug("video_processing", "file", handle.Name,
				"attempt", attempts, "max_attempts", c.cfg.PollAttempts)
		default:
			return domain.WrapError(domain.ErrUnexpectedState, "await ready",
				fmt.Errorf("provider state %q for %s", meta.State, handle.Name))
		}

		if attempts == c.cfg.PollAttempts {
			// The budget is spent; waiting another interval buys nothing.
			break
		}
		timer := time.NewTimer(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return domain.WrapError(domain.ErrProcessingTimeout, "await ready",
		fmt.Errorf("not ready after %d polls of %s", c.cfg.PollAttempts, c.cfg.PollInterval))
}

// Invoke issues a single schema-constrained request. The returned text is
// raw model output; callers must treat it as untrusted input.
func (c *Client) Invoke(ctx context.Context, handle ports.FileHandle, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	var text string
	err := c.exec.Execute(ctx, "invoke", func(ctx context.Context) error {
		var err error
		text, err = c.generateContent(ctx, handle, prompt)
		return err
	}, classifyGeminiError)
	if err != nil {
		return "", fmt.Errorf("invoke model: %w", err)
	}

	c.logger.Info("analysis_invoked", "file", handle.Name, "response_bytes", len(text))
	return text, nil
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "video/mp4"
	}
}
