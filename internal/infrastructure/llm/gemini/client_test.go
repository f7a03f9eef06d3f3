package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/motiondex/motiondex/internal/core/domain"
	"github.com/motiondex/motiondex/internal/core/ports"
	"github.com/motiondex/motiondex/internal/infrastructure/resilience"
)

func testClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	exec := resilience.NewExecutor(resilience.Policy{
		RetryMaxAttempts: 1,
		BreakerEnabled:   false,
	}, nil)
	return New(Config{
		BaseURL:           baseURL,
		APIKey:            "test-key",
		Model:             "gemini-2.0-flash",
		PollAttempts:      3,
		PollInterval:      time.Millisecond,
		RequestsPerMinute: 600000,
	}, exec, nil, opts...)
}

func writeTestVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not really mp4"), 0o644); err != nil {
		t.Fatalf("write test video: %v", err)
	}
	return path
}

func TestUploadMissingFileIsNotFound(t *testing.T) {
	client := testClient(t, "http://unused.invalid")

	_, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
}

func TestUploadReturnsHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/upload/v1beta/files") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Goog-Upload-Protocol") != "raw" {
			t.Fatalf("expected raw upload protocol header")
		}
		json.NewEncoder(w).Encode(uploadResponse{File: fileMetadata{
			Name:     "files/abc",
			URI:      "https://files.example/abc",
			MIMEType: "video/mp4",
			State:    "PROCESSING",
		}})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	handle, err := client.Upload(context.Background(), writeTestVideo(t))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if handle.Name != "files/abc" {
		t.Fatalf("expected handle name files/abc, got %q", handle.Name)
	}
	if handle.DisplayName != "clip.mp4" {
		t.Fatalf("expected display name fallback to base name, got %q", handle.DisplayName)
	}
}

func pollServer(t *testing.T, states ...string) *httptest.Server {
	t.Helper()
	idx := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := states[len(states)-1]
		if idx < len(states) {
			state = states[idx]
			idx++
		}
		json.NewEncoder(w).Encode(fileMetadata{Name: "files/abc", State: state})
	}))
}

func TestAwaitReadySucceedsAfterPolls(t *testing.T) {
	server := pollServer(t, "PROCESSING", "PROCESSING", "ACTIVE")
	defer server.Close()

	var observed int
	client := testClient(t, server.URL, WithPollObserver(func(attempts int) {
		observed = attempts
	}))

	err := client.AwaitReady(context.Background(), ports.FileHandle{Name: "files/abc"})
	if err != nil {
		t.Fatalf("AwaitReady() error = %v", err)
	}
	if observed != 3 {
		t.Fatalf("expected 3 observed polls, got %d", observed)
	}
}

func TestAwaitReadyFailedStateRaisesImmediately(t *testing.T) {
	server := pollServer(t, "FAILED")
	defer server.Close()

	client := testClient(t, server.URL)
	err := client.AwaitReady(context.Background(), ports.FileHandle{Name: "files/abc"})
	if !domain.IsKind(err, domain.ErrProcessingFailed) {
		t.Fatalf("expected processing-failed kind, got %v", err)
	}
}

func TestAwaitReadyUnknownStateRaisesImmediately(t *testing.T) {
	server := pollServer(t, "GLITCHED")
	defer server.Close()

	client := testClient(t, server.URL)
	err := client.AwaitReady(context.Background(), ports.FileHandle{Name: "files/abc"})
	if !domain.IsKind(err, domain.ErrUnexpectedState) {
		t.Fatalf("expected unexpected-state kind, got %v", err)
	}
}

func TestAwaitReadyExhaustedBudgetIsTimeout(t *testing.T) {
	server := pollServer(t, "PROCESSING")
	defer server.Close()

	var observed int
	client := testClient(t, server.URL, WithPollObserver(func(attempts int) {
		observed = attempts
	}))

	err := client.AwaitReady(context.Background(), ports.FileHandle{Name: "files/abc"})
	if !domain.IsKind(err, domain.ErrProcessingTimeout) {
		t.Fatalf("expected processing-timeout kind, got %v", err)
	}
	if observed != 3 {
		t.Fatalf("expected observed polls to equal the budget of 3, got %d", observed)
	}
}

func TestInvokeReturnsRawCandidateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode generate request: %v", err)
		}
		if req.GenerationConfig.ResponseMIMEType != "application/json" {
			t.Fatalf("expected json response mime type, got %q", req.GenerationConfig.ResponseMIMEType)
		}
		if req.GenerationConfig.ResponseSchema == nil {
			t.Fatal("expected a response schema on the request")
		}

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{'Scene': 'combat'}"}]}}]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	text, err := client.Invoke(context.Background(), ports.FileHandle{
		Name: "files/abc", URI: "https://files.example/abc", MIMEType: "video/mp4",
	}, "describe the clip")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if text != "{'Scene': 'combat'}" {
		t.Fatalf("expected raw text passthrough, got %q", text)
	}
}

func TestInvokeEmptyCandidatesIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	if _, err := client.Invoke(context.Background(), ports.FileHandle{Name: "files/abc"}, "p"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}
