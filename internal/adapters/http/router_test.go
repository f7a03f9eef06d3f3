package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/motiondex/motiondex/internal/core/domain"
	"github.com/motiondex/motiondex/internal/events"
	"github.com/motiondex/motiondex/internal/infrastructure/export"
)

type fakeSubmitter struct {
	submitID  string
	submitErr error
	batchIDs  []string
	canceled  []string
	lastPath  string
}

func (f *fakeSubmitter) Submit(_ context.Context, path string) (string, error) {
	f.lastPath = path
	return f.submitID, f.submitErr
}

func (f *fakeSubmitter) SubmitBatch(_ context.Context, paths []string) ([]string, error) {
	return f.batchIDs, nil
}

func (f *fakeSubmitter) Cancel(videoID string) {
	f.canceled = append(f.canceled, videoID)
}

type fakeResults struct {
	video   *domain.Video
	videos  []domain.Video
	attempt *domain.AnalysisAttempt
	err     error
}

func (f *fakeResults) Video(context.Context, string) (*domain.Video, error) {
	return f.video, f.err
}

func (f *fakeResults) Videos(context.Context) ([]domain.Video, error) {
	return f.videos, f.err
}

func (f *fakeResults) LatestResult(context.Context, string) (*domain.AnalysisAttempt, error) {
	return f.attempt, f.err
}

type fakeStorage struct {
	savedKey string
	path     string
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) (string, error) {
	f.savedKey = key
	_, _ = io.Copy(io.Discard, data)
	return f.path, nil
}

func (f *fakeStorage) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not used")
}

type fakePrompts struct{}

func (fakePrompts) GeneratePrompt(string, string) (string, error) { return "", nil }
func (fakePrompts) Available() []string                           { return []string{"default", "dance"} }

type fakeExporter struct {
	format export.Format
	ids    []string
	path   string
}

func (f *fakeExporter) Export(_ context.Context, format export.Format, ids []string) (string, error) {
	f.format = format
	f.ids = ids
	return f.path, nil
}

type routerFixture struct {
	router    *Router
	submitter *fakeSubmitter
	results   *fakeResults
	storage   *fakeStorage
	exporter  *fakeExporter
	bus       *events.Bus
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		submitter: &fakeSubmitter{submitID: "vid-1"},
		results:   &fakeResults{},
		storage:   &fakeStorage{path: "/data/videos/clip.mp4"},
		exporter:  &fakeExporter{path: "/exports/analysis_results_x.json"},
		bus:       events.NewBus(),
	}
	f.router = NewRouter(f.submitter, f.results, f.storage, fakePrompts{}, f.exporter, f.bus)
	return f
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestSubmitVideoByPath(t *testing.T) {
	f := newRouterFixture()
	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	res, err := http.Post(server.URL+"/v1/videos", "application/json",
		strings.NewReader(`{"path": "/clips/slash.mp4"}`))
	if err != nil {
		t.Fatalf("POST /v1/videos: %v", err)
	}
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", res.StatusCode)
	}
	body := decodeBody(t, res)
	if body["video_id"] != "vid-1" {
		t.Fatalf("video_id = %v", body["video_id"])
	}
	if f.submitter.lastPath != "/clips/slash.mp4" {
		t.Fatalf("submitted path = %q", f.submitter.lastPath)
	}
}

func TestSubmitVideoWithoutPathIsBadRequest(t *testing.T) {
	f := newRouterFixture()
	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	res, err := http.Post(server.URL+"/v1/videos", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /v1/videos: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestSubmitDuplicateIsConflict(t *testing.T) {
	f := newRouterFixture()
	f.submitter.submitErr = domain.WrapError(domain.ErrDuplicate, "submit video", errors.New("queued"))
	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	res, err := http.Post(server.URL+"/v1/videos", "application/json",
		strings.NewReader(`{"path": "/clips/slash.mp4"}`))
	if err != nil {
		t.Fatalf("POST /v1/videos: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", res.StatusCode)
	}
}

func TestGetVideoNotFoundMapsTo404(t *testing.T) {
	f := newRouterFixture()
	f.results.err = domain.WrapError(domain.ErrNotFound, "get video", errors.New("missing"))
	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	res, err := http.Get(server.URL + "/v1/videos/missing")
	if err != nil {
		t.Fatalf("GET /v1/videos/missing: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
}

func TestCancelVideoIsAccepted(t *testing.T) {
	f := newRouterFixture()
	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	res, err := http.Post(server.URL+"/v1/videos/vid-1/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", res.StatusCode)
	}
	if len(f.submitter.canceled) != 1 || f.submitter.canceled[0] != "vid-1" {
		t.Fatalf("canceled = %v", f.submitter.canceled)
	}
}

func TestBatchSubmit(t *testing.T) {
	f := newRouterFixture()
	f.submitter.batchIDs = []string{"vid-1", "vid-2"}
	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	res, err := http.Post(server.URL+"/v1/batch", "application/json",
		strings.NewReader(`{"paths": ["/clips/a.mp4", "/clips/b.mp4"]}`))
	if err != nil {
		t.Fatalf("POST /v1/batch: %v", err)
	}
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", res.StatusCode)
	}
	body := decodeBody(t, res)
	ids, ok := body["video_ids"].([]any)
	if !ok || len(ids) != 2 {
		t.Fatalf("video_ids = %v", body["video_ids"])
	}
}

func TestExportPassesFormatAndIDs(t *testing.T) {
	f := newRouterFixture()
	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	res, err := http.Get(server.URL + "/v1/export?format=csv&ids=v1,v2")
	if err != nil {
		t.Fatalf("GET /v1/export: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	body := decodeBody(t, res)
	if body["path"] == "" {
		t.Fatalf("missing export path: %v", body)
	}
	if f.exporter.format != export.FormatCSV {
		t.Fatalf("format = %s, want csv", f.exporter.format)
	}
	if len(f.exporter.ids) != 2 {
		t.Fatalf("ids = %v", f.exporter.ids)
	}
}

func TestExportUnknownFormatIsBadRequest(t *testing.T) {
	f := newRouterFixture()
	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	res, err := http.Get(server.URL + "/v1/export?format=pdf")
	if err != nil {
		t.Fatalf("GET /v1/export: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestListPrompts(t *testing.T) {
	f := newRouterFixture()
	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	res, err := http.Get(server.URL + "/v1/prompts")
	if err != nil {
		t.Fatalf("GET /v1/prompts: %v", err)
	}
	body := decodeBody(t, res)
	prompts, ok := body["prompts"].([]any)
	if !ok || len(prompts) != 2 {
		t.Fatalf("prompts = %v", body["prompts"])
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	f := newRouterFixture()
	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/v1/videos", nil)
	req.Header.Set("X-Request-Id", "req-42")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /v1/videos: %v", err)
	}
	res.Body.Close()
	if got := res.Header.Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("X-Request-Id = %q, want req-42", got)
	}
}
