package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/motiondex/motiondex/internal/core/domain"
	"github.com/motiondex/motiondex/internal/core/ports"
	"github.com/motiondex/motiondex/internal/events"
	"github.com/motiondex/motiondex/internal/infrastructure/export"
)

// ResultExporter is the slice of the export component the API drives.
type ResultExporter interface {
	Export(ctx context.Context, format export.Format, videoIDs []string) (string, error)
}

type Router struct {
	submitter ports.VideoSubmitter
	results   ports.ResultReader
	storage   ports.ObjectStorage
	prompts   ports.PromptProvider
	exporter  ResultExporter
	bus       *events.Bus
}

func NewRouter(
	submitter ports.VideoSubmitter,
	results ports.ResultReader,
	storage ports.ObjectStorage,
	prompts ports.PromptProvider,
	exporter ResultExporter,
	bus *events.Bus,
) *Router {
	return &Router{
		submitter: submitter,
		results:   results,
		storage:   storage,
		prompts:   prompts,
		exporter:  exporter,
		bus:       bus,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/videos", rt.videos)
	mux.HandleFunc("/v1/videos/", rt.videoByID)
	mux.HandleFunc("/v1/batch", rt.submitBatch)
	mux.HandleFunc("/v1/export", rt.exportResults)
	mux.HandleFunc("/v1/prompts", rt.listPrompts)
	mux.HandleFunc("/v1/events", rt.streamEvents)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// videos serves GET (list) and POST (submit one video, by path or upload).
func (rt *Router) videos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.listVideos(w, r)
	case http.MethodPost:
		rt.submitVideo(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) listVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := rt.results.Videos(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": videos})
}

func (rt *Router) submitVideo(w http.ResponseWriter, r *http.Request) {
	path, err := rt.resolveSubmitPath(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	videoID, err := rt.submitter.Submit(r.Context(), path)
	if err != nil {
		if domain.IsKind(err, domain.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"video_id": videoID,
				"error":    "video is already queued",
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"video_id": videoID})
}

// resolveSubmitPath accepts either a JSON body naming a path on disk or a
// multipart upload, which is landed in local storage first.
func (rt *Router) resolveSubmitPath(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, fileHeader, err := r.FormFile("file")
		if err != nil {
			return "", errors.New("multipart field 'file' is required")
		}
		defer file.Close()

		stored, err := rt.storage.Save(r.Context(), fileHeader.Filename, file)
		if err != nil {
			return "", err
		}
		return stored, nil
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", errors.New("invalid json")
	}
	if strings.TrimSpace(req.Path) == "" {
		return "", errors.New("path is required")
	}
	return req.Path, nil
}

func (rt *Router) submitBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Paths) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "paths is required"})
		return
	}

	ids, err := rt.submitter.SubmitBatch(r.Context(), req.Paths)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"video_ids": ids})
}

// videoByID serves /v1/videos/{id}, /v1/videos/{id}/result and
// /v1/videos/{id}/cancel.
func (rt *Router) videoByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/videos/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "video id is required"})
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rt.getVideo(w, r, id)
	case action == "result" && r.Method == http.MethodGet:
		rt.getResult(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		rt.cancelVideo(w, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown route"})
	}
}

func (rt *Router) getVideo(w http.ResponseWriter, r *http.Request, id string) {
	video, err := rt.results.Video(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (rt *Router) getResult(w http.ResponseWriter, r *http.Request, id string) {
	attempt, err := rt.results.LatestResult(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (rt *Router) cancelVideo(w http.ResponseWriter, id string) {
	rt.submitter.Cancel(id)
	writeJSON(w, http.StatusAccepted, map[string]string{"video_id": id})
}

func (rt *Router) exportResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var ids []string
	if raw := strings.TrimSpace(r.URL.Query().Get("ids")); raw != "" {
		ids = strings.Split(raw, ",")
	}

	path, err := rt.exporter.Export(r.Context(), format, ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path, "format": string(format)})
}

func (rt *Router) listPrompts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": rt.prompts.Available()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
