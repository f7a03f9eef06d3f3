package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/motiondex/motiondex/internal/core/ports"
)

type fileMetadata struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	DisplayName string `json:"displayName"`
	MIMEType    string `json:"mimeType"`
	State       string `json:"state"`
}

type uploadResponse struct {
	File fileMetadata `json:"file"`
}

func (c *Client) uploadFile(ctx context.Context, path, mimeType string) (fileMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileMetadata{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, f)
	if err != nil {
		return fileMetadata{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("X-Goog-File-Name", filepath.Base(path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fileMetadata{}, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fileMetadata{}, newStatusError("upload", resp)
	}

	var payload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fileMetadata{}, fmt.Errorf("decode upload response: %w", err)
	}
	if payload.File.Name == "" {
		return fileMetadata{}, fmt.Errorf("upload response missing file name")
	}
	if payload.File.DisplayName == "" {
		payload.File.DisplayName = filepath.Base(path)
	}
	return payload.File, nil
}

func (c *Client) getFile(ctx context.Context, name string) (fileMetadata, error) {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", strings.TrimRight(c.cfg.BaseURL, "/"), name, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fileMetadata{}, fmt.Errorf("create get-file request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fileMetadata{}, fmt.Errorf("get-file request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fileMetadata{}, newStatusError("get-file", resp)
	}

	var meta fileMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return fileMetadata{}, fmt.Errorf("decode get-file response: %w", err)
	}
	return meta, nil
}

type generateRequest struct {
	SystemInstruction *contentPayload  `json:"systemInstruction,omitempty"`
	Contents          []contentPayload `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type contentPayload struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type fileData struct {
	FileURI  string `json:"fileUri"`
	MIMEType string `json:"mimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (c *Client) generateContent(ctx context.Context, handle ports.FileHandle, prompt string) (string, error) {
	reqBody := generateRequest{
		SystemInstruction: &contentPayload{
			Parts: []part{{Text: systemInstruction}},
		},
		Contents: []contentPayload{{
			Role: "user",
			Parts: []part{
				{FileData: &fileData{FileURI: handle.URI, MIMEType: handle.MIMEType}},
				{Text: prompt},
			},
		}},
		GenerationConfig: defaultGenerationConfig(),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", newStatusError("generate", resp)
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate response has no candidates")
	}

	var text strings.Builder
	for _, p := range payload.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "gemini status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("gemini %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("gemini %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func newStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}
