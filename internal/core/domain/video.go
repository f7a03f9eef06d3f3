package domain

import "time"

type VideoStatus string

const (
	StatusUnprocessed VideoStatus = "UNPROCESSED"
	StatusPending     VideoStatus = "PENDING"
	StatusProcessing  VideoStatus = "PROCESSING"
	StatusFix         VideoStatus = "FIX"
	StatusError       VideoStatus = "ERROR"
	StatusCanceled    VideoStatus = "CANCELED"
)

func DefaultVideoStatus() VideoStatus {
	return StatusUnprocessed
}

func (s VideoStatus) Valid() bool {
	switch s {
	case StatusUnprocessed, StatusPending, StatusProcessing, StatusFix, StatusError, StatusCanceled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends an attempt. A terminal video is
// still re-submittable; re-submission moves it back through PENDING/PROCESSING.
func (s VideoStatus) Terminal() bool {
	switch s {
	case StatusFix, StatusError, StatusCanceled:
		return true
	default:
		return false
	}
}

type Video struct {
	ID         string      `json:"id"`
	FilePath   string      `json:"file_path"`
	FileName   string      `json:"file_name"`
	Status     VideoStatus `json:"status"`
	Progress   int         `json:"progress"`
	PromptName string      `json:"prompt_name,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// AnalysisAttempt is one normalization result for one provider invocation.
// Rows are append-only; the result for a video is the attempt with the
// latest CreatedAt.
type AnalysisAttempt struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id"`
	RawText   string    `json:"raw_text"`
	Fields    FieldMap  `json:"fields"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

type TagSource string

const (
	TagSourceAuto   TagSource = "auto"
	TagSourceManual TagSource = "manual"
)

type Tag struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id"`
	Tag       string    `json:"tag"`
	Source    TagSource `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
