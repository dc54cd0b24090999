// Package model holds the values exchanged between the tutor, the session
// manager and the HTTP surface.
package model

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

// FileKind is the kind of uploaded artifact
type FileKind string

const (
	KindDocument FileKind = "document"
	KindImage    FileKind = "image"
)

var extensionKinds = map[string]FileKind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".bmp":  KindImage,
	".txt":  KindDocument,
	".md":   KindDocument,
}

// KindForFilename maps a filename's extension (case-insensitive) to its kind.
// It returns the lowercased extension and false for unsupported files.
func KindForFilename(filename string) (FileKind, string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	kind, ok := extensionKinds[ext]
	return kind, ext, ok
}

// CompletedMessage is carried by every result past the last section
const CompletedMessage = "All sections completed!"

// Question is one comprehension question
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// SectionResult is the outcome of one tutoring step. It is never mutated
// after it is produced.
type SectionResult struct {
	AudioPath     string     `json:"audio_path"`
	Text          string     `json:"text"`
	Questions     []Question `json:"questions"`
	Section       string     `json:"section"` // "i/total", 1-based
	Completed     bool       `json:"completed"`
	Message       string     `json:"message,omitempty"`
	AudioDuration float64    `json:"audio_duration,omitempty"` // seconds
}

// CompletedResult is the result of stepping past the last section
func CompletedResult() SectionResult {
	return SectionResult{Completed: true, Message: CompletedMessage}
}

// MarshalJSON renders a completed result as {completed, message} only
func (r SectionResult) MarshalJSON() ([]byte, error) {
	if r.Completed {
		return json.Marshal(struct {
			Completed bool   `json:"completed"`
			Message   string `json:"message"`
		}{true, r.Message})
	}

	type plain SectionResult
	p := plain(r)
	if p.Questions == nil {
		p.Questions = []Question{}
	}
	return json.Marshal(p)
}

// Feedback is the evaluation of one submitted answer. IsCorrect comes from a
// local comparison and Explanation from the model; they are not reconciled.
type Feedback struct {
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
	NextAction  string `json:"next_action"`
}

// NextActionContinue is the only next action currently produced
const NextActionContinue = "continue"

// PracticeResult scores a learner's spoken reading of the current section
type PracticeResult struct {
	Transcript string   `json:"transcript"`
	Confidence float64  `json:"confidence"`
	Score      float64  `json:"score"` // matched / total, 0..1
	Matched    int      `json:"matched"`
	Total      int      `json:"total"`
	Missed     []string `json:"missed"`
	Tips       string   `json:"tips"`
	Degraded   bool     `json:"degraded"`
}

// HistoryEntry is one record of the append-only audit log
type HistoryEntry struct {
	Seq    int           `json:"seq"`
	At     time.Time     `json:"at"`
	Index  int           `json:"index"`
	Result SectionResult `json:"result"`
}

// UploadResult acknowledges an accepted upload. FileID is the session id.
type UploadResult struct {
	FileID   string   `json:"file_id"`
	FileType FileKind `json:"file_type"`
	Message  string   `json:"message"`
}
