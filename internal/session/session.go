package session

import (
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/echotutor/tutor-service/internal/model"
	"github.com/echotutor/tutor-service/internal/segment"
)

// State is the coarse position of a session in its lifecycle
type State string

const (
	StateCreated   State = "created"
	StateSegmented State = "segmented"
	StateTutoring  State = "tutoring"
	StateCompleted State = "completed"
)

// Session tracks one uploaded artifact through its sections
type Session struct {
	ID         string
	SourcePath string
	Kind       model.FileKind
	CreatedAt  time.Time

	// stepMu serializes cursor moves and the steps they trigger
	stepMu sync.Mutex

	mu            sync.RWMutex
	state         State
	extractedText string
	sections      []string
	segmented     bool
	index         int
	latest        *model.SectionResult
	history       []model.HistoryEntry
}

// Snapshot is a point-in-time copy of a session's progress
type Snapshot struct {
	ID        string         `json:"session_id"`
	Kind      model.FileKind `json:"file_type"`
	State     State          `json:"state"`
	Index     int            `json:"current_section"`
	Total     int            `json:"total_sections"`
	Chars     int            `json:"extracted_chars"`
	CreatedAt time.Time      `json:"created_at"`
}

func newSession(id, sourcePath string, kind model.FileKind) *Session {
	return &Session{
		ID:         id,
		SourcePath: sourcePath,
		Kind:       kind,
		CreatedAt:  time.Now(),
		state:      StateCreated,
	}
}

// setText stores the extracted text and its sections. It may only happen once.
func (s *Session) setText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.segmented {
		return errors.New("session already segmented")
	}
	s.extractedText = text
	s.sections = segment.Segment(text)
	s.segmented = true
	s.state = StateSegmented
	return nil
}

// advance moves the cursor forward by one and returns the new index
func (s *Session) advance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index++
	return s.index
}

// record appends result to the audit log and makes it the latest result
func (s *Session) record(index int, result model.SectionResult) model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := model.HistoryEntry{
		Seq:    len(s.history) + 1,
		At:     time.Now(),
		Index:  index,
		Result: result,
	}
	s.history = append(s.history, entry)
	s.latest = &entry.Result

	if result.Completed {
		s.state = StateCompleted
	} else {
		s.state = StateTutoring
	}
	return entry
}

// Sections returns the section list. It is never modified after segmentation.
func (s *Session) Sections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sections
}

// Index returns the current section cursor
func (s *Session) Index() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Latest returns the most recently produced result
func (s *Session) Latest() (model.SectionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return model.SectionResult{}, false
	}
	return *s.latest, true
}

// History returns a copy of the audit log
func (s *Session) History() []model.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot copies the session's progress
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:        s.ID,
		Kind:      s.Kind,
		State:     s.state,
		Index:     s.index,
		Total:     len(s.sections),
		Chars:     utf8.RuneCountInString(s.extractedText),
		CreatedAt: s.CreatedAt,
	}
}
