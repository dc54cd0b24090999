// Package session drives uploaded artifacts through extraction, segmentation
// and tutoring, one section at a time.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/dashscope"
	"github.com/echotutor/tutor-service/internal/model"
	"github.com/echotutor/tutor-service/internal/observability"
	"github.com/echotutor/tutor-service/internal/tutor"
)

// UploadedMessage acknowledges an accepted upload
const UploadedMessage = "File uploaded and processed successfully"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextRecognizer extracts text from an image
type TextRecognizer interface {
	RecognizeText(ctx context.Context, image []byte) dashscope.Result[dashscope.Recognition]
}

// Tutor is the per-section work the manager schedules
type Tutor interface {
	Step(ctx context.Context, sessionID string, sections []string, index int) (model.SectionResult, error)
	Evaluate(ctx context.Context, latest *model.SectionResult, answer string, questionIndex int) model.Feedback
	Practice(ctx context.Context, sectionText string, recording []byte) (model.PracticeResult, error)
}

// Manager owns the session store and runs every session operation
type Manager struct {
	config     *config.Config
	store      *Store
	broker     *Broker
	recognizer TextRecognizer
	tutor      Tutor
	steps      *semaphore.Weighted
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager around an explicit store. Expired or deleted
// sessions have their subscribers closed.
func NewManager(cfg *config.Config, store *Store, recognizer TextRecognizer, t Tutor) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	maxSteps := cfg.MaxConcurrentSteps
	if maxSteps <= 0 {
		maxSteps = 1
	}

	m := &Manager{
		config:     cfg,
		store:      store,
		broker:     NewBroker(),
		recognizer: recognizer,
		tutor:      t,
		steps:      semaphore.NewWeighted(maxSteps),
		logger:     observability.WithComponent("session"),
		ctx:        ctx,
		cancel:     cancel,
	}

	store.OnEvicted(func(id string) {
		m.logger.Info().Str("session_id", id).Msg("session evicted")
		m.broker.CloseSession(id)
		observability.SetActiveSessions(store.Count())
	})

	return m
}

// Upload validates and persists an artifact, extracts and segments its text
// and runs the first tutoring step. The session only becomes visible once
// that step has completed.
func (m *Manager) Upload(ctx context.Context, filename string, content []byte) (model.UploadResult, error) {
	if int64(len(content)) > m.config.MaxFileSize {
		observability.RecordUpload("unknown", false)
		return model.UploadResult{}, reject(ReasonTooLarge)
	}

	kind, ext, ok := model.KindForFilename(filename)
	if !ok {
		observability.RecordUpload("unknown", false)
		return model.UploadResult{}, reject(ReasonUnsupported)
	}

	id := uuid.NewString()
	logger := observability.WithSession(id)

	if err := os.MkdirAll(m.config.UploadDir, 0o755); err != nil {
		return model.UploadResult{}, fmt.Errorf("failed to create upload directory: %w", err)
	}
	sourcePath := filepath.Join(m.config.UploadDir, id+ext)
	if err := os.WriteFile(sourcePath, content, 0o644); err != nil {
		return model.UploadResult{}, fmt.Errorf("failed to save upload: %w", err)
	}

	sess := newSession(id, sourcePath, kind)
	work := context.WithoutCancel(ctx)

	text := m.extract(work, sess, content)
	if err := sess.setText(text); err != nil {
		return model.UploadResult{}, err
	}
	logger.Info().
		Str("file_type", string(kind)).
		Int("chars", utf8.RuneCountInString(text)).
		Int("sections", len(sess.Sections())).
		Msg("upload segmented")

	if _, err := m.runStep(work, sess, 0); err != nil {
		return model.UploadResult{}, err
	}

	m.store.Put(sess)
	observability.RecordUpload(string(kind), true)
	observability.SetActiveSessions(m.store.Count())

	return model.UploadResult{
		FileID:   id,
		FileType: kind,
		Message:  UploadedMessage,
	}, nil
}

// extract recovers the text of an upload. Failures become error-describing
// text, which is then taught like any other text.
func (m *Manager) extract(ctx context.Context, sess *Session, content []byte) string {
	if sess.Kind == model.KindImage {
		res := m.recognizer.RecognizeText(ctx, content)
		if res.Degraded {
			logger := observability.WithSession(sess.ID)
			logger.Warn().Err(res.Err).Msg("text recognition degraded")
		}
		return res.Value.Text
	}

	data, err := os.ReadFile(sess.SourcePath)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err)
	}
	if !utf8.Valid(data) {
		return "Error reading file: content is not valid UTF-8"
	}
	return string(bytes.TrimPrefix(data, utf8BOM))
}

// runStep tutors section index of sess and records the result. The step
// runs to completion even if the caller goes away; the semaphore caps how
// many run at once.
func (m *Manager) runStep(ctx context.Context, sess *Session, index int) (model.SectionResult, error) {
	if err := m.steps.Acquire(m.ctx, 1); err != nil {
		return model.SectionResult{}, fmt.Errorf("manager closed: %w", err)
	}
	defer m.steps.Release(1)

	result, err := m.tutor.Step(context.WithoutCancel(ctx), sess.ID, sess.Sections(), index)
	if err != nil {
		return model.SectionResult{}, fmt.Errorf("tutoring step %d failed: %w", index, err)
	}

	logger := observability.WithSession(sess.ID)
	entry := sess.record(index, result)
	if dropped := m.broker.Publish(sess.ID, result); dropped > 0 {
		logger.Warn().Int("dropped", dropped).Msg("slow event subscribers skipped")
	}

	logger.Debug().
		Int("seq", entry.Seq).
		Int("index", index).
		Bool("completed", result.Completed).
		Msg("step recorded")
	return result, nil
}

func (m *Manager) get(id string) (*Session, error) {
	sess, ok := m.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Session returns a stored session
func (m *Manager) Session(id string) (*Session, error) {
	return m.get(id)
}

// Advance moves the cursor to the next section and tutors it. Past the last
// section it keeps returning the completed result.
func (m *Manager) Advance(ctx context.Context, id string) (model.SectionResult, error) {
	sess, err := m.get(id)
	if err != nil {
		return model.SectionResult{}, err
	}

	sess.stepMu.Lock()
	defer sess.stepMu.Unlock()

	index := sess.advance()
	return m.runStep(ctx, sess, index)
}

// Current returns the latest result of a session
func (m *Manager) Current(id string) (model.SectionResult, error) {
	sess, err := m.get(id)
	if err != nil {
		return model.SectionResult{}, err
	}

	latest, ok := sess.Latest()
	if !ok {
		return model.SectionResult{}, ErrNoContent
	}
	return latest, nil
}

// SubmitAnswer grades an answer against the latest result. The cursor is
// left alone.
func (m *Manager) SubmitAnswer(ctx context.Context, id, answer string, questionIndex int) (model.Feedback, error) {
	sess, err := m.get(id)
	if err != nil {
		return model.Feedback{}, err
	}

	var latest *model.SectionResult
	if r, ok := sess.Latest(); ok {
		latest = &r
	}
	return m.tutor.Evaluate(context.WithoutCancel(ctx), latest, answer, questionIndex), nil
}

// Practice scores a spoken reading of the current section
func (m *Manager) Practice(ctx context.Context, id string, recording []byte) (model.PracticeResult, error) {
	sess, err := m.get(id)
	if err != nil {
		return model.PracticeResult{}, err
	}

	latest, ok := sess.Latest()
	if !ok || latest.Completed {
		return model.PracticeResult{}, reject(ReasonNoSection)
	}

	result, err := m.tutor.Practice(context.WithoutCancel(ctx), latest.Text, recording)
	if errors.Is(err, tutor.ErrInvalidRecording) {
		return model.PracticeResult{}, reject(err.Error())
	}
	return result, err
}

// History returns the audit log of a session
func (m *Manager) History(id string) ([]model.HistoryEntry, error) {
	sess, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return sess.History(), nil
}

// Subscribe streams the results a session produces from now on
func (m *Manager) Subscribe(id string) (<-chan model.SectionResult, func(), error) {
	if _, err := m.get(id); err != nil {
		return nil, nil, err
	}
	ch, cancel := m.broker.Subscribe(id)

	// an eviction between the lookup and the subscription would never close ch
	if _, err := m.get(id); err != nil {
		cancel()
		return nil, nil, err
	}
	return ch, cancel, nil
}

// Subscribers returns the number of open event streams of a session
func (m *Manager) Subscribers(id string) int {
	return m.broker.Subscribers(id)
}

// ActiveSessions drops expired sessions and returns how many remain
func (m *Manager) ActiveSessions() int {
	m.store.Sweep()
	n := m.store.Count()
	observability.SetActiveSessions(n)
	return n
}

// Close stops admitting steps, closes subscribers and drops every session
func (m *Manager) Close() {
	m.cancel()
	m.broker.CloseAll()
	m.store.Flush()
	observability.SetActiveSessions(0)
}
