package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/dashscope"
	"github.com/echotutor/tutor-service/internal/model"
	"github.com/echotutor/tutor-service/internal/tutor"
)

const questionsJSON = `[{"question":"Pick one","options":["yes","no"],"correct_answer":"yes","explanation":"because"}]`

// fakeProvider stands in for the remote learning service
type fakeProvider struct {
	mu       sync.Mutex
	ocrText  string
	ocrErr   error
	ocrCalls int
	ttsCalls int
	chat     int
}

func (f *fakeProvider) RecognizeText(ctx context.Context, image []byte) dashscope.Result[dashscope.Recognition] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ocrCalls++
	if f.ocrErr != nil {
		return dashscope.Result[dashscope.Recognition]{
			Value:    dashscope.Recognition{Text: "Error recognizing text: " + f.ocrErr.Error()},
			Degraded: true,
			Err:      f.ocrErr,
		}
	}
	return dashscope.Result[dashscope.Recognition]{Value: dashscope.Recognition{Text: f.ocrText, Confidence: 1}}
}

func (f *fakeProvider) SynthesizeSpeech(ctx context.Context, text, language string) dashscope.Result[[]byte] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttsCalls++
	return dashscope.Result[[]byte]{Value: []byte("RIFF")}
}

func (f *fakeProvider) Converse(ctx context.Context, messages []dashscope.Message) dashscope.Result[string] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chat++
	return dashscope.Result[string]{Value: questionsJSON}
}

func (f *fakeProvider) remoteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ocrCalls + f.ttsCalls + f.chat
}

func newTestManager(t *testing.T) (*Manager, *fakeProvider, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		UploadDir:          t.TempDir(),
		AudioDir:           t.TempDir(),
		MaxFileSize:        1024,
		MaxConcurrentSteps: 2,
	}
	provider := &fakeProvider{}
	m := NewManager(cfg, NewStore(0, 0), provider, tutor.New(cfg, provider, nil, nil))
	t.Cleanup(m.Close)
	return m, provider, cfg
}

func upload(t *testing.T, m *Manager, name, content string) string {
	t.Helper()
	res, err := m.Upload(context.Background(), name, []byte(content))
	if err != nil {
		t.Fatalf("Upload(%s) failed: %v", name, err)
	}
	return res.FileID
}

func TestUpload_Document(t *testing.T) {
	m, _, cfg := newTestManager(t)

	res, err := m.Upload(context.Background(), "notes.TXT", []byte("A\n\nB"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if res.FileType != model.KindDocument || res.Message != UploadedMessage || res.FileID == "" {
		t.Errorf("Unexpected upload result: %+v", res)
	}

	if _, err := os.Stat(filepath.Join(cfg.UploadDir, res.FileID+".txt")); err != nil {
		t.Errorf("Expected persisted upload: %v", err)
	}

	cur, err := m.Current(res.FileID)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if cur.Text != "A" || cur.Section != "1/2" || cur.Completed {
		t.Errorf("Unexpected first result: %+v", cur)
	}

	sess, _ := m.Session(res.FileID)
	if sess.State() != StateTutoring || sess.Index() != 0 {
		t.Errorf("Expected tutoring at index 0, got %s at %d", sess.State(), sess.Index())
	}
}

func TestUpload_Image(t *testing.T) {
	m, provider, _ := newTestManager(t)
	provider.ocrText = "你好。再见。"

	id := upload(t, m, "page.png", "\x89PNG fake")

	cur, _ := m.Current(id)
	if cur.Text != "你好" || cur.Section != "1/2" {
		t.Errorf("Unexpected first image section: %+v", cur)
	}
	if provider.ocrCalls != 1 {
		t.Errorf("Expected one OCR call, got %d", provider.ocrCalls)
	}
}

func TestUpload_DegradedRecognitionIsTaught(t *testing.T) {
	m, provider, _ := newTestManager(t)
	provider.ocrErr = errors.New("service unavailable")

	id := upload(t, m, "page.png", "\x89PNG fake")

	cur, err := m.Current(id)
	if err != nil {
		t.Fatalf("Expected degraded upload to still be taught, got %v", err)
	}
	if cur.Text != "Error recognizing text: service unavailable" {
		t.Errorf("Unexpected degraded section text: %q", cur.Text)
	}
}

func TestUpload_Rejections(t *testing.T) {
	m, _, _ := newTestManager(t)

	tests := []struct {
		name     string
		filename string
		size     int
		reason   string
	}{
		{"too large", "big.txt", 2048, ReasonTooLarge},
		{"unsupported", "book.pdf", 10, ReasonUnsupported},
		{"no extension", "README", 10, ReasonUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Upload(context.Background(), tt.filename, make([]byte, tt.size))

			var rejection *RejectionError
			if !errors.As(err, &rejection) || rejection.Reason != tt.reason {
				t.Fatalf("Expected rejection %q, got %v", tt.reason, err)
			}
			if !errors.Is(err, ErrRejected) {
				t.Error("Expected rejection to match ErrRejected")
			}
		})
	}

	if m.ActiveSessions() != 0 {
		t.Errorf("Expected no sessions after rejections, got %d", m.ActiveSessions())
	}
}

func TestUpload_InvalidUTF8BecomesErrorText(t *testing.T) {
	m, _, _ := newTestManager(t)

	id := upload(t, m, "bad.md", "\xff\xfe\xfd")

	cur, _ := m.Current(id)
	if cur.Text != "Error reading file: content is not valid UTF-8" {
		t.Errorf("Expected error text as the only section, got %q", cur.Text)
	}
}

func TestUpload_WhitespaceDocumentCompletesImmediately(t *testing.T) {
	m, provider, _ := newTestManager(t)

	id := upload(t, m, "blank.txt", "  \n\n  ")

	cur, _ := m.Current(id)
	if !cur.Completed {
		t.Errorf("Expected completed result, got %+v", cur)
	}
	if provider.remoteCalls() != 0 {
		t.Errorf("Expected no remote calls, got %d", provider.remoteCalls())
	}
}

func TestAdvance_MonotonicCursorAndCompletion(t *testing.T) {
	m, provider, _ := newTestManager(t)
	id := upload(t, m, "two.txt", "first\n\nsecond")
	sess, _ := m.Session(id)

	res, err := m.Advance(context.Background(), id)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if res.Text != "second" || res.Section != "2/2" {
		t.Errorf("Unexpected second result: %+v", res)
	}

	callsAtEnd := -1
	for i := 2; i <= 6; i++ {
		res, err := m.Advance(context.Background(), id)
		if err != nil {
			t.Fatalf("Advance %d failed: %v", i, err)
		}
		if sess.Index() != i {
			t.Errorf("Expected index %d after %d advances, got %d", i, i, sess.Index())
		}
		if !res.Completed || res.Message != model.CompletedMessage {
			t.Errorf("Expected completed result on advance %d, got %+v", i, res)
		}
		if callsAtEnd < 0 {
			callsAtEnd = provider.remoteCalls()
		} else if provider.remoteCalls() != callsAtEnd {
			t.Errorf("Expected no remote calls past completion, went from %d to %d", callsAtEnd, provider.remoteCalls())
		}
	}

	if sess.State() != StateCompleted {
		t.Errorf("Expected completed state, got %s", sess.State())
	}
	if len(sess.Sections()) != 2 {
		t.Errorf("Expected sections to stay fixed, got %v", sess.Sections())
	}
}

func TestAdvance_ConcurrentCallsSerialize(t *testing.T) {
	m, _, _ := newTestManager(t)
	id := upload(t, m, "many.txt", "a\n\nb\n\nc\n\nd")

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Advance(context.Background(), id); err != nil {
				t.Errorf("Advance failed: %v", err)
			}
		}()
	}
	wg.Wait()

	sess, _ := m.Session(id)
	if sess.Index() != n {
		t.Errorf("Expected index %d, got %d", n, sess.Index())
	}

	history, _ := m.History(id)
	if len(history) != n+1 {
		t.Fatalf("Expected %d history entries, got %d", n+1, len(history))
	}
	for i, entry := range history {
		if entry.Seq != i+1 || entry.Index != i {
			t.Errorf("Entry %d out of order: seq %d index %d", i, entry.Seq, entry.Index)
		}
	}
}

func TestAdvance_CancelledRequestStillCompletes(t *testing.T) {
	m, _, _ := newTestManager(t)
	id := upload(t, m, "two.txt", "first\n\nsecond")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := m.Advance(ctx, id)
	if err != nil {
		t.Fatalf("Expected the step to run despite the cancelled request, got %v", err)
	}
	if res.Text != "second" {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestUnknownSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	const id = "does-not-exist"

	checks := map[string]error{}
	_, checks["current"] = m.Current(id)
	_, checks["advance"] = m.Advance(ctx, id)
	_, checks["answer"] = m.SubmitAnswer(ctx, id, "x", 0)
	_, checks["practice"] = m.Practice(ctx, id, nil)
	_, checks["history"] = m.History(id)
	_, _, checks["subscribe"] = m.Subscribe(id)

	for op, err := range checks {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", op, err)
		}
	}
}

func TestCurrent_NoContent(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.store.Put(newSession("fresh", "/tmp/none.txt", model.KindDocument))

	if _, err := m.Current("fresh"); !errors.Is(err, ErrNoContent) {
		t.Errorf("Expected ErrNoContent, got %v", err)
	}
}

func TestSubmitAnswer(t *testing.T) {
	m, _, _ := newTestManager(t)
	id := upload(t, m, "q.txt", "one\n\ntwo")

	fb, err := m.SubmitAnswer(context.Background(), id, " YES ", 0)
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if !fb.IsCorrect || fb.NextAction != model.NextActionContinue {
		t.Errorf("Unexpected feedback: %+v", fb)
	}

	fb, _ = m.SubmitAnswer(context.Background(), id, "yes", 3)
	if fb.IsCorrect || fb.Explanation != tutor.InvalidQuestionMessage {
		t.Errorf("Expected invalid question feedback, got %+v", fb)
	}

	sess, _ := m.Session(id)
	if sess.Index() != 0 {
		t.Errorf("Expected answering to leave the cursor alone, got %d", sess.Index())
	}
}

func TestPractice_Rejections(t *testing.T) {
	m, _, _ := newTestManager(t)
	id := upload(t, m, "p.txt", "only section")

	_, err := m.Practice(context.Background(), id, []byte("not a wav"))
	var rejection *RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("Expected rejection for invalid recording, got %v", err)
	}

	if _, err := m.Advance(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	_, err = m.Practice(context.Background(), id, []byte("not a wav"))
	if !errors.As(err, &rejection) || rejection.Reason != ReasonNoSection {
		t.Errorf("Expected %q after completion, got %v", ReasonNoSection, err)
	}
}

func TestSubscribe_ReceivesAdvanceResult(t *testing.T) {
	m, _, _ := newTestManager(t)
	id := upload(t, m, "s.txt", "one\n\ntwo")

	events, cancel, err := m.Subscribe(id)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if _, err := m.Advance(context.Background(), id); err != nil {
		t.Fatal(err)
	}

	select {
	case res := <-events:
		if res.Text != "two" {
			t.Errorf("Expected the advanced section, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected an event after advance")
	}
}

func TestEvictionClosesSubscribers(t *testing.T) {
	m, _, _ := newTestManager(t)
	id := upload(t, m, "e.txt", "text")

	events, _, err := m.Subscribe(id)
	if err != nil {
		t.Fatal(err)
	}

	m.store.Delete(id)

	select {
	case _, ok := <-events:
		if ok {
			t.Error("Expected closed channel, got a value")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected subscriber channel to close on eviction")
	}
}

func TestSubscribe_RacingEvictionLeavesNoSubscriber(t *testing.T) {
	m, _, _ := newTestManager(t)

	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("s%d", i)
		m.store.Put(newSession(id, "", model.KindDocument))

		var (
			wg     sync.WaitGroup
			events <-chan model.SectionResult
			err    error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			events, _, err = m.Subscribe(id)
		}()
		go func() {
			defer wg.Done()
			m.store.Delete(id)
		}()
		wg.Wait()

		if n := m.Subscribers(id); n != 0 {
			t.Fatalf("Expected no subscriber left after eviction, got %d (iteration %d)", n, i)
		}
		if err == nil {
			if _, ok := <-events; ok {
				t.Fatalf("Expected the stream of an evicted session to be closed (iteration %d)", i)
			}
		} else if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	}
}

func TestActiveSessions_SweepsExpired(t *testing.T) {
	cfg := &config.Config{UploadDir: t.TempDir(), AudioDir: t.TempDir(), MaxFileSize: 1024, MaxConcurrentSteps: 1}
	provider := &fakeProvider{}
	m := NewManager(cfg, NewStore(50*time.Millisecond, 0), provider, tutor.New(cfg, provider, nil, nil))
	t.Cleanup(m.Close)

	id := upload(t, m, "a.txt", "text")
	events, _, err := m.Subscribe(id)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if n := m.ActiveSessions(); n != 0 {
		t.Errorf("Expected expired session to be swept, got %d", n)
	}
	if _, ok := <-events; ok {
		t.Error("Expected swept session to close its event stream")
	}
}

func TestSnapshot_CountsExtractedCharacters(t *testing.T) {
	m, _, _ := newTestManager(t)
	id := upload(t, m, "zh.txt", "你好。世界。")

	sess, _ := m.Session(id)
	if snap := sess.Snapshot(); snap.Chars != 6 || snap.Total != 2 {
		t.Errorf("Expected 6 chars in 2 sections, got %+v", snap)
	}
}
