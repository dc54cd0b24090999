package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/observability"
	"github.com/echotutor/tutor-service/internal/resilience"
)

const (
	breakerName = "deepgram"

	// bytes written per websocket frame, 250ms of 16kHz linear16
	chunkSize = 8000

	// how long to wait for more results after the last one arrived
	quietPeriod = 1500 * time.Millisecond
)

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	collector *collector
}

// Message forwards transcription results to the collector
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.collector.add(message)
	return nil
}

// Error records provider errors instead of only logging them
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	m.collector.fail(fmt.Errorf("deepgram error: %+v", errorResponse))
	return nil
}

// collector accumulates final results for a single recording
type collector struct {
	mu          sync.Mutex
	texts       []string
	confidences []float64
	duration    float64
	err         error
	activity    chan struct{}
}

func newCollector() *collector {
	return &collector{activity: make(chan struct{}, 1)}
}

func (c *collector) add(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}
	c.signal()

	if msg.Type != "Results" || !msg.IsFinal || len(msg.Channel.Alternatives) == 0 {
		return
	}

	alt := msg.Channel.Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	c.confidences = append(c.confidences, alt.Confidence)
	c.duration += msg.Duration
}

func (c *collector) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.signal()
}

func (c *collector) signal() {
	select {
	case c.activity <- struct{}{}:
	default:
	}
}

func (c *collector) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts) == 0
}

func (c *collector) result() (*Transcript, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil && len(c.texts) == 0 {
		return nil, c.err
	}

	t := &Transcript{
		Text:     strings.Join(c.texts, " "),
		Segments: len(c.texts),
		Duration: c.duration,
	}
	if len(c.confidences) > 0 {
		sum := 0.0
		for _, v := range c.confidences {
			sum += v
		}
		t.Confidence = sum / float64(len(c.confidences))
	}
	return t, nil
}

// DeepgramTranscriber implements Transcriber over Deepgram's live websocket API.
// Each call opens its own connection, streams the recording and closes.
type DeepgramTranscriber struct {
	config         *config.Config
	circuitBreaker *resilience.CircuitBreaker
	connect        *resilience.ReconnectConfig
	logger         zerolog.Logger
}

// NewDeepgramTranscriber creates a transcriber from configuration
func NewDeepgramTranscriber(cfg *config.Config) *DeepgramTranscriber {
	return &DeepgramTranscriber{
		config: cfg,
		circuitBreaker: resilience.NewCircuitBreaker(
			breakerName,
			cfg.CircuitBreakerMaxFailures,
			config.Seconds(cfg.CircuitBreakerResetTimeout),
		),
		connect: resilience.DefaultReconnectConfig(),
		logger:  observability.WithComponent("stt"),
	}
}

// Available reports whether a Deepgram key is configured
func (d *DeepgramTranscriber) Available() bool {
	return d.config.DeepgramAPIKey != ""
}

// Transcribe streams pcm to Deepgram and returns the final transcript
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (*Transcript, error) {
	if !d.Available() {
		return nil, ErrNotConfigured
	}
	if len(pcm) == 0 {
		return nil, errors.New("empty recording")
	}

	ctx, cancel := context.WithTimeout(ctx, config.Seconds(d.config.STTTimeout))
	defer cancel()

	var transcript *Transcript
	err := d.circuitBreaker.Call(func() error {
		var err error
		transcript, err = d.stream(ctx, pcm, sampleRate)
		return err
	})

	observability.UpdateCircuitBreakerState(breakerName, int(d.circuitBreaker.GetState()))
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		observability.IncrementCircuitBreakerFailures(breakerName)
	}
	observability.RecordAudioBytes("in", int64(len(pcm)))

	return transcript, err
}

func (d *DeepgramTranscriber) stream(ctx context.Context, pcm []byte, sampleRate int) (*Transcript, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.config.DeepgramModel,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: false,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     sampleRate,
	}

	coll := newCollector()
	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		collector:              coll,
	}

	client, err := listenClient.NewWSUsingCallback(ctx, d.config.DeepgramAPIKey, nil, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	err = resilience.Reconnect(ctx, func() error {
		if !client.Connect() {
			return errors.New("failed to connect to Deepgram")
		}
		return nil
	}, d.connect, d.logger)
	if err != nil {
		return nil, err
	}
	defer client.Finish()

	for start := 0; start < len(pcm); start += chunkSize {
		end := min(start+chunkSize, len(pcm))
		if _, err := client.Write(pcm[start:end]); err != nil {
			return nil, fmt.Errorf("failed to send audio to Deepgram: %w", err)
		}
	}

	d.logger.Debug().Int("bytes", len(pcm)).Int("sample_rate", sampleRate).Msg("recording sent, waiting for results")

	waitQuiet(ctx, coll.activity, quietPeriod)
	if ctx.Err() != nil && coll.empty() {
		return nil, fmt.Errorf("no transcription before deadline: %w", ctx.Err())
	}

	t, err := coll.result()
	if err != nil {
		return nil, err
	}
	d.logger.Debug().Str("text", t.Text).Float64("confidence", t.Confidence).Msg("transcription complete")
	return t, nil
}

// waitQuiet blocks until the first activity, then returns once no further
// activity has been seen for quiet. It also returns when ctx is done.
func waitQuiet(ctx context.Context, activity <-chan struct{}, quiet time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-activity:
	}

	timer := time.NewTimer(quiet)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case <-activity:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(quiet)
		}
	}
}
