// Package tutor turns one section of text into a teaching step: synthesized
// speech, comprehension questions and, on request, answer feedback and
// pronunciation practice.
package tutor

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/echotutor/tutor-service/internal/audio"
	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/dashscope"
	"github.com/echotutor/tutor-service/internal/model"
	"github.com/echotutor/tutor-service/internal/observability"
	"github.com/echotutor/tutor-service/internal/stt"
)

// LearningService is the remote provider as seen by the tutor
type LearningService interface {
	SynthesizeSpeech(ctx context.Context, text, language string) dashscope.Result[[]byte]
	Converse(ctx context.Context, messages []dashscope.Message) dashscope.Result[string]
}

// Tutor runs tutoring steps against a LearningService
type Tutor struct {
	service     LearningService
	transcriber stt.Transcriber
	budget      *TokenBudget
	audioDir    string
	vad         *audio.VADConfig
	logger      zerolog.Logger
}

// New creates a Tutor. transcriber and budget may be nil.
func New(cfg *config.Config, service LearningService, transcriber stt.Transcriber, budget *TokenBudget) *Tutor {
	vad := audio.DefaultVADConfig()
	if cfg.VADEnergyThreshold > 0 {
		vad.EnergyThreshold = cfg.VADEnergyThreshold
	}
	if cfg.VADSilenceFrames > 0 {
		vad.SilenceFrames = cfg.VADSilenceFrames
	}

	return &Tutor{
		service:     service,
		transcriber: transcriber,
		budget:      budget,
		audioDir:    cfg.AudioDir,
		vad:         vad,
		logger:      observability.WithComponent("tutor"),
	}
}

// AudioFilePath is where the audio of section index is stored, relative to
// the audio directory. It uses forward slashes so it can be served as a URL.
func AudioFilePath(sessionID string, index int) string {
	return path.Join(sessionID, fmt.Sprintf("audio_%d.wav", index))
}

// Step produces the result for sections[index]. Past the last section it
// returns the completed result without contacting the provider. Remote
// failures are absorbed into fallback values; only local disk errors are
// returned.
func (t *Tutor) Step(ctx context.Context, sessionID string, sections []string, index int) (model.SectionResult, error) {
	start := time.Now()

	if index >= len(sections) {
		observability.RecordTutorStep(true, start)
		return model.CompletedResult(), nil
	}
	if index < 0 {
		return model.SectionResult{}, fmt.Errorf("negative section index %d", index)
	}

	text := sections[index]
	language := dashscope.DetectLanguage(text)
	logger := t.logger.With().Str("session_id", sessionID).Int("section", index).Str("language", language).Logger()

	var (
		speech    dashscope.Result[[]byte]
		questions []model.Question
		g         errgroup.Group
	)
	g.Go(func() error {
		speech = t.service.SynthesizeSpeech(ctx, text, language)
		return nil
	})
	g.Go(func() error {
		questions = t.generateQuestions(ctx, text)
		return nil
	})
	_ = g.Wait()

	if speech.Degraded {
		logger.Warn().Err(speech.Err).Msg("speech synthesis degraded, writing empty audio file")
	}

	audioPath := AudioFilePath(sessionID, index)
	if err := t.writeAudio(audioPath, speech.Value); err != nil {
		return model.SectionResult{}, err
	}

	result := model.SectionResult{
		AudioPath: audioPath,
		Text:      text,
		Questions: questions,
		Section:   fmt.Sprintf("%d/%d", index+1, len(sections)),
	}
	if len(speech.Value) > 0 {
		if wav, err := audio.ParseWAV(speech.Value); err == nil {
			result.AudioDuration = wav.Duration().Seconds()
		} else {
			logger.Debug().Err(err).Msg("synthesized audio is not a parseable WAV")
		}
	}

	observability.RecordTutorStep(false, start)
	logger.Info().
		Int("questions", len(questions)).
		Int("audio_bytes", len(speech.Value)).
		Dur("elapsed", time.Since(start)).
		Msg("tutoring step complete")

	return result, nil
}

func (t *Tutor) writeAudio(rel string, data []byte) error {
	full := filepath.Join(t.audioDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	return nil
}
