package dashscope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/observability"
	"github.com/echotutor/tutor-service/internal/resilience"
)

// SynthesizeSpeech converts text to audio bytes (WAV). Any failure yields an
// empty byte slice.
func (c *Client) SynthesizeSpeech(ctx context.Context, text, language string) Result[[]byte] {
	start := time.Now()

	if !c.HasCredential() {
		observability.RecordRemoteCall(OpTTS, start, true)
		return degraded([]byte{}, errMissingKey)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Seconds(c.config.TTSTimeout))
	defer cancel()

	var audio []byte
	err := c.guard(OpTTS, func() error {
		var err error
		audio, err = c.synthesize(ctx, text, language)
		return err
	})
	observability.RecordRemoteCall(OpTTS, start, err != nil)

	if err != nil {
		c.logger.Error().Err(err).Msg("TTS failed")
		return degraded([]byte{}, err)
	}

	observability.RecordAudioBytes("out", int64(len(audio)))
	return ok(audio)
}

func (c *Client) synthesize(ctx context.Context, text, language string) ([]byte, error) {
	voice := c.config.TTSVoice
	if voice == "" {
		voice = defaultTTSVoice
	}

	reqBody := generationRequest{
		Model: c.config.TTSModel,
		Input: generationInput{
			Text:         text,
			LanguageType: languageType(language),
		},
		Parameters: &generationParam{Voice: voice},
	}

	c.logger.Debug().Str("text", truncate(text, 50)).Msg("TTS request")

	var resp generationResponse
	if err := c.post(ctx, multimodalPath, reqBody, &resp); err != nil {
		return nil, err
	}

	audioURL := resp.Output.Audio.URL
	if !strings.HasPrefix(audioURL, "http") {
		return nil, fmt.Errorf("unexpected TTS response: missing audio url (code=%s)", resp.Code)
	}
	c.logger.Debug().Str("audio_url", audioURL).Msg("TTS audio ready")

	var audio []byte
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		var err error
		audio, err = c.fetchAudio(ctx, audioURL)
		return err
	}, c.download, resilience.IsRetryableNetworkError)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	return audio, nil
}

func (c *Client) fetchAudio(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := &StatusError{StatusCode: resp.StatusCode}
		if resilience.IsRetryableStatus(resp.StatusCode) {
			return nil, resilience.NewRetryableError(err)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty audio body")
	}
	return data, nil
}

// languageType maps a language tag to the provider's language hint
func languageType(tag string) string {
	switch tag {
	case LangChinese:
		return "Chinese"
	case LangEnglish:
		return "English"
	default:
		return ""
	}
}
