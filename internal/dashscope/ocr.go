package dashscope

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/observability"
)

var errMissingKey = errors.New("api key missing")

// rawContent accepts a message content that is either a plain string or a
// list of parts such as [{"text": "..."}, {"image": "..."}]
type rawContent string

func (r *rawContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = rawContent(s)
		return nil
	}

	var parts []map[string]any
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("unexpected content shape: %w", err)
	}
	var texts []string
	for _, part := range parts {
		if text, ok := part["text"].(string); ok {
			texts = append(texts, text)
		}
	}
	*r = rawContent(strings.Join(texts, " "))
	return nil
}

// RecognizeText extracts the text printed in an image. On failure the
// recognition carries confidence 0 and a text describing the error.
func (c *Client) RecognizeText(ctx context.Context, image []byte) Result[Recognition] {
	start := time.Now()

	if !c.HasCredential() {
		observability.RecordRemoteCall(OpOCR, start, true)
		return degraded(Recognition{Text: ocrMissingKeyText, Language: LangEnglish}, errMissingKey)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Seconds(c.config.OCRTimeout))
	defer cancel()

	var text string
	err := c.guard(OpOCR, func() error {
		var err error
		text, err = c.recognize(ctx, image)
		return err
	})
	observability.RecordRemoteCall(OpOCR, start, err != nil)

	if err != nil {
		c.logger.Error().Err(err).Msg("OCR failed")
		return degraded(Recognition{
			Text:     fmt.Sprintf("Error during OCR: %v", err),
			Language: LangEnglish,
		}, err)
	}

	return ok(Recognition{
		Text:       text,
		Confidence: 1.0,
		Language:   DetectLanguage(text),
	})
}

func (c *Client) recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}

	// DetectContentType yields e.g. "image/png"; the data URI needs the same media type
	mediaType := http.DetectContentType(image)
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("unsupported image content %q", mediaType)
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(image))

	reqBody := generationRequest{
		Model: c.config.OCRModel,
		Input: generationInput{
			Messages: []multimodalMessage{{
				Role: "user",
				Content: []map[string]string{
					{"image": dataURI},
					{"text": ocrInstruction},
				},
			}},
		},
	}

	var resp generationResponse
	if err := c.post(ctx, multimodalPath, reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Output.Choices) == 0 {
		return "", fmt.Errorf("empty choices in OCR response (code=%s)", resp.Code)
	}
	return string(resp.Output.Choices[0].Message.Content), nil
}
