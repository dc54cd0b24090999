package dashscope

import (
	"context"
	"errors"
	"time"

	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/observability"
)

// Converse sends a chat history to the text model and returns its reply.
// Any failure yields ChatFallback, so callers always have a string to work on.
func (c *Client) Converse(ctx context.Context, messages []Message) Result[string] {
	start := time.Now()

	if !c.HasCredential() {
		observability.RecordRemoteCall(OpChat, start, true)
		return degraded(ChatFallback, errMissingKey)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Seconds(c.config.ChatTimeout))
	defer cancel()

	var text string
	err := c.guard(OpChat, func() error {
		reqBody := generationRequest{
			Model: c.config.ChatModel,
			Input: generationInput{Messages: messages},
			Parameters: &generationParam{
				Temperature: c.config.ChatTemperature,
				TopP:        c.config.ChatTopP,
				MaxTokens:   c.config.ChatMaxTokens,
			},
		}

		var resp generationResponse
		if err := c.post(ctx, textPath, reqBody, &resp); err != nil {
			return err
		}
		if resp.Output.Text == "" {
			return errors.New("empty text in chat response")
		}
		text = resp.Output.Text
		return nil
	})
	observability.RecordRemoteCall(OpChat, start, err != nil)

	if err != nil {
		c.logger.Error().Err(err).Msg("chat failed")
		return degraded(ChatFallback, err)
	}
	return ok(text)
}
