package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/echotutor/tutor-service/internal/audio"
	"github.com/echotutor/tutor-service/internal/dashscope"
	"github.com/echotutor/tutor-service/internal/model"
	"github.com/echotutor/tutor-service/internal/observability"
)

// ErrInvalidRecording is returned for uploads that are not 16-bit PCM WAV
var ErrInvalidRecording = errors.New("recording must be a 16-bit PCM WAV file")

const (
	// NoSpeechTip is returned when the recording holds no detectable speech
	NoSpeechTip = "No speech detected in the recording."
	// TranscriptionUnavailableTip is returned when the recording could not be transcribed
	TranscriptionUnavailableTip = "Speech recognition is unavailable, please try again later."

	practiceSystemPrompt = "你是一位耐心的发音教练。比较原文和学生朗读的转写，指出读错或漏读的部分，并给出简短的发音建议。"
)

// Practice scores a learner's recording of sectionText. Transcription
// failures degrade to an empty transcript with score 0; a malformed
// recording is an error.
func (t *Tutor) Practice(ctx context.Context, sectionText string, recording []byte) (model.PracticeResult, error) {
	wav, err := audio.ParseWAV(recording)
	if err != nil {
		return model.PracticeResult{}, fmt.Errorf("%w: %v", ErrInvalidRecording, err)
	}
	samples, err := audio.NormalizeRecording(wav, audio.TranscriptionSampleRate)
	if err != nil {
		return model.PracticeResult{}, fmt.Errorf("%w: %v", ErrInvalidRecording, err)
	}

	expected := practiceTokens(sectionText)
	result := model.PracticeResult{Total: len(expected), Missed: distinct(expected)}

	if summary := audio.AnalyzeRecording(samples, audio.TranscriptionSampleRate, t.vad); !summary.HasSpeech() {
		result.Tips = NoSpeechTip
		observability.RecordPractice(false)
		return result, nil
	}

	if t.transcriber == nil || !t.transcriber.Available() {
		result.Tips = TranscriptionUnavailableTip
		result.Degraded = true
		observability.RecordPractice(true)
		return result, nil
	}

	transcript, err := t.transcriber.Transcribe(ctx, audio.SamplesToBytes(samples), audio.TranscriptionSampleRate)
	if err != nil {
		t.logger.Warn().Err(err).Msg("transcription failed")
		result.Tips = TranscriptionUnavailableTip
		result.Degraded = true
		observability.RecordPractice(true)
		return result, nil
	}

	matched, missed := scoreTokens(expected, practiceTokens(transcript.Text))
	result.Transcript = transcript.Text
	result.Confidence = transcript.Confidence
	result.Matched = matched
	result.Missed = missed
	if result.Total > 0 {
		result.Score = float64(matched) / float64(result.Total)
	}

	reply := t.service.Converse(ctx, []dashscope.Message{
		{Role: "system", Content: practiceSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("原文：%s\n学生朗读：%s\n漏读的词：%s",
			sectionText, transcript.Text, strings.Join(missed, "、"))},
	})
	result.Tips = reply.Value
	result.Degraded = reply.Degraded

	observability.RecordPractice(result.Degraded)
	return result, nil
}

// practiceTokens splits text into comparison units: each Han character on
// its own, other letters and digits grouped into lowercase words.
func practiceTokens(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			word.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// scoreTokens counts expected tokens covered by spoken ones, respecting
// multiplicity, and lists the uncovered ones in first-seen order
func scoreTokens(expected, spoken []string) (int, []string) {
	available := make(map[string]int, len(spoken))
	for _, tok := range spoken {
		available[tok]++
	}

	matched := 0
	var missed []string
	seen := make(map[string]bool)
	for _, tok := range expected {
		if available[tok] > 0 {
			available[tok]--
			matched++
			continue
		}
		if !seen[tok] {
			seen[tok] = true
			missed = append(missed, tok)
		}
	}

	if missed == nil {
		missed = []string{}
	}
	return matched, missed
}

func distinct(tokens []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}
