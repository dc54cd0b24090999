package stt

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no transcription credential is set
var ErrNotConfigured = errors.New("speech transcription is not configured")

// Transcript is the final text recognized in one recording
type Transcript struct {
	// Text is the concatenation of all final segments
	Text string

	// Confidence is the mean confidence of the final segments (0.0 to 1.0)
	Confidence float64

	// Segments is the number of final segments received
	Segments int

	// Duration is the spoken duration in seconds, as reported by the provider
	Duration float64
}

// Transcriber turns a complete learner recording into text
type Transcriber interface {
	// Transcribe sends mono 16-bit little-endian PCM at sampleRate and
	// blocks until the provider has finished with it or ctx expires
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (*Transcript, error)

	// Available reports whether Transcribe can reach a provider at all
	Available() bool
}
