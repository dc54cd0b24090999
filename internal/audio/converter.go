package audio

import (
	"errors"
	"fmt"
	"math"
)

// TranscriptionSampleRate is the rate learner recordings are normalized to
// before transcription
const TranscriptionSampleRate = 16000

// Sample rates accepted from uploaded recordings. The bounds keep resampling
// to at most twice the input length.
const (
	MinSampleRate = 8000
	MaxSampleRate = 192000
)

// ErrInvalidSampleRate is returned for recordings whose declared rate is
// outside MinSampleRate..MaxSampleRate
var ErrInvalidSampleRate = errors.New("unsupported sample rate")

// BytesToSamples decodes little-endian 16-bit PCM
func BytesToSamples(pcmData []byte) ([]int16, error) {
	if len(pcmData)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples)")
	}

	samples := make([]int16, len(pcmData)/2)
	for i := range samples {
		samples[i] = int16(pcmData[i*2]) | int16(pcmData[i*2+1])<<8
	}
	return samples, nil
}

// SamplesToBytes encodes samples as little-endian 16-bit PCM
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Downmix averages interleaved channels into a single channel
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}

	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

// Resample performs linear interpolation resampling. Non-positive rates
// yield no samples.
func Resample(samples []int16, inputRate, outputRate int) []int16 {
	if inputRate <= 0 || outputRate <= 0 {
		return nil
	}
	if inputRate == outputRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLength := int(float64(len(samples)) * ratio)
	output := make([]int16, outputLength)

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		if idx0 >= len(samples) {
			idx0 = len(samples) - 1
		}
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}

		fraction := srcPos - float64(idx0)
		output[i] = int16(float64(samples[idx0])*(1.0-fraction) + float64(samples[idx1])*fraction)
	}

	return output
}

// NormalizeRecording turns a decoded WAV into mono samples at the given rate
func NormalizeRecording(w *WAV, sampleRate int) ([]int16, error) {
	samples, err := w.Samples()
	if err != nil {
		return nil, err
	}
	if w.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", w.Channels)
	}
	if w.SampleRate < MinSampleRate || w.SampleRate > MaxSampleRate {
		return nil, fmt.Errorf("%w: %d Hz", ErrInvalidSampleRate, w.SampleRate)
	}

	mono := Downmix(samples, w.Channels)
	return Resample(mono, w.SampleRate, sampleRate), nil
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
