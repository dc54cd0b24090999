package audio

import "time"

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Number of consecutive silence frames to mark as end of speech
	FrameSize       int     // Number of samples per frame (320 = 20ms at 16kHz)
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,  // 200ms of silence (10 frames * 20ms)
		FrameSize:       320, // 20ms at 16kHz
	}
}

// VADDetector performs Voice Activity Detection
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame processes an audio frame and returns whether speech is detected
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// SpeechSummary describes the voiced portion of a whole recording
type SpeechSummary struct {
	Segments     int           // number of distinct utterances
	VoicedFrames int           // frames above the energy threshold
	Voiced       time.Duration // VoicedFrames expressed as time
}

// HasSpeech reports whether at least one utterance was found
func (s SpeechSummary) HasSpeech() bool {
	return s.Segments > 0
}

// AnalyzeRecording runs the detector over a complete mono recording frame by
// frame. A trailing partial frame is included.
func AnalyzeRecording(samples []int16, sampleRate int, config *VADConfig) SpeechSummary {
	v := NewVADDetector(config)
	frameSize := v.config.FrameSize
	if frameSize <= 0 {
		frameSize = sampleRate / 50
	}

	var summary SpeechSummary
	for start := 0; start < len(samples); start += frameSize {
		end := min(start+frameSize, len(samples))
		frame := samples[start:end]

		_, started, _ := v.ProcessFrame(frame)
		if started {
			summary.Segments++
		}
		if CalculateRMS(frame) > v.config.EnergyThreshold {
			summary.VoicedFrames++
			if sampleRate > 0 {
				summary.Voiced += time.Duration(len(frame)) * time.Second / time.Duration(sampleRate)
			}
		}
	}

	return summary
}
