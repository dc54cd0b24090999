package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const formatPCM = 1

var (
	// ErrNotWAV is returned when the data is not a RIFF/WAVE container
	ErrNotWAV = errors.New("not a RIFF/WAVE file")
	// ErrUnsupportedFormat is returned for anything other than 16-bit PCM
	ErrUnsupportedFormat = errors.New("unsupported WAV format, need 16-bit PCM")
)

// WAV is a decoded PCM wave file
type WAV struct {
	Format        uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	Data          []byte // raw interleaved sample data
}

// ParseWAV reads the fmt and data chunks of a RIFF/WAVE file. Unknown chunks
// are skipped. A data chunk whose declared size runs past the end of the
// input is truncated to what is present, which is what streaming encoders
// that never patch the header produce.
func ParseWAV(data []byte) (*WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	w := &WAV{}
	haveFmt := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) || end < body {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", end-body)
			}
			chunk := data[body:end]
			w.Format = binary.LittleEndian.Uint16(chunk[0:2])
			w.Channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			w.BitsPerSample = int(binary.LittleEndian.Uint16(chunk[14:16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, errors.New("data chunk before fmt chunk")
			}
			w.Data = data[body:end]
			return w, nil
		}

		// chunks are word aligned
		pos = end + size%2
	}

	if !haveFmt {
		return nil, errors.New("missing fmt chunk")
	}
	return nil, errors.New("missing data chunk")
}

// Duration is the playback length of the data chunk
func (w *WAV) Duration() time.Duration {
	frameSize := w.Channels * w.BitsPerSample / 8
	if frameSize == 0 || w.SampleRate == 0 {
		return 0
	}
	frames := len(w.Data) / frameSize
	return time.Duration(frames) * time.Second / time.Duration(w.SampleRate)
}

// Samples decodes 16-bit PCM data into interleaved samples
func (w *WAV) Samples() ([]int16, error) {
	if w.Format != formatPCM || w.BitsPerSample != 16 {
		return nil, ErrUnsupportedFormat
	}
	return BytesToSamples(w.Data)
}

// EncodeWAV wraps 16-bit mono samples in a canonical 44-byte header
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], SamplesToBytes(samples))

	return buf
}
