// Package audio provides codec utilities for the raw PCM audio exchanged
// with the speech synthesis provider: decoding provider payloads into
// sample buffers and encoding buffers into downloadable WAV files.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SpeechSampleRate is the fixed sample rate of provider speech payloads.
const SpeechSampleRate = 24000

// ErrMalformedAudio is returned when a PCM payload cannot be interpreted
// as a sequence of 16-bit samples.
var ErrMalformedAudio = errors.New("audio: malformed PCM payload")

// Buffer holds decoded audio as floating-point samples in [-1, 1],
// one slice per channel.
type Buffer struct {
	// SampleRate is the number of samples per second per channel.
	SampleRate int
	// Data holds the samples, indexed by channel.
	Data [][]float32
}

// Channels returns the number of channels in the buffer.
func (b *Buffer) Channels() int {
	return len(b.Data)
}

// Frames returns the number of complete sample frames, the length of the
// shortest channel.
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	frames := len(b.Data[0])
	for _, ch := range b.Data[1:] {
		if len(ch) < frames {
			frames = len(ch)
		}
	}
	return frames
}

// Duration returns the playback duration of the buffer in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// DecodePCM interprets data as 16-bit little-endian signed PCM at 24 kHz
// mono, the format the speech provider returns, and converts each sample
// to floating point by dividing by 32768.
// Returns ErrMalformedAudio if the byte length is not a multiple of 2.
func DecodePCM(data []byte) (*Buffer, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd byte length %d", ErrMalformedAudio, len(data))
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / 32768.0
	}

	return &Buffer{
		SampleRate: SpeechSampleRate,
		Data:       [][]float32{samples},
	}, nil
}
