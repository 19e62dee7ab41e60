package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAV_Header(t *testing.T) {
	buf := &Buffer{
		SampleRate: SpeechSampleRate,
		Data:       [][]float32{{0, 0.5, -0.5}},
	}

	out := EncodeWAV(buf)
	require.Len(t, out, 44+3*2)

	le := binary.LittleEndian
	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, uint32(len(out)-8), le.Uint32(out[4:8]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, uint16(1), le.Uint16(out[20:22]), "PCM format tag")
	assert.Equal(t, uint16(1), le.Uint16(out[22:24]), "channel count")
	assert.Equal(t, uint32(SpeechSampleRate), le.Uint32(out[24:28]))
	assert.Equal(t, uint32(SpeechSampleRate*2), le.Uint32(out[28:32]), "byte rate")
	assert.Equal(t, uint16(2), le.Uint16(out[32:34]), "block align")
	assert.Equal(t, uint16(16), le.Uint16(out[34:36]), "bits per sample")
	assert.Equal(t, "data", string(out[36:40]))
	assert.Equal(t, uint32(6), le.Uint32(out[40:44]))
}

func TestEncodeWAV_Empty(t *testing.T) {
	buf := &Buffer{SampleRate: SpeechSampleRate, Data: [][]float32{{}}}

	out := EncodeWAV(buf)
	assert.Len(t, out, 44)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(out[40:44]))
}

func TestEncodeWAV_RaggedChannels(t *testing.T) {
	buf := &Buffer{
		SampleRate: 44100,
		Data: [][]float32{
			{0.25, 0.25, 0.25},
			{-0.25},
		},
	}

	out := EncodeWAV(buf)
	// Only complete frames are encoded.
	require.Len(t, out, 44+1*2*2)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(out[40:44]))
}

func TestEncodeWAV_Silence(t *testing.T) {
	buf, err := DecodePCM(make([]byte, SpeechSampleRate))
	require.NoError(t, err)
	require.Equal(t, SpeechSampleRate/2, buf.Frames())

	out := EncodeWAV(buf)
	require.Len(t, out, 44+SpeechSampleRate)
	for i, b := range out[44:] {
		if b != 0 {
			t.Fatalf("nonzero byte %#x at data offset %d", b, i)
		}
	}
}

func TestEncodeWAV_Stereo(t *testing.T) {
	buf := &Buffer{
		SampleRate: 44100,
		Data: [][]float32{
			{0.25, 0.25},
			{-0.25, -0.25},
		},
	}

	out := EncodeWAV(buf)
	require.Len(t, out, 44+2*2*2)

	le := binary.LittleEndian
	assert.Equal(t, uint16(2), le.Uint16(out[22:24]))
	assert.Equal(t, uint32(44100*2*2), le.Uint32(out[28:32]))
	assert.Equal(t, uint16(4), le.Uint16(out[32:34]))

	// Samples interleave left then right within each frame.
	left := int16(le.Uint16(out[44:46]))
	right := int16(le.Uint16(out[46:48]))
	assert.Positive(t, left)
	assert.Negative(t, right)
}

func TestEncodeWAV_RoundTrip(t *testing.T) {
	pcm := pcmBytes(1000, -1000, -32768)

	buf, err := DecodePCM(pcm)
	require.NoError(t, err)

	out := EncodeWAV(buf)
	require.Len(t, out, 44+len(pcm))

	le := binary.LittleEndian
	// Quantization error is at most one step either way.
	assert.InDelta(t, 1000, int16(le.Uint16(out[44:46])), 1)
	assert.InDelta(t, -1000, int16(le.Uint16(out[46:48])), 1)
	assert.Equal(t, int16(-32768), int16(le.Uint16(out[48:50])))
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		name   string
		sample float32
		want   int16
	}{
		{"zero", 0, 0},
		{"full positive", 1, 32767},
		{"full negative", -1, -32768},
		{"clamped high", 2.5, 32767},
		{"clamped low", -2.5, -32768},
		{"half positive", 0.5, 16383},
		{"half negative", -0.5, -16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, quantize(tt.sample))
		})
	}
}
