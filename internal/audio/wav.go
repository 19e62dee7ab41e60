package audio

import "encoding/binary"

// wavHeaderSize is the byte length of the RIFF/WAVE header plus the fmt
// and data chunk headers written by EncodeWAV.
const wavHeaderSize = 44

// EncodeWAV serializes a buffer into an uncompressed 16-bit PCM WAV byte
// stream: a RIFF/WAVE header, a fmt sub-chunk declaring format, channel
// count and sample rate, and a data sub-chunk of interleaved samples.
// Samples are clamped to [-1, 1] and quantized with the standard
// asymmetric mapping: ×32767 for positive values, ×32768 for negative.
// An empty buffer encodes to exactly the 44-byte header.
func EncodeWAV(buf *Buffer) []byte {
	numChannels := buf.Channels()
	frames := buf.Frames()
	dataLen := frames * numChannels * 2
	out := make([]byte, wavHeaderSize+dataLen)

	le := binary.LittleEndian
	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(wavHeaderSize+dataLen-8))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16) // fmt chunk length
	le.PutUint16(out[20:22], 1)  // PCM, uncompressed
	le.PutUint16(out[22:24], uint16(numChannels))
	le.PutUint32(out[24:28], uint32(buf.SampleRate))
	le.PutUint32(out[28:32], uint32(buf.SampleRate*numChannels*2)) // bytes per second
	le.PutUint16(out[32:34], uint16(numChannels*2))                // block align
	le.PutUint16(out[34:36], 16)                                   // bits per sample

	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(dataLen))

	pos := wavHeaderSize
	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < numChannels; ch++ {
			le.PutUint16(out[pos:], uint16(quantize(buf.Data[ch][frame])))
			pos += 2
		}
	}

	return out
}

// quantize clamps a sample to [-1, 1] and truncates it to a 16-bit
// integer, scaling asymmetrically so both extremes are representable.
func quantize(sample float32) int16 {
	if sample > 1 {
		sample = 1
	}
	if sample < -1 {
		sample = -1
	}
	if sample < 0 {
		return int16(sample * 32768)
	}
	return int16(sample * 32767)
}
