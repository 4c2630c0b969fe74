// Package audio decodes the speech payload returned by the TTS model and plays it
// through a single process-wide playback context.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// Format of the speech payload. It is headerless 16-bit PCM and is never sniffed.
const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
)

// AudioDecodeError reports a payload that cannot be turned into a playable buffer.
type AudioDecodeError struct {
	Stage string // base64, pcm or play
	Err   error
}

func (e *AudioDecodeError) Error() string {
	return fmt.Sprintf("audio %s: %v", e.Stage, e.Err)
}

func (e *AudioDecodeError) Unwrap() error { return e.Err }

// Decode decodes standard (padded) base64 text to raw bytes.
func Decode(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, &AudioDecodeError{Stage: "base64", Err: err}
	}
	return raw, nil
}

// Buffer holds de-interleaved samples normalised to [-1, 1).
type Buffer struct {
	SampleRate int
	Channels   int
	Data       [][]float32
}

// DecodeAudioData interprets raw as little-endian signed 16-bit PCM interleaved by channel.
func DecodeAudioData(raw []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, &AudioDecodeError{Stage: "pcm", Err: fmt.Errorf("invalid format %d Hz x %d channels", sampleRate, channels)}
	}
	if len(raw)%2 != 0 {
		return nil, &AudioDecodeError{Stage: "pcm", Err: fmt.Errorf("odd byte length %d", len(raw))}
	}
	samples := len(raw) / 2
	if samples%channels != 0 {
		return nil, &AudioDecodeError{Stage: "pcm", Err: fmt.Errorf("%d samples is not a whole number of %d-channel frames", samples, channels)}
	}
	frames := samples / channels

	b := &Buffer{SampleRate: sampleRate, Channels: channels, Data: make([][]float32, channels)}
	for ch := range b.Data {
		b.Data[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			v := int16(binary.LittleEndian.Uint16(raw[off:]))
			b.Data[ch][i] = float32(v) / 32768.0
		}
	}
	return b, nil
}

// Len returns the number of frames in the buffer.
func (b *Buffer) Len() int {
	if b == nil || len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(b.SampleRate)
}

// PCM16 re-encodes the buffer as interleaved little-endian 16-bit PCM.
func (b *Buffer) PCM16() []byte {
	n := b.Len()
	out := make([]byte, n*b.Channels*2)
	for i := 0; i < n; i++ {
		for ch := 0; ch < b.Channels; ch++ {
			v := b.Data[ch][i] * 32768.0
			if v > 32767 {
				v = 32767
			} else if v < -32768 {
				v = -32768
			}
			binary.LittleEndian.PutUint16(out[(i*b.Channels+ch)*2:], uint16(int16(v)))
		}
	}
	return out
}
