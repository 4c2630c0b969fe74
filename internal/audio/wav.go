package audio

import (
	"bytes"
	"encoding/binary"
	"regexp"
	"strconv"
	"strings"
)

var pcmMIMERe = regexp.MustCompile(`audio/L(\d+)`)

// WAV returns the buffer as a RIFF/WAVE file with a 44-byte header.
func (b *Buffer) WAV() []byte {
	return encodeWAV(b.PCM16(), b.SampleRate, b.Channels, BitsPerSample)
}

func encodeWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	header := new(bytes.Buffer)
	binary.Write(header, binary.LittleEndian, []byte("RIFF"))
	binary.Write(header, binary.LittleEndian, uint32(36+dataSize))
	binary.Write(header, binary.LittleEndian, []byte("WAVE"))
	binary.Write(header, binary.LittleEndian, []byte("fmt "))
	binary.Write(header, binary.LittleEndian, uint32(16))
	binary.Write(header, binary.LittleEndian, uint16(1))
	binary.Write(header, binary.LittleEndian, uint16(channels))
	binary.Write(header, binary.LittleEndian, uint32(sampleRate))
	binary.Write(header, binary.LittleEndian, uint32(byteRate))
	binary.Write(header, binary.LittleEndian, uint16(blockAlign))
	binary.Write(header, binary.LittleEndian, uint16(bitsPerSample))
	binary.Write(header, binary.LittleEndian, []byte("data"))
	binary.Write(header, binary.LittleEndian, uint32(dataSize))

	return append(header.Bytes(), pcm...)
}

// Format describes a PCM stream as advertised by a MIME type such as "audio/L16;rate=24000".
type Format struct {
	BitsPerSample int
	SampleRate    int
}

// FormatFromMIME parses bits per sample and rate, defaulting to the speech payload format.
func FormatFromMIME(mimeType string) Format {
	f := Format{BitsPerSample: BitsPerSample, SampleRate: SampleRate}
	for _, part := range strings.Split(mimeType, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(strings.ToLower(part), "rate=") {
			if rate, err := strconv.Atoi(part[len("rate="):]); err == nil {
				f.SampleRate = rate
			}
		} else if m := pcmMIMERe.FindStringSubmatch(part); len(m) > 1 {
			if bits, err := strconv.Atoi(m[1]); err == nil {
				f.BitsPerSample = bits
			}
		}
	}
	return f
}

// Matches reports whether f is the format DecodeAudioData is called with.
func (f Format) Matches() bool {
	return f.BitsPerSample == BitsPerSample && f.SampleRate == SampleRate
}
