package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/audio"
	unifiedgenai "google.golang.org/genai"
)

// ErrNoAudio is returned when the TTS response carries no inline audio.
var ErrNoAudio = errors.New("No audio data returned from API.")

// SynthesizeSpeech reads text aloud with the TTS model and returns the base64
// payload of the first inline-data part (headerless 16-bit PCM at 24 kHz).
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) (string, error) {
	if c.unifiedClient == nil {
		return "", ErrNotConfigured
	}

	contents := []*unifiedgenai.Content{
		{
			Role:  "user",
			Parts: []*unifiedgenai.Part{unifiedgenai.NewPartFromText(text)},
		},
	}
	config := &unifiedgenai.GenerateContentConfig{
		ResponseModalities: []string{string(unifiedgenai.ModalityAudio)},
		SpeechConfig: &unifiedgenai.SpeechConfig{
			VoiceConfig: &unifiedgenai.VoiceConfig{
				PrebuiltVoiceConfig: &unifiedgenai.PrebuiltVoiceConfig{
					VoiceName: c.ttsVoice,
				},
			},
		},
	}

	log.Debug().
		Str("model", c.modelTTS).
		Str("voice", c.ttsVoice).
		Int("script_length", len(text)).
		Msg("Calling unified genai TTS GenerateContent")

	resp, err := c.unifiedClient.Models.GenerateContent(ctx, c.modelTTS, contents, config)
	if err != nil {
		return "", fmt.Errorf("TTS request: %w", err)
	}
	data, mimeType := firstInlineData(resp)
	if len(data) == 0 {
		return "", ErrNoAudio
	}
	if f := audio.FormatFromMIME(mimeType); mimeType != "" && !f.Matches() {
		log.Warn().Str("mime_type", mimeType).Int("rate", f.SampleRate).Int("bits", f.BitsPerSample).Msg("TTS audio format differs from playback format")
	}

	log.Info().
		Str("caller", "SynthesizeSpeech").
		Int("audio_size_bytes", len(data)).
		Str("voice", c.ttsVoice).
		Str("mime_type", mimeType).
		Msg("TTS audio generated")

	return base64.StdEncoding.EncodeToString(data), nil
}

func firstInlineData(resp *unifiedgenai.GenerateContentResponse) ([]byte, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return nil, ""
	}
	part := cand.Content.Parts[0]
	if part.InlineData == nil {
		return nil, ""
	}
	return part.InlineData.Data, part.InlineData.MIMEType
}
