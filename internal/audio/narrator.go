package audio

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/models"
	"github.com/snappy-loop/skynet/internal/narration"
)

// SpeechFailedMessage is shown when the TTS request fails.
const SpeechFailedMessage = "Failed to generate audio for the explanation."

// Synthesizer turns a script into a base64 PCM payload.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) (string, error)
}

// SynthesisError wraps a TTS failure.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return SpeechFailedMessage }

func (e *SynthesisError) Unwrap() error { return e.Err }

// Narrator reads balance results aloud.
type Narrator struct {
	tts    Synthesizer
	player *Player
}

// NewNarrator creates a narrator.
func NewNarrator(tts Synthesizer, player *Player) *Narrator {
	return &Narrator{tts: tts, player: player}
}

// Speaking reports whether a narration holds the audio context.
func (n *Narrator) Speaking() bool {
	return n.player.audio.Speaking()
}

// Speak composes the narration for r, synthesizes it and starts playback.
// The context counts as speaking from the TTS request until playback ends.
func (n *Narrator) Speak(ctx context.Context, r *models.BalanceResult) (*Playback, string, error) {
	if r == nil {
		return nil, "", errors.New("no result to narrate")
	}
	lease, err := n.player.audio.Acquire()
	if err != nil {
		return nil, "", err
	}
	script := narration.Compose(r)

	b64, err := n.tts.SynthesizeSpeech(ctx, script)
	if err != nil {
		lease.Release()
		log.Error().Err(err).Int("script_length", len(script)).Msg("Speech synthesis failed")
		return nil, script, &SynthesisError{Err: err}
	}
	pb, err := n.player.start(ctx, lease, b64)
	if err != nil {
		return nil, script, err
	}
	return pb, script, nil
}
