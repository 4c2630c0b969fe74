package audio

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Player decodes speech payloads and plays them through a Context.
type Player struct {
	audio *Context
}

// NewPlayer creates a player bound to the shared audio context.
func NewPlayer(audio *Context) *Player {
	return &Player{audio: audio}
}

// Context returns the audio context the player owns leases on.
func (p *Player) Context() *Context { return p.audio }

// Playback is one started playback. Wait blocks until it has ended.
type Playback struct {
	Buffer *Buffer

	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Wait blocks until playback ends and returns the device error, if any.
func (pb *Playback) Wait() error {
	<-pb.done
	return pb.err
}

// Done is closed when playback ends.
func (pb *Playback) Done() <-chan struct{} { return pb.done }

// Stop interrupts playback. The lease is still released exactly once.
func (pb *Playback) Stop() { pb.cancel() }

// Play acquires the context and starts playing the base64 PCM payload.
// It fails with ErrSpeaking when a playback is already in progress.
func (p *Player) Play(ctx context.Context, b64 string) (*Playback, error) {
	lease, err := p.audio.Acquire()
	if err != nil {
		return nil, err
	}
	return p.start(ctx, lease, b64)
}

// start decodes b64 and plays it under an already held lease. Every path
// releases the lease exactly once.
func (p *Player) start(ctx context.Context, lease *Lease, b64 string) (*Playback, error) {
	raw, err := Decode(b64)
	if err != nil {
		lease.Release()
		return nil, err
	}
	buf, err := DecodeAudioData(raw, SampleRate, Channels)
	if err != nil {
		lease.Release()
		return nil, err
	}

	// Playback outlives the request that started it; Stop interrupts it.
	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pb := &Playback{Buffer: buf, done: make(chan struct{}), cancel: cancel}

	log.Info().
		Int("samples", buf.Len()).
		Dur("duration", buf.Duration()).
		Msg("Playback started")

	go func() {
		defer close(pb.done)
		defer cancel()
		defer lease.Release()
		start := time.Now()
		if err := lease.Device().Play(playCtx, buf); err != nil {
			pb.err = &AudioDecodeError{Stage: "play", Err: err}
			log.Warn().Err(err).Msg("Playback failed")
			return
		}
		log.Info().Dur("elapsed", time.Since(start)).Msg("Playback ended")
	}()
	return pb, nil
}
