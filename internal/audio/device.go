package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Device is an audio output. Play blocks until playback of b has ended.
type Device interface {
	Play(ctx context.Context, b *Buffer) error
}

// WriterDevice writes each buffer as a WAV stream to W.
type WriterDevice struct {
	mu sync.Mutex
	W  io.Writer
}

func (d *WriterDevice) Play(ctx context.Context, b *Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.W.Write(b.WAV()); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

// FileDevice stores each buffer as a WAV file under Dir.
type FileDevice struct {
	Dir string

	mu   sync.Mutex
	last string
}

func (d *FileDevice) Play(ctx context.Context, b *Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create narration dir: %w", err)
	}
	name := filepath.Join(d.Dir, fmt.Sprintf("narration-%s-%s.wav", time.Now().UTC().Format("20060102T150405"), uuid.New().String()[:8]))
	if err := os.WriteFile(name, b.WAV(), 0o644); err != nil {
		return fmt.Errorf("write narration file: %w", err)
	}
	d.mu.Lock()
	d.last = name
	d.mu.Unlock()
	log.Info().Str("path", name).Dur("duration", b.Duration()).Msg("Narration written")
	return nil
}

// Last returns the path of the most recently written file.
func (d *FileDevice) Last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Paced holds Play for the real duration of the buffer so the speaking state
// tracks audible playback even when Next finishes immediately.
type Paced struct {
	Next Device
}

func (p Paced) Play(ctx context.Context, b *Buffer) error {
	start := time.Now()
	if err := p.Next.Play(ctx, b); err != nil {
		return err
	}
	remaining := b.Duration() - time.Since(start)
	if remaining <= 0 {
		return nil
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Multi plays the buffer on every device in order, stopping at the first error.
type Multi []Device

func (m Multi) Play(ctx context.Context, b *Buffer) error {
	for _, d := range m {
		if err := d.Play(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
