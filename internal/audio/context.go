package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrSpeaking is returned when a playback is requested while another one holds the context.
var ErrSpeaking = errors.New("audio context is already speaking")

// Context is the process-wide playback context. The device is opened on first
// use and reused for the lifetime of the process. At most one lease exists at a time.
type Context struct {
	open func() (Device, error)

	once    sync.Once
	device  Device
	openErr error

	mu       sync.Mutex
	speaking bool
}

// NewContext returns a context whose device is created lazily by open.
func NewContext(open func() (Device, error)) *Context {
	return &Context{open: open}
}

// NewContextWithDevice returns a context bound to an existing device.
func NewContextWithDevice(d Device) *Context {
	return NewContext(func() (Device, error) { return d, nil })
}

func (c *Context) dev() (Device, error) {
	c.once.Do(func() {
		c.device, c.openErr = c.open()
		if c.openErr == nil && c.device == nil {
			c.openErr = errors.New("no audio device")
		}
		if c.openErr == nil {
			log.Debug().Str("device", fmt.Sprintf("%T", c.device)).Msg("Audio context initialized")
		}
	})
	return c.device, c.openErr
}

// Acquire marks the context as speaking and returns the lease that ends it.
func (c *Context) Acquire() (*Lease, error) {
	d, err := c.dev()
	if err != nil {
		return nil, &AudioDecodeError{Stage: "play", Err: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speaking {
		return nil, ErrSpeaking
	}
	c.speaking = true
	return &Lease{ctx: c, device: d}, nil
}

// Speaking reports whether a lease is currently held.
func (c *Context) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Lease is exclusive ownership of the context for one playback.
type Lease struct {
	ctx    *Context
	device Device
	once   sync.Once
}

// Device returns the output the lease plays to.
func (l *Lease) Device() Device { return l.device }

// Release clears the speaking state. Only the first call has an effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.ctx.mu.Lock()
		l.ctx.speaking = false
		l.ctx.mu.Unlock()
	})
}
