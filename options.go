package framelink

import (
	"github.com/danmuck/framelink/internal/events"
	"github.com/danmuck/framelink/internal/transport/channel"
	"github.com/danmuck/framelink/internal/transport/direct"
	"github.com/danmuck/framelink/internal/transport/legacy"
	"github.com/rs/zerolog"
)

type Option func(*Facade)

// WithParent gives an embedded context a handle on its host for direct
// same-origin access.
func WithParent(parent direct.Parent) Option {
	return func(f *Facade) {
		f.parent = parent
	}
}

// WithPort gives an embedded context a message port to its host.
func WithPort(port channel.Port) Option {
	return func(f *Facade) {
		f.port = port
	}
}

// WithInbound sets the target this context receives message events on.
func WithInbound(target events.Target) Option {
	return func(f *Facade) {
		f.inbound = target
	}
}

// WithFrames enables legacy delivery with frames from factory.
func WithFrames(factory legacy.FrameFactory) Option {
	return func(f *Facade) {
		f.frames = factory
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(f *Facade) {
		f.logger = logger
	}
}

// WithCacheBuster replaces the legacy address cache-buster generator.
func WithCacheBuster(fn func() string) Option {
	return func(f *Facade) {
		f.cacheBuster = fn
	}
}
