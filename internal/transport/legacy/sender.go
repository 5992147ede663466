package legacy

import (
	"context"
	"sync"

	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender fans each call out to every candidate host origin.
type Sender struct {
	candidates   []string
	receiverPath string
	factory      FrameFactory
	cacheBuster  func() string
	logger       zerolog.Logger

	once     sync.Once
	framesMu sync.RWMutex
	frames   []Frame
	wg       sync.WaitGroup
}

type SenderConfig struct {
	Candidates   []string
	ReceiverPath string
	Frames       FrameFactory
	CacheBuster  func() string
	Logger       *zerolog.Logger
}

func NewSender(cfg SenderConfig) *Sender {
	s := &Sender{
		candidates:   append([]string(nil), cfg.Candidates...),
		receiverPath: cfg.ReceiverPath,
		factory:      cfg.Frames,
		cacheBuster:  cfg.CacheBuster,
		logger:       log.Logger,
	}
	if s.receiverPath == "" {
		s.receiverPath = DefaultReceiverPath
	}
	if s.cacheBuster == nil {
		s.cacheBuster = NewCacheBuster
	}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
	}
	return s
}

// Send builds one address per candidate and navigates each frame to it
// without waiting. An invalid address fails the whole send before any
// navigation starts.
func (s *Sender) Send(ctx context.Context, env protocol.Envelope) error {
	s.once.Do(s.createFrames)
	buster := s.cacheBuster()
	addrs := make([]string, len(s.candidates))
	for i, candidate := range s.candidates {
		addr, err := BuildAddress(candidate, s.receiverPath, buster, env)
		if err != nil {
			return err
		}
		addrs[i] = addr
	}
	s.framesMu.RLock()
	frames := s.frames
	s.framesMu.RUnlock()
	for i, frame := range frames {
		if frame == nil {
			continue
		}
		s.wg.Add(1)
		go s.navigate(ctx, frame, s.candidates[i], addrs[i])
	}
	return nil
}

// Wait blocks until in-flight navigations finish.
func (s *Sender) Wait() {
	s.wg.Wait()
}

// Frames returns how many frames were created.
func (s *Sender) Frames() int {
	s.framesMu.RLock()
	defer s.framesMu.RUnlock()
	n := 0
	for _, f := range s.frames {
		if f != nil {
			n++
		}
	}
	return n
}

func (s *Sender) createFrames() {
	frames := make([]Frame, len(s.candidates))
	defer func() {
		s.framesMu.Lock()
		s.frames = frames
		s.framesMu.Unlock()
	}()
	if s.factory == nil {
		s.logger.Warn().Msg("legacy frames unavailable; calls will be dropped")
		return
	}
	created := 0
	for i, candidate := range s.candidates {
		frame, err := s.factory(candidate)
		if err == nil && frame == nil {
			err = ErrNoFrame
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("candidate", candidate).Msg("legacy frame not created")
			continue
		}
		frames[i] = frame
		created++
	}
	s.logger.Debug().Int("frames", created).Msg("legacy frames created")
}

func (s *Sender) navigate(ctx context.Context, frame Frame, candidate, addr string) {
	defer s.wg.Done()
	err := frame.Navigate(ctx, addr)
	observability.RecordLegacyNavigation(err == nil)
	if err != nil {
		s.logger.Debug().Err(err).Str("candidate", candidate).Msg("legacy navigation failed")
	}
}
