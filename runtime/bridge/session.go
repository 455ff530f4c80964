package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// SessionState is the lifecycle state of one interpreter session.
//
//	Disconnected -> Connecting -> Connected -> Expired
//
// Expired is terminal: the session is discarded and a fresh one is created
// transparently on the next invocation.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
	StateExpired
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

var errSessionExpired = errors.New("bridge: session expired")

// Session is a long-lived interpreter process handle bound to a logical
// connection context. All shared state a fragment needs across invocations
// lives in the interpreter side of this session, never in ambient bridge
// state.
type Session struct {
	key       string
	transport transport
	logger    *zap.Logger

	// slots admits concurrency-safe commands up to limit; unsafe commands
	// take every slot and therefore run exclusively.
	slots *semaphore.Weighted
	limit int64

	liveness time.Duration

	state atomic.Int32

	mu       sync.Mutex
	conn     conn
	lastUsed time.Time
}

func newSession(key string, t transport, cfg Config) *Session {
	limit := int64(cfg.SessionConcurrency)
	return &Session{
		key:       key,
		transport: t,
		logger:    cfg.Logger.With(zap.String("session", key)),
		slots:     semaphore.NewWeighted(limit),
		limit:     limit,
		liveness:  time.Duration(cfg.LivenessInterval),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// ensure makes the session Connected, handshaking on first use and probing
// liveness after idle periods. Returns errSessionExpired when the session is
// terminal and must be replaced.
func (s *Session) ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateExpired:
		return errSessionExpired
	case StateConnected:
		if time.Since(s.lastUsed) < s.liveness {
			return nil
		}
		probe := s.conn.exchange(ctx, request{Command: pingCommand})
		if !probe.parsed || !probe.resp.OK || probe.resp.Diagnostic == expiredDiagnostic {
			s.expireLocked("liveness probe failed")
			return errSessionExpired
		}
		s.lastUsed = time.Now()
		return nil
	}

	s.state.Store(int32(StateConnecting))
	s.logger.Debug("session connecting")

	c, err := s.transport.open(ctx)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		return fmt.Errorf("open session %q: %w", s.key, err)
	}

	hs := c.exchange(ctx, request{Command: handshakeCommand})
	if !hs.parsed || !hs.resp.OK {
		_ = c.close()
		s.state.Store(int32(StateDisconnected))
		if hs.err != nil {
			return fmt.Errorf("handshake session %q: %w", s.key, hs.err)
		}
		return fmt.Errorf("handshake session %q rejected: %s", s.key, hs.resp.Diagnostic)
	}

	s.conn = c
	s.lastUsed = time.Now()
	s.state.Store(int32(StateConnected))
	s.logger.Info("session connected")
	return nil
}

// exchange runs one command on the session. Unsafe commands serialize by
// taking every concurrency slot; safe commands share up to the limit. An
// expiry diagnostic in the response expires the session before returning.
func (s *Session) exchange(ctx context.Context, req request, concurrencySafe bool) wireResult {
	weight := s.limit
	if concurrencySafe {
		weight = 1
	}
	if err := s.slots.Acquire(ctx, weight); err != nil {
		return wireResult{err: err}
	}
	defer s.slots.Release(weight)

	s.mu.Lock()
	c := s.conn
	s.lastUsed = time.Now()
	s.mu.Unlock()
	if c == nil || s.State() != StateConnected {
		return wireResult{err: errSessionExpired}
	}

	wr := c.exchange(ctx, req)
	if wr.parsed && wr.resp.Diagnostic == expiredDiagnostic {
		s.expire("interpreter signaled expiry")
	} else if !wr.parsed {
		s.expire("exchange failed")
	}
	return wr
}

func (s *Session) expire(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(reason)
}

func (s *Session) expireLocked(reason string) {
	if s.State() == StateExpired {
		return
	}
	s.state.Store(int32(StateExpired))
	if s.conn != nil {
		_ = s.conn.close()
		s.conn = nil
	}
	s.logger.Info("session expired", zap.String("reason", reason))
}

// sessionPool hands out sessions by key, replacing expired ones
// transparently.
type sessionPool struct {
	transport transport
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*Session
}

func newSessionPool(t transport, cfg Config) *sessionPool {
	return &sessionPool{
		transport: t,
		cfg:       cfg,
		sessions:  make(map[string]*Session),
	}
}

func (p *sessionPool) acquire(ctx context.Context, key string) (*Session, error) {
	for {
		p.mu.Lock()
		s, ok := p.sessions[key]
		if !ok || s.State() == StateExpired {
			s = newSession(key, p.transport, p.cfg)
			p.sessions[key] = s
		}
		p.mu.Unlock()

		err := s.ensure(ctx)
		if errors.Is(err, errSessionExpired) {
			continue
		}
		return s, err
	}
}

func (p *sessionPool) close() {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.sessions = make(map[string]*Session)
	p.mu.Unlock()

	for _, s := range sessions {
		s.expire("bridge closed")
	}
}
