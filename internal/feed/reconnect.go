package feed

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"
)

const defaultReconnectDelay = 5 * time.Second

var errNoSession = errors.New("feed: no live session")

// Reconnector keeps exactly one Session alive, re-running the full
// handshake and subscribe sequence after every drop. The policy is a
// fixed delay with no attempt cap: this is an always-on service and
// upstream rejections (including transient auth failures) are all
// retried the same way.
type Reconnector struct {
	cfg    SessionConfig
	events chan<- Event
	delay  time.Duration

	cur atomic.Pointer[Session]

	// OnReconnect is an optional metrics hook invoked before each
	// connection attempt after the first.
	OnReconnect func()
	// OnFrame and OnDecodeError are forwarded to each session.
	OnFrame       func()
	OnDecodeError func(err error)
}

// NewReconnector wraps the session config with the retry policy.
// delay <= 0 selects the default 5s backoff.
func NewReconnector(cfg SessionConfig, events chan<- Event, delay time.Duration) *Reconnector {
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	return &Reconnector{cfg: cfg, events: events, delay: delay}
}

// Emit forwards an application event to the live session, if any.
func (r *Reconnector) Emit(event string, payload any) error {
	if s := r.cur.Load(); s != nil {
		return s.Emit(event, payload)
	}
	return errNoSession
}

// State reports the live session's state, or disconnected.
func (r *Reconnector) State() State {
	if s := r.cur.Load(); s != nil {
		return s.State()
	}
	return StateDisconnected
}

// Run blocks until ctx is cancelled. Sessions run strictly one at a
// time; the previous one has fully returned before the next connects.
func (r *Reconnector) Run(ctx context.Context) {
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		if !first && r.OnReconnect != nil {
			r.OnReconnect()
		}
		first = false

		s := NewSession(r.cfg, r.events)
		s.OnFrame = r.OnFrame
		s.OnDecodeError = r.OnDecodeError
		r.cur.Store(s)
		if err := s.Run(ctx); err != nil {
			log.Printf("[feed] session ended: %v (reconnecting in %s)", err, r.delay)
		}
		r.cur.Store(nil)

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.delay):
		}
	}
}
