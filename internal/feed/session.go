package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle phase of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshakeWait
	StateNamespaceOpen
	StateAuthenticating
	StateAssetsRequested
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshakeWait:
		return "handshake_wait"
	case StateNamespaceOpen:
		return "namespace_open"
	case StateAuthenticating:
		return "authenticating"
	case StateAssetsRequested:
		return "assets_requested"
	case StateStreaming:
		return "streaming"
	}
	return "unknown"
}

const (
	defaultHandshakeTimeout  = 10 * time.Second
	defaultHeartbeatInterval = 5 * time.Second
	defaultIdleTimeout       = 45 * time.Second
)

// Credentials authenticate a session with the upstream venue. The
// token is a captured browser session token; UID is the account id.
type Credentials struct {
	SessionToken string
	UID          string
	Locale       string // e.g. "en"
	ContextPath  string // e.g. "cabinet"
}

// SessionConfig parameterizes one protocol session. Endpoint, auth
// payload shape and heartbeat interval are the only variation points
// between upstream deployments.
type SessionConfig struct {
	Endpoint          string // wss URL including transport query params
	Origin            string // Origin header required by the venue
	Credentials       Credentials
	HandshakeTimeout  time.Duration // per handshake step, default 10s
	HeartbeatInterval time.Duration // must be < upstream idle timeout
}

func (c *SessionConfig) withDefaults() SessionConfig {
	out := *c
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = defaultHandshakeTimeout
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = defaultHeartbeatInterval
	}
	return out
}

type authPayload struct {
	SessionToken string `json:"sessionToken"`
	UID          string `json:"uid"`
	Lang         string `json:"lang"`
	CurrentURL   string `json:"currentUrl"`
	IsChart      int    `json:"isChart"`
}

// Session owns one upstream connection and drives the
// connect → handshake → authenticate → subscribe → stream state
// machine. Decoded domain events go to the output channel; every
// session ends with exactly one ConnectionLost.
type Session struct {
	cfg    SessionConfig
	events chan<- Event

	mu      sync.Mutex // guards conn writes
	conn    *websocket.Conn
	state   atomic.Int32
	idleMax time.Duration

	// OnFrame is an optional metrics hook invoked for each frame read
	// off the socket, decodable or not.
	OnFrame func()

	// OnDecodeError is an optional metrics hook invoked for each
	// skipped frame.
	OnDecodeError func(err error)
}

// NewSession creates a session that will emit domain events on events.
// The channel is never closed by the session.
func NewSession(cfg SessionConfig, events chan<- Event) *Session {
	return &Session{
		cfg:     cfg.withDefaults(),
		events:  events,
		idleMax: defaultIdleTimeout,
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Emit sends an application event frame upstream. Safe for concurrent
// use with the heartbeat writer.
func (s *Session) Emit(event string, payload any) error {
	raw, err := EncodeEvent(event, payload)
	if err != nil {
		return err
	}
	return s.write(raw)
}

func (s *Session) write(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errors.New("feed: no live connection")
	}
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

// Run executes the full session lifecycle and blocks until the
// connection is lost or ctx is cancelled. Always emits ConnectionLost
// before returning; the error mirrors the event's Err field.
func (s *Session) Run(ctx context.Context) error {
	err := s.run(ctx)
	s.setState(StateDisconnected)
	if ctx.Err() != nil {
		err = nil
	}
	s.sendEvent(ctx, ConnectionLost{Err: err})
	return err
}

func (s *Session) run(ctx context.Context) error {
	s.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	header := http.Header{}
	if s.cfg.Origin != "" {
		header.Set("Origin", s.cfg.Origin)
	}

	conn, resp, err := dialer.DialContext(ctx, s.cfg.Endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: status %s: %w", s.cfg.Endpoint, resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", s.cfg.Endpoint, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	// Close the socket as soon as the context dies so blocked reads
	// return promptly during shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := s.handshake(conn); err != nil {
		return err
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	hbErr := make(chan error, 1)
	go s.heartbeatLoop(hbCtx, hbErr)

	readErr := make(chan error, 1)
	go func() { readErr <- s.readLoop(ctx, conn) }()

	select {
	case err := <-hbErr:
		conn.Close()
		<-readErr
		return fmt.Errorf("heartbeat: %w", err)
	case err := <-readErr:
		return err
	}
}

// handshake walks the control sequence: receive "0" info, open the
// namespace, authenticate, request the asset catalogue. Each step has
// a read deadline; an out-of-order or missing control frame fails the
// session instead of hanging.
func (s *Session) handshake(conn *websocket.Conn) error {
	s.setState(StateHandshakeWait)

	f, err := s.readHandshakeFrame(conn)
	if err != nil {
		return fmt.Errorf("await open frame: %w", err)
	}
	if f.Type != FrameOpen {
		return fmt.Errorf("handshake: expected open frame, got %s", f.Type)
	}
	if info, err := DecodeOpenInfo(f); err == nil && info.PingInterval > 0 {
		s.idleMax = time.Duration(info.PingInterval+info.PingTimeout) * time.Millisecond
		if s.idleMax < s.cfg.HeartbeatInterval*2 {
			s.idleMax = s.cfg.HeartbeatInterval * 2
		}
	}

	if err := s.write(frameNamespaceOpen); err != nil {
		return fmt.Errorf("open namespace: %w", err)
	}
	s.setState(StateNamespaceOpen)

	for {
		f, err = s.readHandshakeFrame(conn)
		if err != nil {
			return fmt.Errorf("await namespace ack: %w", err)
		}
		if f.Type == FramePing {
			s.write(framePong)
			continue
		}
		break
	}
	if f.Type != FrameNamespace {
		return fmt.Errorf("handshake: expected namespace ack, got %s", f.Type)
	}

	creds := s.cfg.Credentials
	err = s.Emit("auth", authPayload{
		SessionToken: creds.SessionToken,
		UID:          creds.UID,
		Lang:         creds.Locale,
		CurrentURL:   creds.ContextPath,
		IsChart:      1,
	})
	if err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	s.setState(StateAuthenticating)
	return nil
}

// readHandshakeFrame reads one frame under the handshake deadline.
func (s *Session) readHandshakeFrame(conn *websocket.Conn) (Frame, error) {
	conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	f, err := DecodeFrame(raw)
	if err != nil {
		return Frame{}, err
	}
	return f, nil
}

// readLoop consumes frames from authentication ack through streaming.
// Individual decode failures are logged and skipped; only transport
// errors end the loop.
func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	authDeadline := time.Now().Add(s.cfg.HandshakeTimeout)

	for {
		if s.State() == StateAuthenticating {
			// Auth ack must arrive within the handshake timeout;
			// otherwise drop and let the reconnector retry.
			conn.SetReadDeadline(authDeadline)
		} else {
			conn.SetReadDeadline(time.Now().Add(s.idleMax))
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if s.OnFrame != nil {
			s.OnFrame()
		}

		f, err := DecodeFrame(raw)
		if err != nil {
			log.Printf("[feed] skipping undecodable frame: %v", err)
			if s.OnDecodeError != nil {
				s.OnDecodeError(err)
			}
			continue
		}

		switch f.Type {
		case FramePing:
			if err := s.write(framePong); err != nil {
				return fmt.Errorf("write pong: %w", err)
			}
		case FramePong, FrameNamespace, FrameOpen:
			// Keep-alive acks and duplicate control frames.
		case FrameEvent:
			if err := s.handleEvent(ctx, f); err != nil {
				log.Printf("[feed] skipping event %q: %v", f.Event, err)
				if s.OnDecodeError != nil {
					s.OnDecodeError(err)
				}
			}
		default:
			log.Printf("[feed] ignoring unknown frame: %.40q", raw)
		}
	}
}

// handleEvent advances the post-handshake state machine and forwards
// decoded domain events.
func (s *Session) handleEvent(ctx context.Context, f Frame) error {
	if s.State() == StateAuthenticating {
		switch f.Event {
		case "auth/success":
			if err := s.Emit("getAssets", nil); err != nil {
				return fmt.Errorf("request assets: %w", err)
			}
			s.setState(StateAssetsRequested)
			log.Printf("[feed] authenticated, assets requested")
			return nil
		case "assets":
			// Some deployments skip the explicit auth ack and start
			// streaming immediately; treat data as implicit success.
			s.setState(StateAssetsRequested)
		}
	}

	ev, err := decodeEvent(f)
	if err != nil {
		return err
	}
	if ev == nil {
		return nil
	}

	if s.State() == StateAssetsRequested {
		s.setState(StateStreaming)
	}
	s.sendEvent(ctx, ev)
	return nil
}

func (s *Session) sendEvent(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// heartbeatLoop sends the keep-alive frame at a fixed interval. A
// write failure is a connection loss.
func (s *Session) heartbeatLoop(ctx context.Context, errCh chan<- error) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.write(framePing); err != nil {
				errCh <- err
				return
			}
		}
	}
}
