package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
)

// pingPeriod must stay below pongWait or idle listeners time out. A
// var so tests can shrink it.
var pingPeriod = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from arbitrary origins in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the dashboard HTTP/WebSocket endpoint.
type Server struct {
	e    *echo.Echo
	hub  *Hub
	addr string
}

// NewServer wires the dashboard routes onto an echo instance.
func NewServer(addr string, hub *Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{e: e, hub: hub, addr: addr}
	e.GET("/api/signals", s.handleSignals)
	e.GET("/ws", s.handleWS)
	return s
}

// handleSignals returns the latest signal per key, HOLD placeholders
// included.
func (s *Server) handleSignals(c echo.Context) error {
	return c.JSON(http.StatusOK, s.hub.Latest())
}

// handleWS upgrades the connection and streams every published signal.
// The current latest table is replayed first so a fresh client renders
// immediately.
func (s *Server) handleWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}
	s.hub.register(cl)

	for _, sig := range s.hub.Latest() {
		env := envelope{Event: "new_signal", Data: sig, TS: time.Now().UTC()}
		if buf, err := json.Marshal(env); err == nil {
			select {
			case cl.send <- buf:
			default:
			}
		}
	}

	go cl.writePump(s.hub)
	go cl.readPump(s.hub)
	return nil
}

// writePump drains the send channel to the socket.
func (c *client) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			// Dashboard clients are pure listeners; without pings the
			// pong handler never refreshes the read deadline.
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readPump discards client frames and detects disconnects.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[gateway] dashboard listening on %s", s.addr)
		if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[gateway] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	s.e.Shutdown(ctx)
}
