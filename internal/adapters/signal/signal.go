package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/harvey0995/GhostBridge/internal/app"
	"github.com/harvey0995/GhostBridge/internal/config"
	"github.com/harvey0995/GhostBridge/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// Controller is the event gateway: it owns the WebSocket upgrade, decodes
// inbound envelopes, and hands them to the relay engine. It keeps no
// per-connection state beyond the join rate limiter.
type Controller struct {
	Engine   *app.Engine
	Cfg      *config.Config
	limiter  *JoinRateLimiter
	upgrader websocket.Upgrader
}

func NewController(engine *app.Engine, cfg *config.Config) *Controller {
	return &Controller{
		Engine:  engine,
		Cfg:     cfg,
		limiter: NewJoinRateLimiter(cfg.JoinBurst, cfg.JoinWindow),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// WsSignalConn is the per-connection transport endpoint. TrySend never
// blocks: a full buffer returns ErrBackpressure and the frame is dropped.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Pending() int {
	return len(c.send)
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// newSessionID mints the per-connection identifier. The client token names a
// browser, not a connection — two tabs share one cookie — so it is only kept
// as a short prefix for log correlation and never as the id itself.
func newSessionID(token string) core.SessionID {
	id := uuid.NewString()
	if token == "" {
		return core.SessionID(id)
	}
	if len(token) > 8 {
		token = token[:8]
	}
	return core.SessionID(token + ":" + id)
}

// HandleWS upgrades the request and registers the session with the engine.
// Every connection gets a fresh session id; concurrent tabs from the same
// browser must never collide on one registry entry.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	sid := newSessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Engine.Connect(sid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
