package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Parley/internal/app/orch"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	// PongWait is the read deadline refreshed by every pong; it must exceed PingPeriod.
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *RateLimiter
	opts    Options
}

func NewSignalWSController(o *orch.Orchestrator, limiter *RateLimiter, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.PongWait <= opts.PingPeriod {
		opts.PongWait = opts.PingPeriod * 10 / 9
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	return &SignalWSController{Orch: o, Limiter: limiter, opts: opts}
}

// WsSignalConn is the core.SignalConnection of one websocket. Frames are
// queued on send and written by a single writePump, so order is preserved.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame
	uid  domain.UserID
	sid  core.SessionID

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type handshakeAck struct {
	UserID    domain.UserID  `json:"userId"`
	SessionID core.SessionID `json:"sessionId"`
}

// HandleSignal upgrades the request and runs the session until the socket
// or ctx closes. uid is already authenticated by the HTTP layer; the
// session id comes from the sessionId query parameter or is generated.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, uid domain.UserID) {
	sid := core.SessionID(c.Query("sessionId"))
	if sid == "" {
		sid = core.SessionID(uuid.NewString())
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(uid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
		uid:  uid,
		sid:  sid,
	}

	// the ack is queued before registration so it is always the first frame
	ack, err := core.EncodeControl(core.EnvelopeHandshakeAck, handshakeAck{UserID: uid, SessionID: sid})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode handshake ack")
		conn.Close()
		return
	}
	_ = conn.TrySend(ack)

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.OnConnect(uid, sid, conn)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}

// disconnect unregisters the session unless a newer connection has taken
// over the same session id.
func (ctl *SignalWSController) disconnect(c *WsSignalConn) {
	ctl.Orch.OnConnClosed(c.sid, c)
	if ctl.Limiter != nil && !ctl.Orch.Registry.IsOnline(c.uid) {
		ctl.Limiter.Forget(c.uid)
	}
}
