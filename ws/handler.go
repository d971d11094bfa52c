package ws

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gobwas/ws"
	"github.com/google/uuid"

	"github.com/kbukum/base-api/logger"
	"github.com/kbukum/base-api/relay"
)

// Handler upgrades HTTP requests to websocket sessions.
type Handler struct {
	cfg        Config
	hub        *relay.Hub
	dispatcher *Dispatcher
	base       context.Context
	log        *logger.Logger
}

// NewHandler creates the upgrade handler. Sessions live on base rather than
// the request context: the request context dies when the HTTP handler
// returns, the session must not.
func NewHandler(base context.Context, cfg Config, hub *relay.Hub, dispatcher *Dispatcher) *Handler {
	cfg.ApplyDefaults()
	return &Handler{
		cfg:        cfg,
		hub:        hub,
		dispatcher: dispatcher,
		base:       base,
		log:        logger.WithComponent("ws"),
	}
}

// Handle performs the websocket handshake and serves the session until it
// ends. The connection is hijacked on success; nothing more may be written
// through gin.
func (h *Handler) Handle(c *gin.Context) {
	conn, _, _, err := gws.UpgradeHTTP(c.Request, c.Writer)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", logger.Fields(
			logger.FieldPeer, c.Request.RemoteAddr,
			logger.FieldError, err.Error(),
		))
		return
	}

	// Clear any server read/write deadlines inherited through the hijack;
	// the session manages its own.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		h.log.Warn("Deadline reset failed", logger.Fields(logger.FieldError, err.Error()))
		conn.Close()
		return
	}

	session := NewSession(uuid.NewString(), conn, h.cfg, h.hub, h.dispatcher)
	session.Run(h.base)
}
