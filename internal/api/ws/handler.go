package ws

import (
	"net/http"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/relay"
	"github.com/GriffinCanCode/modbridge/internal/shared/id"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	// Bridges connect from extension origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Attacher accepts page connections.
type Attacher interface {
	Attach(conn *relay.Conn) (id.TabID, relay.Handler)
	Detach(tabID id.TabID)
}

// Handler manages bridge websocket connections
type Handler struct {
	coord   Attacher
	log     *zap.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(coord Attacher, log *zap.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{coord: coord, log: logging.OrNop(log), metrics: metrics}
}

// HandleConnection upgrades the request and serves the page until either
// side goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	// Serve closes conn.
	conn := relay.NewConn(relay.NewWebSocketTransport(ws), h.log.Named("channel-a"), h.metrics)

	tabID, handler := h.coord.Attach(conn)
	defer h.coord.Detach(tabID)

	if err := conn.Serve(c.Request.Context(), handler); err != nil {
		h.log.Debug("bridge connection ended", zap.String("tab", tabID.String()), zap.Error(err))
	}
}
