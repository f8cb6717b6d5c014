package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/pkg/middleware/cors"
)

type realtimeHub interface {
	Serve(ctx context.Context, conn *websocket.Conn)
}

// RealtimeHandler upgrades dashboard connections onto the realtime hub.
type RealtimeHandler struct {
	hub      realtimeHub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewRealtimeHandler builds the handler. Origins follow the CORS allow-list.
func NewRealtimeHandler(hub realtimeHub, allowedOrigins []string, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return &RealtimeHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cors.Allowed(originSet, origin)
			},
		},
	}
}

// Connect godoc
// @Summary Realtime table subscriptions
// @Description Websocket. Send {"action":"subscribe","topics":["consultas"]} to receive row changes.
// @Tags Realtime
// @Param token query string false "Access token when headers cannot be set"
// @Success 101
// @Router /realtime [get]
func (h *RealtimeHandler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.Serve(c.Request.Context(), conn)
}
