package handler

import (
	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/pkg/apperrors"
	"github.com/GoPolymarket/arena/internal/pkg/logger"
	"github.com/GoPolymarket/arena/internal/stream"
	"github.com/gin-gonic/gin"
)

type StreamHandler struct {
	hub *stream.Hub
}

func NewStreamHandler(hub *stream.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Subscribe upgrades to a websocket carrying TradeRecorded events, optionally ?agent= filtered.
func (h *StreamHandler) Subscribe(c *gin.Context) {
	var filter *address.Address
	if raw := c.Query("agent"); raw != "" {
		addr, err := address.Parse(raw)
		if err != nil {
			c.Error(apperrors.New(apperrors.ErrInvalidRequest, "invalid agent address", err))
			return
		}
		filter = &addr
	}
	if err := h.hub.Serve(c.Writer, c.Request, filter); err != nil {
		// 升级失败时 upgrader 已写出响应
		logger.Warn("stream upgrade failed", "error", err, "client_ip", c.ClientIP())
	}
}
