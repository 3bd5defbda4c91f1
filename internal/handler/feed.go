package handler

import (
	"context"
	"net/http"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/model"
	"github.com/GoPolymarket/arena/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// TradeFeed serves recently published trade notifications across all agents.
type TradeFeed interface {
	Recent(ctx context.Context, agent *address.Address, limit int) ([]*model.TradeRecorded, error)
}

type FeedHandler struct {
	feed TradeFeed
}

func NewFeedHandler(feed TradeFeed) *FeedHandler {
	return &FeedHandler{feed: feed}
}

func (h *FeedHandler) Recent(c *gin.Context) {
	var filter *address.Address
	if raw := c.Query("agent"); raw != "" {
		addr, err := address.Parse(raw)
		if err != nil {
			c.Error(apperrors.New(apperrors.ErrInvalidRequest, "invalid agent address", err))
			return
		}
		filter = &addr
	}
	trades, err := h.feed.Recent(c.Request.Context(), filter, queryInt(c, "limit", 100))
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "trade feed unavailable", err))
		return
	}
	c.JSON(http.StatusOK, trades)
}
