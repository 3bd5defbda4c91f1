package handler

import (
	"net/http"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/middleware"
	"github.com/GoPolymarket/arena/internal/pkg/apperrors"
	"github.com/GoPolymarket/arena/internal/service"
	"github.com/gin-gonic/gin"
)

type BalanceHandler struct {
	svc *service.VaultService
}

func NewBalanceHandler(svc *service.VaultService) *BalanceHandler {
	return &BalanceHandler{svc: svc}
}

type fundRequest struct {
	Address string `json:"address" binding:"required,address"`
	Amount  uint64 `json:"amount"`
}

func (h *BalanceHandler) Get(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	balance, err := h.svc.Balance(c.Request.Context(), addr)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, balanceView{Address: addr.String(), Balance: balance, BalanceSOL: service.FormatSOL(balance)})
}

// Fund credits external value to an address (admin only).
func (h *BalanceHandler) Fund(c *gin.Context) {
	var req fundRequest
	if !bindJSON(c, &req) {
		return
	}
	addr, err := address.Parse(req.Address)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, "invalid address", err))
		return
	}
	middleware.AddAuditContext(c, "amount", req.Amount)
	balance, err := h.svc.Fund(c.Request.Context(), addr, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, balanceView{Address: addr.String(), Balance: balance, BalanceSOL: service.FormatSOL(balance)})
}
