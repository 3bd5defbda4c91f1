package handler

import (
	"net/http"
	"strconv"

	"github.com/GoPolymarket/arena/internal/ledger"
	"github.com/GoPolymarket/arena/internal/middleware"
	"github.com/GoPolymarket/arena/internal/pkg/apperrors"
	"github.com/GoPolymarket/arena/internal/service"
	"github.com/gin-gonic/gin"
)

type AgentHandler struct {
	svc *service.VaultService
}

func NewAgentHandler(svc *service.VaultService) *AgentHandler {
	return &AgentHandler{svc: svc}
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type tradeRequest struct {
	Pnl               int64  `json:"pnl"`
	SkillUsed         string `json:"skill_used" binding:"max=64"`
	ExternalReference string `json:"external_reference" binding:"max=128"`
}

func (h *AgentHandler) Register(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	var req ledger.RegisterParams
	if !bindJSON(c, &req) {
		return
	}
	agent, err := h.svc.Register(c.Request.Context(), identity, req)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "agent", agent.ID.String())
	c.JSON(http.StatusCreated, toAgentView(agent))
}

func (h *AgentHandler) List(c *gin.Context) {
	agents, err := h.svc.ListAgents(c.Request.Context(), queryInt(c, "limit", 100), queryInt(c, "offset", 0))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toAgentViews(agents))
}

func (h *AgentHandler) Get(c *gin.Context) {
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	agent, err := h.svc.Agent(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toAgentView(agent))
}

func (h *AgentHandler) InitializeVault(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.svc.InitializeVault(c.Request.Context(), identity, id); err != nil {
		c.Error(err)
		return
	}
	// 地址上可能已有余额, 以实际持有为准
	vault, balance, err := h.svc.Vault(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, vaultView{Vault: vault, Balance: balance, BalanceSOL: service.FormatSOL(balance)})
}

func (h *AgentHandler) GetVault(c *gin.Context) {
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	vault, balance, err := h.svc.Vault(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, vaultView{Vault: vault, Balance: balance, BalanceSOL: service.FormatSOL(balance)})
}

func (h *AgentHandler) Deposit(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	var req amountRequest
	if !bindJSON(c, &req) {
		return
	}
	middleware.AddAuditContext(c, "amount", req.Amount)
	res, err := h.svc.Deposit(c.Request.Context(), identity, id, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, depositView{
		Agent:           toAgentView(res.Agent),
		Position:        toPositionView(res.Position),
		VaultBalance:    res.VaultBalance,
		VaultBalanceSOL: service.FormatSOL(res.VaultBalance),
	})
}

func (h *AgentHandler) Withdraw(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	var req amountRequest
	if !bindJSON(c, &req) {
		return
	}
	middleware.AddAuditContext(c, "amount", req.Amount)
	res, err := h.svc.Withdraw(c.Request.Context(), identity, id, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "share", res.Share)
	c.JSON(http.StatusOK, withdrawView{
		Share:           res.Share,
		ShareSOL:        service.FormatSOL(res.Share),
		Agent:           toAgentView(res.Agent),
		Position:        toPositionView(res.Position),
		VaultBalance:    res.VaultBalance,
		VaultBalanceSOL: service.FormatSOL(res.VaultBalance),
	})
}

func (h *AgentHandler) RecordTrade(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	var req tradeRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.svc.RecordTrade(c.Request.Context(), identity, id, req.Pnl, req.SkillUsed, req.ExternalReference)
	if err != nil {
		c.Error(err)
		return
	}
	flags := out.RiskFlags
	if flags == nil {
		flags = []string{}
	}
	middleware.AddAuditContext(c, "trade_number", out.Event.TradeNumber)
	c.JSON(http.StatusCreated, tradeView{
		Event:      out.Event,
		Agent:      toAgentView(out.Agent),
		PriorValue: out.PriorValue,
		RiskFlags:  flags,
	})
}

func (h *AgentHandler) ListTrades(c *gin.Context) {
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	trades, err := h.svc.ListTrades(c.Request.Context(), id, queryInt(c, "limit", 100))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *AgentHandler) Halt(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	agent, err := h.svc.Halt(c.Request.Context(), identity, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toAgentView(agent))
}

func (h *AgentHandler) Position(c *gin.Context) {
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	investor, ok := addressParam(c, "investor")
	if !ok {
		return
	}
	pos, err := h.svc.Position(c.Request.Context(), id, investor)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toPositionView(pos))
}

func (h *AgentHandler) ListPositions(c *gin.Context) {
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	positions, err := h.svc.ListPositions(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	out := make([]positionView, 0, len(positions))
	for _, p := range positions {
		out = append(out, toPositionView(p))
	}
	c.JSON(http.StatusOK, out)
}

// Quote previews a withdrawal: GET /v1/agents/:id/quote?amount=N
func (h *AgentHandler) Quote(c *gin.Context) {
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	amount, err := strconv.ParseUint(c.Query("amount"), 10, 64)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("amount must be an unsigned integer"))
		return
	}
	share, err := h.svc.Quote(c.Request.Context(), id, amount)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"amount":    amount,
		"share":     share,
		"share_sol": service.FormatSOL(share),
	})
}

func (h *AgentHandler) Stats(c *gin.Context) {
	id, ok := addressParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AgentHandler) Leaderboard(c *gin.Context) {
	entries, err := h.svc.Leaderboard(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
