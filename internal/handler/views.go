package handler

import (
	"github.com/GoPolymarket/arena/internal/model"
	"github.com/GoPolymarket/arena/internal/service"
	"github.com/shopspring/decimal"
)

// 响应同时携带 lamports 整数和 SOL 字符串

type agentView struct {
	*model.Agent
	TotalDepositedSOL string          `json:"total_deposited_sol"`
	CurrentValueSOL   string          `json:"current_value_sol"`
	TotalPnlSOL       string          `json:"total_pnl_sol"`
	PnlPercent        decimal.Decimal `json:"pnl_percent"`
}

func toAgentView(a *model.Agent) agentView {
	return agentView{
		Agent:             a,
		TotalDepositedSOL: service.FormatSOL(a.TotalDeposited),
		CurrentValueSOL:   service.FormatSOL(a.CurrentValue),
		TotalPnlSOL:       service.FormatSignedSOL(a.TotalPnl),
		PnlPercent:        service.PnlPercent(a.TotalPnl, a.TotalDeposited),
	}
}

func toAgentViews(agents []*model.Agent) []agentView {
	out := make([]agentView, 0, len(agents))
	for _, a := range agents {
		out = append(out, toAgentView(a))
	}
	return out
}

type positionView struct {
	*model.Position
	DepositedSOL string `json:"deposited_sol"`
}

func toPositionView(p *model.Position) positionView {
	return positionView{Position: p, DepositedSOL: service.FormatSOL(p.Deposited)}
}

type vaultView struct {
	*model.Vault
	Balance    uint64 `json:"balance"`
	BalanceSOL string `json:"balance_sol"`
}

type depositView struct {
	Agent           agentView    `json:"agent"`
	Position        positionView `json:"position"`
	VaultBalance    uint64       `json:"vault_balance"`
	VaultBalanceSOL string       `json:"vault_balance_sol"`
}

type withdrawView struct {
	Share           uint64       `json:"share"`
	ShareSOL        string       `json:"share_sol"`
	Agent           agentView    `json:"agent"`
	Position        positionView `json:"position"`
	VaultBalance    uint64       `json:"vault_balance"`
	VaultBalanceSOL string       `json:"vault_balance_sol"`
}

type tradeView struct {
	Event      *model.TradeRecorded `json:"event"`
	Agent      agentView            `json:"agent"`
	PriorValue uint64               `json:"prior_value"`
	RiskFlags  []string             `json:"risk_flags"`
}

type balanceView struct {
	Address    string `json:"address"`
	Balance    uint64 `json:"balance"`
	BalanceSOL string `json:"balance_sol"`
}
