package service

import (
	"github.com/GoPolymarket/arena/internal/model"
	"github.com/GoPolymarket/arena/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Risk flags raised against an agent's self-declared limits.
const (
	RiskTradeSize = "max_trade_size"
	RiskDrawdown  = "max_drawdown"
)

var bpsScale = decimal.NewFromInt(10000)

// RiskMonitor evaluates a committed trade against the limits the agent declared at registration.
// It is advisory: the ledger never rejects a trade result, since the trade already happened
// elsewhere. Breaches are counted and surfaced to the caller.
type RiskMonitor struct{}

func NewRiskMonitor() *RiskMonitor {
	return &RiskMonitor{}
}

// Evaluate compares the trade against the agent after it was applied; priorValue is current_value
// before the pnl.
func (m *RiskMonitor) Evaluate(after *model.Agent, priorValue uint64, pnl int64) []string {
	var flags []string

	// 1. 单笔规模: |pnl| 相对于交易前的资产
	if after.MaxTradeSizeBps > 0 && priorValue > 0 {
		limit := fromUint64(priorValue).
			Mul(decimal.NewFromInt(int64(after.MaxTradeSizeBps))).
			Div(bpsScale)
		size := decimal.NewFromInt(pnl).Abs()
		if size.GreaterThan(limit) {
			flags = append(flags, RiskTradeSize)
		}
	}

	// 2. 回撤: 当前资产低于本金的比例
	if after.MaxDrawdownBps < 10000 && after.TotalDeposited > 0 && after.CurrentValue < after.TotalDeposited {
		loss := fromUint64(after.TotalDeposited - after.CurrentValue)
		drawdownBps := loss.Mul(bpsScale).Div(fromUint64(after.TotalDeposited))
		if drawdownBps.GreaterThan(decimal.NewFromInt(int64(after.MaxDrawdownBps))) {
			flags = append(flags, RiskDrawdown)
		}
	}

	for _, f := range flags {
		metrics.RiskBreaches.WithLabelValues(f).Inc()
	}
	return flags
}
