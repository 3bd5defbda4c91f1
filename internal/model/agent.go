package model

import (
	"time"

	"github.com/GoPolymarket/arena/internal/address"
)

// Agent 代表一个已注册的交易池 (配置不可变，仅聚合字段与 IsActive 可变)
type Agent struct {
	ID        address.Address `json:"id"`
	Bump      uint8           `json:"bump"`
	Authority address.Address `json:"authority"`

	Name            string   `json:"name"`
	Strategy        string   `json:"strategy"`
	Skills          []string `json:"skills"`
	RiskTolerance   uint8    `json:"risk_tolerance"`
	MaxDrawdownBps  uint16   `json:"max_drawdown_bps"`
	MaxTradeSizeBps uint16   `json:"max_trade_size_bps"`
	CreatorFeeBps   uint16   `json:"creator_fee_bps"`

	TotalDeposited uint64 `json:"total_deposited"` // 未偿本金之和
	CurrentValue   uint64 `json:"current_value"`   // 按市值计的池子总值, 下限为 0
	TotalPnl       int64  `json:"total_pnl"`
	TradeCount     uint64 `json:"trade_count"`
	InvestorCount  uint32 `json:"investor_count"`
	IsActive       bool   `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy so stores never share the skills slice.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Skills = append([]string{}, a.Skills...)
	return &cp
}

// Position 投资者在某个 Agent 上的未偿本金
type Position struct {
	ID            address.Address `json:"id"`
	Bump          uint8           `json:"bump"`
	Agent         address.Address `json:"agent"`
	Investor      address.Address `json:"investor"`
	Deposited     uint64          `json:"deposited"`
	LastDepositAt time.Time       `json:"last_deposit_at"`
}

func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// Vault 与 Agent 一一绑定的托管账户; 余额存放在 balances 中, 以 Vault.ID 为地址
type Vault struct {
	ID        address.Address `json:"id"`
	Bump      uint8           `json:"bump"`
	Agent     address.Address `json:"agent"`
	CreatedAt time.Time       `json:"created_at"`
}

func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
