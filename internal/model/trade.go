package model

import (
	"time"

	"github.com/GoPolymarket/arena/internal/address"
)

// TradeRecorded is the append-only notification emitted once per recorded trade.
type TradeRecorded struct {
	Agent             address.Address `json:"agent"`
	Pnl               int64           `json:"pnl"`
	SkillUsed         string          `json:"skill_used"`
	ExternalReference string          `json:"external_reference"`
	TradeNumber       uint64          `json:"trade_number"`
	Timestamp         time.Time       `json:"timestamp"`
}
