package service

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the fixed-point scale of every ledger quantity.
const LamportsPerSOL = 1_000_000_000

var solScale = decimal.NewFromInt(LamportsPerSOL)

// ToSOL renders lamports as SOL with full precision.
func ToSOL(lamports uint64) decimal.Decimal {
	return fromUint64(lamports).Div(solScale)
}

// SignedToSOL renders a signed lamport amount (pnl) as SOL.
func SignedToSOL(lamports int64) decimal.Decimal {
	return decimal.NewFromInt(lamports).Div(solScale)
}

// FormatSOL is the display string used in API responses, e.g. "1.5".
func FormatSOL(lamports uint64) string {
	return ToSOL(lamports).String()
}

func FormatSignedSOL(lamports int64) string {
	return SignedToSOL(lamports).String()
}

// PnlPercent is total_pnl relative to total_deposited in percent, two decimals. Zero when nothing is
// deposited.
func PnlPercent(totalPnl int64, totalDeposited uint64) decimal.Decimal {
	if totalDeposited == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(totalPnl).
		Mul(decimal.NewFromInt(100)).
		Div(fromUint64(totalDeposited)).
		Round(2)
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
