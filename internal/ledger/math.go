package ledger

import (
	"math"
	"math/bits"

	"github.com/holiman/uint256"

	"github.com/GoPolymarket/arena/internal/pkg/apperrors"
)

// ComputeShare converts a principal amount into its value-denominated payout:
// floor(amount * currentValue / totalDeposited). The product is formed in 256 bits and divided
// afterwards, so neither overflow nor early truncation can bias the result.
func ComputeShare(amount, currentValue, totalDeposited uint64) (uint64, error) {
	if totalDeposited == 0 {
		return 0, apperrors.New(apperrors.ErrInsufficientFunds, "agent has no outstanding deposits", nil)
	}
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(currentValue))
	share := product.Div(product, uint256.NewInt(totalDeposited))
	if !share.IsUint64() {
		return 0, overflow("share")
	}
	return share.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

func checkedAdd32(a, b uint32) (uint32, bool) {
	sum := a + b
	return sum, sum >= a
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

func saturatingSub32(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

func saturatingAdd(a, b uint64) uint64 {
	if sum, ok := checkedAdd(a, b); ok {
		return sum
	}
	return math.MaxUint64
}

func saturatingAddInt64(a, b int64) int64 {
	sum := a + b
	switch {
	case a > 0 && b > 0 && sum < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && sum >= 0:
		return math.MinInt64
	}
	return sum
}

// magnitude returns |v| without overflowing on MinInt64.
func magnitude(v int64) uint64 {
	if v >= 0 {
		return uint64(v)
	}
	return uint64(-(v + 1)) + 1
}

// ApplyPnl folds a signed result into an unsigned value floored at zero.
func ApplyPnl(value uint64, pnl int64) uint64 {
	if pnl >= 0 {
		return saturatingAdd(value, uint64(pnl))
	}
	return saturatingSub(value, magnitude(pnl))
}

func overflow(field string) error {
	return apperrors.Newf(apperrors.ErrMathOverflow, "arithmetic overflow on %s", field)
}
