package ledger

import (
	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/model"
	"github.com/GoPolymarket/arena/internal/pkg/apperrors"
)

const (
	MaxNameLen       = 32
	MaxStrategyLen   = 64
	MaxSkills        = 8
	MaxSkillLen      = 16
	MaxRiskTolerance = 10
	MaxDrawdownBps   = 10000
	MaxTradeSizeBps  = 5000
	MaxCreatorFeeBps = 3000
)

// RegisterParams is the immutable configuration supplied at registration.
type RegisterParams struct {
	Name            string   `json:"name"`
	Strategy        string   `json:"strategy"`
	Skills          []string `json:"skills"`
	RiskTolerance   uint8    `json:"risk_tolerance"`
	MaxDrawdownBps  uint16   `json:"max_drawdown_bps"`
	MaxTradeSizeBps uint16   `json:"max_trade_size_bps"`
	CreatorFeeBps   uint16   `json:"creator_fee_bps"`
}

// ValidateRegistration checks the parameters in a fixed order and returns the first violation.
// Lengths are measured in bytes.
func ValidateRegistration(p RegisterParams) error {
	if len(p.Name) > MaxNameLen {
		return apperrors.Newf(apperrors.ErrInputTooLong, "agent name must be %d bytes or less", MaxNameLen)
	}
	if len(p.Strategy) > MaxStrategyLen {
		return apperrors.Newf(apperrors.ErrInputTooLong, "strategy must be %d bytes or less", MaxStrategyLen)
	}
	if len(p.Skills) > MaxSkills {
		return apperrors.Newf(apperrors.ErrTooManyItems, "maximum %d skills allowed", MaxSkills)
	}
	for _, skill := range p.Skills {
		if len(skill) > MaxSkillLen {
			return apperrors.Newf(apperrors.ErrInputTooLong, "skill %q exceeds %d bytes", skill, MaxSkillLen)
		}
	}
	if p.RiskTolerance > MaxRiskTolerance {
		return apperrors.Newf(apperrors.ErrInvalidRiskTolerance, "risk tolerance must be between 0 and %d", MaxRiskTolerance)
	}
	if p.MaxDrawdownBps > MaxDrawdownBps {
		return apperrors.Newf(apperrors.ErrInvalidBasisPoints, "max_drawdown_bps must be at most %d", MaxDrawdownBps)
	}
	if p.MaxTradeSizeBps > MaxTradeSizeBps {
		return apperrors.Newf(apperrors.ErrInvalidBasisPoints, "max_trade_size_bps must be at most %d", MaxTradeSizeBps)
	}
	if p.CreatorFeeBps > MaxCreatorFeeBps {
		return apperrors.Newf(apperrors.ErrFeeTooHigh, "creator fee cannot exceed %d bps", MaxCreatorFeeBps)
	}
	return nil
}

// Authorize is the single-owner guard for privileged operations.
func Authorize(caller address.Address, agent *model.Agent) error {
	if agent == nil || caller != agent.Authority {
		return apperrors.New(apperrors.ErrUnauthorized, "caller is not the agent authority", nil)
	}
	return nil
}
