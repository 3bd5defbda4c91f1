package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/model"
	"github.com/GoPolymarket/arena/internal/pkg/apperrors"
)

const (
	// VaultSpace is the serialized size of a vault record: discriminator, agent key, bump.
	VaultSpace = 8 + 32 + 1

	lamportsPerByteYear    = 3480
	exemptionYears         = 2
	accountStorageOverhead = 128
)

// MinimumBalance is the rent-exempt floor for a record of the given size.
func MinimumBalance(space uint64) uint64 {
	return (accountStorageOverhead + space) * lamportsPerByteYear * exemptionYears
}

// DefaultMinReserve is the floor the vault must keep after every withdrawal.
var DefaultMinReserve = MinimumBalance(VaultSpace)

// Engine applies the vault operations against a Store.
type Engine struct {
	store   Store
	derive  *address.Deriver
	reserve uint64
	now     func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithMinReserve(reserve uint64) Option {
	return func(e *Engine) {
		e.reserve = reserve
	}
}

func NewEngine(store Store, deriver *address.Deriver, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		derive:  deriver,
		reserve: DefaultMinReserve,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) MinReserve() uint64 {
	return e.reserve
}

func (e *Engine) Deriver() *address.Deriver {
	return e.derive
}

// DepositResult is the committed state after a deposit.
type DepositResult struct {
	Agent        *model.Agent    `json:"agent"`
	Position     *model.Position `json:"position"`
	VaultBalance uint64          `json:"vault_balance"`
}

// WithdrawResult is the committed state after a withdrawal, with the value paid out.
type WithdrawResult struct {
	Share        uint64          `json:"share"`
	Agent        *model.Agent    `json:"agent"`
	Position     *model.Position `json:"position"`
	VaultBalance uint64          `json:"vault_balance"`
}

// Register creates an agent owned by caller.
func (e *Engine) Register(ctx context.Context, caller address.Address, p RegisterParams) (*model.Agent, error) {
	if err := ValidateRegistration(p); err != nil {
		return nil, err
	}
	id, bump, err := e.derive.Agent(caller, p.Name)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "cannot derive agent address", err)
	}

	agent := &model.Agent{
		ID:              id,
		Bump:            bump,
		Authority:       caller,
		Name:            p.Name,
		Strategy:        p.Strategy,
		Skills:          append([]string{}, p.Skills...),
		RiskTolerance:   p.RiskTolerance,
		MaxDrawdownBps:  p.MaxDrawdownBps,
		MaxTradeSizeBps: p.MaxTradeSizeBps,
		CreatorFeeBps:   p.CreatorFeeBps,
		IsActive:        true,
		CreatedAt:       e.now(),
	}

	err = e.store.Atomic(ctx, []address.Address{id}, func(tx Tx) error {
		_, err := tx.Agent(ctx, id)
		switch {
		case err == nil:
			return apperrors.Newf(apperrors.ErrAlreadyExists, "agent %q already registered by this authority", p.Name)
		case !errors.Is(err, ErrRecordNotFound):
			return err
		}
		return tx.PutAgent(ctx, agent)
	})
	if err != nil {
		return nil, err
	}
	return agent.Clone(), nil
}

// InitializeVault binds the escrow to the agent and funds it with the minimum reserve from the
// authority.
func (e *Engine) InitializeVault(ctx context.Context, caller, agentID address.Address) (*model.Vault, error) {
	vaultID, bump, err := e.derive.Vault(agentID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "cannot derive vault address", err)
	}

	vault := &model.Vault{ID: vaultID, Bump: bump, Agent: agentID, CreatedAt: e.now()}
	err = e.store.Atomic(ctx, []address.Address{agentID, vaultID, caller}, func(tx Tx) error {
		agent, err := loadAgent(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if err := Authorize(caller, agent); err != nil {
			return err
		}
		if _, err := tx.Vault(ctx, vaultID); err == nil {
			return apperrors.New(apperrors.ErrAlreadyExists, "vault already initialized", nil)
		} else if !errors.Is(err, ErrRecordNotFound) {
			return err
		}

		payer, err := tx.Balance(ctx, caller)
		if err != nil {
			return err
		}
		if payer < e.reserve {
			return apperrors.Newf(apperrors.ErrInsufficientFunds, "authority must fund the %d lamport vault reserve", e.reserve)
		}
		held, err := tx.Balance(ctx, vaultID)
		if err != nil {
			return err
		}
		funded, ok := checkedAdd(held, e.reserve)
		if !ok {
			return overflow("vault balance")
		}

		if err := tx.PutVault(ctx, vault); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, caller, payer-e.reserve); err != nil {
			return err
		}
		return tx.SetBalance(ctx, vaultID, funded)
	})
	if err != nil {
		return nil, err
	}
	return vault.Clone(), nil
}

// Deposit moves amount from the investor into the vault and grows the position and aggregates.
func (e *Engine) Deposit(ctx context.Context, investor, agentID address.Address, amount uint64) (*DepositResult, error) {
	if amount == 0 {
		return nil, zeroAmount()
	}
	vaultID, posID, posBump, err := e.deriveVaultAndPosition(agentID, investor)
	if err != nil {
		return nil, err
	}

	var result DepositResult
	err = e.store.Atomic(ctx, []address.Address{agentID, vaultID, posID, investor}, func(tx Tx) error {
		agent, err := loadAgent(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if !agent.IsActive {
			return apperrors.New(apperrors.ErrAgentInactive, "agent is not currently active", nil)
		}
		if _, err := loadVault(ctx, tx, vaultID); err != nil {
			return err
		}
		pos, err := tx.Position(ctx, posID)
		if errors.Is(err, ErrRecordNotFound) {
			pos = &model.Position{ID: posID, Bump: posBump, Agent: agentID, Investor: investor}
		} else if err != nil {
			return err
		}

		isNewInvestor := pos.Deposited == 0
		deposited, ok := checkedAdd(pos.Deposited, amount)
		if !ok {
			return overflow("position deposited")
		}
		total, ok := checkedAdd(agent.TotalDeposited, amount)
		if !ok {
			return overflow("total deposited")
		}
		value, ok := checkedAdd(agent.CurrentValue, amount)
		if !ok {
			return overflow("current value")
		}
		investors := agent.InvestorCount
		if isNewInvestor {
			if investors, ok = checkedAdd32(investors, 1); !ok {
				return overflow("investor count")
			}
		}

		wallet, err := tx.Balance(ctx, investor)
		if err != nil {
			return err
		}
		if wallet < amount {
			return apperrors.New(apperrors.ErrInsufficientFunds, "investor balance is below the deposit amount", nil)
		}
		held, err := tx.Balance(ctx, vaultID)
		if err != nil {
			return err
		}
		vaultBalance, ok := checkedAdd(held, amount)
		if !ok {
			return overflow("vault balance")
		}

		pos.Deposited = deposited
		pos.LastDepositAt = e.now()
		agent.TotalDeposited = total
		agent.CurrentValue = value
		agent.InvestorCount = investors

		if err := tx.SetBalance(ctx, investor, wallet-amount); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, vaultID, vaultBalance); err != nil {
			return err
		}
		if err := tx.PutPosition(ctx, pos); err != nil {
			return err
		}
		if err := tx.PutAgent(ctx, agent); err != nil {
			return err
		}
		result = DepositResult{Agent: agent.Clone(), Position: pos.Clone(), VaultBalance: vaultBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Withdraw redeems amount of principal for its proportional share of the current value.
func (e *Engine) Withdraw(ctx context.Context, investor, agentID address.Address, amount uint64) (*WithdrawResult, error) {
	if amount == 0 {
		return nil, zeroAmount()
	}
	vaultID, posID, _, err := e.deriveVaultAndPosition(agentID, investor)
	if err != nil {
		return nil, err
	}

	var result WithdrawResult
	err = e.store.Atomic(ctx, []address.Address{agentID, vaultID, posID, investor}, func(tx Tx) error {
		agent, err := loadAgent(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if _, err := loadVault(ctx, tx, vaultID); err != nil {
			return err
		}
		pos, err := tx.Position(ctx, posID)
		if errors.Is(err, ErrRecordNotFound) {
			return insufficient("no position for this investor")
		} else if err != nil {
			return err
		}
		if pos.Deposited < amount {
			return insufficient("withdrawal exceeds deposited principal")
		}
		if agent.TotalDeposited == 0 || agent.TotalDeposited < amount {
			return insufficient("agent has no outstanding deposits to redeem against")
		}

		share, err := ComputeShare(amount, agent.CurrentValue, agent.TotalDeposited)
		if err != nil {
			return err
		}

		held, err := tx.Balance(ctx, vaultID)
		if err != nil {
			return err
		}
		if held < share || held-share < e.reserve {
			return insufficient("withdrawal would breach the vault reserve")
		}
		wallet, err := tx.Balance(ctx, investor)
		if err != nil {
			return err
		}
		credited, ok := checkedAdd(wallet, share)
		if !ok {
			return overflow("investor balance")
		}

		pos.Deposited -= amount
		agent.TotalDeposited -= amount
		agent.CurrentValue = saturatingSub(agent.CurrentValue, share)
		if pos.Deposited == 0 {
			agent.InvestorCount = saturatingSub32(agent.InvestorCount, 1)
		}

		if err := tx.SetBalance(ctx, vaultID, held-share); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, investor, credited); err != nil {
			return err
		}
		if err := tx.PutPosition(ctx, pos); err != nil {
			return err
		}
		if err := tx.PutAgent(ctx, agent); err != nil {
			return err
		}
		result = WithdrawResult{Share: share, Agent: agent.Clone(), Position: pos.Clone(), VaultBalance: held - share}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// TradeResult is the committed state after a trade result was applied.
type TradeResult struct {
	Event *model.TradeRecorded `json:"event"`
	Agent *model.Agent         `json:"agent"`
	// current_value before the pnl was applied
	PriorValue uint64 `json:"prior_value"`
}

// RecordTrade folds pnl into the agent's aggregate and returns the notification to publish.
// Per-investor value is never touched here; it is derived at withdrawal.
func (e *Engine) RecordTrade(ctx context.Context, caller, agentID address.Address, pnl int64, skillUsed, externalRef string) (*TradeResult, error) {
	var result TradeResult
	err := e.store.Atomic(ctx, []address.Address{agentID}, func(tx Tx) error {
		agent, err := loadAgent(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if err := Authorize(caller, agent); err != nil {
			return err
		}
		count, ok := checkedAdd(agent.TradeCount, 1)
		if !ok {
			return overflow("trade count")
		}

		prior := agent.CurrentValue
		agent.TradeCount = count
		agent.TotalPnl = saturatingAddInt64(agent.TotalPnl, pnl)
		agent.CurrentValue = ApplyPnl(agent.CurrentValue, pnl)

		ev := &model.TradeRecorded{
			Agent:             agentID,
			Pnl:               pnl,
			SkillUsed:         skillUsed,
			ExternalReference: externalRef,
			TradeNumber:       count,
			Timestamp:         e.now(),
		}
		if err := tx.PutAgent(ctx, agent); err != nil {
			return err
		}
		if err := tx.AppendTrade(ctx, ev); err != nil {
			return err
		}
		result = TradeResult{Event: ev, Agent: agent.Clone(), PriorValue: prior}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Halt deactivates the agent permanently. Halting twice is a no-op.
func (e *Engine) Halt(ctx context.Context, caller, agentID address.Address) (*model.Agent, error) {
	var updated *model.Agent
	err := e.store.Atomic(ctx, []address.Address{agentID}, func(tx Tx) error {
		agent, err := loadAgent(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if err := Authorize(caller, agent); err != nil {
			return err
		}
		agent.IsActive = false
		if err := tx.PutAgent(ctx, agent); err != nil {
			return err
		}
		updated = agent.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Fund credits external value to an address. This is the host moving value in, e.g. an airdrop or
// profits the agent realised elsewhere being settled into its vault.
func (e *Engine) Fund(ctx context.Context, addr address.Address, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, zeroAmount()
	}
	var balance uint64
	err := e.store.Atomic(ctx, []address.Address{addr}, func(tx Tx) error {
		held, err := tx.Balance(ctx, addr)
		if err != nil {
			return err
		}
		next, ok := checkedAdd(held, amount)
		if !ok {
			return overflow("balance")
		}
		balance = next
		return tx.SetBalance(ctx, addr, next)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Quote previews the share a withdrawal of amount would pay right now.
func (e *Engine) Quote(ctx context.Context, agentID address.Address, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, zeroAmount()
	}
	var share uint64
	err := e.store.View(ctx, func(tx Tx) error {
		agent, err := loadAgent(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if agent.TotalDeposited < amount {
			return insufficient("amount exceeds outstanding deposits")
		}
		share, err = ComputeShare(amount, agent.CurrentValue, agent.TotalDeposited)
		return err
	})
	return share, err
}

func (e *Engine) Agent(ctx context.Context, id address.Address) (*model.Agent, error) {
	var agent *model.Agent
	err := e.store.View(ctx, func(tx Tx) error {
		var err error
		agent, err = loadAgent(ctx, tx, id)
		return err
	})
	return agent, err
}

// Position returns the investor's position, or a zero position when none was ever opened.
func (e *Engine) Position(ctx context.Context, agentID, investor address.Address) (*model.Position, error) {
	posID, bump, err := e.derive.Position(agentID, investor)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "cannot derive position address", err)
	}
	var pos *model.Position
	err = e.store.View(ctx, func(tx Tx) error {
		if _, err := loadAgent(ctx, tx, agentID); err != nil {
			return err
		}
		p, err := tx.Position(ctx, posID)
		if errors.Is(err, ErrRecordNotFound) {
			pos = &model.Position{ID: posID, Bump: bump, Agent: agentID, Investor: investor}
			return nil
		}
		pos = p
		return err
	})
	return pos, err
}

// VaultOf returns the agent's vault and its balance.
func (e *Engine) VaultOf(ctx context.Context, agentID address.Address) (*model.Vault, uint64, error) {
	vaultID, _, err := e.derive.Vault(agentID)
	if err != nil {
		return nil, 0, apperrors.New(apperrors.ErrInvalidRequest, "cannot derive vault address", err)
	}
	var (
		vault   *model.Vault
		balance uint64
	)
	err = e.store.View(ctx, func(tx Tx) error {
		var err error
		if vault, err = loadVault(ctx, tx, vaultID); err != nil {
			return err
		}
		balance, err = tx.Balance(ctx, vaultID)
		return err
	})
	return vault, balance, err
}

func (e *Engine) Balance(ctx context.Context, addr address.Address) (uint64, error) {
	var balance uint64
	err := e.store.View(ctx, func(tx Tx) error {
		var err error
		balance, err = tx.Balance(ctx, addr)
		return err
	})
	return balance, err
}

func (e *Engine) ListAgents(ctx context.Context, limit, offset int) ([]*model.Agent, error) {
	return e.store.ListAgents(ctx, limit, offset)
}

func (e *Engine) ListPositions(ctx context.Context, agentID address.Address) ([]*model.Position, error) {
	return e.store.ListPositions(ctx, agentID)
}

func (e *Engine) ListTrades(ctx context.Context, agentID address.Address, limit int) ([]*model.TradeRecorded, error) {
	return e.store.ListTrades(ctx, agentID, limit)
}

func (e *Engine) deriveVaultAndPosition(agentID, investor address.Address) (address.Address, address.Address, uint8, error) {
	vaultID, _, err := e.derive.Vault(agentID)
	if err != nil {
		return address.Zero, address.Zero, 0, apperrors.New(apperrors.ErrInvalidRequest, "cannot derive vault address", err)
	}
	posID, bump, err := e.derive.Position(agentID, investor)
	if err != nil {
		return address.Zero, address.Zero, 0, apperrors.New(apperrors.ErrInvalidRequest, "cannot derive position address", err)
	}
	return vaultID, posID, bump, nil
}

func loadAgent(ctx context.Context, tx Tx, id address.Address) (*model.Agent, error) {
	agent, err := tx.Agent(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "agent %s not found", id)
	}
	return agent, err
}

func loadVault(ctx context.Context, tx Tx, id address.Address) (*model.Vault, error) {
	vault, err := tx.Vault(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.ErrNotFound, "vault not initialized for agent", nil)
	}
	return vault, err
}

func zeroAmount() error {
	return apperrors.New(apperrors.ErrZeroAmount, "amount must be greater than zero", nil)
}

func insufficient(msg string) error {
	return apperrors.New(apperrors.ErrInsufficientFunds, msg, nil)
}
