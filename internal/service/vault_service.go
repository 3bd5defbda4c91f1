package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/ledger"
	"github.com/GoPolymarket/arena/internal/model"
	"github.com/GoPolymarket/arena/internal/pkg/apperrors"
	"github.com/GoPolymarket/arena/internal/pkg/logger"
	"github.com/GoPolymarket/arena/internal/pkg/metrics"
	"github.com/GoPolymarket/arena/internal/pkg/tracing"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// VaultService is the application boundary over the ledger engine: every committed operation is
// logged, counted and traced, and recorded trades are handed to the notifier.
type VaultService struct {
	engine   *ledger.Engine
	notifier TradeNotifier
	risk     *RiskMonitor
}

func NewVaultService(engine *ledger.Engine, notifier TradeNotifier) *VaultService {
	return &VaultService{engine: engine, notifier: notifier, risk: NewRiskMonitor()}
}

func (s *VaultService) Engine() *ledger.Engine {
	return s.engine
}

func (s *VaultService) Register(ctx context.Context, caller address.Address, p ledger.RegisterParams) (*model.Agent, error) {
	ctx, span := tracing.Start(ctx, "vault.register",
		attribute.String("caller", caller.String()),
		attribute.String("name", p.Name))
	defer span.End()

	agent, err := s.engine.Register(ctx, caller, p)
	s.observe(span, "register", err)
	if err != nil {
		return nil, err
	}
	logger.Info("agent registered", "agent", agent.ID.String(), "authority", caller.String(), "name", agent.Name)
	return agent, nil
}

func (s *VaultService) InitializeVault(ctx context.Context, caller, agentID address.Address) (*model.Vault, error) {
	ctx, span := tracing.Start(ctx, "vault.initialize",
		attribute.String("caller", caller.String()),
		attribute.String("agent", agentID.String()))
	defer span.End()

	vault, err := s.engine.InitializeVault(ctx, caller, agentID)
	s.observe(span, "initialize_vault", err)
	if err != nil {
		return nil, err
	}
	if _, held, err := s.engine.VaultOf(ctx, agentID); err == nil {
		s.recordVaultBalance(agentID, held)
	}
	logger.Info("vault initialized", "agent", agentID.String(), "vault", vault.ID.String(), "reserve", s.engine.MinReserve())
	return vault, nil
}

func (s *VaultService) Deposit(ctx context.Context, investor, agentID address.Address, amount uint64) (*ledger.DepositResult, error) {
	ctx, span := tracing.Start(ctx, "vault.deposit",
		attribute.String("investor", investor.String()),
		attribute.String("agent", agentID.String()),
		attribute.String("amount", strconv.FormatUint(amount, 10)))
	defer span.End()

	res, err := s.engine.Deposit(ctx, investor, agentID, amount)
	s.observe(span, "deposit", err)
	if err != nil {
		return nil, err
	}
	s.recordVaultBalance(agentID, res.VaultBalance)
	logger.Info("deposit committed",
		"agent", agentID.String(),
		"investor", investor.String(),
		"amount", amount,
		"total_deposited", res.Agent.TotalDeposited,
		"current_value", res.Agent.CurrentValue,
	)
	return res, nil
}

func (s *VaultService) Withdraw(ctx context.Context, investor, agentID address.Address, amount uint64) (*ledger.WithdrawResult, error) {
	ctx, span := tracing.Start(ctx, "vault.withdraw",
		attribute.String("investor", investor.String()),
		attribute.String("agent", agentID.String()),
		attribute.String("amount", strconv.FormatUint(amount, 10)))
	defer span.End()

	res, err := s.engine.Withdraw(ctx, investor, agentID, amount)
	s.observe(span, "withdraw", err)
	if err != nil {
		return nil, err
	}
	s.recordVaultBalance(agentID, res.VaultBalance)
	logger.Info("withdrawal committed",
		"agent", agentID.String(),
		"investor", investor.String(),
		"amount", amount,
		"share", res.Share,
		"vault_balance", res.VaultBalance,
	)
	return res, nil
}

// TradeOutcome is a committed trade plus any advisory risk flags it raised.
type TradeOutcome struct {
	*ledger.TradeResult
	RiskFlags []string `json:"risk_flags"`
}

func (s *VaultService) RecordTrade(ctx context.Context, caller, agentID address.Address, pnl int64, skillUsed, externalRef string) (*TradeOutcome, error) {
	ctx, span := tracing.Start(ctx, "vault.record_trade",
		attribute.String("caller", caller.String()),
		attribute.String("agent", agentID.String()),
		attribute.Int64("pnl", pnl))
	defer span.End()

	res, err := s.engine.RecordTrade(ctx, caller, agentID, pnl, skillUsed, externalRef)
	s.observe(span, "record_trade", err)
	if err != nil {
		return nil, err
	}
	metrics.TradesTotal.Inc()

	flags := s.risk.Evaluate(res.Agent, res.PriorValue, pnl)
	if len(flags) > 0 {
		logger.Warn("trade exceeded declared limits", "agent", agentID.String(), "trade_number", res.Event.TradeNumber, "flags", flags)
	}
	logger.Info("trade recorded",
		"agent", agentID.String(),
		"trade_number", res.Event.TradeNumber,
		"pnl", pnl,
		"skill", skillUsed,
		"current_value", res.Agent.CurrentValue,
	)

	// 账本已提交; 通知失败只记录日志
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, res.Event); err != nil {
			logger.Warn("trade notification failed", "agent", agentID.String(), "trade_number", res.Event.TradeNumber, "error", err)
		}
	}
	if flags == nil {
		flags = []string{}
	}
	return &TradeOutcome{TradeResult: res, RiskFlags: flags}, nil
}

func (s *VaultService) Halt(ctx context.Context, caller, agentID address.Address) (*model.Agent, error) {
	ctx, span := tracing.Start(ctx, "vault.halt",
		attribute.String("caller", caller.String()),
		attribute.String("agent", agentID.String()))
	defer span.End()

	agent, err := s.engine.Halt(ctx, caller, agentID)
	s.observe(span, "halt", err)
	if err != nil {
		return nil, err
	}
	logger.Info("agent halted", "agent", agentID.String())
	return agent, nil
}

func (s *VaultService) Fund(ctx context.Context, addr address.Address, amount uint64) (uint64, error) {
	ctx, span := tracing.Start(ctx, "vault.fund",
		attribute.String("address", addr.String()),
		attribute.String("amount", strconv.FormatUint(amount, 10)))
	defer span.End()

	balance, err := s.engine.Fund(ctx, addr, amount)
	s.observe(span, "fund", err)
	if err != nil {
		return 0, err
	}
	logger.Info("address funded", "address", addr.String(), "amount", amount, "balance", balance)
	return balance, nil
}

func (s *VaultService) Quote(ctx context.Context, agentID address.Address, amount uint64) (uint64, error) {
	return s.engine.Quote(ctx, agentID, amount)
}

func (s *VaultService) Agent(ctx context.Context, id address.Address) (*model.Agent, error) {
	return s.engine.Agent(ctx, id)
}

func (s *VaultService) Position(ctx context.Context, agentID, investor address.Address) (*model.Position, error) {
	return s.engine.Position(ctx, agentID, investor)
}

func (s *VaultService) Vault(ctx context.Context, agentID address.Address) (*model.Vault, uint64, error) {
	return s.engine.VaultOf(ctx, agentID)
}

func (s *VaultService) Balance(ctx context.Context, addr address.Address) (uint64, error) {
	return s.engine.Balance(ctx, addr)
}

func (s *VaultService) ListAgents(ctx context.Context, limit, offset int) ([]*model.Agent, error) {
	return s.engine.ListAgents(ctx, limit, offset)
}

func (s *VaultService) ListPositions(ctx context.Context, agentID address.Address) ([]*model.Position, error) {
	if _, err := s.engine.Agent(ctx, agentID); err != nil {
		return nil, err
	}
	return s.engine.ListPositions(ctx, agentID)
}

func (s *VaultService) ListTrades(ctx context.Context, agentID address.Address, limit int) ([]*model.TradeRecorded, error) {
	if _, err := s.engine.Agent(ctx, agentID); err != nil {
		return nil, err
	}
	return s.engine.ListTrades(ctx, agentID, limit)
}

// AgentStats summarizes an agent's recent trade history.
type AgentStats struct {
	Agent         address.Address `json:"agent"`
	TotalPnl      int64           `json:"total_pnl"`
	PnlPercent    decimal.Decimal `json:"pnl_percent"`
	WinRate       decimal.Decimal `json:"win_rate"`
	SampledTrades int             `json:"sampled_trades"`
	LastTradeAt   *time.Time      `json:"last_trade_at,omitempty"`
}

// statsWindow bounds how many trades feed the win rate.
const statsWindow = 500

func (s *VaultService) Stats(ctx context.Context, agentID address.Address) (*AgentStats, error) {
	agent, err := s.engine.Agent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	trades, err := s.engine.ListTrades(ctx, agentID, statsWindow)
	if err != nil {
		return nil, err
	}
	stats := &AgentStats{
		Agent:         agentID,
		TotalPnl:      agent.TotalPnl,
		PnlPercent:    PnlPercent(agent.TotalPnl, agent.TotalDeposited),
		WinRate:       decimal.Zero,
		SampledTrades: len(trades),
	}
	if len(trades) == 0 {
		return stats, nil
	}
	wins := 0
	for _, t := range trades {
		if t.Pnl > 0 {
			wins++
		}
	}
	stats.WinRate = decimal.NewFromInt(int64(wins)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(len(trades)))).
		Round(2)
	last := trades[0].Timestamp
	stats.LastTradeAt = &last
	return stats, nil
}

// LeaderboardEntry is one ranked agent.
type LeaderboardEntry struct {
	Rank  int          `json:"rank"`
	Agent *model.Agent `json:"agent"`
	// pnl relative to outstanding principal, percent
	PnlPercent decimal.Decimal `json:"pnl_percent"`
}

// leaderboardScan caps how many agents are ranked per call.
const leaderboardScan = 5000

// Leaderboard ranks agents by cumulative pnl, highest first; ties keep the listing order.
func (s *VaultService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const page = 500
	agents := make([]*model.Agent, 0, page)
	for offset := 0; offset < leaderboardScan; offset += page {
		batch, err := s.engine.ListAgents(ctx, page, offset)
		if err != nil {
			return nil, err
		}
		agents = append(agents, batch...)
		if len(batch) < page {
			break
		}
	}

	sort.SliceStable(agents, func(i, j int) bool {
		return agents[i].TotalPnl > agents[j].TotalPnl
	})
	if len(agents) > limit {
		agents = agents[:limit]
	}

	entries := make([]LeaderboardEntry, 0, len(agents))
	for i, a := range agents {
		entries = append(entries, LeaderboardEntry{
			Rank:       i + 1,
			Agent:      a,
			PnlPercent: PnlPercent(a.TotalPnl, a.TotalDeposited),
		})
	}
	return entries, nil
}

func (s *VaultService) observe(span trace.Span, op string, err error) {
	if err == nil {
		metrics.OperationsTotal.WithLabelValues(op, "ok").Inc()
		span.SetStatus(codes.Ok, "")
		return
	}
	kind := apperrors.TypeOf(err)
	if kind == "" {
		kind = apperrors.ErrInternal
	}
	metrics.OperationsTotal.WithLabelValues(op, "error").Inc()
	metrics.Rejections.WithLabelValues(string(kind)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	if kind == apperrors.ErrInternal {
		logger.Error("ledger operation failed", "op", op, "error", err)
	}
}

func (s *VaultService) recordVaultBalance(agentID address.Address, balance uint64) {
	metrics.VaultBalance.WithLabelValues(agentID.String()).Set(float64(balance))
}
