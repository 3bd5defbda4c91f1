package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/ledger"
	"github.com/GoPolymarket/arena/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresLedgerStore persists the ledger in Postgres. Each Atomic call is one transaction that
// first takes transaction-scoped advisory locks on its keys, so records that do not exist yet are
// serialized too.
type PostgresLedgerStore struct {
	db *gorm.DB
}

func NewPostgresLedgerStore(db *gorm.DB) (*PostgresLedgerStore, error) {
	store := &PostgresLedgerStore{db: db}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

// DB Model: u64 quantities use numeric(20,0) since bigint is signed
type agentRow struct {
	ID              string `gorm:"primaryKey;size:44"`
	Bump            uint8
	Authority       string `gorm:"size:44;not null;uniqueIndex:idx_agents_authority_name"`
	Name            string `gorm:"size:32;not null;uniqueIndex:idx_agents_authority_name"`
	Strategy        string `gorm:"size:64"`
	Skills          []byte `gorm:"type:jsonb"`
	RiskTolerance   uint8
	MaxDrawdownBps  uint16
	MaxTradeSizeBps uint16
	CreatorFeeBps   uint16
	TotalDeposited  uint64 `gorm:"type:numeric(20,0);not null"`
	CurrentValue    uint64 `gorm:"type:numeric(20,0);not null"`
	TotalPnl        int64  `gorm:"not null"`
	TradeCount      uint64 `gorm:"type:numeric(20,0);not null"`
	InvestorCount   uint32 `gorm:"not null"`
	IsActive        bool   `gorm:"not null"`
	CreatedAt       time.Time
}

func (agentRow) TableName() string { return "agents" }

type positionRow struct {
	ID            string `gorm:"primaryKey;size:44"`
	Bump          uint8
	Agent         string `gorm:"size:44;not null;index"`
	Investor      string `gorm:"size:44;not null"`
	Deposited     uint64 `gorm:"type:numeric(20,0);not null"`
	LastDepositAt time.Time
}

func (positionRow) TableName() string { return "positions" }

type vaultRow struct {
	ID        string `gorm:"primaryKey;size:44"`
	Bump      uint8
	Agent     string `gorm:"size:44;not null;uniqueIndex"`
	CreatedAt time.Time
}

func (vaultRow) TableName() string { return "vaults" }

type balanceRow struct {
	Address string `gorm:"primaryKey;size:44"`
	Amount  uint64 `gorm:"type:numeric(20,0);not null"`
}

func (balanceRow) TableName() string { return "balances" }

type tradeRow struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	Agent             string `gorm:"size:44;not null;index:idx_trades_agent,priority:1"`
	Pnl               int64  `gorm:"not null"`
	SkillUsed         string
	ExternalReference string
	TradeNumber       uint64 `gorm:"type:numeric(20,0);not null"`
	Timestamp         time.Time
}

func (tradeRow) TableName() string { return "trades" }

func (s *PostgresLedgerStore) ensureSchema() error {
	return s.db.AutoMigrate(&agentRow{}, &positionRow{}, &vaultRow{}, &balanceRow{}, &tradeRow{})
}

func (s *PostgresLedgerStore) Atomic(ctx context.Context, keys []address.Address, fn func(tx ledger.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range dedupe(keys) {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(key)).Error; err != nil {
				return err
			}
		}
		return fn(&pgTx{db: tx})
	})
}

func (s *PostgresLedgerStore) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return fn(&pgTx{db: s.db.WithContext(ctx), readOnly: true})
}

func (s *PostgresLedgerStore) ListAgents(ctx context.Context, limit, offset int) ([]*model.Agent, error) {
	limit, offset = normalizePage(limit, offset)
	var rows []agentRow
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id ASC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.Agent, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *PostgresLedgerStore) ListPositions(ctx context.Context, agent address.Address) ([]*model.Position, error) {
	var rows []positionRow
	if err := s.db.WithContext(ctx).Where("agent = ?", agent.String()).Order("investor ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Position, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *PostgresLedgerStore) ListTrades(ctx context.Context, agent address.Address, limit int) ([]*model.TradeRecorded, error) {
	limit, _ = normalizePage(limit, 0)
	var rows []tradeRow
	err := s.db.WithContext(ctx).
		Where("agent = ?", agent.String()).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.TradeRecorded, 0, len(rows))
	for i := range rows {
		out = append(out, &model.TradeRecorded{
			Agent:             agent,
			Pnl:               rows[i].Pnl,
			SkillUsed:         rows[i].SkillUsed,
			ExternalReference: rows[i].ExternalReference,
			TradeNumber:       rows[i].TradeNumber,
			Timestamp:         rows[i].Timestamp.UTC(),
		})
	}
	return out, nil
}

type pgTx struct {
	db       *gorm.DB
	readOnly bool
}

func (t *pgTx) Agent(_ context.Context, id address.Address) (*model.Agent, error) {
	var row agentRow
	if err := t.db.Where("id = ?", id.String()).Take(&row).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return row.toDomain()
}

func (t *pgTx) PutAgent(_ context.Context, a *model.Agent) error {
	if t.readOnly {
		return errReadOnly
	}
	skills, err := json.Marshal(a.Skills)
	if err != nil {
		return err
	}
	row := agentRow{
		ID:              a.ID.String(),
		Bump:            a.Bump,
		Authority:       a.Authority.String(),
		Name:            a.Name,
		Strategy:        a.Strategy,
		Skills:          skills,
		RiskTolerance:   a.RiskTolerance,
		MaxDrawdownBps:  a.MaxDrawdownBps,
		MaxTradeSizeBps: a.MaxTradeSizeBps,
		CreatorFeeBps:   a.CreatorFeeBps,
		TotalDeposited:  a.TotalDeposited,
		CurrentValue:    a.CurrentValue,
		TotalPnl:        a.TotalPnl,
		TradeCount:      a.TradeCount,
		InvestorCount:   a.InvestorCount,
		IsActive:        a.IsActive,
		CreatedAt:       a.CreatedAt,
	}
	// config columns are immutable after insert
	return t.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_deposited", "current_value", "total_pnl", "trade_count", "investor_count", "is_active",
		}),
	}).Create(&row).Error
}

func (t *pgTx) Vault(_ context.Context, id address.Address) (*model.Vault, error) {
	var row vaultRow
	if err := t.db.Where("id = ?", id.String()).Take(&row).Error; err != nil {
		return nil, mapNotFound(err)
	}
	agent, err := address.Parse(row.Agent)
	if err != nil {
		return nil, err
	}
	return &model.Vault{ID: id, Bump: row.Bump, Agent: agent, CreatedAt: row.CreatedAt.UTC()}, nil
}

func (t *pgTx) PutVault(_ context.Context, v *model.Vault) error {
	if t.readOnly {
		return errReadOnly
	}
	row := vaultRow{ID: v.ID.String(), Bump: v.Bump, Agent: v.Agent.String(), CreatedAt: v.CreatedAt}
	return t.db.Create(&row).Error
}

func (t *pgTx) Position(_ context.Context, id address.Address) (*model.Position, error) {
	var row positionRow
	if err := t.db.Where("id = ?", id.String()).Take(&row).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return row.toDomain()
}

func (t *pgTx) PutPosition(_ context.Context, p *model.Position) error {
	if t.readOnly {
		return errReadOnly
	}
	row := positionRow{
		ID:            p.ID.String(),
		Bump:          p.Bump,
		Agent:         p.Agent.String(),
		Investor:      p.Investor.String(),
		Deposited:     p.Deposited,
		LastDepositAt: p.LastDepositAt,
	}
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"deposited", "last_deposit_at"}),
	}).Create(&row).Error
}

func (t *pgTx) Balance(_ context.Context, addr address.Address) (uint64, error) {
	var row balanceRow
	err := t.db.Where("address = ?", addr.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Amount, nil
}

func (t *pgTx) SetBalance(_ context.Context, addr address.Address, amount uint64) error {
	if t.readOnly {
		return errReadOnly
	}
	row := balanceRow{Address: addr.String(), Amount: amount}
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount"}),
	}).Create(&row).Error
}

func (t *pgTx) AppendTrade(_ context.Context, ev *model.TradeRecorded) error {
	if t.readOnly {
		return errReadOnly
	}
	row := tradeRow{
		Agent:             ev.Agent.String(),
		Pnl:               ev.Pnl,
		SkillUsed:         ev.SkillUsed,
		ExternalReference: ev.ExternalReference,
		TradeNumber:       ev.TradeNumber,
		Timestamp:         ev.Timestamp,
	}
	return t.db.Create(&row).Error
}

func (r *agentRow) toDomain() (*model.Agent, error) {
	id, err := address.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	authority, err := address.Parse(r.Authority)
	if err != nil {
		return nil, err
	}
	a := &model.Agent{
		ID:              id,
		Bump:            r.Bump,
		Authority:       authority,
		Name:            r.Name,
		Strategy:        r.Strategy,
		Skills:          []string{},
		RiskTolerance:   r.RiskTolerance,
		MaxDrawdownBps:  r.MaxDrawdownBps,
		MaxTradeSizeBps: r.MaxTradeSizeBps,
		CreatorFeeBps:   r.CreatorFeeBps,
		TotalDeposited:  r.TotalDeposited,
		CurrentValue:    r.CurrentValue,
		TotalPnl:        r.TotalPnl,
		TradeCount:      r.TradeCount,
		InvestorCount:   r.InvestorCount,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if len(r.Skills) > 0 {
		if err := json.Unmarshal(r.Skills, &a.Skills); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (r *positionRow) toDomain() (*model.Position, error) {
	id, err := address.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	agent, err := address.Parse(r.Agent)
	if err != nil {
		return nil, err
	}
	investor, err := address.Parse(r.Investor)
	if err != nil {
		return nil, err
	}
	return &model.Position{
		ID:            id,
		Bump:          r.Bump,
		Agent:         agent,
		Investor:      investor,
		Deposited:     r.Deposited,
		LastDepositAt: r.LastDepositAt.UTC(),
	}, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.ErrRecordNotFound
	}
	return err
}

// advisoryKey folds an address into the signed 64-bit advisory lock space.
func advisoryKey(a address.Address) int64 {
	return int64(binary.BigEndian.Uint64(a[:8]))
}
