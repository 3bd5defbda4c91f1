package repository

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/ledger"
	"github.com/GoPolymarket/arena/internal/model"
)

var errReadOnly = errors.New("write attempted in read-only view")

// MemoryStore keeps every record in process memory. Atomic calls lock their keys for the whole
// unit of work; writes are staged and committed under the data lock only when fn succeeds.
type MemoryStore struct {
	locks *keyedMutex

	mu        sync.RWMutex
	agents    map[address.Address]*model.Agent
	vaults    map[address.Address]*model.Vault
	positions map[address.Address]*model.Position
	balances  map[address.Address]uint64
	trades    map[address.Address][]*model.TradeRecorded
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:     newKeyedMutex(),
		agents:    make(map[address.Address]*model.Agent),
		vaults:    make(map[address.Address]*model.Vault),
		positions: make(map[address.Address]*model.Position),
		balances:  make(map[address.Address]uint64),
		trades:    make(map[address.Address][]*model.TradeRecorded),
	}
}

func (s *MemoryStore) Atomic(ctx context.Context, keys []address.Address, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.LockAll(keys)
	defer unlock()

	tx := newMemTx(s, false)
	if err := fn(tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(newMemTx(s, true))
}

func (s *MemoryStore) ListAgents(_ context.Context, limit, offset int) ([]*model.Agent, error) {
	limit, offset = normalizePage(limit, offset)

	s.mu.RLock()
	all := make([]*model.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		all = append(all, a.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return bytes.Compare(all[i].ID[:], all[j].ID[:]) < 0
	})
	if offset >= len(all) {
		return []*model.Agent{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *MemoryStore) ListPositions(_ context.Context, agent address.Address) ([]*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Position, 0)
	for _, p := range s.positions {
		if p.Agent == agent {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Investor[:], out[j].Investor[:]) < 0
	})
	return out, nil
}

// ListTrades returns the newest trades first.
func (s *MemoryStore) ListTrades(_ context.Context, agent address.Address, limit int) ([]*model.TradeRecorded, error) {
	limit, _ = normalizePage(limit, 0)

	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.trades[agent]
	out := make([]*model.TradeRecorded, 0, min(limit, len(log)))
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		ev := *log[i]
		out = append(out, &ev)
	}
	return out, nil
}

func (s *MemoryStore) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range tx.agents {
		s.agents[id] = a
	}
	for id, v := range tx.vaults {
		s.vaults[id] = v
	}
	for id, p := range tx.positions {
		s.positions[id] = p
	}
	for addr, b := range tx.balances {
		s.balances[addr] = b
	}
	for _, ev := range tx.trades {
		s.trades[ev.Agent] = append(s.trades[ev.Agent], ev)
	}
}

// memTx reads through staged writes to committed state.
type memTx struct {
	store    *MemoryStore
	readOnly bool

	agents    map[address.Address]*model.Agent
	vaults    map[address.Address]*model.Vault
	positions map[address.Address]*model.Position
	balances  map[address.Address]uint64
	trades    []*model.TradeRecorded
}

func newMemTx(s *MemoryStore, readOnly bool) *memTx {
	return &memTx{
		store:     s,
		readOnly:  readOnly,
		agents:    make(map[address.Address]*model.Agent),
		vaults:    make(map[address.Address]*model.Vault),
		positions: make(map[address.Address]*model.Position),
		balances:  make(map[address.Address]uint64),
	}
}

func (t *memTx) Agent(_ context.Context, id address.Address) (*model.Agent, error) {
	if a, ok := t.agents[id]; ok {
		return a.Clone(), nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	a, ok := t.store.agents[id]
	if !ok {
		return nil, ledger.ErrRecordNotFound
	}
	return a.Clone(), nil
}

func (t *memTx) PutAgent(_ context.Context, a *model.Agent) error {
	if t.readOnly {
		return errReadOnly
	}
	t.agents[a.ID] = a.Clone()
	return nil
}

func (t *memTx) Vault(_ context.Context, id address.Address) (*model.Vault, error) {
	if v, ok := t.vaults[id]; ok {
		return v.Clone(), nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	v, ok := t.store.vaults[id]
	if !ok {
		return nil, ledger.ErrRecordNotFound
	}
	return v.Clone(), nil
}

func (t *memTx) PutVault(_ context.Context, v *model.Vault) error {
	if t.readOnly {
		return errReadOnly
	}
	t.vaults[v.ID] = v.Clone()
	return nil
}

func (t *memTx) Position(_ context.Context, id address.Address) (*model.Position, error) {
	if p, ok := t.positions[id]; ok {
		return p.Clone(), nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	p, ok := t.store.positions[id]
	if !ok {
		return nil, ledger.ErrRecordNotFound
	}
	return p.Clone(), nil
}

func (t *memTx) PutPosition(_ context.Context, p *model.Position) error {
	if t.readOnly {
		return errReadOnly
	}
	t.positions[p.ID] = p.Clone()
	return nil
}

func (t *memTx) Balance(_ context.Context, addr address.Address) (uint64, error) {
	if b, ok := t.balances[addr]; ok {
		return b, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.balances[addr], nil
}

func (t *memTx) SetBalance(_ context.Context, addr address.Address, amount uint64) error {
	if t.readOnly {
		return errReadOnly
	}
	t.balances[addr] = amount
	return nil
}

func (t *memTx) AppendTrade(_ context.Context, ev *model.TradeRecorded) error {
	if t.readOnly {
		return errReadOnly
	}
	cp := *ev
	t.trades = append(t.trades, &cp)
	return nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
