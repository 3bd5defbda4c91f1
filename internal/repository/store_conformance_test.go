package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/ledger"
	"github.com/GoPolymarket/arena/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(label string) address.Address {
	var a address.Address
	copy(a[:], label)
	return a
}

// Postgres keeps microseconds
var baseTime = time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC)

func sampleAgent(label string, created time.Time) *model.Agent {
	return &model.Agent{
		ID:              addr(label),
		Bump:            254,
		Authority:       addr("authority"),
		Name:            label,
		Strategy:        "mean-reversion",
		Skills:          []string{"momentum", "hedge"},
		RiskTolerance:   5,
		MaxDrawdownBps:  2000,
		MaxTradeSizeBps: 1000,
		CreatorFeeBps:   500,
		TotalDeposited:  math.MaxUint64 - 1,
		CurrentValue:    math.MaxUint64,
		TotalPnl:        math.MinInt64,
		TradeCount:      math.MaxUint64,
		InvestorCount:   math.MaxUint32,
		IsActive:        true,
		CreatedAt:       created,
	}
}

// runStoreConformance exercises the ledger.Store contract shared by every backend.
func runStoreConformance(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	ctx := context.Background()

	t.Run("missing records", func(t *testing.T) {
		s := newStore(t)
		err := s.View(ctx, func(tx ledger.Tx) error {
			_, err := tx.Agent(ctx, addr("nobody"))
			assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
			_, err = tx.Vault(ctx, addr("nobody"))
			assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
			_, err = tx.Position(ctx, addr("nobody"))
			assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
			b, err := tx.Balance(ctx, addr("nobody"))
			assert.NoError(t, err)
			assert.Zero(t, b)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("round trip at the integer limits", func(t *testing.T) {
		s := newStore(t)
		agent := sampleAgent("alpha", baseTime)
		vault := &model.Vault{ID: addr("vault"), Bump: 253, Agent: agent.ID, CreatedAt: baseTime}
		pos := &model.Position{ID: addr("pos"), Bump: 252, Agent: agent.ID, Investor: addr("investor"), Deposited: math.MaxUint64, LastDepositAt: baseTime}

		err := s.Atomic(ctx, []address.Address{agent.ID, vault.ID, pos.ID}, func(tx ledger.Tx) error {
			require.NoError(t, tx.PutAgent(ctx, agent))
			require.NoError(t, tx.PutVault(ctx, vault))
			require.NoError(t, tx.PutPosition(ctx, pos))
			return tx.SetBalance(ctx, vault.ID, math.MaxUint64)
		})
		require.NoError(t, err)

		err = s.View(ctx, func(tx ledger.Tx) error {
			gotAgent, err := tx.Agent(ctx, agent.ID)
			require.NoError(t, err)
			assert.Equal(t, agent, gotAgent)
			gotVault, err := tx.Vault(ctx, vault.ID)
			require.NoError(t, err)
			assert.Equal(t, vault, gotVault)
			gotPos, err := tx.Position(ctx, pos.ID)
			require.NoError(t, err)
			assert.Equal(t, pos, gotPos)
			b, err := tx.Balance(ctx, vault.ID)
			require.NoError(t, err)
			assert.Equal(t, uint64(math.MaxUint64), b)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("updates keep configuration", func(t *testing.T) {
		s := newStore(t)
		agent := sampleAgent("alpha", baseTime)
		agent.TotalDeposited, agent.CurrentValue = 0, 0
		require.NoError(t, s.Atomic(ctx, []address.Address{agent.ID}, func(tx ledger.Tx) error {
			return tx.PutAgent(ctx, agent)
		}))

		require.NoError(t, s.Atomic(ctx, []address.Address{agent.ID}, func(tx ledger.Tx) error {
			a, err := tx.Agent(ctx, agent.ID)
			if err != nil {
				return err
			}
			a.CurrentValue = 42
			a.IsActive = false
			return tx.PutAgent(ctx, a)
		}))

		require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
			a, err := tx.Agent(ctx, agent.ID)
			require.NoError(t, err)
			assert.Equal(t, uint64(42), a.CurrentValue)
			assert.False(t, a.IsActive)
			assert.Equal(t, "mean-reversion", a.Strategy)
			return nil
		}))
	})

	t.Run("failed unit of work leaves no trace", func(t *testing.T) {
		s := newStore(t)
		boom := errors.New("boom")
		agent := sampleAgent("alpha", baseTime)
		err := s.Atomic(ctx, []address.Address{agent.ID}, func(tx ledger.Tx) error {
			require.NoError(t, tx.PutAgent(ctx, agent))
			require.NoError(t, tx.SetBalance(ctx, agent.ID, 10))
			require.NoError(t, tx.AppendTrade(ctx, &model.TradeRecorded{Agent: agent.ID, TradeNumber: 1, Timestamp: baseTime}))

			// reads inside the unit see staged writes
			b, err := tx.Balance(ctx, agent.ID)
			require.NoError(t, err)
			assert.Equal(t, uint64(10), b)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
			_, err := tx.Agent(ctx, agent.ID)
			assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
			b, err := tx.Balance(ctx, agent.ID)
			require.NoError(t, err)
			assert.Zero(t, b)
			return nil
		}))
		trades, err := s.ListTrades(ctx, agent.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, trades)
	})

	t.Run("view rejects writes", func(t *testing.T) {
		s := newStore(t)
		err := s.View(ctx, func(tx ledger.Tx) error {
			return tx.SetBalance(ctx, addr("x"), 1)
		})
		assert.Error(t, err)
	})

	t.Run("listings", func(t *testing.T) {
		s := newStore(t)
		older := sampleAgent("older", baseTime)
		newer := sampleAgent("newer", baseTime.Add(time.Minute))
		agentID := older.ID

		require.NoError(t, s.Atomic(ctx, []address.Address{older.ID, newer.ID}, func(tx ledger.Tx) error {
			require.NoError(t, tx.PutAgent(ctx, older))
			require.NoError(t, tx.PutAgent(ctx, newer))
			for _, inv := range []string{"inv-b", "inv-a", "inv-c"} {
				require.NoError(t, tx.PutPosition(ctx, &model.Position{
					ID: addr("pos-" + inv), Agent: agentID, Investor: addr(inv), Deposited: 1, LastDepositAt: baseTime,
				}))
			}
			for i := 1; i <= 5; i++ {
				require.NoError(t, tx.AppendTrade(ctx, &model.TradeRecorded{
					Agent: agentID, Pnl: int64(i), TradeNumber: uint64(i), Timestamp: baseTime,
				}))
			}
			return nil
		}))

		agents, err := s.ListAgents(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, agents, 2)
		assert.Equal(t, newer.ID, agents[0].ID, "newest first")

		page, err := s.ListAgents(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, older.ID, page[0].ID)

		positions, err := s.ListPositions(ctx, agentID)
		require.NoError(t, err)
		require.Len(t, positions, 3)
		assert.Equal(t, addr("inv-a"), positions[0].Investor)
		assert.Equal(t, addr("inv-c"), positions[2].Investor)

		trades, err := s.ListTrades(ctx, agentID, 3)
		require.NoError(t, err)
		require.Len(t, trades, 3)
		assert.Equal(t, uint64(5), trades[0].TradeNumber)
		assert.Equal(t, uint64(3), trades[2].TradeNumber)
	})

	t.Run("serializes overlapping units", func(t *testing.T) {
		s := newStore(t)
		counter := addr("counter")
		const workers, rounds = 8, 10

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				other := addr(fmt.Sprintf("other-%d", w))
				for i := 0; i < rounds; i++ {
					err := s.Atomic(ctx, []address.Address{other, counter}, func(tx ledger.Tx) error {
						b, err := tx.Balance(ctx, counter)
						if err != nil {
							return err
						}
						return tx.SetBalance(ctx, counter, b+1)
					})
					assert.NoError(t, err)
				}
			}(w)
		}
		wg.Wait()

		require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
			b, err := tx.Balance(ctx, counter)
			require.NoError(t, err)
			assert.Equal(t, uint64(workers*rounds), b)
			return nil
		}))
	})
}
