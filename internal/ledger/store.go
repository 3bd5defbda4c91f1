package ledger

import (
	"context"
	"errors"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/model"
)

// ErrRecordNotFound is returned by Tx getters when no record lives at the address.
var ErrRecordNotFound = errors.New("record not found")

// Tx is the view of persisted records inside one atomic unit of work.
// Writes made through a Tx become visible to others only when the enclosing Atomic call returns nil.
type Tx interface {
	Agent(ctx context.Context, id address.Address) (*model.Agent, error)
	PutAgent(ctx context.Context, a *model.Agent) error

	Vault(ctx context.Context, id address.Address) (*model.Vault, error)
	PutVault(ctx context.Context, v *model.Vault) error

	Position(ctx context.Context, id address.Address) (*model.Position, error)
	PutPosition(ctx context.Context, p *model.Position) error

	// Balance returns 0 for addresses that never held value.
	Balance(ctx context.Context, addr address.Address) (uint64, error)
	SetBalance(ctx context.Context, addr address.Address, amount uint64) error

	AppendTrade(ctx context.Context, t *model.TradeRecorded) error
}

// Store persists records at deterministic addresses.
type Store interface {
	// Atomic runs fn serialized against every other Atomic call that names one of keys.
	// Either all writes commit or none do.
	Atomic(ctx context.Context, keys []address.Address, fn func(tx Tx) error) error

	// View runs fn against committed state. Writes through the Tx are rejected.
	View(ctx context.Context, fn func(tx Tx) error) error

	ListAgents(ctx context.Context, limit, offset int) ([]*model.Agent, error)
	ListPositions(ctx context.Context, agent address.Address) ([]*model.Position, error)
	ListTrades(ctx context.Context, agent address.Address, limit int) ([]*model.TradeRecorded, error)
}
