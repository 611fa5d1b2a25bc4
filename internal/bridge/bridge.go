// Package bridge routes swaps through external liquidity sources.
package bridge

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// Adapter swaps sellAmount of sellToken taken from payer and delivers
// buyToken to recipient. Adapters are black boxes: they may fail, and they
// may deliver more or less than any quote.
type Adapter interface {
	Swap(f *settle.Frame, t Trade) error
}

// Trade is one swap through a liquidity source.
type Trade struct {
	Source     common.Address
	SellToken  common.Address
	BuyToken   common.Address
	SellAmount *big.Int
	Payer      common.Address
	Recipient  common.Address
	Data       []byte
}

// Registry holds the adapters reachable by source address.
type Registry struct {
	mu       sync.RWMutex
	adapters map[common.Address]Adapter
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		adapters: make(map[common.Address]Adapter),
		logger:   logger,
	}
}

// Register makes an adapter reachable as source.
func (r *Registry) Register(source common.Address, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[source] = a
}

// Sources returns the registered source addresses.
func (r *Registry) Sources() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.adapters))
	for s := range r.adapters {
		out = append(out, s)
	}
	return out
}

func (r *Registry) adapter(source common.Address) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[source]
	return a, ok
}

// Execute runs t and returns what the recipient actually received, measured
// by its balance of the buy token before and after the swap.
func (r *Registry) Execute(f *settle.Frame, t Trade) (*big.Int, error) {
	a, ok := r.adapter(t.Source)
	if !ok {
		return nil, types.ErrInvalidSubcall.WithMessage("unknown bridge source %s", t.Source.Hex())
	}
	if t.SellAmount == nil || t.SellAmount.Sign() < 0 {
		return nil, types.ErrInvalidOrder.WithMessage("bridge sell amount must be non-negative")
	}
	if t.SellAmount.Sign() == 0 {
		return new(big.Int), nil
	}

	before, err := f.Bank.BalanceOf(t.BuyToken, t.Recipient)
	if err != nil {
		return nil, err
	}
	if err := a.Swap(f, t); err != nil {
		TradesTotal.WithLabelValues(t.Source.Hex(), "failed").Inc()
		return nil, err
	}
	after, err := f.Bank.BalanceOf(t.BuyToken, t.Recipient)
	if err != nil {
		return nil, err
	}

	bought := new(big.Int).Sub(after, before)
	if bought.Sign() < 0 {
		bought.SetInt64(0)
	}

	f.Emit(events.BridgeFill{
		Source:       t.Source,
		InputToken:   t.SellToken,
		OutputToken:  t.BuyToken,
		InputAmount:  new(big.Int).Set(t.SellAmount),
		OutputAmount: new(big.Int).Set(bought),
	})
	TradesTotal.WithLabelValues(t.Source.Hex(), "ok").Inc()

	r.logger.Debug("bridge-fill",
		zap.String("source", t.Source.Hex()),
		zap.Stringer("sold", t.SellAmount),
		zap.Stringer("bought", bought))

	return bought, nil
}
