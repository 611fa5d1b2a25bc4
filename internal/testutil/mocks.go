package testutil

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/internal/bridge"
	"github.com/mselser95/exchange-settlement/internal/settle"
)

// ErrMockSwapFailed is returned by a failing MockAdapter.
var ErrMockSwapFailed = errors.New("mock swap failed")

// MockAdapter is a bridge adapter that delivers sellAmount*Numerator/Denominator
// of the buy token out of its own inventory at Address.
type MockAdapter struct {
	Address     common.Address
	Numerator   int64
	Denominator int64

	mu         sync.Mutex
	shouldFail bool
	trades     []bridge.Trade
}

// NewMockAdapter creates an adapter at address delivering at num/den.
func NewMockAdapter(address common.Address, num, den int64) *MockAdapter {
	return &MockAdapter{Address: address, Numerator: num, Denominator: den}
}

// Swap implements bridge.Adapter.
func (m *MockAdapter) Swap(f *settle.Frame, t bridge.Trade) error {
	m.mu.Lock()
	m.trades = append(m.trades, t)
	fail := m.shouldFail
	m.mu.Unlock()

	if fail {
		return ErrMockSwapFailed
	}
	if err := f.Bank.TransferFrom(t.SellToken, t.Payer, m.Address, t.SellAmount); err != nil {
		return err
	}
	out := new(big.Int).Mul(t.SellAmount, big.NewInt(m.Numerator))
	out.Quo(out, big.NewInt(m.Denominator))
	return f.Bank.Transfer(t.BuyToken, m.Address, t.Recipient, out)
}

// SetShouldFail makes every following swap fail.
func (m *MockAdapter) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
}

// Trades returns every swap attempted, including failed and retried ones.
func (m *MockAdapter) Trades() []bridge.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bridge.Trade, len(m.trades))
	copy(out, m.trades)
	return out
}
