// Package settle runs settlement operations as atomic units of work.
package settle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/ledger"
	"github.com/mselser95/exchange-settlement/internal/state"
	"github.com/mselser95/exchange-settlement/internal/tokens"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// Env is the static configuration shared by every unit of work.
type Env struct {
	Domain                orders.Domain
	Exchange              common.Address
	WrappedNative         common.Address
	ProtocolFeeCollector  common.Address
	ProtocolFeeMultiplier *big.Int
	Validator             *signature.Validator
	TransferHook          tokens.Hook
	Logger                *zap.Logger
}

// ProtocolFee returns the native-currency fee owed for one qualifying fill.
func (e *Env) ProtocolFee(gasPrice *big.Int) *big.Int {
	if gasPrice == nil || e.ProtocolFeeMultiplier == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(gasPrice, e.ProtocolFeeMultiplier)
}

// Call describes who invoked an operation and with what.
type Call struct {
	// Sender is the immediate caller.
	Sender common.Address
	// Origin is the account that initiated the transaction. Zero means Sender.
	Origin   common.Address
	Value    *big.Int
	GasPrice *big.Int
	Now      uint64
}

// TxOrigin returns the initiating account.
func (c Call) TxOrigin() common.Address {
	if c.Origin == (common.Address{}) {
		return c.Sender
	}
	return c.Origin
}

// Frame is one atomic unit of work. It is not safe for concurrent writes.
type Frame struct {
	Env    *Env
	Call   Call
	Tx     *state.Tx
	Ledger *ledger.Ledger
	Bank   *tokens.Bank

	emitted      []events.Payload
	ethAvailable *big.Int
}

// Checkpoint marks a point a Frame can be reverted to.
type Checkpoint struct {
	snapshot     int
	emitted      int
	ethAvailable *big.Int
}

// NewFrame opens a frame over tx. Attached value is not moved; see Runner.
func NewFrame(env *Env, call Call, tx *state.Tx) *Frame {
	return &Frame{
		Env:    env,
		Call:   call,
		Tx:     tx,
		Ledger: ledger.New(tx),
		Bank: tokens.NewBank(tx, tokens.Config{
			Operator:      env.Exchange,
			WrappedNative: env.WrappedNative,
			Hook:          env.TransferHook,
		}),
		ethAvailable: new(big.Int),
	}
}

// Emit buffers an event. Buffered events are discarded with reverted checkpoints.
func (f *Frame) Emit(p events.Payload) {
	f.emitted = append(f.emitted, p)
}

// Emitted returns the events buffered so far.
func (f *Frame) Emitted() []events.Payload {
	out := make([]events.Payload, len(f.emitted))
	copy(out, f.emitted)
	return out
}

// Checkpoint captures the state, event buffer and native budget.
func (f *Frame) Checkpoint() Checkpoint {
	return Checkpoint{
		snapshot:     f.Tx.Snapshot(),
		emitted:      len(f.emitted),
		ethAvailable: new(big.Int).Set(f.ethAvailable),
	}
}

// Revert discards everything done after cp.
func (f *Frame) Revert(cp Checkpoint) {
	f.Tx.RevertTo(cp.snapshot)
	f.emitted = f.emitted[:cp.emitted]
	f.ethAvailable = cp.ethAvailable
}

// Try runs fn and reverts its effects if it fails.
func (f *Frame) Try(fn func() error) error {
	cp := f.Checkpoint()
	if err := fn(); err != nil {
		f.Revert(cp)
		return err
	}
	return nil
}

// EthAvailable returns the native currency the exchange still holds for this call.
func (f *Frame) EthAvailable() *big.Int {
	return new(big.Int).Set(f.ethAvailable)
}

// DepositEth moves the caller's attached value to the exchange and makes it spendable.
func (f *Frame) DepositEth(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := f.Bank.Transfer(orders.NativeToken, from, f.Env.Exchange, amount); err != nil {
		return err
	}
	f.ethAvailable.Add(f.ethAvailable, amount)
	return nil
}

// SpendEth reserves amount of the native budget.
func (f *Frame) SpendEth(amount *big.Int) error {
	if amount.Cmp(f.ethAvailable) > 0 {
		return &types.OverspentEthError{
			EthSpent:     new(big.Int).Set(amount),
			EthAvailable: new(big.Int).Set(f.ethAvailable),
		}
	}
	f.ethAvailable.Sub(f.ethAvailable, amount)
	return nil
}

// PayEth sends native currency from the exchange budget to to.
func (f *Frame) PayEth(to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := f.SpendEth(amount); err != nil {
		return err
	}
	return f.Bank.Transfer(orders.NativeToken, f.Env.Exchange, to, amount)
}

// WrapEth converts amount of the native budget into wrapped tokens held by the exchange.
func (f *Frame) WrapEth(amount *big.Int) error {
	if err := f.SpendEth(amount); err != nil {
		return err
	}
	return f.Bank.Wrap(f.Env.Exchange, amount)
}

// UnwrapEth converts wrapped tokens held by the exchange into native budget.
func (f *Frame) UnwrapEth(amount *big.Int) error {
	if err := f.Bank.Unwrap(f.Env.Exchange, amount); err != nil {
		return err
	}
	f.ethAvailable.Add(f.ethAvailable, amount)
	return nil
}

// Pay moves a token from payer to recipient. Native currency paid by the
// exchange draws on the budget; everything else goes through TransferFrom.
func (f *Frame) Pay(token, payer, recipient common.Address, amount *big.Int) error {
	if token == orders.NativeToken && payer == f.Env.Exchange {
		return f.PayEth(recipient, amount)
	}
	return f.Bank.TransferFrom(token, payer, recipient, amount)
}

// RefundEth returns the unspent native budget to the immediate caller.
func (f *Frame) RefundEth() error {
	return f.PayEth(f.Call.Sender, f.EthAvailable())
}
