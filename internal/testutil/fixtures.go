// Package testutil provides an in-memory settlement environment for tests.
package testutil

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/internal/state"
	"github.com/mselser95/exchange-settlement/internal/tokens"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
)

// Well-known accounts of the test chain.
//
//nolint:gochecknoglobals // test fixtures
var (
	Exchange  = common.HexToAddress("0xE000000000000000000000000000000000000000")
	WETH      = common.HexToAddress("0xC000000000000000000000000000000000000000")
	Collector = common.HexToAddress("0xF000000000000000000000000000000000000000")
	TokenA    = common.HexToAddress("0xA000000000000000000000000000000000000000")
	TokenB    = common.HexToAddress("0xB000000000000000000000000000000000000000")
	TokenC    = common.HexToAddress("0xD000000000000000000000000000000000000000")
	Taker     = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

// Now is the clock every fixture call runs at.
const Now = 100

// Chain bundles a memory store, a runner and an event recorder.
type Chain struct {
	T      *testing.T
	Store  *state.MemoryStore
	Env    *settle.Env
	Runner *settle.Runner
	Sink   *events.Recorder
}

// NewChain creates an empty chain. The protocol fee multiplier is 1000.
func NewChain(t *testing.T) *Chain {
	t.Helper()

	env := &settle.Env{
		Domain:                orders.NewDomain(1, Exchange),
		Exchange:              Exchange,
		WrappedNative:         WETH,
		ProtocolFeeCollector:  Collector,
		ProtocolFeeMultiplier: big.NewInt(1000),
		Validator:             signature.NewValidator(&signature.ValidatorConfig{}),
		Logger:                zap.NewNop(),
	}
	store := state.NewMemoryStore()
	sink := &events.Recorder{}

	c := &Chain{
		T:     t,
		Store: store,
		Env:   env,
		Runner: settle.NewRunner(&settle.RunnerConfig{
			Env:    env,
			Store:  store,
			Sink:   sink,
			Logger: zap.NewNop(),
		}),
		Sink: sink,
	}
	c.Seed(func(b *tokens.Bank) {
		require.NoError(t, b.Mint(orders.NativeToken, WETH, big.NewInt(10_000_000)))
	})
	return c
}

// Seed commits whatever fn mints or approves.
func (c *Chain) Seed(fn func(b *tokens.Bank)) {
	c.T.Helper()
	tx := state.Begin(context.Background(), c.Store)
	fn(tokens.NewBank(tx, tokens.Config{Operator: Exchange, WrappedNative: WETH}))
	require.NoError(c.T, tx.Commit())
}

// Fund mints amount of every token to owner and approves the exchange for
// all of it. Native currency is minted but needs no approval.
func (c *Chain) Fund(owner common.Address, amount int64, toks ...common.Address) {
	c.T.Helper()
	c.Seed(func(b *tokens.Bank) {
		for _, tok := range toks {
			require.NoError(c.T, b.Mint(tok, owner, big.NewInt(amount)))
			if tok != orders.NativeToken {
				require.NoError(c.T, b.Approve(tok, owner, Exchange, orders.MaxUint256()))
			}
		}
	})
}

// Balance returns owner's committed balance of token.
func (c *Chain) Balance(token, owner common.Address) int64 {
	c.T.Helper()
	tx := state.Begin(context.Background(), c.Store)
	v, err := tokens.NewBank(tx, tokens.Config{Operator: Exchange, WrappedNative: WETH}).BalanceOf(token, owner)
	require.NoError(c.T, err)
	return v.Int64()
}

// Exec runs fn as one unit of work.
func (c *Chain) Exec(call settle.Call, fn func(f *settle.Frame) error) error {
	_, err := c.Runner.Execute(context.Background(), "test", call, fn)
	return err
}

// View runs fn against committed state without committing.
func (c *Chain) View(fn func(f *settle.Frame) error) {
	c.T.Helper()
	require.NoError(c.T, c.Runner.View(context.Background(), settle.Call{Now: Now}, fn))
}

// TakerCall is a call by Taker at Now.
func TakerCall() settle.Call {
	return settle.Call{Sender: Taker, Now: Now}
}

// Account is a key pair able to sign orders.
type Account struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// NewAccount generates a fresh account.
func NewAccount(t *testing.T) Account {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return Account{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Sign returns an EIP-712 signature over hash.
func (a Account) Sign(t *testing.T, hash common.Hash) signature.Signature {
	t.Helper()
	sig, err := signature.SignEIP712(hash, a.Key)
	require.NoError(t, err)
	return sig
}

// RfqOrder returns an order by maker selling makerAmount of makerToken for
// takerAmount of takerToken, fillable by Taker until 1000.
func RfqOrder(maker common.Address, makerToken, takerToken common.Address, makerAmount, takerAmount int64) *orders.RfqOrder {
	return &orders.RfqOrder{
		MakerToken:  makerToken,
		TakerToken:  takerToken,
		MakerAmount: big.NewInt(makerAmount),
		TakerAmount: big.NewInt(takerAmount),
		Maker:       maker,
		TxOrigin:    Taker,
		Expiry:      1000,
		Salt:        big.NewInt(1),
	}
}

// OtcOrder is the OTC counterpart of RfqOrder.
func OtcOrder(maker common.Address, makerToken, takerToken common.Address, makerAmount, takerAmount int64) *orders.OtcOrder {
	return &orders.OtcOrder{
		MakerToken:  makerToken,
		TakerToken:  takerToken,
		MakerAmount: big.NewInt(makerAmount),
		TakerAmount: big.NewInt(takerAmount),
		Maker:       maker,
		TxOrigin:    Taker,
		Expiry:      1000,
		NonceBucket: 1,
		Nonce:       big.NewInt(1),
	}
}

// LimitOrder returns an open limit order without a taker fee.
func LimitOrder(maker common.Address, makerToken, takerToken common.Address, makerAmount, takerAmount int64) *orders.LimitOrder {
	return &orders.LimitOrder{
		MakerToken:          makerToken,
		TakerToken:          takerToken,
		MakerAmount:         big.NewInt(makerAmount),
		TakerAmount:         big.NewInt(takerAmount),
		TakerTokenFeeAmount: new(big.Int),
		Maker:               maker,
		Expiry:              1000,
		Salt:                big.NewInt(1),
	}
}
