package native

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

var (
	exchange     = common.HexToAddress("0xE000000000000000000000000000000000000000")
	weth         = common.HexToAddress("0xC000000000000000000000000000000000000000")
	collector    = common.HexToAddress("0xF000000000000000000000000000000000000000")
	makerToken   = common.HexToAddress("0xA000000000000000000000000000000000000000")
	takerToken   = common.HexToAddress("0xB000000000000000000000000000000000000000")
	taker        = common.HexToAddress("0x2000000000000000000000000000000000000002")
	feeRecipient = common.HexToAddress("0x3000000000000000000000000000000000000003")
	relayer      = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

type harness struct {
	t        *testing.T
	store    *state.MemoryStore
	env      *settle.Env
	runner   *settle.Runner
	engine   *Engine
	sink     *events.Recorder
	makerKey *ecdsa.PrivateKey
	maker    common.Address
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	env := &settle.Env{
		Domain:                orders.NewDomain(1, exchange),
		Exchange:              exchange,
		WrappedNative:         weth,
		ProtocolFeeCollector:  collector,
		ProtocolFeeMultiplier: big.NewInt(1000),
		Validator:             signature.NewValidator(&signature.ValidatorConfig{}),
		Logger:                zap.NewNop(),
	}
	store := state.NewMemoryStore()
	sink := &events.Recorder{}

	h := &harness{
		t:     t,
		store: store,
		env:   env,
		runner: settle.NewRunner(&settle.RunnerConfig{
			Env:    env,
			Store:  store,
			Sink:   sink,
			Logger: zap.NewNop(),
		}),
		engine:   New(zap.NewNop()),
		sink:     sink,
		makerKey: key,
		maker:    crypto.PubkeyToAddress(key.PublicKey),
	}

	h.seed(func(b *tokens.Bank) {
		for _, owner := range []common.Address{h.maker, taker} {
			for _, tok := range []common.Address{makerToken, takerToken, weth} {
				require.NoError(t, b.Mint(tok, owner, big.NewInt(1_000_000)))
				require.NoError(t, b.Approve(tok, owner, exchange, orders.MaxUint256()))
			}
			require.NoError(t, b.Mint(orders.NativeToken, owner, big.NewInt(1_000_000)))
		}
		require.NoError(t, b.Mint(orders.NativeToken, weth, big.NewInt(2_000_000)))
	})
	return h
}

func (h *harness) seed(fn func(b *tokens.Bank)) {
	h.t.Helper()
	tx := state.Begin(context.Background(), h.store)
	fn(tokens.NewBank(tx, tokens.Config{Operator: exchange, WrappedNative: weth}))
	require.NoError(h.t, tx.Commit())
}

func (h *harness) balance(tok, owner common.Address) int64 {
	h.t.Helper()
	tx := state.Begin(context.Background(), h.store)
	v, err := tokens.NewBank(tx, tokens.Config{Operator: exchange}).BalanceOf(tok, owner)
	require.NoError(h.t, err)
	return v.Int64()
}

func (h *harness) exec(call settle.Call, fn func(f *settle.Frame) error) error {
	_, err := h.runner.Execute(context.Background(), "test", call, fn)
	return err
}

func (h *harness) view(fn func(f *settle.Frame) error) {
	h.t.Helper()
	require.NoError(h.t, h.runner.View(context.Background(), settle.Call{Now: 100}, fn))
}

func (h *harness) sign(hash common.Hash) signature.Signature {
	h.t.Helper()
	sig, err := signature.SignEIP712(hash, h.makerKey)
	require.NoError(h.t, err)
	return sig
}

func (h *harness) limitOrder(makerAmount, takerAmount, fee int64) *orders.LimitOrder {
	return &orders.LimitOrder{
		MakerToken:          makerToken,
		TakerToken:          takerToken,
		MakerAmount:         big.NewInt(makerAmount),
		TakerAmount:         big.NewInt(takerAmount),
		TakerTokenFeeAmount: big.NewInt(fee),
		Maker:               h.maker,
		FeeRecipient:        feeRecipient,
		Expiry:              1000,
		Salt:                big.NewInt(1),
	}
}

func (h *harness) rfqOrder(makerAmount, takerAmount int64) *orders.RfqOrder {
	return &orders.RfqOrder{
		MakerToken:  makerToken,
		TakerToken:  takerToken,
		MakerAmount: big.NewInt(makerAmount),
		TakerAmount: big.NewInt(takerAmount),
		Maker:       h.maker,
		TxOrigin:    taker,
		Expiry:      1000,
		Salt:        big.NewInt(1),
	}
}

func (h *harness) otcOrder(bucket uint64, nonce int64) *orders.OtcOrder {
	return &orders.OtcOrder{
		MakerToken:  makerToken,
		TakerToken:  takerToken,
		MakerAmount: big.NewInt(50),
		TakerAmount: big.NewInt(100),
		Maker:       h.maker,
		TxOrigin:    taker,
		Expiry:      1000,
		NonceBucket: bucket,
		Nonce:       big.NewInt(nonce),
	}
}

func takerCall() settle.Call {
	return settle.Call{Sender: taker, Now: 100}
}
