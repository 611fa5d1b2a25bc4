package nft

import (
	"context"
	"crypto/ecdsa"
	"errors"
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
	erc20        = common.HexToAddress("0xA000000000000000000000000000000000000000")
	erc721Token  = common.HexToAddress("0x7210000000000000000000000000000000000000")
	erc1155Token = common.HexToAddress("0x1155000000000000000000000000000000000000")
	taker        = common.HexToAddress("0x2000000000000000000000000000000000000002")
	feeRecipient = common.HexToAddress("0x3000000000000000000000000000000000000003")
	matcher      = common.HexToAddress("0x4000000000000000000000000000000000000004")
	validatorAt  = common.HexToAddress("0x5000000000000000000000000000000000000005")
)

type harness struct {
	t      *testing.T
	store  *state.MemoryStore
	env    *settle.Env
	runner *settle.Runner
	engine *Engine
	sink   *events.Recorder

	makerKey *ecdsa.PrivateKey
	maker    common.Address
	buyerKey *ecdsa.PrivateKey
	buyer    common.Address
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	makerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	buyerKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	env := &settle.Env{
		Domain:                orders.NewDomain(1, exchange),
		Exchange:              exchange,
		WrappedNative:         weth,
		ProtocolFeeMultiplier: new(big.Int),
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
		engine:   New(&Config{}),
		sink:     sink,
		makerKey: makerKey,
		maker:    crypto.PubkeyToAddress(makerKey.PublicKey),
		buyerKey: buyerKey,
		buyer:    crypto.PubkeyToAddress(buyerKey.PublicKey),
	}

	h.seed(func(b *tokens.Bank) {
		for _, owner := range []common.Address{h.maker, h.buyer, taker} {
			for _, tok := range []common.Address{erc20, weth} {
				require.NoError(t, b.Mint(tok, owner, big.NewInt(1_000_000)))
				require.NoError(t, b.Approve(tok, owner, exchange, orders.MaxUint256()))
			}
			for _, tok := range []common.Address{erc721Token, erc1155Token} {
				require.NoError(t, b.Approve(tok, owner, exchange, big.NewInt(1)))
			}
			require.NoError(t, b.Mint(orders.NativeToken, owner, big.NewInt(1_000_000)))
		}
		require.NoError(t, b.Mint(orders.NativeToken, weth, big.NewInt(3_000_000)))
	})
	return h
}

func (h *harness) seed(fn func(b *tokens.Bank)) {
	h.t.Helper()
	tx := state.Begin(context.Background(), h.store)
	fn(tokens.NewBank(tx, tokens.Config{Operator: exchange, WrappedNative: weth}))
	require.NoError(h.t, tx.Commit())
}

func (h *harness) bank() *tokens.Bank {
	return tokens.NewBank(state.Begin(context.Background(), h.store), tokens.Config{Operator: exchange, WrappedNative: weth})
}

func (h *harness) balance(tok, owner common.Address) int64 {
	h.t.Helper()
	v, err := h.bank().BalanceOf(tok, owner)
	require.NoError(h.t, err)
	return v.Int64()
}

func (h *harness) balance1155(id int64, owner common.Address) int64 {
	h.t.Helper()
	v, err := h.bank().BalanceOf1155(erc1155Token, big.NewInt(id), owner)
	require.NoError(h.t, err)
	return v.Int64()
}

func (h *harness) owns(id int64, owner common.Address) bool {
	h.t.Helper()
	ok, err := h.bank().OwnsERC721(erc721Token, big.NewInt(id), owner)
	require.NoError(h.t, err)
	return ok
}

func (h *harness) exec(call settle.Call, fn func(f *settle.Frame) error) error {
	_, err := h.runner.Execute(context.Background(), "test", call, fn)
	return err
}

func (h *harness) view(fn func(f *settle.Frame) error) {
	h.t.Helper()
	require.NoError(h.t, h.runner.View(context.Background(), settle.Call{Now: 100}, fn))
}

func (h *harness) sign(key *ecdsa.PrivateKey, hash common.Hash) signature.Signature {
	h.t.Helper()
	sig, err := signature.SignEIP712(hash, key)
	require.NoError(h.t, err)
	return sig
}

// erc721Order returns an order by the harness maker priced in erc20 for token id 7.
func (h *harness) erc721Order(direction orders.TradeDirection, price int64, fees ...orders.Fee) *orders.ERC721Order {
	return &orders.ERC721Order{
		NFTOrder: orders.NFTOrder{
			Direction:        direction,
			Maker:            h.maker,
			Expiry:           1000,
			Nonce:            big.NewInt(1),
			Erc20Token:       erc20,
			Erc20TokenAmount: big.NewInt(price),
			Fees:             fees,
		},
		Erc721Token:   erc721Token,
		Erc721TokenID: big.NewInt(7),
	}
}

// erc1155Order offers quantity units of token id 3.
func (h *harness) erc1155Order(direction orders.TradeDirection, price, quantity int64, fees ...orders.Fee) *orders.ERC1155Order {
	return &orders.ERC1155Order{
		NFTOrder: orders.NFTOrder{
			Direction:        direction,
			Maker:            h.maker,
			Expiry:           1000,
			Nonce:            big.NewInt(1),
			Erc20Token:       erc20,
			Erc20TokenAmount: big.NewInt(price),
			Fees:             fees,
		},
		Erc1155Token:       erc1155Token,
		Erc1155TokenID:     big.NewInt(3),
		Erc1155TokenAmount: big.NewInt(quantity),
	}
}

func fee(amount int64, data []byte) orders.Fee {
	return orders.Fee{Recipient: feeRecipient, Amount: big.NewInt(amount), FeeData: data}
}

func takerCall() settle.Call {
	return settle.Call{Sender: taker, Now: 100}
}

type feeReceiver struct {
	accept bool
	calls  []*big.Int
}

func (r *feeReceiver) ReceiveFee(_ *settle.Frame, _ common.Address, amount *big.Int, _ []byte) (bool, error) {
	r.calls = append(r.calls, new(big.Int).Set(amount))
	return r.accept, nil
}

type takerCallback struct {
	fn func(f *settle.Frame) (bool, error)
}

func (c *takerCallback) OnNFTOrderFill(f *settle.Frame, _ common.Hash, _ []byte) (bool, error) {
	return c.fn(f)
}

// evenIDs accepts even token ids only.
type evenIDs struct{}

func (evenIDs) ValidateProperty(_ common.Address, tokenID *big.Int, _ []byte) error {
	if tokenID.Bit(0) == 1 {
		return errors.New("odd token id")
	}
	return nil
}
