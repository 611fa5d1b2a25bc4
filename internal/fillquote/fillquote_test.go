package fillquote

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/bridge"
	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/native"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/internal/testutil"
	"github.com/mselser95/exchange-settlement/internal/tokens"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

var (
	mockAddr     = common.HexToAddress("0x9300000000000000000000000000000000000003")
	feeRecipient = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

type fixture struct {
	chain   *testutil.Chain
	maker   testutil.Account
	native  *native.Engine
	adapter *testutil.MockAdapter
	fq      *Transformer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chain := testutil.NewChain(t)
	maker := testutil.NewAccount(t)
	chain.Fund(maker.Address, 1_000_000, testutil.TokenB)
	chain.Fund(testutil.Taker, 1_000_000, testutil.TokenA, orders.NativeToken)
	chain.Seed(func(b *tokens.Bank) {
		require.NoError(t, b.Mint(testutil.TokenB, mockAddr, big.NewInt(10_000_000)))
	})

	adapter := testutil.NewMockAdapter(mockAddr, 2, 1)
	registry := bridge.NewRegistry(zap.NewNop())
	registry.Register(mockAddr, adapter)

	engine := native.New(zap.NewNop())
	return &fixture{
		chain:   chain,
		maker:   maker,
		native:  engine,
		adapter: adapter,
		fq:      New(&Config{Native: engine, Bridges: registry, Logger: zap.NewNop()}),
	}
}

func (fx *fixture) transform(call settle.Call, data *TransformData) (Result, error) {
	var res Result
	err := fx.chain.Exec(call, func(f *settle.Frame) error {
		var err error
		res, err = fx.fq.Transform(f, data, testutil.Taker, testutil.Taker)
		return err
	})
	return res, err
}

// rfq returns a leg selling 200 B for 100 A.
func (fx *fixture) rfq(t *testing.T) RfqOrderInfo {
	o := testutil.RfqOrder(fx.maker.Address, testutil.TokenB, testutil.TokenA, 200, 100)
	return RfqOrderInfo{Order: o, Signature: fx.maker.Sign(t, o.Hash(fx.chain.Env.Domain))}
}

// bridgeLeg quotes 2 B per A for up to 1000 A.
func bridgeLeg() BridgeOrder {
	return BridgeOrder{Source: mockAddr, TakerTokenAmount: big.NewInt(1000), MakerTokenAmount: big.NewInt(2000)}
}

func sellQuote(amount int64, sequence ...OrderType) *TransformData {
	return &TransformData{
		Side:         Sell,
		SellToken:    testutil.TokenA,
		BuyToken:     testutil.TokenB,
		FillSequence: sequence,
		FillAmount:   big.NewInt(amount),
	}
}

func TestSellQuoteAcrossLegs(t *testing.T) {
	fx := newFixture(t)
	data := sellQuote(150, OrderTypeRfq, OrderTypeBridge)
	data.RfqOrders = []RfqOrderInfo{fx.rfq(t)}
	data.BridgeOrders = []BridgeOrder{bridgeLeg()}

	res, err := fx.transform(testutil.TakerCall(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.Sold.Int64())
	assert.Equal(t, int64(300), res.Bought.Int64())

	assert.Equal(t, int64(1_000_000-150), fx.chain.Balance(testutil.TokenA, testutil.Taker))
	assert.Equal(t, int64(300), fx.chain.Balance(testutil.TokenB, testutil.Taker))
	assert.Equal(t, int64(100), fx.chain.Balance(testutil.TokenA, fx.maker.Address))
	assert.Len(t, fx.chain.Sink.OfType(events.TypeRfqOrderFilled), 1)
	assert.Len(t, fx.chain.Sink.OfType(events.TypeBridgeFill), 1)
}

func TestSellQuoteStopsWhenFilled(t *testing.T) {
	fx := newFixture(t)
	data := sellQuote(80, OrderTypeRfq, OrderTypeBridge)
	data.RfqOrders = []RfqOrderInfo{fx.rfq(t)}
	data.BridgeOrders = []BridgeOrder{bridgeLeg()}

	res, err := fx.transform(testutil.TakerCall(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(80), res.Sold.Int64())
	assert.Equal(t, int64(160), res.Bought.Int64())
	assert.Empty(t, fx.adapter.Trades())
}

func TestSellQuoteAbsorbsSlippedOrder(t *testing.T) {
	fx := newFixture(t)
	leg := fx.rfq(t)

	require.NoError(t, fx.chain.Exec(testutil.TakerCall(), func(f *settle.Frame) error {
		_, err := fx.native.FillRfqOrder(f, leg.Order, leg.Signature, native.TakerFill(f.Call, big.NewInt(60)))
		return err
	}))

	data := sellQuote(150, OrderTypeRfq, OrderTypeBridge)
	data.RfqOrders = []RfqOrderInfo{leg}
	data.BridgeOrders = []BridgeOrder{bridgeLeg()}

	res, err := fx.transform(testutil.TakerCall(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.Sold.Int64())
	// 40 A through the order at 2:1 and 110 A through the bridge at 2:1.
	assert.Equal(t, int64(300), res.Bought.Int64())
	require.Len(t, fx.adapter.Trades(), 1)
	assert.Equal(t, int64(110), fx.adapter.Trades()[0].SellAmount.Int64())
}

func TestSellQuoteSkipsFailedLeg(t *testing.T) {
	fx := newFixture(t)
	fx.adapter.SetShouldFail(true)

	data := sellQuote(100, OrderTypeBridge, OrderTypeRfq)
	data.RfqOrders = []RfqOrderInfo{fx.rfq(t)}
	data.BridgeOrders = []BridgeOrder{bridgeLeg()}

	res, err := fx.transform(testutil.TakerCall(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Sold.Int64())
	assert.Equal(t, int64(200), res.Bought.Int64())
	assert.Empty(t, fx.chain.Sink.OfType(events.TypeBridgeFill))
}

func TestSellQuoteSkipsInvalidOrder(t *testing.T) {
	fx := newFixture(t)
	leg := fx.rfq(t)
	leg.Order.Expiry = 50

	data := sellQuote(100, OrderTypeRfq, OrderTypeBridge)
	data.RfqOrders = []RfqOrderInfo{leg}
	data.BridgeOrders = []BridgeOrder{bridgeLeg()}

	res, err := fx.transform(testutil.TakerCall(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Sold.Int64())
	assert.Empty(t, fx.chain.Sink.OfType(events.TypeRfqOrderFilled))
}

func TestIncompleteSellQuote(t *testing.T) {
	fx := newFixture(t)
	data := sellQuote(150, OrderTypeRfq)
	data.RfqOrders = []RfqOrderInfo{fx.rfq(t)}

	_, err := fx.transform(testutil.TakerCall(), data)
	var incomplete *types.IncompleteFillSellQuoteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, testutil.TokenA, incomplete.Token)
	assert.Equal(t, int64(150), incomplete.Required.Int64())
	assert.Equal(t, int64(100), incomplete.Actual.Int64())

	assert.Equal(t, int64(1_000_000), fx.chain.Balance(testutil.TokenA, testutil.Taker))
	assert.Empty(t, fx.chain.Sink.Events())
}

func TestBuyQuote(t *testing.T) {
	fx := newFixture(t)
	data := &TransformData{
		Side:         Buy,
		SellToken:    testutil.TokenA,
		BuyToken:     testutil.TokenB,
		RfqOrders:    []RfqOrderInfo{fx.rfq(t)},
		BridgeOrders: []BridgeOrder{bridgeLeg()},
		FillSequence: []OrderType{OrderTypeRfq, OrderTypeBridge},
		FillAmount:   big.NewInt(250),
	}

	res, err := fx.transform(testutil.TakerCall(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(250), res.Bought.Int64())
	assert.Equal(t, int64(125), res.Sold.Int64())
	assert.Equal(t, int64(250), fx.chain.Balance(testutil.TokenB, testutil.Taker))

	data.FillSequence = []OrderType{OrderTypeRfq}
	data.BridgeOrders = nil
	fresh := newFixture(t)
	data.RfqOrders = []RfqOrderInfo{fresh.rfq(t)}
	_, err = fresh.transform(testutil.TakerCall(), data)
	var incomplete *types.IncompleteFillBuyQuoteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, testutil.TokenB, incomplete.Token)
	assert.Equal(t, int64(250), incomplete.Required.Int64())
	assert.Equal(t, int64(200), incomplete.Actual.Int64())
}

func TestLegCap(t *testing.T) {
	fx := newFixture(t)
	leg := fx.rfq(t)
	leg.MaxTakerTokenFillAmount = big.NewInt(30)

	data := sellQuote(100, OrderTypeRfq, OrderTypeBridge)
	data.RfqOrders = []RfqOrderInfo{leg}
	data.BridgeOrders = []BridgeOrder{bridgeLeg()}

	_, err := fx.transform(testutil.TakerCall(), data)
	require.NoError(t, err)
	require.Len(t, fx.adapter.Trades(), 1)
	assert.Equal(t, int64(70), fx.adapter.Trades()[0].SellAmount.Int64())
}

func TestLimitLegProtocolFee(t *testing.T) {
	tests := []struct {
		name        string
		value       int64
		wantFee     int64
		wantBridged int
	}{
		{name: "skipped-without-fee", value: 0, wantFee: 0, wantBridged: 1},
		{name: "filled-with-fee", value: 1000, wantFee: 1000, wantBridged: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			o := testutil.LimitOrder(fx.maker.Address, testutil.TokenB, testutil.TokenA, 200, 100)
			data := sellQuote(100, OrderTypeLimit, OrderTypeBridge)
			data.LimitOrders = []LimitOrderInfo{{Order: o, Signature: fx.maker.Sign(t, o.Hash(fx.chain.Env.Domain))}}
			data.BridgeOrders = []BridgeOrder{bridgeLeg()}

			call := testutil.TakerCall()
			call.GasPrice = big.NewInt(1)
			call.Value = big.NewInt(tt.value)
			res, err := fx.transform(call, data)
			require.NoError(t, err)

			assert.Equal(t, int64(100), res.Sold.Int64())
			assert.Equal(t, tt.wantFee, res.ProtocolFeePaid.Int64())
			assert.Equal(t, tt.wantFee, fx.chain.Balance(orders.NativeToken, testutil.Collector))
			assert.Len(t, fx.adapter.Trades(), tt.wantBridged)
		})
	}
}

func TestLimitLegCountsTakerFee(t *testing.T) {
	fx := newFixture(t)
	o := testutil.LimitOrder(fx.maker.Address, testutil.TokenB, testutil.TokenA, 200, 100)
	o.TakerTokenFeeAmount = big.NewInt(10)
	o.FeeRecipient = feeRecipient

	data := sellQuote(55, OrderTypeLimit)
	data.LimitOrders = []LimitOrderInfo{{Order: o, Signature: fx.maker.Sign(t, o.Hash(fx.chain.Env.Domain))}}

	res, err := fx.transform(testutil.TakerCall(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(55), res.Sold.Int64())
	assert.Equal(t, int64(100), res.Bought.Int64())
	assert.Equal(t, int64(5), fx.chain.Balance(testutil.TokenA, feeRecipient))
}

func TestSellWholeBalance(t *testing.T) {
	fx := newFixture(t)
	data := sellQuote(0, OrderTypeBridge)
	data.FillAmount = orders.MaxUint256()
	data.BridgeOrders = []BridgeOrder{{
		Source:           mockAddr,
		TakerTokenAmount: orders.MaxUint256(),
		MakerTokenAmount: orders.MaxUint256(),
	}}

	res, err := fx.transform(testutil.TakerCall(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), res.Sold.Int64())
	assert.Equal(t, int64(0), fx.chain.Balance(testutil.TokenA, testutil.Taker))
	assert.Equal(t, int64(2_000_000), fx.chain.Balance(testutil.TokenB, testutil.Taker))
}

func TestMalformedQuotes(t *testing.T) {
	fx := newFixture(t)

	tests := []struct {
		name   string
		modify func(d *TransformData)
		want   error
	}{
		{
			name:   "sequence-without-orders",
			modify: func(d *TransformData) { d.FillSequence = []OrderType{OrderTypeRfq, OrderTypeRfq} },
			want:   types.ErrMismatchedArrayLengths,
		},
		{
			name:   "unknown-order-type",
			modify: func(d *TransformData) { d.FillSequence = []OrderType{OrderType(9)} },
			want:   types.ErrInvalidSubcall,
		},
		{
			name:   "wrong-pair",
			modify: func(d *TransformData) { d.BuyToken = testutil.TokenC },
			want:   types.ErrInvalidToken,
		},
		{
			name:   "missing-fill-amount",
			modify: func(d *TransformData) { d.FillAmount = nil },
			want:   types.ErrInvalidOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := sellQuote(100, OrderTypeRfq)
			data.RfqOrders = []RfqOrderInfo{fx.rfq(t)}
			tt.modify(data)

			_, err := fx.transform(testutil.TakerCall(), data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
