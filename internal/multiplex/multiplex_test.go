package multiplex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/bridge"
	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/fillquote"
	"github.com/mselser95/exchange-settlement/internal/native"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/internal/testutil"
	"github.com/mselser95/exchange-settlement/internal/tokens"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

var (
	doublerAddr = common.HexToAddress("0x9300000000000000000000000000000000000001")
	triplerAddr = common.HexToAddress("0x9300000000000000000000000000000000000002")
	unknownAddr = common.HexToAddress("0x9900000000000000000000000000000000000009")
)

type fixture struct {
	chain   *testutil.Chain
	maker   testutil.Account
	engine  *Engine
	doubler *testutil.MockAdapter
	tripler *testutil.MockAdapter
}

func newFixture(t *testing.T, maxDepth int) *fixture {
	t.Helper()
	chain := testutil.NewChain(t)
	maker := testutil.NewAccount(t)
	chain.Fund(maker.Address, 1_000_000, testutil.TokenB)
	chain.Fund(testutil.Taker, 1_000_000, testutil.TokenA, orders.NativeToken)
	chain.Seed(func(b *tokens.Bank) {
		for _, addr := range []common.Address{doublerAddr, triplerAddr} {
			for _, tok := range []common.Address{testutil.TokenB, testutil.TokenC, testutil.WETH} {
				require.NoError(t, b.Mint(tok, addr, big.NewInt(10_000_000)))
			}
		}
	})

	doubler := testutil.NewMockAdapter(doublerAddr, 2, 1)
	tripler := testutil.NewMockAdapter(triplerAddr, 3, 1)
	registry := bridge.NewRegistry(zap.NewNop())
	registry.Register(doublerAddr, doubler)
	registry.Register(triplerAddr, tripler)

	nativeEngine := native.New(zap.NewNop())
	return &fixture{
		chain: chain,
		maker: maker,
		engine: New(&Config{
			Native:        nativeEngine,
			Bridges:       registry,
			FillQuote:     fillquote.New(&fillquote.Config{Native: nativeEngine, Bridges: registry}),
			MaxRouteDepth: maxDepth,
			Logger:        zap.NewNop(),
		}),
		doubler: doubler,
		tripler: tripler,
	}
}

func (fx *fixture) exec(call settle.Call, fn func(f *settle.Frame) (*big.Int, error)) (*big.Int, error) {
	var bought *big.Int
	err := fx.chain.Exec(call, func(f *settle.Frame) error {
		var err error
		bought, err = fn(f)
		return err
	})
	return bought, err
}

func (fx *fixture) batchSell(out common.Address, calls []BatchSellSubcall, sell, minBuy int64) (*big.Int, error) {
	return fx.exec(testutil.TakerCall(), func(f *settle.Frame) (*big.Int, error) {
		return fx.engine.MultiplexBatchSellTokenForToken(f, testutil.TokenA, out, calls, big.NewInt(sell), big.NewInt(minBuy))
	})
}

func (fx *fixture) multiHopSell(tokens []common.Address, calls []MultiHopSellSubcall, sell, minBuy int64) (*big.Int, error) {
	return fx.exec(testutil.TakerCall(), func(f *settle.Frame) (*big.Int, error) {
		return fx.engine.MultiplexMultiHopSellTokenForToken(f, tokens, calls, big.NewInt(sell), big.NewInt(minBuy))
	})
}

// rfqLeg sells 200 B for 100 A.
func (fx *fixture) rfqLeg(t *testing.T, amount Amount) BatchSellSubcall {
	o := testutil.RfqOrder(fx.maker.Address, testutil.TokenB, testutil.TokenA, 200, 100)
	return BatchSellSubcall{
		Kind:       SubcallRfq,
		SellAmount: amount,
		Rfq:        &RfqLeg{Order: o, Signature: fx.maker.Sign(t, o.Hash(fx.chain.Env.Domain))},
	}
}

func bridgeLeg(source common.Address, amount Amount) BatchSellSubcall {
	return BatchSellSubcall{Kind: SubcallBridge, SellAmount: amount, Bridge: &BridgeLeg{Source: source}}
}

func bridgeHop(source common.Address) MultiHopSellSubcall {
	return MultiHopSellSubcall{Kind: SubcallBridge, Bridge: &BridgeLeg{Source: source}}
}

func TestBatchSellAcrossSources(t *testing.T) {
	fx := newFixture(t, 0)

	bought, err := fx.batchSell(testutil.TokenB, []BatchSellSubcall{
		fx.rfqLeg(t, Absolute(big.NewInt(100))),
		bridgeLeg(doublerAddr, Amount{}),
	}, 300, 600)
	require.NoError(t, err)

	assert.Equal(t, int64(600), bought.Int64())
	assert.Equal(t, int64(999_700), fx.chain.Balance(testutil.TokenA, testutil.Taker))
	assert.Equal(t, int64(600), fx.chain.Balance(testutil.TokenB, testutil.Taker))
	assert.Equal(t, int64(100), fx.chain.Balance(testutil.TokenA, fx.maker.Address))
	assert.Len(t, fx.chain.Sink.OfType(events.TypeRfqOrderFilled), 1)
	assert.Len(t, fx.chain.Sink.OfType(events.TypeBridgeFill), 1)

	trades := fx.doubler.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, int64(200), trades[0].SellAmount.Int64())
}

func TestBatchSellSkipsFailedLegs(t *testing.T) {
	t.Run("invalid signature", func(t *testing.T) {
		fx := newFixture(t, 0)
		leg := fx.rfqLeg(t, Absolute(big.NewInt(100)))
		stranger := testutil.NewAccount(t)
		leg.Rfq.Signature = stranger.Sign(t, leg.Rfq.Order.Hash(fx.chain.Env.Domain))

		bought, err := fx.batchSell(testutil.TokenB, []BatchSellSubcall{
			leg,
			bridgeLeg(doublerAddr, Amount{}),
		}, 300, 0)
		require.NoError(t, err)

		assert.Equal(t, int64(600), bought.Int64())
		assert.Empty(t, fx.chain.Sink.OfType(events.TypeRfqOrderFilled))
		assert.Equal(t, int64(0), fx.chain.Balance(testutil.TokenA, fx.maker.Address))
	})

	t.Run("failing bridge", func(t *testing.T) {
		fx := newFixture(t, 0)
		fx.doubler.SetShouldFail(true)

		bought, err := fx.batchSell(testutil.TokenB, []BatchSellSubcall{
			bridgeLeg(doublerAddr, Absolute(big.NewInt(100))),
			bridgeLeg(triplerAddr, Amount{}),
		}, 300, 0)
		require.NoError(t, err)

		assert.Equal(t, int64(900), bought.Int64())
		assert.Len(t, fx.doubler.Trades(), 1)
		assert.Len(t, fx.chain.Sink.OfType(events.TypeBridgeFill), 1)
	})
}

func TestBatchSellSkipsExpiredOrder(t *testing.T) {
	fx := newFixture(t, 0)
	leg := fx.rfqLeg(t, Absolute(big.NewInt(100)))
	leg.Rfq.Order.Expiry = 50
	leg.Rfq.Signature = fx.maker.Sign(t, leg.Rfq.Order.Hash(fx.chain.Env.Domain))

	bought, err := fx.batchSell(testutil.TokenB, []BatchSellSubcall{
		leg,
		bridgeLeg(doublerAddr, Amount{}),
	}, 300, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(600), bought.Int64())

	expired := fx.chain.Sink.OfType(events.TypeExpiredOrder)
	require.Len(t, expired, 1)
	ev := expired[0].(events.ExpiredOrder)
	assert.Equal(t, orders.KindRfq, ev.Kind)
	assert.Equal(t, fx.maker.Address, ev.Maker)
	assert.Equal(t, uint64(50), ev.Expiry)
	assert.Equal(t, leg.Rfq.Order.Hash(fx.chain.Env.Domain), ev.OrderHash)
}

func TestBatchSellFractions(t *testing.T) {
	fx := newFixture(t, 0)

	bought, err := fx.batchSell(testutil.TokenB, []BatchSellSubcall{
		bridgeLeg(doublerAddr, Percent(25)),
		bridgeLeg(triplerAddr, Percent(10)),
	}, 400, 0)
	require.NoError(t, err)

	// The last leg sells whatever is left regardless of its own amount.
	assert.Equal(t, int64(100*2+300*3), bought.Int64())
	assert.Equal(t, int64(100), fx.doubler.Trades()[0].SellAmount.Int64())
	assert.Equal(t, int64(300), fx.tripler.Trades()[0].SellAmount.Int64())
}

func TestBatchSellFillQuoteLeg(t *testing.T) {
	fx := newFixture(t, 0)
	quote := &fillquote.TransformData{
		Side:      fillquote.Sell,
		SellToken: testutil.TokenA,
		BuyToken:  testutil.TokenB,
		BridgeOrders: []fillquote.BridgeOrder{{
			Source:           doublerAddr,
			TakerTokenAmount: big.NewInt(1000),
			MakerTokenAmount: big.NewInt(2000),
		}},
		FillSequence: []fillquote.OrderType{fillquote.OrderTypeBridge},
	}

	bought, err := fx.batchSell(testutil.TokenB, []BatchSellSubcall{
		bridgeLeg(triplerAddr, Absolute(big.NewInt(100))),
		{Kind: SubcallFillQuote, FillQuote: quote},
	}, 300, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(300+400), bought.Int64())
	assert.Nil(t, quote.FillAmount)
}

func TestBatchSellIncorrectAmountSold(t *testing.T) {
	fx := newFixture(t, 0)

	// The order only takes 100 A.
	_, err := fx.batchSell(testutil.TokenB, []BatchSellSubcall{
		fx.rfqLeg(t, Amount{}),
	}, 150, 0)
	require.ErrorIs(t, err, types.ErrIncorrectAmountSold)

	assert.Equal(t, int64(1_000_000), fx.chain.Balance(testutil.TokenA, testutil.Taker))
	assert.Equal(t, int64(0), fx.chain.Balance(testutil.TokenB, testutil.Taker))
	assert.Empty(t, fx.chain.Sink.Events())
}

func TestBatchSellUnderbought(t *testing.T) {
	fx := newFixture(t, 0)

	_, err := fx.batchSell(testutil.TokenB, []BatchSellSubcall{
		bridgeLeg(doublerAddr, Amount{}),
	}, 300, 601)
	require.ErrorIs(t, err, types.ErrUnderbought)

	assert.Equal(t, int64(1_000_000), fx.chain.Balance(testutil.TokenA, testutil.Taker))
	assert.Equal(t, int64(0), fx.chain.Balance(testutil.TokenB, testutil.Taker))
}

func TestBatchSellRejectsMalformedRoutes(t *testing.T) {
	fx := newFixture(t, 0)
	wrongPair := testutil.RfqOrder(fx.maker.Address, testutil.TokenC, testutil.TokenA, 200, 100)

	tests := []struct {
		name    string
		call    BatchSellSubcall
		wantErr error
	}{
		{
			name:    "unknown kind",
			call:    BatchSellSubcall{Kind: SubcallInvalid},
			wantErr: types.ErrInvalidSubcall,
		},
		{
			name:    "missing payload",
			call:    BatchSellSubcall{Kind: SubcallBridge},
			wantErr: types.ErrInvalidSubcall,
		},
		{
			name:    "order for another pair",
			call:    BatchSellSubcall{Kind: SubcallRfq, Rfq: &RfqLeg{Order: wrongPair}},
			wantErr: types.ErrInvalidToken,
		},
		{
			name:    "unknown bridge source",
			call:    bridgeLeg(unknownAddr, Amount{}),
			wantErr: types.ErrInvalidSubcall,
		},
		{
			name: "buy-side fill quote",
			call: BatchSellSubcall{Kind: SubcallFillQuote, FillQuote: &fillquote.TransformData{
				Side:      fillquote.Buy,
				SellToken: testutil.TokenA,
				BuyToken:  testutil.TokenB,
			}},
			wantErr: types.ErrInvalidSubcall,
		},
		{
			name: "multi-hop ending elsewhere",
			call: BatchSellSubcall{Kind: SubcallMultiHopSell, MultiHopSell: &NestedMultiHopSell{
				Tokens: []common.Address{testutil.TokenA, testutil.TokenC},
				Calls:  []MultiHopSellSubcall{bridgeHop(doublerAddr)},
			}},
			wantErr: types.ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.batchSell(testutil.TokenB, []BatchSellSubcall{tt.call}, 100, 0)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, types.KindStructural, types.KindOf(err))
		})
	}
	assert.Equal(t, int64(1_000_000), fx.chain.Balance(testutil.TokenA, testutil.Taker))
}

func TestMultiHopSell(t *testing.T) {
	fx := newFixture(t, 0)

	bought, err := fx.multiHopSell(
		[]common.Address{testutil.TokenA, testutil.TokenB, testutil.TokenC},
		[]MultiHopSellSubcall{bridgeHop(doublerAddr), bridgeHop(triplerAddr)},
		100, 600)
	require.NoError(t, err)

	assert.Equal(t, int64(600), bought.Int64())
	assert.Equal(t, int64(600), fx.chain.Balance(testutil.TokenC, testutil.Taker))
	assert.Equal(t, int64(999_900), fx.chain.Balance(testutil.TokenA, testutil.Taker))
	assert.Equal(t, int64(0), fx.chain.Balance(testutil.TokenB, testutil.Exchange))
	assert.Equal(t, int64(0), fx.chain.Balance(testutil.TokenC, testutil.Exchange))

	first := fx.doubler.Trades()[0]
	assert.Equal(t, testutil.Taker, first.Payer)
	assert.Equal(t, testutil.Exchange, first.Recipient)
	second := fx.tripler.Trades()[0]
	assert.Equal(t, testutil.Exchange, second.Payer)
	assert.Equal(t, testutil.Taker, second.Recipient)
	assert.Equal(t, int64(200), second.SellAmount.Int64())
}

func TestMultiHopSellRejects(t *testing.T) {
	fx := newFixture(t, 0)
	path := []common.Address{testutil.TokenA, testutil.TokenB}

	tests := []struct {
		name    string
		tokens  []common.Address
		calls   []MultiHopSellSubcall
		wantErr error
	}{
		{
			name:    "too few hops",
			tokens:  []common.Address{testutil.TokenA, testutil.TokenB, testutil.TokenC},
			calls:   []MultiHopSellSubcall{bridgeHop(doublerAddr)},
			wantErr: types.ErrMismatchedArrayLengths,
		},
		{
			name:    "single token",
			tokens:  []common.Address{testutil.TokenA},
			wantErr: types.ErrMismatchedArrayLengths,
		},
		{
			name:    "order hop",
			tokens:  path,
			calls:   []MultiHopSellSubcall{{Kind: SubcallRfq}},
			wantErr: types.ErrInvalidSubcall,
		},
		{
			name:    "fill quote hop",
			tokens:  path,
			calls:   []MultiHopSellSubcall{{Kind: SubcallFillQuote}},
			wantErr: types.ErrInvalidSubcall,
		},
		{
			name:    "unknown bridge source",
			tokens:  path,
			calls:   []MultiHopSellSubcall{bridgeHop(unknownAddr)},
			wantErr: types.ErrInvalidSubcall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.multiHopSell(tt.tokens, tt.calls, 100, 0)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMultiHopSellFailedHopFailsRoute(t *testing.T) {
	fx := newFixture(t, 0)
	fx.tripler.SetShouldFail(true)

	_, err := fx.multiHopSell(
		[]common.Address{testutil.TokenA, testutil.TokenB, testutil.TokenC},
		[]MultiHopSellSubcall{bridgeHop(doublerAddr), bridgeHop(triplerAddr)},
		100, 0)
	require.ErrorIs(t, err, testutil.ErrMockSwapFailed)

	assert.Equal(t, int64(1_000_000), fx.chain.Balance(testutil.TokenA, testutil.Taker))
	assert.Equal(t, int64(0), fx.chain.Balance(testutil.TokenB, testutil.Exchange))
	assert.Empty(t, fx.chain.Sink.Events())
}

func TestMultiHopSellUnderbought(t *testing.T) {
	fx := newFixture(t, 0)

	_, err := fx.multiHopSell(
		[]common.Address{testutil.TokenA, testutil.TokenB},
		[]MultiHopSellSubcall{bridgeHop(doublerAddr)},
		100, 201)
	require.ErrorIs(t, err, types.ErrUnderbought)
	assert.Equal(t, int64(0), fx.chain.Balance(testutil.TokenB, testutil.Taker))
}

func TestNestedRoutes(t *testing.T) {
	t.Run("multi-hop inside batch", func(t *testing.T) {
		fx := newFixture(t, 0)

		bought, err := fx.batchSell(testutil.TokenC, []BatchSellSubcall{
			{
				Kind:       SubcallMultiHopSell,
				SellAmount: Percent(50),
				MultiHopSell: &NestedMultiHopSell{
					Tokens: []common.Address{testutil.TokenA, testutil.TokenB, testutil.TokenC},
					Calls:  []MultiHopSellSubcall{bridgeHop(doublerAddr), bridgeHop(triplerAddr)},
				},
			},
			bridgeLeg(doublerAddr, Amount{}),
		}, 100, 0)
		require.NoError(t, err)

		assert.Equal(t, int64(300+100), bought.Int64())
		assert.Equal(t, int64(400), fx.chain.Balance(testutil.TokenC, testutil.Taker))
	})

	t.Run("batch inside multi-hop", func(t *testing.T) {
		fx := newFixture(t, 0)

		bought, err := fx.multiHopSell(
			[]common.Address{testutil.TokenA, testutil.TokenB, testutil.TokenC},
			[]MultiHopSellSubcall{
				{Kind: SubcallBatchSell, BatchSell: &NestedBatchSell{Calls: []BatchSellSubcall{
					bridgeLeg(doublerAddr, Absolute(big.NewInt(50))),
					bridgeLeg(triplerAddr, Amount{}),
				}}},
				bridgeHop(doublerAddr),
			},
			100, 0)
		require.NoError(t, err)

		assert.Equal(t, int64((50*2+50*3)*2), bought.Int64())
		assert.Equal(t, int64(0), fx.chain.Balance(testutil.TokenB, testutil.Exchange))
	})
}

func nestBatch(calls []BatchSellSubcall, levels int) []BatchSellSubcall {
	for i := 0; i < levels; i++ {
		calls = []BatchSellSubcall{{Kind: SubcallBatchSell, BatchSell: &NestedBatchSell{Calls: calls}}}
	}
	return calls
}

func TestRouteDepthLimit(t *testing.T) {
	leaf := []BatchSellSubcall{bridgeLeg(doublerAddr, Amount{})}

	t.Run("within limit", func(t *testing.T) {
		fx := newFixture(t, 2)
		bought, err := fx.batchSell(testutil.TokenB, nestBatch(leaf, 1), 100, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(200), bought.Int64())
	})

	t.Run("batch too deep", func(t *testing.T) {
		fx := newFixture(t, 2)
		_, err := fx.batchSell(testutil.TokenB, nestBatch(leaf, 2), 100, 0)
		require.ErrorIs(t, err, types.ErrRouteTooDeep)
		assert.Empty(t, fx.doubler.Trades())
	})

	t.Run("multi-hop too deep", func(t *testing.T) {
		fx := newFixture(t, 1)
		_, err := fx.multiHopSell(
			[]common.Address{testutil.TokenA, testutil.TokenB},
			[]MultiHopSellSubcall{{Kind: SubcallBatchSell, BatchSell: &NestedBatchSell{Calls: leaf}}},
			100, 0)
		require.ErrorIs(t, err, types.ErrRouteTooDeep)
	})

	t.Run("default limit", func(t *testing.T) {
		fx := newFixture(t, 0)
		_, err := fx.batchSell(testutil.TokenB, nestBatch(leaf, DefaultMaxRouteDepth-1), 100, 0)
		require.NoError(t, err)
		_, err = fx.batchSell(testutil.TokenB, nestBatch(leaf, DefaultMaxRouteDepth), 100, 0)
		require.ErrorIs(t, err, types.ErrRouteTooDeep)
	})
}

func ethCall(value int64) settle.Call {
	return settle.Call{Sender: testutil.Taker, Value: big.NewInt(value), Now: testutil.Now}
}

func TestEthRoutes(t *testing.T) {
	t.Run("batch sell eth for token", func(t *testing.T) {
		fx := newFixture(t, 0)
		bought, err := fx.exec(ethCall(100), func(f *settle.Frame) (*big.Int, error) {
			return fx.engine.MultiplexBatchSellEthForToken(f, testutil.TokenB,
				[]BatchSellSubcall{bridgeLeg(doublerAddr, Amount{})}, big.NewInt(200))
		})
		require.NoError(t, err)

		assert.Equal(t, int64(200), bought.Int64())
		assert.Equal(t, int64(200), fx.chain.Balance(testutil.TokenB, testutil.Taker))
		assert.Equal(t, int64(999_900), fx.chain.Balance(orders.NativeToken, testutil.Taker))
		assert.Equal(t, int64(0), fx.chain.Balance(orders.NativeToken, testutil.Exchange))
		assert.Equal(t, int64(0), fx.chain.Balance(testutil.WETH, testutil.Exchange))
	})

	t.Run("batch sell token for eth", func(t *testing.T) {
		fx := newFixture(t, 0)
		bought, err := fx.exec(testutil.TakerCall(), func(f *settle.Frame) (*big.Int, error) {
			return fx.engine.MultiplexBatchSellTokenForEth(f, testutil.TokenA,
				[]BatchSellSubcall{bridgeLeg(doublerAddr, Amount{})}, big.NewInt(100), big.NewInt(200))
		})
		require.NoError(t, err)

		assert.Equal(t, int64(200), bought.Int64())
		assert.Equal(t, int64(1_000_200), fx.chain.Balance(orders.NativeToken, testutil.Taker))
		assert.Equal(t, int64(0), fx.chain.Balance(testutil.WETH, testutil.Exchange))
	})

	t.Run("multi-hop sell eth for token", func(t *testing.T) {
		fx := newFixture(t, 0)
		bought, err := fx.exec(ethCall(100), func(f *settle.Frame) (*big.Int, error) {
			return fx.engine.MultiplexMultiHopSellEthForToken(f,
				[]common.Address{testutil.WETH, testutil.TokenB, testutil.TokenC},
				[]MultiHopSellSubcall{bridgeHop(doublerAddr), bridgeHop(doublerAddr)},
				big.NewInt(400))
		})
		require.NoError(t, err)

		assert.Equal(t, int64(400), bought.Int64())
		assert.Equal(t, int64(400), fx.chain.Balance(testutil.TokenC, testutil.Taker))
		assert.Equal(t, int64(999_900), fx.chain.Balance(orders.NativeToken, testutil.Taker))
	})

	t.Run("multi-hop sell token for eth", func(t *testing.T) {
		fx := newFixture(t, 0)
		bought, err := fx.exec(testutil.TakerCall(), func(f *settle.Frame) (*big.Int, error) {
			return fx.engine.MultiplexMultiHopSellTokenForEth(f,
				[]common.Address{testutil.TokenA, testutil.WETH},
				[]MultiHopSellSubcall{bridgeHop(triplerAddr)},
				big.NewInt(100), big.NewInt(300))
		})
		require.NoError(t, err)

		assert.Equal(t, int64(300), bought.Int64())
		assert.Equal(t, int64(1_000_300), fx.chain.Balance(orders.NativeToken, testutil.Taker))
	})

	t.Run("path not starting with wrapped native", func(t *testing.T) {
		fx := newFixture(t, 0)
		_, err := fx.exec(ethCall(100), func(f *settle.Frame) (*big.Int, error) {
			return fx.engine.MultiplexMultiHopSellEthForToken(f,
				[]common.Address{testutil.TokenA, testutil.TokenB},
				[]MultiHopSellSubcall{bridgeHop(doublerAddr)}, nil)
		})
		require.ErrorIs(t, err, types.ErrInvalidToken)
		assert.Equal(t, int64(1_000_000), fx.chain.Balance(orders.NativeToken, testutil.Taker))
	})

	t.Run("path not ending with wrapped native", func(t *testing.T) {
		fx := newFixture(t, 0)
		_, err := fx.exec(testutil.TakerCall(), func(f *settle.Frame) (*big.Int, error) {
			return fx.engine.MultiplexMultiHopSellTokenForEth(f,
				[]common.Address{testutil.TokenA, testutil.TokenB},
				[]MultiHopSellSubcall{bridgeHop(doublerAddr)}, big.NewInt(100), nil)
		})
		require.ErrorIs(t, err, types.ErrInvalidToken)
	})

	t.Run("underbought keeps the value", func(t *testing.T) {
		fx := newFixture(t, 0)
		_, err := fx.exec(ethCall(100), func(f *settle.Frame) (*big.Int, error) {
			return fx.engine.MultiplexBatchSellEthForToken(f, testutil.TokenB,
				[]BatchSellSubcall{bridgeLeg(doublerAddr, Amount{})}, big.NewInt(201))
		})
		require.ErrorIs(t, err, types.ErrUnderbought)
		assert.Equal(t, int64(1_000_000), fx.chain.Balance(orders.NativeToken, testutil.Taker))
		assert.Equal(t, int64(0), fx.chain.Balance(testutil.TokenB, testutil.Taker))
	})
}
