package bridge_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/bridge"
	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/internal/testutil"
	"github.com/mselser95/exchange-settlement/internal/tokens"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

var (
	poolAddr     = common.HexToAddress("0x9100000000000000000000000000000000000001")
	providerAddr = common.HexToAddress("0x9200000000000000000000000000000000000002")
	mockAddr     = common.HexToAddress("0x9300000000000000000000000000000000000003")
)

func setup(t *testing.T) (*testutil.Chain, *bridge.Registry) {
	t.Helper()
	chain := testutil.NewChain(t)
	chain.Fund(testutil.Taker, 1_000_000, testutil.TokenA, testutil.TokenB)
	chain.Seed(func(b *tokens.Bank) {
		require.NoError(t, b.Mint(testutil.TokenA, poolAddr, big.NewInt(10_000)))
		require.NoError(t, b.Mint(testutil.TokenB, poolAddr, big.NewInt(20_000)))
		require.NoError(t, b.Mint(testutil.TokenB, providerAddr, big.NewInt(1_000_000)))
		require.NoError(t, b.Mint(testutil.TokenB, mockAddr, big.NewInt(1_000_000)))
	})

	registry := bridge.NewRegistry(zap.NewNop())
	registry.Register(poolAddr, bridge.NewConstantProductPool(poolAddr, testutil.TokenA, testutil.TokenB))
	registry.Register(providerAddr, &bridge.FixedRateProvider{
		Address:     providerAddr,
		SellToken:   testutil.TokenA,
		BuyToken:    testutil.TokenB,
		Numerator:   big.NewInt(3),
		Denominator: big.NewInt(2),
	})
	return chain, registry
}

func trade(source common.Address, amount int64) bridge.Trade {
	return bridge.Trade{
		Source:     source,
		SellToken:  testutil.TokenA,
		BuyToken:   testutil.TokenB,
		SellAmount: big.NewInt(amount),
		Payer:      testutil.Taker,
		Recipient:  testutil.Taker,
	}
}

func execute(chain *testutil.Chain, registry *bridge.Registry, tr bridge.Trade) (*big.Int, error) {
	var bought *big.Int
	err := chain.Exec(testutil.TakerCall(), func(f *settle.Frame) error {
		var err error
		bought, err = registry.Execute(f, tr)
		return err
	})
	return bought, err
}

func TestConstantProductPoolSwap(t *testing.T) {
	chain, registry := setup(t)
	pool := bridge.NewConstantProductPool(poolAddr, testutil.TokenA, testutil.TokenB)

	chain.View(func(f *settle.Frame) error {
		quote, err := pool.Quote(f.Bank, testutil.TokenA, testutil.TokenB, big.NewInt(1000))
		require.NoError(t, err)
		assert.Equal(t, int64(1813), quote.Int64())
		return nil
	})

	bought, err := execute(chain, registry, trade(poolAddr, 1000))
	require.NoError(t, err)
	assert.Equal(t, int64(1813), bought.Int64())

	assert.Equal(t, int64(999_000), chain.Balance(testutil.TokenA, testutil.Taker))
	assert.Equal(t, int64(1_001_813), chain.Balance(testutil.TokenB, testutil.Taker))
	assert.Equal(t, int64(11_000), chain.Balance(testutil.TokenA, poolAddr))
	assert.Equal(t, int64(18_187), chain.Balance(testutil.TokenB, poolAddr))

	fills := chain.Sink.OfType(events.TypeBridgeFill)
	require.Len(t, fills, 1)
	fill := fills[0].(events.BridgeFill)
	assert.Equal(t, poolAddr, fill.Source)
	assert.Equal(t, int64(1000), fill.InputAmount.Int64())
	assert.Equal(t, int64(1813), fill.OutputAmount.Int64())
}

func TestConstantProductPoolReverseDirection(t *testing.T) {
	chain, registry := setup(t)

	tr := trade(poolAddr, 2000)
	tr.SellToken, tr.BuyToken = testutil.TokenB, testutil.TokenA
	bought, err := execute(chain, registry, tr)
	require.NoError(t, err)

	// 2000*997*10000 / (20000*1000 + 2000*997)
	assert.Equal(t, int64(906), bought.Int64())
}

func TestConstantProductPoolRejectsOtherPairs(t *testing.T) {
	chain, registry := setup(t)

	tr := trade(poolAddr, 1000)
	tr.BuyToken = testutil.TokenC
	_, err := execute(chain, registry, tr)
	assert.ErrorIs(t, err, types.ErrInvalidToken)
	assert.Equal(t, int64(1_000_000), chain.Balance(testutil.TokenA, testutil.Taker))
}

func TestFixedRateProvider(t *testing.T) {
	chain, registry := setup(t)

	bought, err := execute(chain, registry, trade(providerAddr, 101))
	require.NoError(t, err)
	assert.Equal(t, int64(151), bought.Int64())
	assert.Equal(t, int64(101), chain.Balance(testutil.TokenA, providerAddr))
}

func TestExecuteMeasuresDelivery(t *testing.T) {
	chain, registry := setup(t)
	generous := testutil.NewMockAdapter(mockAddr, 5, 2)
	registry.Register(mockAddr, generous)

	bought, err := execute(chain, registry, trade(mockAddr, 100))
	require.NoError(t, err)
	assert.Equal(t, int64(250), bought.Int64())
	require.Len(t, generous.Trades(), 1)

	generous.SetShouldFail(true)
	_, err = execute(chain, registry, trade(mockAddr, 100))
	assert.ErrorIs(t, err, testutil.ErrMockSwapFailed)
	assert.Len(t, chain.Sink.OfType(events.TypeBridgeFill), 1)
}

func TestExecuteEdgeCases(t *testing.T) {
	chain, registry := setup(t)

	_, err := execute(chain, registry, trade(common.HexToAddress("0x99"), 100))
	assert.ErrorIs(t, err, types.ErrInvalidSubcall)

	bought, err := execute(chain, registry, trade(poolAddr, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), bought.Int64())
	assert.Empty(t, chain.Sink.OfType(events.TypeBridgeFill))

	assert.Len(t, registry.Sources(), 2)
}
