package exchange

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/internal/fillquote"
	"github.com/mselser95/exchange-settlement/internal/multiplex"
	"github.com/mselser95/exchange-settlement/internal/settle"
)

// MultiplexBatchSellTokenForToken splits sellAmount of inputToken across calls.
func (x *Exchange) MultiplexBatchSellTokenForToken(
	ctx context.Context,
	call settle.Call,
	inputToken, outputToken common.Address,
	calls []multiplex.BatchSellSubcall,
	sellAmount, minBuyAmount *big.Int,
) (*big.Int, error) {
	return execute(ctx, x, "multiplex-batch-sell-token-for-token", call, func(f *settle.Frame) (*big.Int, error) {
		return x.multiplex.MultiplexBatchSellTokenForToken(f, inputToken, outputToken, calls, sellAmount, minBuyAmount)
	})
}

// MultiplexBatchSellEthForToken splits the attached value across calls.
func (x *Exchange) MultiplexBatchSellEthForToken(
	ctx context.Context,
	call settle.Call,
	outputToken common.Address,
	calls []multiplex.BatchSellSubcall,
	minBuyAmount *big.Int,
) (*big.Int, error) {
	return execute(ctx, x, "multiplex-batch-sell-eth-for-token", call, func(f *settle.Frame) (*big.Int, error) {
		return x.multiplex.MultiplexBatchSellEthForToken(f, outputToken, calls, minBuyAmount)
	})
}

// MultiplexBatchSellTokenForEth splits sellAmount across calls and pays out
// native currency.
func (x *Exchange) MultiplexBatchSellTokenForEth(
	ctx context.Context,
	call settle.Call,
	inputToken common.Address,
	calls []multiplex.BatchSellSubcall,
	sellAmount, minBuyAmount *big.Int,
) (*big.Int, error) {
	return execute(ctx, x, "multiplex-batch-sell-token-for-eth", call, func(f *settle.Frame) (*big.Int, error) {
		return x.multiplex.MultiplexBatchSellTokenForEth(f, inputToken, calls, sellAmount, minBuyAmount)
	})
}

// MultiplexMultiHopSellTokenForToken routes sellAmount along tokens.
func (x *Exchange) MultiplexMultiHopSellTokenForToken(
	ctx context.Context,
	call settle.Call,
	tokens []common.Address,
	calls []multiplex.MultiHopSellSubcall,
	sellAmount, minBuyAmount *big.Int,
) (*big.Int, error) {
	return execute(ctx, x, "multiplex-multi-hop-sell-token-for-token", call, func(f *settle.Frame) (*big.Int, error) {
		return x.multiplex.MultiplexMultiHopSellTokenForToken(f, tokens, calls, sellAmount, minBuyAmount)
	})
}

// MultiplexMultiHopSellEthForToken routes the attached value along tokens.
func (x *Exchange) MultiplexMultiHopSellEthForToken(
	ctx context.Context,
	call settle.Call,
	tokens []common.Address,
	calls []multiplex.MultiHopSellSubcall,
	minBuyAmount *big.Int,
) (*big.Int, error) {
	return execute(ctx, x, "multiplex-multi-hop-sell-eth-for-token", call, func(f *settle.Frame) (*big.Int, error) {
		return x.multiplex.MultiplexMultiHopSellEthForToken(f, tokens, calls, minBuyAmount)
	})
}

// MultiplexMultiHopSellTokenForEth routes sellAmount along tokens and pays out
// native currency.
func (x *Exchange) MultiplexMultiHopSellTokenForEth(
	ctx context.Context,
	call settle.Call,
	tokens []common.Address,
	calls []multiplex.MultiHopSellSubcall,
	sellAmount, minBuyAmount *big.Int,
) (*big.Int, error) {
	return execute(ctx, x, "multiplex-multi-hop-sell-token-for-eth", call, func(f *settle.Frame) (*big.Int, error) {
		return x.multiplex.MultiplexMultiHopSellTokenForEth(f, tokens, calls, sellAmount, minBuyAmount)
	})
}

// FillQuote executes a fill quote with the caller as payer and recipient.
func (x *Exchange) FillQuote(ctx context.Context, call settle.Call, data *fillquote.TransformData) (fillquote.Result, error) {
	return execute(ctx, x, "fill-quote", call, func(f *settle.Frame) (fillquote.Result, error) {
		return x.fillQuote.Transform(f, data, f.Call.Sender, f.Call.Sender)
	})
}
