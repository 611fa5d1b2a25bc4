package multiplex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// MultiplexBatchSellEthForToken wraps the attached value and batch sells it
// for outputToken.
func (e *Engine) MultiplexBatchSellEthForToken(
	f *settle.Frame,
	outputToken common.Address,
	calls []BatchSellSubcall,
	minBuyAmount *big.Int,
) (*big.Int, error) {
	amount, err := wrapAll(f)
	if err != nil {
		return nil, err
	}
	r := route{payer: f.Env.Exchange, recipient: f.Call.Sender, depth: 1}
	bought, err := e.batchSell(f, f.Env.WrappedNative, outputToken, calls, amount, r)
	if err != nil {
		return nil, err
	}
	if err := checkBought(bought, minBuyAmount); err != nil {
		return nil, err
	}
	RoutesTotal.WithLabelValues("batch-sell-eth-for-token").Inc()
	return bought, nil
}

// MultiplexBatchSellTokenForEth batch sells inputToken for wrapped native
// currency and pays the caller in native currency.
func (e *Engine) MultiplexBatchSellTokenForEth(
	f *settle.Frame,
	inputToken common.Address,
	calls []BatchSellSubcall,
	sellAmount, minBuyAmount *big.Int,
) (*big.Int, error) {
	r := route{payer: f.Call.Sender, recipient: f.Env.Exchange, depth: 1}
	bought, err := e.batchSell(f, inputToken, f.Env.WrappedNative, calls, sellAmount, r)
	if err != nil {
		return nil, err
	}
	if err := checkBought(bought, minBuyAmount); err != nil {
		return nil, err
	}
	if err := unwrapTo(f, f.Call.Sender, bought); err != nil {
		return nil, err
	}
	RoutesTotal.WithLabelValues("batch-sell-token-for-eth").Inc()
	return bought, nil
}

// MultiplexMultiHopSellEthForToken wraps the attached value and sells it
// along tokens, which must start with the wrapped native token.
func (e *Engine) MultiplexMultiHopSellEthForToken(
	f *settle.Frame,
	tokens []common.Address,
	calls []MultiHopSellSubcall,
	minBuyAmount *big.Int,
) (*big.Int, error) {
	if len(tokens) == 0 {
		return nil, types.ErrMismatchedArrayLengths.WithMessage("empty token path")
	}
	if tokens[0] != f.Env.WrappedNative {
		return nil, types.ErrInvalidToken.WithMessage("path must start with %s", f.Env.WrappedNative.Hex())
	}
	amount, err := wrapAll(f)
	if err != nil {
		return nil, err
	}
	r := route{payer: f.Env.Exchange, recipient: f.Call.Sender, depth: 1}
	bought, err := e.multiHopSell(f, tokens, calls, amount, r)
	if err != nil {
		return nil, err
	}
	if err := checkBought(bought, minBuyAmount); err != nil {
		return nil, err
	}
	RoutesTotal.WithLabelValues("multi-hop-sell-eth-for-token").Inc()
	return bought, nil
}

// MultiplexMultiHopSellTokenForEth sells sellAmount of tokens[0] along
// tokens, which must end with the wrapped native token, and pays the caller
// in native currency.
func (e *Engine) MultiplexMultiHopSellTokenForEth(
	f *settle.Frame,
	tokens []common.Address,
	calls []MultiHopSellSubcall,
	sellAmount, minBuyAmount *big.Int,
) (*big.Int, error) {
	if len(tokens) == 0 {
		return nil, types.ErrMismatchedArrayLengths.WithMessage("empty token path")
	}
	if tokens[len(tokens)-1] != f.Env.WrappedNative {
		return nil, types.ErrInvalidToken.WithMessage("path must end with %s", f.Env.WrappedNative.Hex())
	}
	r := route{payer: f.Call.Sender, recipient: f.Env.Exchange, depth: 1}
	bought, err := e.multiHopSell(f, tokens, calls, sellAmount, r)
	if err != nil {
		return nil, err
	}
	if err := checkBought(bought, minBuyAmount); err != nil {
		return nil, err
	}
	if err := unwrapTo(f, f.Call.Sender, bought); err != nil {
		return nil, err
	}
	RoutesTotal.WithLabelValues("multi-hop-sell-token-for-eth").Inc()
	return bought, nil
}

// wrapAll turns the whole native budget into wrapped tokens held by the
// exchange and returns the amount.
func wrapAll(f *settle.Frame) (*big.Int, error) {
	amount := f.EthAvailable()
	if amount.Sign() == 0 {
		return amount, nil
	}
	if err := f.WrapEth(amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func unwrapTo(f *settle.Frame, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := f.UnwrapEth(amount); err != nil {
		return err
	}
	return f.PayEth(to, amount)
}
