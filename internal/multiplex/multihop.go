package multiplex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/bridge"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// MultiplexMultiHopSellTokenForToken sells sellAmount of tokens[0], taken
// from the caller, through each hop in turn and delivers the last token of
// the path to the caller.
func (e *Engine) MultiplexMultiHopSellTokenForToken(
	f *settle.Frame,
	tokens []common.Address,
	calls []MultiHopSellSubcall,
	sellAmount, minBuyAmount *big.Int,
) (*big.Int, error) {
	r := route{payer: f.Call.Sender, recipient: f.Call.Sender, depth: 1}
	bought, err := e.multiHopSell(f, tokens, calls, sellAmount, r)
	if err != nil {
		return nil, err
	}
	if err := checkBought(bought, minBuyAmount); err != nil {
		return nil, err
	}
	RoutesTotal.WithLabelValues("multi-hop-sell").Inc()
	return bought, nil
}

// multiHopSell feeds the output of each hop into the next. Intermediate
// tokens are held by the exchange; only the first hop pulls from the payer
// and only the last pays the recipient. Any failing hop fails the route.
func (e *Engine) multiHopSell(
	f *settle.Frame,
	tokens []common.Address,
	calls []MultiHopSellSubcall,
	sellAmount *big.Int,
	r route,
) (*big.Int, error) {
	if r.depth > e.maxDepth {
		return nil, types.ErrRouteTooDeep.WithMessage("depth %d exceeds %d", r.depth, e.maxDepth)
	}
	if len(tokens) < 2 || len(calls) != len(tokens)-1 {
		return nil, types.ErrMismatchedArrayLengths.WithMessage("%d hops for %d tokens", len(calls), len(tokens))
	}
	if sellAmount == nil || sellAmount.Sign() < 0 {
		return nil, types.ErrInvalidOrder.WithMessage("sell amount is required")
	}

	amount := new(big.Int).Set(sellAmount)
	for i, call := range calls {
		hop := route{payer: f.Env.Exchange, recipient: f.Env.Exchange, depth: r.depth}
		if i == 0 {
			hop.payer = r.payer
		}
		if i == len(calls)-1 {
			hop.recipient = r.recipient
		}

		out, err := e.hop(f, tokens[i], tokens[i+1], call, amount, hop)
		if err != nil {
			LegsTotal.WithLabelValues(call.Kind.String(), "failed").Inc()
			e.logger.Debug("multi-hop-sell-hop-failed",
				zap.Int("hop", i),
				zap.String("kind", call.Kind.String()),
				zap.Int("depth", r.depth),
				zap.Error(err))
			return nil, err
		}
		LegsTotal.WithLabelValues(call.Kind.String(), "filled").Inc()
		amount = out
	}

	e.logger.Debug("multi-hop-sell-completed",
		zap.Int("hops", len(calls)),
		zap.Stringer("sold", sellAmount),
		zap.Stringer("bought", amount),
		zap.Int("depth", r.depth))

	return amount, nil
}

func (e *Engine) hop(
	f *settle.Frame,
	in, out common.Address,
	call MultiHopSellSubcall,
	amount *big.Int,
	r route,
) (*big.Int, error) {
	switch call.Kind {
	case SubcallBridge:
		if call.Bridge == nil {
			return nil, types.ErrInvalidSubcall.WithMessage("bridge hop without a source")
		}
		return e.bridges.Execute(f, bridge.Trade{
			Source:     call.Bridge.Source,
			SellToken:  in,
			BuyToken:   out,
			SellAmount: amount,
			Payer:      r.payer,
			Recipient:  r.recipient,
			Data:       call.Bridge.Data,
		})
	case SubcallBatchSell:
		if call.BatchSell == nil {
			return nil, types.ErrInvalidSubcall.WithMessage("batch sell hop without calls")
		}
		return e.batchSell(f, in, out, call.BatchSell.Calls, amount, r.nested())
	case SubcallMultiHopSell:
		if call.MultiHopSell == nil {
			return nil, types.ErrInvalidSubcall.WithMessage("multi-hop hop without calls")
		}
		if err := checkPath(call.MultiHopSell.Tokens, in, out); err != nil {
			return nil, err
		}
		return e.multiHopSell(f, call.MultiHopSell.Tokens, call.MultiHopSell.Calls, amount, r.nested())
	default:
		return nil, types.ErrInvalidSubcall.WithMessage("%s cannot be a hop", call.Kind)
	}
}
