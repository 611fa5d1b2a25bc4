package multiplex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/bridge"
	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/fillquote"
	"github.com/mselser95/exchange-settlement/internal/native"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// MultiplexBatchSellTokenForToken sells sellAmount of inputToken, taken from
// the caller, across calls and delivers the outputToken bought to the caller.
func (e *Engine) MultiplexBatchSellTokenForToken(
	f *settle.Frame,
	inputToken, outputToken common.Address,
	calls []BatchSellSubcall,
	sellAmount, minBuyAmount *big.Int,
) (*big.Int, error) {
	r := route{payer: f.Call.Sender, recipient: f.Call.Sender, depth: 1}
	bought, err := e.batchSell(f, inputToken, outputToken, calls, sellAmount, r)
	if err != nil {
		return nil, err
	}
	if err := checkBought(bought, minBuyAmount); err != nil {
		return nil, err
	}
	RoutesTotal.WithLabelValues("batch-sell").Inc()
	return bought, nil
}

// batchSell runs the legs in order. A leg that fails for any reason other
// than a malformed route is reverted and sells nothing; the last leg sells
// whatever the others left.
func (e *Engine) batchSell(
	f *settle.Frame,
	in, out common.Address,
	calls []BatchSellSubcall,
	total *big.Int,
	r route,
) (*big.Int, error) {
	if r.depth > e.maxDepth {
		return nil, types.ErrRouteTooDeep.WithMessage("depth %d exceeds %d", r.depth, e.maxDepth)
	}
	if total == nil || total.Sign() < 0 {
		return nil, types.ErrInvalidOrder.WithMessage("sell amount is required")
	}

	sold, bought := zero(), zero()
	for i := range calls {
		call := calls[i]
		if err := checkBatchCall(call, in, out); err != nil {
			return nil, err
		}

		var amount *big.Int
		if i == len(calls)-1 {
			amount = new(big.Int).Sub(total, sold)
		} else {
			amount = call.SellAmount.Resolve(total, sold)
		}
		if amount.Sign() <= 0 {
			continue
		}
		if e.skipExpired(f, call) {
			LegsTotal.WithLabelValues(call.Kind.String(), "expired").Inc()
			continue
		}

		var legSold, legBought *big.Int
		err := f.Try(func() error {
			var err error
			legSold, legBought, err = e.batchLeg(f, in, out, call, amount, r)
			return err
		})
		if err != nil {
			if types.KindOf(err) == types.KindStructural {
				return nil, err
			}
			LegsTotal.WithLabelValues(call.Kind.String(), "failed").Inc()
			e.logger.Debug("batch-sell-leg-failed",
				zap.Int("leg", i),
				zap.String("kind", call.Kind.String()),
				zap.Int("depth", r.depth),
				zap.Error(err))
			continue
		}

		LegsTotal.WithLabelValues(call.Kind.String(), "filled").Inc()
		sold.Add(sold, legSold)
		bought.Add(bought, legBought)
	}

	if sold.Cmp(total) != 0 {
		return nil, types.ErrIncorrectAmountSold.WithMessage("sold %s of %s", sold, total)
	}

	e.logger.Debug("batch-sell-completed",
		zap.String("input-token", in.Hex()),
		zap.String("output-token", out.Hex()),
		zap.Stringer("sold", sold),
		zap.Stringer("bought", bought),
		zap.Int("depth", r.depth))

	return bought, nil
}

// checkBatchCall rejects legs whose payload does not match their kind or
// whose tokens do not match the batch.
func checkBatchCall(call BatchSellSubcall, in, out common.Address) error {
	switch call.Kind {
	case SubcallRfq:
		if call.Rfq == nil || call.Rfq.Order == nil {
			return types.ErrInvalidSubcall.WithMessage("rfq leg without an order")
		}
		return checkPair(call.Rfq.Order.TakerToken, call.Rfq.Order.MakerToken, in, out)
	case SubcallOtc:
		if call.Otc == nil || call.Otc.Order == nil {
			return types.ErrInvalidSubcall.WithMessage("otc leg without an order")
		}
		return checkPair(call.Otc.Order.TakerToken, call.Otc.Order.MakerToken, in, out)
	case SubcallBridge:
		if call.Bridge == nil {
			return types.ErrInvalidSubcall.WithMessage("bridge leg without a source")
		}
	case SubcallFillQuote:
		q := call.FillQuote
		if q == nil {
			return types.ErrInvalidSubcall.WithMessage("fill quote leg without a quote")
		}
		if q.Side != fillquote.Sell {
			return types.ErrInvalidSubcall.WithMessage("fill quote legs must sell")
		}
		return checkPair(q.SellToken, q.BuyToken, in, out)
	case SubcallBatchSell:
		if call.BatchSell == nil {
			return types.ErrInvalidSubcall.WithMessage("batch sell leg without calls")
		}
	case SubcallMultiHopSell:
		if call.MultiHopSell == nil {
			return types.ErrInvalidSubcall.WithMessage("multi-hop leg without calls")
		}
		return checkPath(call.MultiHopSell.Tokens, in, out)
	default:
		return types.ErrInvalidSubcall.WithMessage("unknown subcall kind %d", call.Kind)
	}
	return nil
}

func checkPair(sellToken, buyToken, in, out common.Address) error {
	if sellToken != in || buyToken != out {
		return types.ErrInvalidToken.WithMessage("leg trades %s for %s, route trades %s for %s",
			sellToken.Hex(), buyToken.Hex(), in.Hex(), out.Hex())
	}
	return nil
}

func checkPath(tokens []common.Address, in, out common.Address) error {
	if len(tokens) < 2 {
		return types.ErrMismatchedArrayLengths.WithMessage("token path needs at least two tokens")
	}
	return checkPair(tokens[0], tokens[len(tokens)-1], in, out)
}

// skipExpired emits ExpiredOrder and reports true for an expired order leg.
func (e *Engine) skipExpired(f *settle.Frame, call BatchSellSubcall) bool {
	var (
		kind   orders.Kind
		hash   common.Hash
		maker  common.Address
		expiry uint64
	)
	switch call.Kind {
	case SubcallRfq:
		o := call.Rfq.Order
		kind, hash, maker, expiry = orders.KindRfq, o.Hash(f.Env.Domain), o.Maker, o.Expiry
	case SubcallOtc:
		o := call.Otc.Order
		kind, hash, maker, expiry = orders.KindOtc, o.Hash(f.Env.Domain), o.Maker, o.Expiry
	default:
		return false
	}
	if !orders.IsExpired(expiry, f.Call.Now) {
		return false
	}
	f.Emit(events.ExpiredOrder{Kind: kind, OrderHash: hash, Maker: maker, Expiry: expiry})
	e.logger.Debug("batch-sell-order-expired",
		zap.String("kind", string(kind)),
		zap.String("order-hash", hash.Hex()))
	return true
}

// batchLeg sells amount through one leg and reports what it sold and bought.
func (e *Engine) batchLeg(
	f *settle.Frame,
	in, out common.Address,
	call BatchSellSubcall,
	amount *big.Int,
	r route,
) (*big.Int, *big.Int, error) {
	switch call.Kind {
	case SubcallRfq:
		res, err := e.native.FillRfqOrder(f, call.Rfq.Order, call.Rfq.Signature, e.params(f, amount, r))
		if err != nil {
			return nil, nil, err
		}
		return res.TakerTokenFilledAmount, res.MakerTokenFilledAmount, nil
	case SubcallOtc:
		res, err := e.native.FillOtcOrder(f, call.Otc.Order, call.Otc.Signature, e.params(f, amount, r))
		if err != nil {
			return nil, nil, err
		}
		return res.TakerTokenFilledAmount, res.MakerTokenFilledAmount, nil
	case SubcallBridge:
		bought, err := e.bridges.Execute(f, bridge.Trade{
			Source:     call.Bridge.Source,
			SellToken:  in,
			BuyToken:   out,
			SellAmount: amount,
			Payer:      r.payer,
			Recipient:  r.recipient,
			Data:       call.Bridge.Data,
		})
		if err != nil {
			return nil, nil, err
		}
		return amount, bought, nil
	case SubcallFillQuote:
		q := *call.FillQuote
		q.FillAmount = amount
		res, err := e.fillQuote.Transform(f, &q, r.payer, r.recipient)
		if err != nil {
			return nil, nil, err
		}
		return res.Sold, res.Bought, nil
	case SubcallBatchSell:
		bought, err := e.batchSell(f, in, out, call.BatchSell.Calls, amount, r.nested())
		if err != nil {
			return nil, nil, err
		}
		return amount, bought, nil
	case SubcallMultiHopSell:
		bought, err := e.multiHopSell(f, call.MultiHopSell.Tokens, call.MultiHopSell.Calls, amount, r.nested())
		if err != nil {
			return nil, nil, err
		}
		return amount, bought, nil
	default:
		return nil, nil, types.ErrInvalidSubcall.WithMessage("unknown subcall kind %d", call.Kind)
	}
}

// params fills native orders for the caller out of the route's payer.
func (e *Engine) params(f *settle.Frame, amount *big.Int, r route) native.FillParams {
	return native.FillParams{
		TakerTokenFillAmount: amount,
		Taker:                f.Call.Sender,
		Sender:               f.Call.Sender,
		Payer:                r.payer,
		Recipient:            r.recipient,
	}
}

func checkBought(bought, minBuyAmount *big.Int) error {
	if minBuyAmount != nil && bought.Cmp(minBuyAmount) < 0 {
		return types.ErrUnderbought.WithMessage("bought %s, minimum %s", bought, minBuyAmount)
	}
	return nil
}
