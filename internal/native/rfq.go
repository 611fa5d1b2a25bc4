package native

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/ledger"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// FillRfqOrder fills up to p.TakerTokenFillAmount of an RFQ order. The
// transaction origin must be the order's txOrigin or one of its registered origins.
func (e *Engine) FillRfqOrder(f *settle.Frame, order *orders.RfqOrder, sig signature.Signature, p FillParams) (FillResult, error) {
	hash := order.Hash(f.Env.Domain)
	info, err := f.Ledger.RfqOrderInfo(order, hash, f.Call.Now)
	if err != nil {
		return emptyResult(), err
	}
	if info.Status != orders.StatusFillable {
		return emptyResult(), &types.OrderNotFillableError{OrderHash: hash, Status: info.Status}
	}
	if err := e.checkOrigin(f, hash, order.TxOrigin); err != nil {
		return emptyResult(), err
	}
	if err := e.checkMakerSignature(f, hash, order.Maker, sig); err != nil {
		return emptyResult(), err
	}

	result, err := e.settle(f, settlement{
		hash:        hash,
		maker:       order.Maker,
		makerToken:  order.MakerToken,
		takerToken:  order.TakerToken,
		makerAmount: order.MakerAmount,
		takerAmount: order.TakerAmount,
		filled:      info.TakerTokenFilledAmount,
	}, p)
	if err != nil {
		return result, err
	}

	f.Emit(events.RfqOrderFilled{
		OrderHash:              hash,
		Maker:                  order.Maker,
		Taker:                  p.Taker,
		MakerToken:             order.MakerToken,
		TakerToken:             order.TakerToken,
		TakerTokenFilledAmount: result.TakerTokenFilledAmount,
		MakerTokenFilledAmount: result.MakerTokenFilledAmount,
		Pool:                   order.Pool,
	})
	FillsTotal.WithLabelValues(string(orders.KindRfq)).Inc()

	e.logger.Debug("rfq-order-filled",
		zap.String("order-hash", hash.Hex()),
		zap.Stringer("taker-token-filled", result.TakerTokenFilledAmount))

	return result, nil
}

// FillOrKillRfqOrder fills exactly p.TakerTokenFillAmount or fails.
func (e *Engine) FillOrKillRfqOrder(f *settle.Frame, order *orders.RfqOrder, sig signature.Signature, p FillParams) (FillResult, error) {
	result, err := e.FillRfqOrder(f, order, sig, p)
	if err != nil {
		return result, err
	}
	if result.TakerTokenFilledAmount.Cmp(p.TakerTokenFillAmount) < 0 {
		return result, &types.FillOrKillFailedError{
			OrderHash:      order.Hash(f.Env.Domain),
			Requested:      new(big.Int).Set(p.TakerTokenFillAmount),
			ActualFillable: result.TakerTokenFilledAmount,
		}
	}
	return result, nil
}

// BatchFillRfqOrders is BatchFillLimitOrders for RFQ orders.
func (e *Engine) BatchFillRfqOrders(
	f *settle.Frame,
	rfqOrders []*orders.RfqOrder,
	sigs []signature.Signature,
	amounts []*big.Int,
	revertIfIncomplete bool,
) ([]FillResult, error) {
	if len(rfqOrders) != len(sigs) || len(rfqOrders) != len(amounts) {
		return nil, types.ErrArrayLengthMismatch
	}

	results := make([]FillResult, len(rfqOrders))
	for i, order := range rfqOrders {
		err := f.Try(func() error {
			var err error
			results[i], err = e.FillRfqOrder(f, order, sigs[i], TakerFill(f.Call, amounts[i]))
			return err
		})
		if err != nil {
			results[i] = emptyResult()
			if revertIfIncomplete {
				return nil, err
			}
			BatchLegFailures.WithLabelValues(string(orders.KindRfq)).Inc()
			e.logger.Debug("batch-leg-skipped", zap.Int("leg", i), zap.Error(err))
			continue
		}
		if revertIfIncomplete && results[i].TakerTokenFilledAmount.Cmp(amounts[i]) < 0 {
			return nil, &types.BatchFillIncompleteError{
				OrderHash:              order.Hash(f.Env.Domain),
				TakerTokenFilledAmount: results[i].TakerTokenFilledAmount,
				TakerTokenFillAmount:   new(big.Int).Set(amounts[i]),
			}
		}
	}
	return results, nil
}

// CancelRfqOrder cancels order. The maker or one of its registered signers may cancel.
func (e *Engine) CancelRfqOrder(f *settle.Frame, order *orders.RfqOrder) error {
	return e.cancel(f, order.Hash(f.Env.Domain), order.Maker)
}

// BatchCancelRfqOrders cancels every order or none.
func (e *Engine) BatchCancelRfqOrders(f *settle.Frame, rfqOrders []*orders.RfqOrder) error {
	for _, order := range rfqOrders {
		if err := e.CancelRfqOrder(f, order); err != nil {
			return err
		}
	}
	return nil
}

// CancelPairRfqOrders cancels the caller's RFQ orders for the ordered pair
// with a salt below minValidSalt.
func (e *Engine) CancelPairRfqOrders(f *settle.Frame, makerToken, takerToken common.Address, minValidSalt *big.Int) error {
	return e.cancelPair(f, ledger.PairRfq, f.Call.Sender, makerToken, takerToken, minValidSalt)
}

// CancelPairRfqOrdersWithSigner is CancelPairRfqOrders on behalf of a maker
// that registered the caller as a signer.
func (e *Engine) CancelPairRfqOrdersWithSigner(
	f *settle.Frame,
	maker, makerToken, takerToken common.Address,
	minValidSalt *big.Int,
) error {
	if err := e.requireSigner(f, maker); err != nil {
		return err
	}
	return e.cancelPair(f, ledger.PairRfq, maker, makerToken, takerToken, minValidSalt)
}

// BatchCancelPairRfqOrders applies every pair cancellation or none.
func (e *Engine) BatchCancelPairRfqOrders(f *settle.Frame, makerTokens, takerTokens []common.Address, minValidSalts []*big.Int) error {
	if len(makerTokens) != len(takerTokens) || len(makerTokens) != len(minValidSalts) {
		return types.ErrArrayLengthMismatch
	}
	for i := range makerTokens {
		if err := e.CancelPairRfqOrders(f, makerTokens[i], takerTokens[i], minValidSalts[i]); err != nil {
			return err
		}
	}
	return nil
}
