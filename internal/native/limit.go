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

// FillLimitOrder fills up to p.TakerTokenFillAmount of order, clamping to what remains.
// Open orders (zero taker) pay the protocol fee out of the call's native budget.
func (e *Engine) FillLimitOrder(f *settle.Frame, order *orders.LimitOrder, sig signature.Signature, p FillParams) (FillResult, error) {
	hash := order.Hash(f.Env.Domain)
	info, err := f.Ledger.LimitOrderInfo(order, hash, f.Call.Now)
	if err != nil {
		return emptyResult(), err
	}
	if info.Status != orders.StatusFillable {
		return emptyResult(), &types.OrderNotFillableError{OrderHash: hash, Status: info.Status}
	}

	if order.Taker != (common.Address{}) && order.Taker != p.Taker {
		return emptyResult(), &types.OrderNotFillableByTakerError{OrderHash: hash, Taker: p.Taker, OrderTaker: order.Taker}
	}
	if order.Sender != (common.Address{}) && order.Sender != p.Sender {
		return emptyResult(), &types.OrderNotFillableBySenderError{OrderHash: hash, Sender: p.Sender, OrderSender: order.Sender}
	}
	if err := e.checkMakerSignature(f, hash, order.Maker, sig); err != nil {
		return emptyResult(), err
	}

	protocolFee := new(big.Int)
	if order.Taker == (common.Address{}) {
		protocolFee = f.Env.ProtocolFee(f.Call.GasPrice)
		if err := e.collectProtocolFee(f, order.Pool, protocolFee); err != nil {
			return emptyResult(), err
		}
	}

	result, err := e.settle(f, settlement{
		hash:         hash,
		maker:        order.Maker,
		makerToken:   order.MakerToken,
		takerToken:   order.TakerToken,
		makerAmount:  order.MakerAmount,
		takerAmount:  order.TakerAmount,
		feeAmount:    order.TakerTokenFeeAmount,
		feeRecipient: order.FeeRecipient,
		filled:       info.TakerTokenFilledAmount,
	}, p)
	if err != nil {
		return result, err
	}
	result.ProtocolFeePaid = protocolFee

	f.Emit(events.LimitOrderFilled{
		OrderHash:                 hash,
		Maker:                     order.Maker,
		Taker:                     p.Taker,
		FeeRecipient:              order.FeeRecipient,
		MakerToken:                order.MakerToken,
		TakerToken:                order.TakerToken,
		TakerTokenFilledAmount:    result.TakerTokenFilledAmount,
		MakerTokenFilledAmount:    result.MakerTokenFilledAmount,
		TakerTokenFeeFilledAmount: result.TakerTokenFeeFilledAmount,
		ProtocolFeePaid:           protocolFee,
		Pool:                      order.Pool,
	})
	FillsTotal.WithLabelValues(string(orders.KindLimit)).Inc()

	e.logger.Debug("limit-order-filled",
		zap.String("order-hash", hash.Hex()),
		zap.Stringer("taker-token-filled", result.TakerTokenFilledAmount),
		zap.Stringer("maker-token-filled", result.MakerTokenFilledAmount))

	return result, nil
}

// FillOrKillLimitOrder fills exactly p.TakerTokenFillAmount or fails.
func (e *Engine) FillOrKillLimitOrder(f *settle.Frame, order *orders.LimitOrder, sig signature.Signature, p FillParams) (FillResult, error) {
	result, err := e.FillLimitOrder(f, order, sig, p)
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

// BatchFillLimitOrders fills each order with the caller's own tokens. Failing
// legs are skipped unless revertIfIncomplete, in which case any failure or
// partial fill fails the batch.
func (e *Engine) BatchFillLimitOrders(
	f *settle.Frame,
	limitOrders []*orders.LimitOrder,
	sigs []signature.Signature,
	amounts []*big.Int,
	revertIfIncomplete bool,
) ([]FillResult, error) {
	if len(limitOrders) != len(sigs) || len(limitOrders) != len(amounts) {
		return nil, types.ErrArrayLengthMismatch
	}

	results := make([]FillResult, len(limitOrders))
	for i, order := range limitOrders {
		err := f.Try(func() error {
			var err error
			results[i], err = e.FillLimitOrder(f, order, sigs[i], TakerFill(f.Call, amounts[i]))
			return err
		})
		if err != nil {
			results[i] = emptyResult()
			if revertIfIncomplete {
				return nil, err
			}
			BatchLegFailures.WithLabelValues(string(orders.KindLimit)).Inc()
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

// CancelLimitOrder cancels order. The maker or one of its registered signers may cancel.
func (e *Engine) CancelLimitOrder(f *settle.Frame, order *orders.LimitOrder) error {
	return e.cancel(f, order.Hash(f.Env.Domain), order.Maker)
}

// BatchCancelLimitOrders cancels every order or none.
func (e *Engine) BatchCancelLimitOrders(f *settle.Frame, limitOrders []*orders.LimitOrder) error {
	for _, order := range limitOrders {
		if err := e.CancelLimitOrder(f, order); err != nil {
			return err
		}
	}
	return nil
}

// CancelPairLimitOrders cancels the caller's limit orders for the ordered
// pair with a salt below minValidSalt.
func (e *Engine) CancelPairLimitOrders(f *settle.Frame, makerToken, takerToken common.Address, minValidSalt *big.Int) error {
	return e.cancelPair(f, ledger.PairLimit, f.Call.Sender, makerToken, takerToken, minValidSalt)
}

// CancelPairLimitOrdersWithSigner is CancelPairLimitOrders on behalf of a maker
// that registered the caller as a signer.
func (e *Engine) CancelPairLimitOrdersWithSigner(
	f *settle.Frame,
	maker, makerToken, takerToken common.Address,
	minValidSalt *big.Int,
) error {
	if err := e.requireSigner(f, maker); err != nil {
		return err
	}
	return e.cancelPair(f, ledger.PairLimit, maker, makerToken, takerToken, minValidSalt)
}

// BatchCancelPairLimitOrders applies every pair cancellation or none.
func (e *Engine) BatchCancelPairLimitOrders(f *settle.Frame, makerTokens, takerTokens []common.Address, minValidSalts []*big.Int) error {
	if len(makerTokens) != len(takerTokens) || len(makerTokens) != len(minValidSalts) {
		return types.ErrArrayLengthMismatch
	}
	for i := range makerTokens {
		if err := e.CancelPairLimitOrders(f, makerTokens[i], takerTokens[i], minValidSalts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) collectProtocolFee(f *settle.Frame, pool common.Hash, fee *big.Int) error {
	if fee.Sign() == 0 {
		return nil
	}
	if f.EthAvailable().Cmp(fee) < 0 {
		return types.ErrInsufficientProtocolFee.WithMessage("fee %s, available %s", fee, f.EthAvailable())
	}
	if err := f.PayEth(f.Env.ProtocolFeeCollector, fee); err != nil {
		return err
	}
	paid, _ := new(big.Float).SetInt(fee).Float64()
	ProtocolFeesPaid.Add(paid)
	e.logger.Debug("protocol-fee-paid", zap.String("pool", pool.Hex()), zap.Stringer("amount", fee))
	return nil
}
