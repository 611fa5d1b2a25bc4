package exchange

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/internal/native"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
)

// FillLimitOrder fills up to amount of a limit order with the caller's tokens.
func (x *Exchange) FillLimitOrder(
	ctx context.Context,
	call settle.Call,
	order *orders.LimitOrder,
	sig signature.Signature,
	amount *big.Int,
) (native.FillResult, error) {
	return execute(ctx, x, "fill-limit-order", call, func(f *settle.Frame) (native.FillResult, error) {
		return x.native.FillLimitOrder(f, order, sig, native.TakerFill(f.Call, amount))
	})
}

// FillOrKillLimitOrder fills exactly amount of a limit order or nothing.
func (x *Exchange) FillOrKillLimitOrder(
	ctx context.Context,
	call settle.Call,
	order *orders.LimitOrder,
	sig signature.Signature,
	amount *big.Int,
) (native.FillResult, error) {
	return execute(ctx, x, "fill-or-kill-limit-order", call, func(f *settle.Frame) (native.FillResult, error) {
		return x.native.FillOrKillLimitOrder(f, order, sig, native.TakerFill(f.Call, amount))
	})
}

// BatchFillLimitOrders fills several limit orders in one unit of work.
func (x *Exchange) BatchFillLimitOrders(
	ctx context.Context,
	call settle.Call,
	limitOrders []*orders.LimitOrder,
	sigs []signature.Signature,
	amounts []*big.Int,
	revertIfIncomplete bool,
) ([]native.FillResult, error) {
	return execute(ctx, x, "batch-fill-limit-orders", call, func(f *settle.Frame) ([]native.FillResult, error) {
		return x.native.BatchFillLimitOrders(f, limitOrders, sigs, amounts, revertIfIncomplete)
	})
}

// FillRfqOrder fills up to amount of an RFQ order with the caller's tokens.
func (x *Exchange) FillRfqOrder(
	ctx context.Context,
	call settle.Call,
	order *orders.RfqOrder,
	sig signature.Signature,
	amount *big.Int,
) (native.FillResult, error) {
	return execute(ctx, x, "fill-rfq-order", call, func(f *settle.Frame) (native.FillResult, error) {
		return x.native.FillRfqOrder(f, order, sig, native.TakerFill(f.Call, amount))
	})
}

// FillOrKillRfqOrder fills exactly amount of an RFQ order or nothing.
func (x *Exchange) FillOrKillRfqOrder(
	ctx context.Context,
	call settle.Call,
	order *orders.RfqOrder,
	sig signature.Signature,
	amount *big.Int,
) (native.FillResult, error) {
	return execute(ctx, x, "fill-or-kill-rfq-order", call, func(f *settle.Frame) (native.FillResult, error) {
		return x.native.FillOrKillRfqOrder(f, order, sig, native.TakerFill(f.Call, amount))
	})
}

// BatchFillRfqOrders fills several RFQ orders in one unit of work.
func (x *Exchange) BatchFillRfqOrders(
	ctx context.Context,
	call settle.Call,
	rfqOrders []*orders.RfqOrder,
	sigs []signature.Signature,
	amounts []*big.Int,
	revertIfIncomplete bool,
) ([]native.FillResult, error) {
	return execute(ctx, x, "batch-fill-rfq-orders", call, func(f *settle.Frame) ([]native.FillResult, error) {
		return x.native.BatchFillRfqOrders(f, rfqOrders, sigs, amounts, revertIfIncomplete)
	})
}

// FillOtcOrder fills up to amount of an OTC order with the caller's tokens.
func (x *Exchange) FillOtcOrder(
	ctx context.Context,
	call settle.Call,
	order *orders.OtcOrder,
	sig signature.Signature,
	amount *big.Int,
) (native.OtcFillResult, error) {
	return execute(ctx, x, "fill-otc-order", call, func(f *settle.Frame) (native.OtcFillResult, error) {
		return x.native.FillOtcOrder(f, order, sig, native.TakerFill(f.Call, amount))
	})
}

// FillOtcOrderWithEth fills an OTC order selling wrapped native currency
// with the value attached to call.
func (x *Exchange) FillOtcOrderWithEth(
	ctx context.Context,
	call settle.Call,
	order *orders.OtcOrder,
	sig signature.Signature,
) (native.OtcFillResult, error) {
	return execute(ctx, x, "fill-otc-order-with-eth", call, func(f *settle.Frame) (native.OtcFillResult, error) {
		return x.native.FillOtcOrderWithEth(f, order, sig)
	})
}

// FillOtcOrderForEth fills an OTC order buying wrapped native currency and
// pays the caller in native currency.
func (x *Exchange) FillOtcOrderForEth(
	ctx context.Context,
	call settle.Call,
	order *orders.OtcOrder,
	sig signature.Signature,
	amount *big.Int,
) (native.OtcFillResult, error) {
	return execute(ctx, x, "fill-otc-order-for-eth", call, func(f *settle.Frame) (native.OtcFillResult, error) {
		return x.native.FillOtcOrderForEth(f, order, sig, amount)
	})
}

// FillTakerSignedOtcOrder relays an OTC order the taker also signed.
func (x *Exchange) FillTakerSignedOtcOrder(
	ctx context.Context,
	call settle.Call,
	order *orders.OtcOrder,
	makerSig, takerSig signature.Signature,
) (native.OtcFillResult, error) {
	return execute(ctx, x, "fill-taker-signed-otc-order", call, func(f *settle.Frame) (native.OtcFillResult, error) {
		return x.native.FillTakerSignedOtcOrder(f, order, makerSig, takerSig)
	})
}

// BatchFillTakerSignedOtcOrders relays several taker-signed OTC orders.
func (x *Exchange) BatchFillTakerSignedOtcOrders(
	ctx context.Context,
	call settle.Call,
	otcOrders []*orders.OtcOrder,
	makerSigs, takerSigs []signature.Signature,
) ([]bool, error) {
	return execute(ctx, x, "batch-fill-taker-signed-otc-orders", call, func(f *settle.Frame) ([]bool, error) {
		return x.native.BatchFillTakerSignedOtcOrders(f, otcOrders, makerSigs, takerSigs)
	})
}

// CancelLimitOrder cancels a limit order made by the caller.
func (x *Exchange) CancelLimitOrder(ctx context.Context, call settle.Call, order *orders.LimitOrder) error {
	return run(ctx, x, "cancel-limit-order", call, func(f *settle.Frame) error {
		return x.native.CancelLimitOrder(f, order)
	})
}

// BatchCancelLimitOrders cancels several limit orders.
func (x *Exchange) BatchCancelLimitOrders(ctx context.Context, call settle.Call, limitOrders []*orders.LimitOrder) error {
	return run(ctx, x, "batch-cancel-limit-orders", call, func(f *settle.Frame) error {
		return x.native.BatchCancelLimitOrders(f, limitOrders)
	})
}

// CancelRfqOrder cancels an RFQ order made by the caller.
func (x *Exchange) CancelRfqOrder(ctx context.Context, call settle.Call, order *orders.RfqOrder) error {
	return run(ctx, x, "cancel-rfq-order", call, func(f *settle.Frame) error {
		return x.native.CancelRfqOrder(f, order)
	})
}

// BatchCancelRfqOrders cancels several RFQ orders.
func (x *Exchange) BatchCancelRfqOrders(ctx context.Context, call settle.Call, rfqOrders []*orders.RfqOrder) error {
	return run(ctx, x, "batch-cancel-rfq-orders", call, func(f *settle.Frame) error {
		return x.native.BatchCancelRfqOrders(f, rfqOrders)
	})
}

// CancelPairLimitOrders cancels the caller's limit orders for a pair with a
// salt below minValidSalt.
func (x *Exchange) CancelPairLimitOrders(
	ctx context.Context,
	call settle.Call,
	makerToken, takerToken common.Address,
	minValidSalt *big.Int,
) error {
	return run(ctx, x, "cancel-pair-limit-orders", call, func(f *settle.Frame) error {
		return x.native.CancelPairLimitOrders(f, makerToken, takerToken, minValidSalt)
	})
}

// CancelPairLimitOrdersWithSigner cancels pair orders of maker as one of its
// registered signers.
func (x *Exchange) CancelPairLimitOrdersWithSigner(
	ctx context.Context,
	call settle.Call,
	maker, makerToken, takerToken common.Address,
	minValidSalt *big.Int,
) error {
	return run(ctx, x, "cancel-pair-limit-orders-with-signer", call, func(f *settle.Frame) error {
		return x.native.CancelPairLimitOrdersWithSigner(f, maker, makerToken, takerToken, minValidSalt)
	})
}

// BatchCancelPairLimitOrders cancels several pairs at once.
func (x *Exchange) BatchCancelPairLimitOrders(
	ctx context.Context,
	call settle.Call,
	makerTokens, takerTokens []common.Address,
	minValidSalts []*big.Int,
) error {
	return run(ctx, x, "batch-cancel-pair-limit-orders", call, func(f *settle.Frame) error {
		return x.native.BatchCancelPairLimitOrders(f, makerTokens, takerTokens, minValidSalts)
	})
}

// CancelPairRfqOrders is CancelPairLimitOrders for RFQ orders.
func (x *Exchange) CancelPairRfqOrders(
	ctx context.Context,
	call settle.Call,
	makerToken, takerToken common.Address,
	minValidSalt *big.Int,
) error {
	return run(ctx, x, "cancel-pair-rfq-orders", call, func(f *settle.Frame) error {
		return x.native.CancelPairRfqOrders(f, makerToken, takerToken, minValidSalt)
	})
}

// CancelPairRfqOrdersWithSigner is CancelPairLimitOrdersWithSigner for RFQ orders.
func (x *Exchange) CancelPairRfqOrdersWithSigner(
	ctx context.Context,
	call settle.Call,
	maker, makerToken, takerToken common.Address,
	minValidSalt *big.Int,
) error {
	return run(ctx, x, "cancel-pair-rfq-orders-with-signer", call, func(f *settle.Frame) error {
		return x.native.CancelPairRfqOrdersWithSigner(f, maker, makerToken, takerToken, minValidSalt)
	})
}

// BatchCancelPairRfqOrders cancels several RFQ pairs at once.
func (x *Exchange) BatchCancelPairRfqOrders(
	ctx context.Context,
	call settle.Call,
	makerTokens, takerTokens []common.Address,
	minValidSalts []*big.Int,
) error {
	return run(ctx, x, "batch-cancel-pair-rfq-orders", call, func(f *settle.Frame) error {
		return x.native.BatchCancelPairRfqOrders(f, makerTokens, takerTokens, minValidSalts)
	})
}

// RegisterAllowedRfqOrigins lets origins fill RFQ orders whose txOrigin is the caller.
func (x *Exchange) RegisterAllowedRfqOrigins(
	ctx context.Context,
	call settle.Call,
	origins []common.Address,
	allowed bool,
) error {
	return run(ctx, x, "register-allowed-rfq-origins", call, func(f *settle.Frame) error {
		return x.native.RegisterAllowedRfqOrigins(f, origins, allowed)
	})
}

// RegisterAllowedOrderSigner lets signer sign orders on behalf of the caller.
func (x *Exchange) RegisterAllowedOrderSigner(
	ctx context.Context,
	call settle.Call,
	signer common.Address,
	allowed bool,
) error {
	return run(ctx, x, "register-allowed-order-signer", call, func(f *settle.Frame) error {
		return x.native.RegisterAllowedOrderSigner(f, signer, allowed)
	})
}

// GetLimitOrderInfo returns the status of a limit order at time now.
func (x *Exchange) GetLimitOrderInfo(ctx context.Context, now uint64, order *orders.LimitOrder) (orders.OrderInfo, error) {
	return view(ctx, x, now, func(f *settle.Frame) (orders.OrderInfo, error) {
		return x.native.GetLimitOrderInfo(f, order)
	})
}

// GetRfqOrderInfo returns the status of an RFQ order at time now.
func (x *Exchange) GetRfqOrderInfo(ctx context.Context, now uint64, order *orders.RfqOrder) (orders.OrderInfo, error) {
	return view(ctx, x, now, func(f *settle.Frame) (orders.OrderInfo, error) {
		return x.native.GetRfqOrderInfo(f, order)
	})
}

// GetOtcOrderInfo returns the status of an OTC order at time now.
func (x *Exchange) GetOtcOrderInfo(ctx context.Context, now uint64, order *orders.OtcOrder) (orders.OtcOrderInfo, error) {
	return view(ctx, x, now, func(f *settle.Frame) (orders.OtcOrderInfo, error) {
		return x.native.GetOtcOrderInfo(f, order)
	})
}

// GetLimitOrderRelevantState returns status, fillable amount and signature validity.
func (x *Exchange) GetLimitOrderRelevantState(
	ctx context.Context,
	now uint64,
	order *orders.LimitOrder,
	sig signature.Signature,
) (native.RelevantState, error) {
	return view(ctx, x, now, func(f *settle.Frame) (native.RelevantState, error) {
		return x.native.GetLimitOrderRelevantState(f, order, sig)
	})
}

// GetRfqOrderRelevantState returns status, fillable amount and signature validity.
func (x *Exchange) GetRfqOrderRelevantState(
	ctx context.Context,
	now uint64,
	order *orders.RfqOrder,
	sig signature.Signature,
) (native.RelevantState, error) {
	return view(ctx, x, now, func(f *settle.Frame) (native.RelevantState, error) {
		return x.native.GetRfqOrderRelevantState(f, order, sig)
	})
}

// BatchGetLimitOrderRelevantStates evaluates several limit orders.
func (x *Exchange) BatchGetLimitOrderRelevantStates(
	ctx context.Context,
	now uint64,
	limitOrders []*orders.LimitOrder,
	sigs []signature.Signature,
) ([]native.RelevantState, error) {
	return view(ctx, x, now, func(f *settle.Frame) ([]native.RelevantState, error) {
		return x.native.BatchGetLimitOrderRelevantStates(f, limitOrders, sigs)
	})
}

// BatchGetRfqOrderRelevantStates evaluates several RFQ orders.
func (x *Exchange) BatchGetRfqOrderRelevantStates(
	ctx context.Context,
	now uint64,
	rfqOrders []*orders.RfqOrder,
	sigs []signature.Signature,
) ([]native.RelevantState, error) {
	return view(ctx, x, now, func(f *settle.Frame) ([]native.RelevantState, error) {
		return x.native.BatchGetRfqOrderRelevantStates(f, rfqOrders, sigs)
	})
}

// GetProtocolFeeMultiplier returns the multiplier applied to the gas price.
func (x *Exchange) GetProtocolFeeMultiplier() *big.Int {
	m := x.Env().ProtocolFeeMultiplier
	if m == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(m)
}
