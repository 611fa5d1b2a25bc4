package native

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// OtcFillResult holds the amounts moved by an OTC fill.
type OtcFillResult struct {
	TakerTokenFilledAmount *big.Int `json:"takerTokenFilledAmount"`
	MakerTokenFilledAmount *big.Int `json:"makerTokenFilledAmount"`
}

// FillOtcOrder fills up to p.TakerTokenFillAmount of an OTC order and consumes
// its nonce, so the order and every lower nonce in its bucket become unfillable.
func (e *Engine) FillOtcOrder(f *settle.Frame, order *orders.OtcOrder, sig signature.Signature, p FillParams) (OtcFillResult, error) {
	result := OtcFillResult{TakerTokenFilledAmount: new(big.Int), MakerTokenFilledAmount: new(big.Int)}

	hash := order.Hash(f.Env.Domain)
	info, err := f.Ledger.OtcOrderInfo(order, hash, f.Call.Now)
	if err != nil {
		return result, err
	}
	if info.Status != orders.StatusFillable {
		return result, &types.OrderNotFillableError{OrderHash: hash, Status: info.Status}
	}
	if order.Taker != (common.Address{}) && order.Taker != p.Taker {
		return result, &types.OrderNotFillableByTakerError{OrderHash: hash, Taker: p.Taker, OrderTaker: order.Taker}
	}
	if err := e.checkOrigin(f, hash, order.TxOrigin); err != nil {
		return result, err
	}
	if err := e.checkMakerSignature(f, hash, order.Maker, sig); err != nil {
		return result, err
	}

	if err := f.Ledger.RecordOtcNonce(order.Maker, order.NonceBucket, order.Nonce); err != nil {
		return result, err
	}

	result.TakerTokenFilledAmount = minBig(p.TakerTokenFillAmount, order.TakerAmount)
	result.MakerTokenFilledAmount = proportion(result.TakerTokenFilledAmount, order.MakerAmount, order.TakerAmount)

	if err := f.Pay(order.TakerToken, p.Payer, order.Maker, result.TakerTokenFilledAmount); err != nil {
		return result, err
	}
	if err := f.Bank.TransferFrom(order.MakerToken, order.Maker, p.Recipient, result.MakerTokenFilledAmount); err != nil {
		return result, err
	}

	f.Emit(events.OtcOrderFilled{
		OrderHash:              hash,
		Maker:                  order.Maker,
		Taker:                  p.Taker,
		MakerToken:             order.MakerToken,
		TakerToken:             order.TakerToken,
		MakerTokenFilledAmount: result.MakerTokenFilledAmount,
		TakerTokenFilledAmount: result.TakerTokenFilledAmount,
	})
	FillsTotal.WithLabelValues(string(orders.KindOtc)).Inc()

	e.logger.Debug("otc-order-filled",
		zap.String("order-hash", hash.Hex()),
		zap.Uint64("nonce-bucket", order.NonceBucket),
		zap.Stringer("nonce", order.Nonce))

	return result, nil
}

// FillOtcOrderWithEth fills an OTC order whose taker token is the wrapped
// native token (or native currency itself) with the call's attached value.
// Unused value is refunded.
func (e *Engine) FillOtcOrderWithEth(f *settle.Frame, order *orders.OtcOrder, sig signature.Signature) (OtcFillResult, error) {
	amount := f.EthAvailable()
	p := FillParams{
		TakerTokenFillAmount: amount,
		Taker:                f.Call.Sender,
		Sender:               f.Call.Sender,
		Payer:                f.Env.Exchange,
		Recipient:            f.Call.Sender,
	}

	switch order.TakerToken {
	case orders.NativeToken:
		return e.FillOtcOrder(f, order, sig, p)
	case f.Env.WrappedNative:
		if err := f.WrapEth(amount); err != nil {
			return OtcFillResult{}, err
		}
		result, err := e.FillOtcOrder(f, order, sig, p)
		if err != nil {
			return result, err
		}
		unused := new(big.Int).Sub(amount, result.TakerTokenFilledAmount)
		return result, f.UnwrapEth(unused)
	default:
		return OtcFillResult{}, types.ErrInvalidToken.WithMessage("taker token %s is not native", order.TakerToken.Hex())
	}
}

// FillOtcOrderForEth fills an OTC order whose maker token is the wrapped
// native token and pays the maker tokens out as native currency.
func (e *Engine) FillOtcOrderForEth(f *settle.Frame, order *orders.OtcOrder, sig signature.Signature, amount *big.Int) (OtcFillResult, error) {
	if order.MakerToken != f.Env.WrappedNative {
		return OtcFillResult{}, types.ErrInvalidToken.WithMessage("maker token %s is not wrapped native", order.MakerToken.Hex())
	}

	p := TakerFill(f.Call, amount)
	p.Recipient = f.Env.Exchange
	result, err := e.FillOtcOrder(f, order, sig, p)
	if err != nil {
		return result, err
	}
	if err := f.UnwrapEth(result.MakerTokenFilledAmount); err != nil {
		return result, err
	}
	return result, f.PayEth(f.Call.Sender, result.MakerTokenFilledAmount)
}

// FillTakerSignedOtcOrder fills the whole of an OTC order co-signed by its
// taker. The caller relays the order and must be its txOrigin.
func (e *Engine) FillTakerSignedOtcOrder(
	f *settle.Frame,
	order *orders.OtcOrder,
	makerSig, takerSig signature.Signature,
) (OtcFillResult, error) {
	hash := order.Hash(f.Env.Domain)
	if f.Call.Sender != order.TxOrigin {
		return OtcFillResult{}, &types.OrderNotFillableByOriginError{
			OrderHash:     hash,
			Origin:        f.Call.Sender,
			OrderTxOrigin: order.TxOrigin,
		}
	}

	err := f.Env.Validator.Validate(f.Ledger, hash, order.Taker, takerSig)
	var invalid *types.InvalidSignerError
	if errors.As(err, &invalid) || (err == nil && order.Taker == (common.Address{})) {
		signer := common.Address{}
		if invalid != nil {
			signer = invalid.Signer
		}
		return OtcFillResult{}, &types.OrderNotSignedByTakerError{OrderHash: hash, Signer: signer, Taker: order.Taker}
	}
	if err != nil {
		return OtcFillResult{}, err
	}

	return e.FillOtcOrder(f, order, makerSig, FillParams{
		TakerTokenFillAmount: order.TakerAmount,
		Taker:                order.Taker,
		Sender:               f.Call.Sender,
		Payer:                order.Taker,
		Recipient:            order.Taker,
	})
}

// BatchFillTakerSignedOtcOrders fills each taker-signed order independently
// and reports which ones succeeded.
func (e *Engine) BatchFillTakerSignedOtcOrders(
	f *settle.Frame,
	otcOrders []*orders.OtcOrder,
	makerSigs, takerSigs []signature.Signature,
) ([]bool, error) {
	if len(otcOrders) != len(makerSigs) || len(otcOrders) != len(takerSigs) {
		return nil, types.ErrArrayLengthMismatch
	}

	succeeded := make([]bool, len(otcOrders))
	for i, order := range otcOrders {
		err := f.Try(func() error {
			_, err := e.FillTakerSignedOtcOrder(f, order, makerSigs[i], takerSigs[i])
			return err
		})
		if err != nil {
			BatchLegFailures.WithLabelValues(string(orders.KindOtc)).Inc()
			e.logger.Debug("batch-leg-skipped", zap.Int("leg", i), zap.Error(err))
			continue
		}
		succeeded[i] = true
	}
	return succeeded, nil
}
