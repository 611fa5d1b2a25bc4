package native

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// RelevantState is everything a taker needs to decide whether to fill an order.
type RelevantState struct {
	OrderInfo                      orders.OrderInfo `json:"orderInfo"`
	ActualFillableTakerTokenAmount *big.Int         `json:"actualFillableTakerTokenAmount"`
	IsSignatureValid               bool             `json:"isSignatureValid"`
}

// GetLimitOrderInfo returns the ledger status of a limit order.
func (e *Engine) GetLimitOrderInfo(f *settle.Frame, order *orders.LimitOrder) (orders.OrderInfo, error) {
	return f.Ledger.LimitOrderInfo(order, order.Hash(f.Env.Domain), f.Call.Now)
}

// GetRfqOrderInfo returns the ledger status of an RFQ order.
func (e *Engine) GetRfqOrderInfo(f *settle.Frame, order *orders.RfqOrder) (orders.OrderInfo, error) {
	return f.Ledger.RfqOrderInfo(order, order.Hash(f.Env.Domain), f.Call.Now)
}

// GetOtcOrderInfo returns the ledger status of an OTC order.
func (e *Engine) GetOtcOrderInfo(f *settle.Frame, order *orders.OtcOrder) (orders.OtcOrderInfo, error) {
	return f.Ledger.OtcOrderInfo(order, order.Hash(f.Env.Domain), f.Call.Now)
}

// GetLimitOrderRelevantState never fails on a bad order; only storage failures are returned.
func (e *Engine) GetLimitOrderRelevantState(f *settle.Frame, order *orders.LimitOrder, sig signature.Signature) (RelevantState, error) {
	info, err := e.GetLimitOrderInfo(f, order)
	if err != nil {
		return RelevantState{}, err
	}
	return e.relevantState(f, info, order.Maker, order.MakerToken, order.MakerAmount, order.TakerAmount, sig)
}

// GetRfqOrderRelevantState never fails on a bad order; only storage failures are returned.
func (e *Engine) GetRfqOrderRelevantState(f *settle.Frame, order *orders.RfqOrder, sig signature.Signature) (RelevantState, error) {
	info, err := e.GetRfqOrderInfo(f, order)
	if err != nil {
		return RelevantState{}, err
	}
	return e.relevantState(f, info, order.Maker, order.MakerToken, order.MakerAmount, order.TakerAmount, sig)
}

// BatchGetLimitOrderRelevantStates reads the relevant state of every order concurrently.
// The result always has one entry per order.
func (e *Engine) BatchGetLimitOrderRelevantStates(
	f *settle.Frame,
	limitOrders []*orders.LimitOrder,
	sigs []signature.Signature,
) ([]RelevantState, error) {
	if len(limitOrders) != len(sigs) {
		return nil, types.ErrArrayLengthMismatch
	}
	return batchStates(f, len(limitOrders), func(i int) (RelevantState, error) {
		return e.GetLimitOrderRelevantState(f, limitOrders[i], sigs[i])
	})
}

// BatchGetRfqOrderRelevantStates reads the relevant state of every order concurrently.
func (e *Engine) BatchGetRfqOrderRelevantStates(
	f *settle.Frame,
	rfqOrders []*orders.RfqOrder,
	sigs []signature.Signature,
) ([]RelevantState, error) {
	if len(rfqOrders) != len(sigs) {
		return nil, types.ErrArrayLengthMismatch
	}
	return batchStates(f, len(rfqOrders), func(i int) (RelevantState, error) {
		return e.GetRfqOrderRelevantState(f, rfqOrders[i], sigs[i])
	})
}

func batchStates(f *settle.Frame, n int, get func(i int) (RelevantState, error)) ([]RelevantState, error) {
	states := make([]RelevantState, n)
	g, _ := errgroup.WithContext(f.Tx.Context())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			s, err := get(i)
			if err != nil {
				return err
			}
			states[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}

// relevantState bounds the remaining amount by the maker's balance and
// allowance. An order with a zero maker amount has nothing fillable.
func (e *Engine) relevantState(
	f *settle.Frame,
	info orders.OrderInfo,
	maker, makerToken common.Address,
	makerAmount, takerAmount *big.Int,
	sig signature.Signature,
) (RelevantState, error) {
	state := RelevantState{OrderInfo: info, ActualFillableTakerTokenAmount: new(big.Int)}

	err := f.Env.Validator.Validate(f.Ledger, info.OrderHash, maker, sig)
	var invalid *types.InvalidSignerError
	switch {
	case err == nil:
		state.IsSignatureValid = true
	case !errors.As(err, &invalid):
		return state, err
	}

	if info.Status != orders.StatusFillable || makerAmount == nil || makerAmount.Sign() == 0 {
		return state, nil
	}

	remainingTaker := new(big.Int).Sub(takerAmount, info.TakerTokenFilledAmount)
	fillableMaker := proportion(remainingTaker, makerAmount, takerAmount)

	balance, err := f.Bank.BalanceOf(makerToken, maker)
	if err != nil {
		return state, err
	}
	allowance, err := f.Bank.Allowance(makerToken, maker, f.Env.Exchange)
	if err != nil {
		return state, err
	}
	fillableMaker = minBig(fillableMaker, minBig(balance, allowance))

	fillableTaker := proportionCeil(fillableMaker, takerAmount, makerAmount)
	state.ActualFillableTakerTokenAmount = minBig(fillableTaker, remainingTaker)
	return state, nil
}
