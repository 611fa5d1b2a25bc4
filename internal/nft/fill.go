package nft

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// sellParams describes the caller selling an NFT into a buy order.
type sellParams struct {
	tokenID           *big.Int
	quantity          *big.Int
	unwrapNativeToken bool
	callbackData      []byte
}

// sell fills a maker's buy order with the caller's NFT. The maker pays the
// price and the fees, both rounded down for partial quantities.
func (e *Engine) sell(f *settle.Frame, t tradeable, sig signature.Signature, p sellParams) (*big.Int, error) {
	taker := f.Call.Sender
	if p.tokenID == nil || p.quantity == nil {
		return nil, types.ErrInvalidOrder.WithMessage("token id and quantity are required")
	}
	if err := e.validate(f, t, orders.BuyNFT, sig, taker); err != nil {
		return nil, err
	}
	if err := e.validateProperties(t, p.tokenID); err != nil {
		return nil, err
	}
	if err := e.consume(f, t, p.quantity); err != nil {
		return nil, err
	}

	maker := t.order.Maker
	token := t.order.Erc20Token
	amount := scale(t.order.Erc20TokenAmount, p.quantity, t.orderAmount, false)

	if p.unwrapNativeToken {
		if token != f.Env.WrappedNative {
			return nil, &types.TokenMismatchError{Standard: "ERC20", Token1: token, Token2: f.Env.WrappedNative}
		}
		if err := f.Bank.TransferFrom(token, maker, f.Env.Exchange, amount); err != nil {
			return nil, err
		}
		if err := f.UnwrapEth(amount); err != nil {
			return nil, err
		}
		if err := f.PayEth(taker, amount); err != nil {
			return nil, err
		}
	} else if err := f.Bank.TransferFrom(token, maker, taker, amount); err != nil {
		return nil, err
	}

	if err := e.takerCallback(f, taker, t.hash, p.callbackData); err != nil {
		return nil, err
	}
	if err := e.moveNFT(f, t, taker, maker, p.tokenID, p.quantity); err != nil {
		return nil, err
	}
	if err := e.payFeesFrom(f, t, token, maker, p.quantity, false); err != nil {
		return nil, err
	}

	e.emitFill(f, t, taker, amount, p.tokenID, p.quantity, common.Address{})
	return amount, nil
}

// buy fills a maker's sell order for the caller. The caller pays the price
// and the fees, both rounded up for partial quantities.
func (e *Engine) buy(f *settle.Frame, t tradeable, sig signature.Signature, quantity *big.Int, callbackData []byte) (*big.Int, error) {
	taker := f.Call.Sender
	if quantity == nil {
		return nil, types.ErrInvalidOrder.WithMessage("quantity is required")
	}
	if err := e.validate(f, t, orders.SellNFT, sig, taker); err != nil {
		return nil, err
	}
	if err := e.consume(f, t, quantity); err != nil {
		return nil, err
	}

	maker := t.order.Maker
	if err := e.moveNFT(f, t, maker, taker, t.tokenID, quantity); err != nil {
		return nil, err
	}
	if err := e.takerCallback(f, taker, t.hash, callbackData); err != nil {
		return nil, err
	}

	token := t.order.Erc20Token
	amount := scale(t.order.Erc20TokenAmount, quantity, t.orderAmount, true)
	if err := e.payWithEth(f, token, taker, maker, amount); err != nil {
		return nil, err
	}
	for _, fee := range t.order.Fees {
		feeAmount := scale(fee.Amount, quantity, t.orderAmount, true)
		if err := e.payWithEth(f, token, taker, fee.Recipient, feeAmount); err != nil {
			return nil, err
		}
		if err := e.feeCallback(f, token, fee, feeAmount); err != nil {
			return nil, err
		}
	}

	e.emitFill(f, t, taker, amount, t.tokenID, quantity, common.Address{})
	return amount, nil
}

// batchBuy runs each leg in its own checkpoint. Failing legs are reported as
// false unless revertIfIncomplete, in which case the first failure is returned.
func (e *Engine) batchBuy(f *settle.Frame, n int, kind orders.Kind, revertIfIncomplete bool, leg func(i int) error) ([]bool, error) {
	succeeded := make([]bool, n)
	for i := 0; i < n; i++ {
		if err := f.Try(func() error { return leg(i) }); err != nil {
			if revertIfIncomplete {
				return nil, err
			}
			BatchLegFailures.WithLabelValues(string(kind)).Inc()
			continue
		}
		succeeded[i] = true
	}
	return succeeded, nil
}
