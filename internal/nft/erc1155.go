package nft

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// ERC1155OrderInfo describes how much of an ERC1155 order is left.
type ERC1155OrderInfo struct {
	OrderHash       common.Hash           `json:"orderHash"`
	Status          orders.NFTOrderStatus `json:"status"`
	OrderAmount     *big.Int              `json:"orderAmount"`
	RemainingAmount *big.Int              `json:"remainingAmount"`
}

// SellERC1155 sells quantity of the caller's token into a buy order.
func (e *Engine) SellERC1155(
	f *settle.Frame,
	order *orders.ERC1155Order,
	sig signature.Signature,
	tokenID, quantity *big.Int,
	unwrapNativeToken bool,
	callbackData []byte,
) error {
	_, err := e.sell(f, erc1155View(f, order), sig, sellParams{
		tokenID:           tokenID,
		quantity:          quantity,
		unwrapNativeToken: unwrapNativeToken,
		callbackData:      callbackData,
	})
	return err
}

// BuyERC1155 buys quantity of the token offered by a sell order.
func (e *Engine) BuyERC1155(
	f *settle.Frame,
	order *orders.ERC1155Order,
	sig signature.Signature,
	quantity *big.Int,
	callbackData []byte,
) error {
	_, err := e.buy(f, erc1155View(f, order), sig, quantity, callbackData)
	return err
}

// BatchBuyERC1155s buys from several sell orders and reports which legs succeeded.
func (e *Engine) BatchBuyERC1155s(
	f *settle.Frame,
	sellOrders []*orders.ERC1155Order,
	sigs []signature.Signature,
	quantities []*big.Int,
	callbackData [][]byte,
	revertIfIncomplete bool,
) ([]bool, error) {
	n := len(sellOrders)
	if len(sigs) != n || len(quantities) != n || len(callbackData) != n {
		return nil, types.ErrArrayLengthMismatch
	}
	return e.batchBuy(f, n, orders.KindERC1155, revertIfIncomplete, func(i int) error {
		return e.BuyERC1155(f, sellOrders[i], sigs[i], quantities[i], callbackData[i])
	})
}

// CancelERC1155Order cancels the caller's order with the given nonce.
func (e *Engine) CancelERC1155Order(f *settle.Frame, nonce *big.Int) error {
	if nonce == nil {
		return types.ErrInvalidNonce
	}
	maker := f.Call.Sender
	if err := f.Ledger.CancelERC1155(maker, nonce); err != nil {
		return err
	}
	f.Emit(events.NFTOrderCancelled{Kind: orders.KindERC1155, Maker: maker, Nonce: new(big.Int).Set(nonce)})
	CancellationsTotal.WithLabelValues(string(orders.KindERC1155)).Inc()
	return nil
}

// BatchCancelERC1155Orders cancels every nonce or none.
func (e *Engine) BatchCancelERC1155Orders(f *settle.Frame, nonces []*big.Int) error {
	for _, nonce := range nonces {
		if err := e.CancelERC1155Order(f, nonce); err != nil {
			return err
		}
	}
	return nil
}

// PreSignERC1155Order approves order without a signature. Only the maker may pre-sign.
func (e *Engine) PreSignERC1155Order(f *settle.Frame, order *orders.ERC1155Order) error {
	return e.preSign(f, erc1155View(f, order))
}

// GetERC1155OrderInfo returns the status and remaining quantity of order.
func (e *Engine) GetERC1155OrderInfo(f *settle.Frame, order *orders.ERC1155Order) (ERC1155OrderInfo, error) {
	t := erc1155View(f, order)
	st, remaining, err := e.status(f, t)
	if err != nil {
		return ERC1155OrderInfo{}, err
	}
	return ERC1155OrderInfo{
		OrderHash:       t.hash,
		Status:          st,
		OrderAmount:     new(big.Int).Set(t.orderAmount),
		RemainingAmount: remaining,
	}, nil
}

// ValidateERC1155OrderSignature returns an *types.InvalidSignerError unless sig authorizes the maker.
func (e *Engine) ValidateERC1155OrderSignature(f *settle.Frame, order *orders.ERC1155Order, sig signature.Signature) error {
	return f.Env.Validator.Validate(f.Ledger, order.Hash(f.Env.Domain), order.Maker, sig)
}

// ValidateERC1155OrderProperties checks whether tokenID satisfies a buy order.
func (e *Engine) ValidateERC1155OrderProperties(f *settle.Frame, order *orders.ERC1155Order, tokenID *big.Int) error {
	if order.Direction != orders.BuyNFT {
		return types.ErrWrongTradeDirection.WithMessage("properties apply to buy orders")
	}
	if tokenID == nil {
		return types.ErrInvalidOrder.WithMessage("token id is required")
	}
	return e.validateProperties(erc1155View(f, order), tokenID)
}
