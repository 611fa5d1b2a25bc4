package exchange

import (
	"context"
	"math/big"

	"github.com/mselser95/exchange-settlement/internal/nft"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
)

type matchResult struct {
	profits   []*big.Int
	succeeded []bool
}

// SellERC721 sells the caller's token into an ERC721 buy order.
func (x *Exchange) SellERC721(
	ctx context.Context,
	call settle.Call,
	order *orders.ERC721Order,
	sig signature.Signature,
	tokenID *big.Int,
	unwrapNativeToken bool,
	callbackData []byte,
) error {
	return run(ctx, x, "sell-erc721", call, func(f *settle.Frame) error {
		return x.nft.SellERC721(f, order, sig, tokenID, unwrapNativeToken, callbackData)
	})
}

// BuyERC721 buys the token offered by an ERC721 sell order.
func (x *Exchange) BuyERC721(
	ctx context.Context,
	call settle.Call,
	order *orders.ERC721Order,
	sig signature.Signature,
	callbackData []byte,
) error {
	return run(ctx, x, "buy-erc721", call, func(f *settle.Frame) error {
		return x.nft.BuyERC721(f, order, sig, callbackData)
	})
}

// BatchBuyERC721s buys several ERC721 tokens in one unit of work.
func (x *Exchange) BatchBuyERC721s(
	ctx context.Context,
	call settle.Call,
	sellOrders []*orders.ERC721Order,
	sigs []signature.Signature,
	callbackData [][]byte,
	revertIfIncomplete bool,
) ([]bool, error) {
	return execute(ctx, x, "batch-buy-erc721s", call, func(f *settle.Frame) ([]bool, error) {
		return x.nft.BatchBuyERC721s(f, sellOrders, sigs, callbackData, revertIfIncomplete)
	})
}

// MatchERC721Orders settles a sell order against a buy order and returns the
// spread paid to the caller.
func (x *Exchange) MatchERC721Orders(
	ctx context.Context,
	call settle.Call,
	sellOrder, buyOrder *orders.ERC721Order,
	sellSig, buySig signature.Signature,
) (*big.Int, error) {
	return execute(ctx, x, "match-erc721-orders", call, func(f *settle.Frame) (*big.Int, error) {
		return x.nft.MatchERC721Orders(f, sellOrder, buyOrder, sellSig, buySig)
	})
}

// BatchMatchERC721Orders matches several order pairs; failing pairs are skipped.
func (x *Exchange) BatchMatchERC721Orders(
	ctx context.Context,
	call settle.Call,
	sellOrders, buyOrders []*orders.ERC721Order,
	sellSigs, buySigs []signature.Signature,
) ([]*big.Int, []bool, error) {
	res, err := execute(ctx, x, "batch-match-erc721-orders", call, func(f *settle.Frame) (matchResult, error) {
		profits, succeeded, err := x.nft.BatchMatchERC721Orders(f, sellOrders, buyOrders, sellSigs, buySigs)
		return matchResult{profits: profits, succeeded: succeeded}, err
	})
	return res.profits, res.succeeded, err
}

// CancelERC721Order cancels the caller's ERC721 orders with nonce.
func (x *Exchange) CancelERC721Order(ctx context.Context, call settle.Call, nonce *big.Int) error {
	return run(ctx, x, "cancel-erc721-order", call, func(f *settle.Frame) error {
		return x.nft.CancelERC721Order(f, nonce)
	})
}

// BatchCancelERC721Orders cancels several ERC721 nonces.
func (x *Exchange) BatchCancelERC721Orders(ctx context.Context, call settle.Call, nonces []*big.Int) error {
	return run(ctx, x, "batch-cancel-erc721-orders", call, func(f *settle.Frame) error {
		return x.nft.BatchCancelERC721Orders(f, nonces)
	})
}

// PreSignERC721Order approves an ERC721 order made by the caller.
func (x *Exchange) PreSignERC721Order(ctx context.Context, call settle.Call, order *orders.ERC721Order) error {
	return run(ctx, x, "pre-sign-erc721-order", call, func(f *settle.Frame) error {
		return x.nft.PreSignERC721Order(f, order)
	})
}

// GetERC721OrderStatus returns the status of an ERC721 order at time now.
func (x *Exchange) GetERC721OrderStatus(ctx context.Context, now uint64, order *orders.ERC721Order) (orders.NFTOrderStatus, error) {
	return view(ctx, x, now, func(f *settle.Frame) (orders.NFTOrderStatus, error) {
		return x.nft.GetERC721OrderStatus(f, order)
	})
}

// ValidateERC721OrderSignature fails unless sig authorizes the order's maker.
func (x *Exchange) ValidateERC721OrderSignature(ctx context.Context, order *orders.ERC721Order, sig signature.Signature) error {
	_, err := view(ctx, x, 0, func(f *settle.Frame) (struct{}, error) {
		return struct{}{}, x.nft.ValidateERC721OrderSignature(f, order, sig)
	})
	return err
}

// ValidateERC721OrderProperties fails unless tokenID satisfies a buy order.
func (x *Exchange) ValidateERC721OrderProperties(ctx context.Context, order *orders.ERC721Order, tokenID *big.Int) error {
	_, err := view(ctx, x, 0, func(f *settle.Frame) (struct{}, error) {
		return struct{}{}, x.nft.ValidateERC721OrderProperties(f, order, tokenID)
	})
	return err
}

// SellERC1155 sells quantity of the caller's token into an ERC1155 buy order.
func (x *Exchange) SellERC1155(
	ctx context.Context,
	call settle.Call,
	order *orders.ERC1155Order,
	sig signature.Signature,
	tokenID, quantity *big.Int,
	unwrapNativeToken bool,
	callbackData []byte,
) error {
	return run(ctx, x, "sell-erc1155", call, func(f *settle.Frame) error {
		return x.nft.SellERC1155(f, order, sig, tokenID, quantity, unwrapNativeToken, callbackData)
	})
}

// BuyERC1155 buys quantity from an ERC1155 sell order.
func (x *Exchange) BuyERC1155(
	ctx context.Context,
	call settle.Call,
	order *orders.ERC1155Order,
	sig signature.Signature,
	quantity *big.Int,
	callbackData []byte,
) error {
	return run(ctx, x, "buy-erc1155", call, func(f *settle.Frame) error {
		return x.nft.BuyERC1155(f, order, sig, quantity, callbackData)
	})
}

// BatchBuyERC1155s buys from several ERC1155 sell orders in one unit of work.
func (x *Exchange) BatchBuyERC1155s(
	ctx context.Context,
	call settle.Call,
	sellOrders []*orders.ERC1155Order,
	sigs []signature.Signature,
	quantities []*big.Int,
	callbackData [][]byte,
	revertIfIncomplete bool,
) ([]bool, error) {
	return execute(ctx, x, "batch-buy-erc1155s", call, func(f *settle.Frame) ([]bool, error) {
		return x.nft.BatchBuyERC1155s(f, sellOrders, sigs, quantities, callbackData, revertIfIncomplete)
	})
}

// CancelERC1155Order cancels the caller's ERC1155 order with nonce.
func (x *Exchange) CancelERC1155Order(ctx context.Context, call settle.Call, nonce *big.Int) error {
	return run(ctx, x, "cancel-erc1155-order", call, func(f *settle.Frame) error {
		return x.nft.CancelERC1155Order(f, nonce)
	})
}

// BatchCancelERC1155Orders cancels several ERC1155 nonces.
func (x *Exchange) BatchCancelERC1155Orders(ctx context.Context, call settle.Call, nonces []*big.Int) error {
	return run(ctx, x, "batch-cancel-erc1155-orders", call, func(f *settle.Frame) error {
		return x.nft.BatchCancelERC1155Orders(f, nonces)
	})
}

// PreSignERC1155Order approves an ERC1155 order made by the caller.
func (x *Exchange) PreSignERC1155Order(ctx context.Context, call settle.Call, order *orders.ERC1155Order) error {
	return run(ctx, x, "pre-sign-erc1155-order", call, func(f *settle.Frame) error {
		return x.nft.PreSignERC1155Order(f, order)
	})
}

// GetERC1155OrderInfo returns the status and remaining quantity of an ERC1155 order.
func (x *Exchange) GetERC1155OrderInfo(ctx context.Context, now uint64, order *orders.ERC1155Order) (nft.ERC1155OrderInfo, error) {
	return view(ctx, x, now, func(f *settle.Frame) (nft.ERC1155OrderInfo, error) {
		return x.nft.GetERC1155OrderInfo(f, order)
	})
}

// ValidateERC1155OrderSignature fails unless sig authorizes the order's maker.
func (x *Exchange) ValidateERC1155OrderSignature(ctx context.Context, order *orders.ERC1155Order, sig signature.Signature) error {
	_, err := view(ctx, x, 0, func(f *settle.Frame) (struct{}, error) {
		return struct{}{}, x.nft.ValidateERC1155OrderSignature(f, order, sig)
	})
	return err
}

// ValidateERC1155OrderProperties fails unless tokenID satisfies a buy order.
func (x *Exchange) ValidateERC1155OrderProperties(ctx context.Context, order *orders.ERC1155Order, tokenID *big.Int) error {
	_, err := view(ctx, x, 0, func(f *settle.Frame) (struct{}, error) {
		return struct{}{}, x.nft.ValidateERC1155OrderProperties(f, order, tokenID)
	})
	return err
}
