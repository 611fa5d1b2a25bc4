package nft

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// SellERC721 sells the caller's token into a buy order. With unwrapNativeToken
// the maker's wrapped native tokens are paid out as native currency.
func (e *Engine) SellERC721(
	f *settle.Frame,
	order *orders.ERC721Order,
	sig signature.Signature,
	tokenID *big.Int,
	unwrapNativeToken bool,
	callbackData []byte,
) error {
	_, err := e.sell(f, erc721View(f, order), sig, sellParams{
		tokenID:           tokenID,
		quantity:          big.NewInt(1),
		unwrapNativeToken: unwrapNativeToken,
		callbackData:      callbackData,
	})
	return err
}

// BuyERC721 buys the token offered by a sell order.
func (e *Engine) BuyERC721(f *settle.Frame, order *orders.ERC721Order, sig signature.Signature, callbackData []byte) error {
	_, err := e.buy(f, erc721View(f, order), sig, big.NewInt(1), callbackData)
	return err
}

// BatchBuyERC721s buys several tokens and reports which legs succeeded.
func (e *Engine) BatchBuyERC721s(
	f *settle.Frame,
	sellOrders []*orders.ERC721Order,
	sigs []signature.Signature,
	callbackData [][]byte,
	revertIfIncomplete bool,
) ([]bool, error) {
	if len(sellOrders) != len(sigs) || len(sellOrders) != len(callbackData) {
		return nil, types.ErrArrayLengthMismatch
	}
	return e.batchBuy(f, len(sellOrders), orders.KindERC721, revertIfIncomplete, func(i int) error {
		return e.BuyERC721(f, sellOrders[i], sigs[i], callbackData[i])
	})
}

// MatchERC721Orders settles a sell order against a buy order for the same
// token. The caller keeps the spread left after the sell order's fees.
func (e *Engine) MatchERC721Orders(
	f *settle.Frame,
	sellOrder, buyOrder *orders.ERC721Order,
	sellSig, buySig signature.Signature,
) (*big.Int, error) {
	s := erc721View(f, sellOrder)
	b := erc721View(f, buyOrder)
	seller, buyer := sellOrder.Maker, buyOrder.Maker

	if err := e.validate(f, s, orders.SellNFT, sellSig, buyer); err != nil {
		return nil, err
	}
	if err := e.validate(f, b, orders.BuyNFT, buySig, seller); err != nil {
		return nil, err
	}
	if s.token != b.token {
		return nil, &types.TokenMismatchError{Standard: "ERC721", Token1: s.token, Token2: b.token}
	}
	if err := e.validateProperties(b, s.tokenID); err != nil {
		return nil, err
	}

	ethSell := sellOrder.Erc20Token == orders.NativeToken && buyOrder.Erc20Token == f.Env.WrappedNative
	if sellOrder.Erc20Token != buyOrder.Erc20Token && !ethSell {
		return nil, &types.TokenMismatchError{Standard: "ERC20", Token1: sellOrder.Erc20Token, Token2: buyOrder.Erc20Token}
	}

	sellAmount, buyAmount := sellOrder.Erc20TokenAmount, buyOrder.Erc20TokenAmount
	spread := new(big.Int).Sub(buyAmount, sellAmount)
	if spread.Sign() < 0 {
		return nil, &types.NegativeSpreadError{SellOrderAmount: sellAmount, BuyOrderAmount: buyAmount}
	}
	sellFees := sellOrder.TotalFees()
	if sellFees.Cmp(spread) > 0 {
		return nil, &types.SellOrderFeesExceedSpreadError{SellOrderFees: sellFees, Spread: spread}
	}
	profit := new(big.Int).Sub(spread, sellFees)

	one := big.NewInt(1)
	if err := e.consume(f, s, one); err != nil {
		return nil, err
	}
	if err := e.consume(f, b, one); err != nil {
		return nil, err
	}
	if err := e.moveNFT(f, s, seller, buyer, s.tokenID, one); err != nil {
		return nil, err
	}
	if err := e.payFeesFrom(f, b, buyOrder.Erc20Token, buyer, one, true); err != nil {
		return nil, err
	}

	matcher := f.Call.Sender
	if ethSell {
		if err := e.settleMatchInEth(f, s, buyer, seller, matcher, buyAmount, sellAmount, profit); err != nil {
			return nil, err
		}
	} else {
		token := sellOrder.Erc20Token
		if err := f.Bank.TransferFrom(token, buyer, seller, sellAmount); err != nil {
			return nil, err
		}
		if err := e.payFeesFrom(f, s, token, buyer, one, false); err != nil {
			return nil, err
		}
		if err := f.Bank.TransferFrom(token, buyer, matcher, profit); err != nil {
			return nil, err
		}
	}

	e.emitFill(f, s, buyer, sellAmount, s.tokenID, one, matcher)
	e.emitFill(f, b, seller, buyAmount, s.tokenID, one, matcher)
	MatchProfit.Add(bigToFloat(profit))

	e.logger.Debug("nft-orders-matched",
		zap.String("sell-order-hash", s.hash.Hex()),
		zap.String("buy-order-hash", b.hash.Hex()),
		zap.Stringer("profit", profit))

	return profit, nil
}

// settleMatchInEth pays a native-priced sell order out of the buyer's
// unwrapped wrapped-native tokens.
func (e *Engine) settleMatchInEth(
	f *settle.Frame,
	s tradeable,
	buyer, seller, matcher common.Address,
	buyAmount, sellAmount, profit *big.Int,
) error {
	if err := f.Bank.TransferFrom(f.Env.WrappedNative, buyer, f.Env.Exchange, buyAmount); err != nil {
		return err
	}
	if err := f.UnwrapEth(buyAmount); err != nil {
		return err
	}
	if err := f.PayEth(seller, sellAmount); err != nil {
		return err
	}
	if err := e.payFeesFrom(f, s, orders.NativeToken, f.Env.Exchange, big.NewInt(1), false); err != nil {
		return err
	}
	return f.PayEth(matcher, profit)
}

// BatchMatchERC721Orders matches each pair independently and reports the
// profit and success of every pair.
func (e *Engine) BatchMatchERC721Orders(
	f *settle.Frame,
	sellOrders, buyOrders []*orders.ERC721Order,
	sellSigs, buySigs []signature.Signature,
) ([]*big.Int, []bool, error) {
	n := len(sellOrders)
	if len(buyOrders) != n || len(sellSigs) != n || len(buySigs) != n {
		return nil, nil, types.ErrArrayLengthMismatch
	}

	profits := make([]*big.Int, n)
	succeeded := make([]bool, n)
	for i := 0; i < n; i++ {
		err := f.Try(func() error {
			profit, err := e.MatchERC721Orders(f, sellOrders[i], buyOrders[i], sellSigs[i], buySigs[i])
			profits[i] = profit
			return err
		})
		if err != nil {
			profits[i] = new(big.Int)
			BatchLegFailures.WithLabelValues("erc721-match").Inc()
			e.logger.Debug("batch-match-skipped", zap.Int("leg", i), zap.Error(err))
			continue
		}
		succeeded[i] = true
	}
	return profits, succeeded, nil
}

// CancelERC721Order cancels the caller's order with the given nonce.
// Cancelling a used nonce succeeds.
func (e *Engine) CancelERC721Order(f *settle.Frame, nonce *big.Int) error {
	if nonce == nil {
		return types.ErrInvalidNonce
	}
	maker := f.Call.Sender
	if _, err := f.Ledger.MarkERC721Nonce(maker, nonce); err != nil {
		return err
	}
	f.Emit(events.NFTOrderCancelled{Kind: orders.KindERC721, Maker: maker, Nonce: new(big.Int).Set(nonce)})
	CancellationsTotal.WithLabelValues(string(orders.KindERC721)).Inc()
	return nil
}

// BatchCancelERC721Orders cancels every nonce or none.
func (e *Engine) BatchCancelERC721Orders(f *settle.Frame, nonces []*big.Int) error {
	for _, nonce := range nonces {
		if err := e.CancelERC721Order(f, nonce); err != nil {
			return err
		}
	}
	return nil
}

// PreSignERC721Order approves order without a signature. Only the maker may pre-sign.
func (e *Engine) PreSignERC721Order(f *settle.Frame, order *orders.ERC721Order) error {
	return e.preSign(f, erc721View(f, order))
}

// GetERC721OrderStatus returns the status of order.
func (e *Engine) GetERC721OrderStatus(f *settle.Frame, order *orders.ERC721Order) (orders.NFTOrderStatus, error) {
	st, _, err := e.status(f, erc721View(f, order))
	return st, err
}

// ValidateERC721OrderSignature returns an *types.InvalidSignerError unless sig authorizes the maker.
func (e *Engine) ValidateERC721OrderSignature(f *settle.Frame, order *orders.ERC721Order, sig signature.Signature) error {
	return f.Env.Validator.Validate(f.Ledger, order.Hash(f.Env.Domain), order.Maker, sig)
}

// ValidateERC721OrderProperties checks whether tokenID satisfies a buy order.
func (e *Engine) ValidateERC721OrderProperties(f *settle.Frame, order *orders.ERC721Order, tokenID *big.Int) error {
	if order.Direction != orders.BuyNFT {
		return types.ErrWrongTradeDirection.WithMessage("properties apply to buy orders")
	}
	if tokenID == nil {
		return types.ErrInvalidOrder.WithMessage("token id is required")
	}
	return e.validateProperties(erc721View(f, order), tokenID)
}

func (e *Engine) preSign(f *settle.Frame, t tradeable) error {
	if f.Call.Sender != t.order.Maker {
		return types.ErrOnlyMaker
	}
	if err := t.check(); err != nil {
		return types.ErrInvalidOrder.WithMessage("%v", err)
	}
	if err := f.Ledger.PreSign(t.order.Maker, t.hash); err != nil {
		return err
	}
	f.Emit(events.NFTOrderPreSigned{
		Kind:      t.kind,
		OrderHash: t.hash,
		Maker:     t.order.Maker,
		Nonce:     new(big.Int).Set(t.order.Nonce),
	})
	return nil
}

func bigToFloat(v *big.Int) float64 {
	out, _ := new(big.Float).SetInt(v).Float64()
	return out
}
