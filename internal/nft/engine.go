// Package nft settles ERC721 and ERC1155 orders.
package nft

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/internal/tokens"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

var errNoValidator = errors.New("property validator not registered")

// FeeCallbackReceiver is implemented by fee recipients that must acknowledge
// a fee carrying feeData. Returning false fails the fill.
type FeeCallbackReceiver interface {
	ReceiveFee(f *settle.Frame, token common.Address, amount *big.Int, feeData []byte) (bool, error)
}

// TakerCallbackReceiver is implemented by takers that fill with callback data.
// It runs after the taker receives its side and before it delivers its own.
type TakerCallbackReceiver interface {
	OnNFTOrderFill(f *settle.Frame, orderHash common.Hash, callbackData []byte) (bool, error)
}

// PropertyValidator decides whether a token id satisfies a buy order property.
type PropertyValidator interface {
	ValidateProperty(token common.Address, tokenID *big.Int, propertyData []byte) error
}

// Config holds the capabilities reachable from the engine, keyed by account.
type Config struct {
	FeeReceivers       map[common.Address]FeeCallbackReceiver
	TakerCallbacks     map[common.Address]TakerCallbackReceiver
	PropertyValidators map[common.Address]PropertyValidator
	Logger             *zap.Logger
}

// Engine settles NFT orders inside a settle.Frame.
type Engine struct {
	feeReceivers       map[common.Address]FeeCallbackReceiver
	takerCallbacks     map[common.Address]TakerCallbackReceiver
	propertyValidators map[common.Address]PropertyValidator
	logger             *zap.Logger
}

// New creates an NFT order engine.
func New(cfg *Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		feeReceivers:       make(map[common.Address]FeeCallbackReceiver),
		takerCallbacks:     make(map[common.Address]TakerCallbackReceiver),
		propertyValidators: make(map[common.Address]PropertyValidator),
		logger:             logger,
	}
	for k, v := range cfg.FeeReceivers {
		e.feeReceivers[k] = v
	}
	for k, v := range cfg.TakerCallbacks {
		e.takerCallbacks[k] = v
	}
	for k, v := range cfg.PropertyValidators {
		e.propertyValidators[k] = v
	}
	return e
}

// tradeable is the standard-independent view of an order.
type tradeable struct {
	kind        orders.Kind
	standard    tokens.Standard
	order       *orders.NFTOrder
	hash        common.Hash
	token       common.Address
	tokenID     *big.Int
	properties  []orders.Property
	orderAmount *big.Int
	check       func() error
}

func erc721View(f *settle.Frame, o *orders.ERC721Order) tradeable {
	return tradeable{
		kind:        orders.KindERC721,
		standard:    tokens.ERC721,
		order:       &o.NFTOrder,
		hash:        o.Hash(f.Env.Domain),
		token:       o.Token(),
		tokenID:     o.TokenID(),
		properties:  o.Properties(),
		orderAmount: big.NewInt(1),
		check:       o.Validate,
	}
}

func erc1155View(f *settle.Frame, o *orders.ERC1155Order) tradeable {
	amount := o.Erc1155TokenAmount
	if amount == nil {
		amount = new(big.Int)
	}
	return tradeable{
		kind:        orders.KindERC1155,
		standard:    tokens.ERC1155,
		order:       &o.NFTOrder,
		hash:        o.Hash(f.Env.Domain),
		token:       o.Token(),
		tokenID:     o.TokenID(),
		properties:  o.Properties(),
		orderAmount: amount,
		check:       o.Validate,
	}
}

// status returns the order status and its remaining quantity.
func (e *Engine) status(f *settle.Frame, t tradeable) (orders.NFTOrderStatus, *big.Int, error) {
	o := t.order
	if o.Nonce == nil {
		return orders.NFTStatusInvalid, new(big.Int), nil
	}
	if o.Direction == orders.SellNFT && len(t.properties) > 0 {
		return orders.NFTStatusInvalid, new(big.Int), nil
	}
	if o.Direction == orders.BuyNFT && o.Erc20Token == orders.NativeToken {
		return orders.NFTStatusInvalid, new(big.Int), nil
	}
	if f.Call.Now > o.Expiry {
		return orders.NFTStatusExpired, new(big.Int), nil
	}

	if t.standard == tokens.ERC721 {
		used, err := f.Ledger.IsERC721NonceUsed(o.Maker, o.Nonce)
		if err != nil {
			return orders.NFTStatusInvalid, nil, err
		}
		if used {
			return orders.NFTStatusUnfillable, new(big.Int), nil
		}
		return orders.NFTStatusFillable, big.NewInt(1), nil
	}

	cancelled, err := f.Ledger.IsERC1155Cancelled(o.Maker, o.Nonce)
	if err != nil {
		return orders.NFTStatusInvalid, nil, err
	}
	if cancelled {
		return orders.NFTStatusUnfillable, new(big.Int), nil
	}
	filled, err := f.Ledger.ERC1155Filled(t.hash)
	if err != nil {
		return orders.NFTStatusInvalid, nil, err
	}
	remaining := new(big.Int).Sub(t.orderAmount, filled)
	if remaining.Sign() <= 0 {
		return orders.NFTStatusUnfillable, new(big.Int), nil
	}
	return orders.NFTStatusFillable, remaining, nil
}

// validate checks direction, taker restriction, status and signature.
func (e *Engine) validate(
	f *settle.Frame,
	t tradeable,
	direction orders.TradeDirection,
	sig signature.Signature,
	taker common.Address,
) error {
	o := t.order
	if err := t.check(); err != nil {
		return types.ErrInvalidOrder.WithMessage("%v", err)
	}
	if o.Direction != direction {
		return types.ErrWrongTradeDirection.WithMessage("order is %s", o.Direction)
	}
	if direction == orders.BuyNFT && o.Erc20Token == orders.NativeToken {
		return types.ErrInvalidToken.WithMessage("buy orders cannot be priced in native currency")
	}
	if o.Taker != (common.Address{}) && o.Taker != taker {
		return &types.OnlyTakerError{Sender: taker, Taker: o.Taker}
	}

	st, _, err := e.status(f, t)
	if err != nil {
		return err
	}
	if st != orders.NFTStatusFillable {
		return &types.NFTOrderNotFillableError{Maker: o.Maker, Nonce: o.Nonce, Status: st}
	}
	return f.Env.Validator.Validate(f.Ledger, t.hash, o.Maker, sig)
}

// validateProperties checks tokenID against the order. Without properties the
// id must match exactly; a zero validator accepts any id.
func (e *Engine) validateProperties(t tradeable, tokenID *big.Int) error {
	if len(t.properties) == 0 {
		if tokenID.Cmp(t.tokenID) != 0 {
			return &types.TokenIDMismatchError{TokenID: tokenID, OrderTokenID: t.tokenID}
		}
		return nil
	}

	for _, p := range t.properties {
		if p.PropertyValidator == (common.Address{}) {
			continue
		}
		v, ok := e.propertyValidators[p.PropertyValidator]
		if !ok {
			return &types.PropertyValidationFailedError{
				PropertyValidator: p.PropertyValidator,
				Token:             t.token,
				TokenID:           tokenID,
				PropertyData:      p.PropertyData,
				Reason:            errNoValidator,
			}
		}
		if err := v.ValidateProperty(t.token, tokenID, p.PropertyData); err != nil {
			return &types.PropertyValidationFailedError{
				PropertyValidator: p.PropertyValidator,
				Token:             t.token,
				TokenID:           tokenID,
				PropertyData:      p.PropertyData,
				Reason:            err,
			}
		}
	}
	return nil
}

// consume marks quantity of the order as filled.
func (e *Engine) consume(f *settle.Frame, t tradeable, quantity *big.Int) error {
	if t.standard == tokens.ERC721 {
		_, err := f.Ledger.MarkERC721Nonce(t.order.Maker, t.order.Nonce)
		return err
	}
	return f.Ledger.RecordERC1155Fill(t.hash, quantity, t.orderAmount)
}

// moveNFT transfers quantity of the traded token id.
func (e *Engine) moveNFT(f *settle.Frame, t tradeable, from, to common.Address, tokenID, quantity *big.Int) error {
	if t.standard == tokens.ERC721 {
		return f.Bank.TransferERC721From(t.token, from, to, tokenID)
	}
	return f.Bank.TransferERC1155From(t.token, from, to, tokenID, quantity)
}

// scale returns amount * quantity / orderAmount, rounded up when roundUp.
func scale(amount, quantity, orderAmount *big.Int, roundUp bool) *big.Int {
	if amount == nil || orderAmount.Sign() == 0 {
		return new(big.Int)
	}
	v := new(big.Int).Mul(amount, quantity)
	if roundUp {
		v.Add(v, new(big.Int).Sub(orderAmount, big.NewInt(1)))
	}
	return v.Quo(v, orderAmount)
}

// feeCallback notifies a fee recipient when the fee carries data.
func (e *Engine) feeCallback(f *settle.Frame, token common.Address, fee orders.Fee, amount *big.Int) error {
	if len(fee.FeeData) == 0 {
		return nil
	}
	r, ok := e.feeReceivers[fee.Recipient]
	if !ok {
		return types.ErrCallbackFailed.WithMessage("fee recipient %s has no callback", fee.Recipient.Hex())
	}
	accepted, err := r.ReceiveFee(f, token, amount, fee.FeeData)
	if err != nil {
		return types.ErrCallbackFailed.WithMessage("fee callback of %s: %v", fee.Recipient.Hex(), err)
	}
	if !accepted {
		return types.ErrCallbackFailed.WithMessage("fee callback of %s rejected", fee.Recipient.Hex())
	}
	return nil
}

// takerCallback runs the taker's callback when callbackData is non-empty.
func (e *Engine) takerCallback(f *settle.Frame, taker common.Address, hash common.Hash, callbackData []byte) error {
	if len(callbackData) == 0 {
		return nil
	}
	r, ok := e.takerCallbacks[taker]
	if !ok {
		return types.ErrCallbackFailed.WithMessage("taker %s has no callback", taker.Hex())
	}
	accepted, err := r.OnNFTOrderFill(f, hash, callbackData)
	if err != nil {
		return types.ErrCallbackFailed.WithMessage("taker callback: %v", err)
	}
	if !accepted {
		return types.ErrCallbackFailed.WithMessage("taker callback rejected")
	}
	return nil
}

// payFeesFrom pays every order fee, scaled to quantity, out of payer's token balance.
func (e *Engine) payFeesFrom(f *settle.Frame, t tradeable, token, payer common.Address, quantity *big.Int, roundUp bool) error {
	for _, fee := range t.order.Fees {
		amount := scale(fee.Amount, quantity, t.orderAmount, roundUp)
		if err := f.Pay(token, payer, fee.Recipient, amount); err != nil {
			return err
		}
		if err := e.feeCallback(f, token, fee, amount); err != nil {
			return err
		}
	}
	return nil
}

// payWithEth pays amount to recipient in the buyer's chosen form: native
// orders draw on the attached value, wrapped-native orders use attached value
// first and the payer's wrapped balance for the rest, anything else is pulled.
func (e *Engine) payWithEth(f *settle.Frame, token, payer, recipient common.Address, amount *big.Int) error {
	switch token {
	case orders.NativeToken:
		return f.PayEth(recipient, amount)
	case f.Env.WrappedNative:
		fromEth := f.EthAvailable()
		if fromEth.Cmp(amount) > 0 {
			fromEth.Set(amount)
		}
		if fromEth.Sign() > 0 {
			if err := f.WrapEth(fromEth); err != nil {
				return err
			}
			if err := f.Bank.TransferFrom(token, f.Env.Exchange, recipient, fromEth); err != nil {
				return err
			}
		}
		rest := new(big.Int).Sub(amount, fromEth)
		return f.Bank.TransferFrom(token, payer, recipient, rest)
	default:
		return f.Bank.TransferFrom(token, payer, recipient, amount)
	}
}

func (e *Engine) emitFill(
	f *settle.Frame,
	t tradeable,
	taker common.Address,
	erc20Amount, tokenID, quantity *big.Int,
	matcher common.Address,
) {
	f.Emit(events.NFTOrderFilled{
		Kind:            t.kind,
		Direction:       t.order.Direction,
		OrderHash:       t.hash,
		Maker:           t.order.Maker,
		Taker:           taker,
		Nonce:           new(big.Int).Set(t.order.Nonce),
		Erc20Token:      t.order.Erc20Token,
		Erc20FillAmount: erc20Amount,
		Token:           t.token,
		TokenID:         new(big.Int).Set(tokenID),
		TokenFillAmount: new(big.Int).Set(quantity),
		Matcher:         matcher,
	})
	FillsTotal.WithLabelValues(string(t.kind), t.order.Direction.String()).Inc()

	e.logger.Debug("nft-order-filled",
		zap.String("kind", string(t.kind)),
		zap.String("order-hash", t.hash.Hex()),
		zap.Stringer("token-id", tokenID),
		zap.Stringer("quantity", quantity))
}
