// Package types defines the failure taxonomy of the settlement engine.
package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/pkg/orders"
)

// Kind classifies a settlement failure.
type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindLifecycle     Kind = "lifecycle"
	KindAccounting    Kind = "accounting"
	KindStructural    Kind = "structural"
	KindUnknown       Kind = "unknown"
)

// KindOf returns the classification of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// CodeError is a failure identified only by a stable code.
type CodeError struct {
	Code    string
	Class   Kind
	Message string
}

func (e *CodeError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Kind implements the taxonomy.
func (e *CodeError) Kind() Kind { return e.Class }

// Is matches any CodeError with the same code.
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying an extra message.
func (e *CodeError) WithMessage(format string, args ...interface{}) *CodeError {
	return &CodeError{Code: e.Code, Class: e.Class, Message: fmt.Sprintf(format, args...)}
}

// Known failure codes
//
//nolint:gochecknoglobals // sentinel errors
var (
	ErrUnderbought             = &CodeError{Code: "UNDERBOUGHT", Class: KindAccounting}
	ErrIncorrectAmountSold     = &CodeError{Code: "INCORRECT_AMOUNT_SOLD", Class: KindAccounting}
	ErrInvalidSubcall          = &CodeError{Code: "INVALID_SUBCALL", Class: KindStructural}
	ErrMismatchedArrayLengths  = &CodeError{Code: "MISMATCHED_ARRAY_LENGTHS", Class: KindStructural}
	ErrRouteTooDeep            = &CodeError{Code: "ROUTE_TOO_DEEP", Class: KindStructural}
	ErrWrongTradeDirection     = &CodeError{Code: "WRONG_TRADE_DIRECTION", Class: KindStructural}
	ErrCallbackFailed          = &CodeError{Code: "CALLBACK_FAILED", Class: KindAuthorization}
	ErrInsufficientProtocolFee = &CodeError{Code: "INSUFFICIENT_PROTOCOL_FEE", Class: KindAccounting}
	ErrInvalidOrder            = &CodeError{Code: "INVALID_ORDER", Class: KindStructural}
	ErrInvalidNonce            = &CodeError{Code: "INVALID_NONCE", Class: KindLifecycle}
	ErrOnlyOriginRegistrar     = &CodeError{Code: "ONLY_ORIGIN_REGISTRAR", Class: KindAuthorization}
	ErrInvalidToken            = &CodeError{Code: "INVALID_TOKEN", Class: KindStructural}
	ErrArrayLengthMismatch     = &CodeError{Code: "ARRAY_LENGTH_MISMATCH", Class: KindStructural}
	ErrOnlyMaker               = &CodeError{Code: "ONLY_MAKER", Class: KindAuthorization}
)

// OrderNotFillableError reports a native order whose status is not Fillable.
type OrderNotFillableError struct {
	OrderHash common.Hash
	Status    orders.OrderStatus
}

func (e *OrderNotFillableError) Error() string {
	return fmt.Sprintf("order %s not fillable: %s", e.OrderHash.Hex(), e.Status)
}

// Kind implements the taxonomy.
func (e *OrderNotFillableError) Kind() Kind { return KindLifecycle }

// OnlyOrderMakerAllowedError reports a cancellation attempted by someone other than the maker.
type OnlyOrderMakerAllowedError struct {
	OrderHash common.Hash
	Sender    common.Address
	Maker     common.Address
}

func (e *OnlyOrderMakerAllowedError) Error() string {
	return fmt.Sprintf("order %s: only maker %s may cancel, sender %s",
		e.OrderHash.Hex(), e.Maker.Hex(), e.Sender.Hex())
}

// Kind implements the taxonomy.
func (e *OnlyOrderMakerAllowedError) Kind() Kind { return KindAuthorization }

// OrderNotFillableByTakerError reports a taker restriction violation.
type OrderNotFillableByTakerError struct {
	OrderHash  common.Hash
	Taker      common.Address
	OrderTaker common.Address
}

func (e *OrderNotFillableByTakerError) Error() string {
	return fmt.Sprintf("order %s not fillable by taker %s (order taker %s)",
		e.OrderHash.Hex(), e.Taker.Hex(), e.OrderTaker.Hex())
}

// Kind implements the taxonomy.
func (e *OrderNotFillableByTakerError) Kind() Kind { return KindAuthorization }

// OrderNotFillableBySenderError reports a sender restriction violation.
type OrderNotFillableBySenderError struct {
	OrderHash   common.Hash
	Sender      common.Address
	OrderSender common.Address
}

func (e *OrderNotFillableBySenderError) Error() string {
	return fmt.Sprintf("order %s not fillable by sender %s (order sender %s)",
		e.OrderHash.Hex(), e.Sender.Hex(), e.OrderSender.Hex())
}

// Kind implements the taxonomy.
func (e *OrderNotFillableBySenderError) Kind() Kind { return KindAuthorization }

// OrderNotFillableByOriginError reports a transaction origin restriction violation.
type OrderNotFillableByOriginError struct {
	OrderHash     common.Hash
	Origin        common.Address
	OrderTxOrigin common.Address
}

func (e *OrderNotFillableByOriginError) Error() string {
	return fmt.Sprintf("order %s not fillable by origin %s (order origin %s)",
		e.OrderHash.Hex(), e.Origin.Hex(), e.OrderTxOrigin.Hex())
}

// Kind implements the taxonomy.
func (e *OrderNotFillableByOriginError) Kind() Kind { return KindAuthorization }

// OrderNotSignedByMakerError reports a signature that does not authorize the maker.
type OrderNotSignedByMakerError struct {
	OrderHash common.Hash
	Signer    common.Address
	Maker     common.Address
}

func (e *OrderNotSignedByMakerError) Error() string {
	return fmt.Sprintf("order %s not signed by maker %s (signer %s)",
		e.OrderHash.Hex(), e.Maker.Hex(), e.Signer.Hex())
}

// Kind implements the taxonomy.
func (e *OrderNotSignedByMakerError) Kind() Kind { return KindAuthorization }

// OrderNotSignedByTakerError reports a bad taker co-signature on an OTC order.
type OrderNotSignedByTakerError struct {
	OrderHash common.Hash
	Signer    common.Address
	Taker     common.Address
}

func (e *OrderNotSignedByTakerError) Error() string {
	return fmt.Sprintf("order %s not signed by taker %s (signer %s)",
		e.OrderHash.Hex(), e.Taker.Hex(), e.Signer.Hex())
}

// Kind implements the taxonomy.
func (e *OrderNotSignedByTakerError) Kind() Kind { return KindAuthorization }

// InvalidSignerError reports a recovered signer that is neither the maker nor a registered delegate.
type InvalidSignerError struct {
	Maker  common.Address
	Signer common.Address
}

func (e *InvalidSignerError) Error() string {
	return fmt.Sprintf("invalid signer %s for maker %s", e.Signer.Hex(), e.Maker.Hex())
}

// Kind implements the taxonomy.
func (e *InvalidSignerError) Kind() Kind { return KindAuthorization }

// FillOrKillFailedError reports a fill-or-kill request that could not be filled exactly.
type FillOrKillFailedError struct {
	OrderHash      common.Hash
	Requested      *big.Int
	ActualFillable *big.Int
}

func (e *FillOrKillFailedError) Error() string {
	return fmt.Sprintf("fill-or-kill failed for order %s: requested %s, filled %s",
		e.OrderHash.Hex(), e.Requested, e.ActualFillable)
}

// Kind implements the taxonomy.
func (e *FillOrKillFailedError) Kind() Kind { return KindAccounting }

// IncompleteFillSellQuoteError reports a sell quote that sold less than required.
type IncompleteFillSellQuoteError struct {
	Token    common.Address
	Required *big.Int
	Actual   *big.Int
}

func (e *IncompleteFillSellQuoteError) Error() string {
	return fmt.Sprintf("incomplete sell quote fill of %s: required %s, sold %s",
		e.Token.Hex(), e.Required, e.Actual)
}

// Kind implements the taxonomy.
func (e *IncompleteFillSellQuoteError) Kind() Kind { return KindAccounting }

// IncompleteFillBuyQuoteError reports a buy quote that bought less than required.
type IncompleteFillBuyQuoteError struct {
	Token    common.Address
	Required *big.Int
	Actual   *big.Int
}

func (e *IncompleteFillBuyQuoteError) Error() string {
	return fmt.Sprintf("incomplete buy quote fill of %s: required %s, bought %s",
		e.Token.Hex(), e.Required, e.Actual)
}

// Kind implements the taxonomy.
func (e *IncompleteFillBuyQuoteError) Kind() Kind { return KindAccounting }

// NFTOrderNotFillableError reports an NFT order whose status is not Fillable.
type NFTOrderNotFillableError struct {
	Maker  common.Address
	Nonce  *big.Int
	Status orders.NFTOrderStatus
}

func (e *NFTOrderNotFillableError) Error() string {
	return fmt.Sprintf("nft order of %s with nonce %s not fillable: %s", e.Maker.Hex(), e.Nonce, e.Status)
}

// Kind implements the taxonomy.
func (e *NFTOrderNotFillableError) Kind() Kind { return KindLifecycle }

// OnlyTakerError reports an NFT order restricted to another taker.
type OnlyTakerError struct {
	Sender common.Address
	Taker  common.Address
}

func (e *OnlyTakerError) Error() string {
	return fmt.Sprintf("only taker %s may fill, got %s", e.Taker.Hex(), e.Sender.Hex())
}

// Kind implements the taxonomy.
func (e *OnlyTakerError) Kind() Kind { return KindAuthorization }

// TokenIDMismatchError reports an NFT that is not the one named by the order.
type TokenIDMismatchError struct {
	TokenID      *big.Int
	OrderTokenID *big.Int
}

func (e *TokenIDMismatchError) Error() string {
	return fmt.Sprintf("token id %s does not match order token id %s", e.TokenID, e.OrderTokenID)
}

// Kind implements the taxonomy.
func (e *TokenIDMismatchError) Kind() Kind { return KindStructural }

// TokenMismatchError reports two orders or an order and a request naming different tokens.
type TokenMismatchError struct {
	Standard string
	Token1   common.Address
	Token2   common.Address
}

func (e *TokenMismatchError) Error() string {
	return fmt.Sprintf("%s token mismatch: %s != %s", e.Standard, e.Token1.Hex(), e.Token2.Hex())
}

// Kind implements the taxonomy.
func (e *TokenMismatchError) Kind() Kind { return KindStructural }

// PropertyValidationFailedError reports a token rejected by a property validator.
type PropertyValidationFailedError struct {
	PropertyValidator common.Address
	Token             common.Address
	TokenID           *big.Int
	PropertyData      []byte
	Reason            error
}

func (e *PropertyValidationFailedError) Error() string {
	return fmt.Sprintf("property validation by %s failed for token %s #%s: %v",
		e.PropertyValidator.Hex(), e.Token.Hex(), e.TokenID, e.Reason)
}

func (e *PropertyValidationFailedError) Unwrap() error { return e.Reason }

// Kind implements the taxonomy.
func (e *PropertyValidationFailedError) Kind() Kind { return KindAuthorization }

// NegativeSpreadError reports a buy order priced below the matched sell order.
type NegativeSpreadError struct {
	SellOrderAmount *big.Int
	BuyOrderAmount  *big.Int
}

func (e *NegativeSpreadError) Error() string {
	return fmt.Sprintf("negative spread: sell %s > buy %s", e.SellOrderAmount, e.BuyOrderAmount)
}

// Kind implements the taxonomy.
func (e *NegativeSpreadError) Kind() Kind { return KindAccounting }

// SellOrderFeesExceedSpreadError reports sell-order fees that the spread cannot cover.
type SellOrderFeesExceedSpreadError struct {
	SellOrderFees *big.Int
	Spread        *big.Int
}

func (e *SellOrderFeesExceedSpreadError) Error() string {
	return fmt.Sprintf("sell order fees %s exceed spread %s", e.SellOrderFees, e.Spread)
}

// Kind implements the taxonomy.
func (e *SellOrderFeesExceedSpreadError) Kind() Kind { return KindAccounting }

// OverspentEthError reports native value spent beyond what the call attached.
type OverspentEthError struct {
	EthSpent     *big.Int
	EthAvailable *big.Int
}

func (e *OverspentEthError) Error() string {
	return fmt.Sprintf("overspent native value: spent %s, available %s", e.EthSpent, e.EthAvailable)
}

// Kind implements the taxonomy.
func (e *OverspentEthError) Kind() Kind { return KindAccounting }

// ExceedsRemainingOrderAmountError reports an ERC1155 fill larger than the order remainder.
type ExceedsRemainingOrderAmountError struct {
	RemainingOrderAmount *big.Int
	FillAmount           *big.Int
}

func (e *ExceedsRemainingOrderAmountError) Error() string {
	return fmt.Sprintf("fill amount %s exceeds remaining order amount %s", e.FillAmount, e.RemainingOrderAmount)
}

// Kind implements the taxonomy.
func (e *ExceedsRemainingOrderAmountError) Kind() Kind { return KindAccounting }

// TransferFailedError reports a token movement rejected by the token service.
type TransferFailedError struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
	Reason string
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer of %s %s from %s to %s failed: %s",
		e.Amount, e.Token.Hex(), e.From.Hex(), e.To.Hex(), e.Reason)
}

// Kind implements the taxonomy.
func (e *TransferFailedError) Kind() Kind { return KindAccounting }

// BatchFillIncompleteError reports a batch leg that filled less than requested
// when the batch must be complete.
type BatchFillIncompleteError struct {
	OrderHash              common.Hash
	TakerTokenFilledAmount *big.Int
	TakerTokenFillAmount   *big.Int
}

func (e *BatchFillIncompleteError) Error() string {
	return fmt.Sprintf("batch fill of order %s incomplete: filled %s of %s",
		e.OrderHash.Hex(), e.TakerTokenFilledAmount, e.TakerTokenFillAmount)
}

// Kind implements the taxonomy.
func (e *BatchFillIncompleteError) Kind() Kind { return KindAccounting }
