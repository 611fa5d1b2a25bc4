// Package ledger records fills, cancellations, nonces and authorizations of
// orders on top of a state.Tx.
package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/internal/state"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

//nolint:gochecknoglobals // constants
var (
	one      = big.NewInt(1)
	wordMask = big.NewInt(255)
)

// Ledger is the fill-state view of one unit of work.
type Ledger struct {
	tx *state.Tx
}

// New returns a ledger reading and writing through tx.
func New(tx *state.Tx) *Ledger {
	return &Ledger{tx: tx}
}

// FilledAmount returns the cumulative taker-token amount filled for hash.
func (l *Ledger) FilledAmount(hash common.Hash) (*big.Int, error) {
	return l.tx.Get(filledKey(hash))
}

// IsCancelled reports whether hash was cancelled individually.
func (l *Ledger) IsCancelled(hash common.Hash) (bool, error) {
	return l.flag(cancelledKey(hash))
}

// MinValidSalt returns the pair-cancellation threshold for a maker and ordered token pair.
func (l *Ledger) MinValidSalt(kind PairKind, maker, makerToken, takerToken common.Address) (*big.Int, error) {
	return l.tx.Get(minSaltKey(kind, maker, makerToken, takerToken))
}

// LimitOrderInfo resolves the status of a limit order at time now.
func (l *Ledger) LimitOrderInfo(order *orders.LimitOrder, hash common.Hash, now uint64) (orders.OrderInfo, error) {
	info := orders.OrderInfo{OrderHash: hash, TakerTokenFilledAmount: new(big.Int)}
	if order.Validate() != nil {
		info.Status = orders.StatusInvalid
		return info, nil
	}

	status, filled, err := l.commonStatus(hash, PairLimit, order.Maker, order.MakerToken, order.TakerToken,
		order.TakerAmount, order.Salt, order.Expiry, now)
	if err != nil {
		return info, err
	}
	info.Status = status
	info.TakerTokenFilledAmount = filled
	return info, nil
}

// RfqOrderInfo resolves the status of an RFQ order at time now.
func (l *Ledger) RfqOrderInfo(order *orders.RfqOrder, hash common.Hash, now uint64) (orders.OrderInfo, error) {
	info := orders.OrderInfo{OrderHash: hash, TakerTokenFilledAmount: new(big.Int)}
	if order.Validate() != nil || order.TxOrigin == (common.Address{}) {
		info.Status = orders.StatusInvalid
		return info, nil
	}

	status, filled, err := l.commonStatus(hash, PairRfq, order.Maker, order.MakerToken, order.TakerToken,
		order.TakerAmount, order.Salt, order.Expiry, now)
	if err != nil {
		return info, err
	}
	info.Status = status
	info.TakerTokenFilledAmount = filled
	return info, nil
}

// commonStatus applies the precedence Filled > Cancelled > Expired > Fillable.
func (l *Ledger) commonStatus(
	hash common.Hash,
	kind PairKind,
	maker, makerToken, takerToken common.Address,
	takerAmount, salt *big.Int,
	expiry, now uint64,
) (orders.OrderStatus, *big.Int, error) {
	filled, err := l.FilledAmount(hash)
	if err != nil {
		return orders.StatusInvalid, nil, err
	}
	if filled.Cmp(takerAmount) >= 0 {
		return orders.StatusFilled, filled, nil
	}

	cancelled, err := l.IsCancelled(hash)
	if err != nil {
		return orders.StatusInvalid, nil, err
	}
	if cancelled {
		return orders.StatusCancelled, filled, nil
	}

	minSalt, err := l.MinValidSalt(kind, maker, makerToken, takerToken)
	if err != nil {
		return orders.StatusInvalid, nil, err
	}
	if salt.Cmp(minSalt) < 0 {
		return orders.StatusCancelled, filled, nil
	}

	if orders.IsExpired(expiry, now) {
		return orders.StatusExpired, filled, nil
	}
	return orders.StatusFillable, filled, nil
}

// OtcOrderInfo resolves the status of an OTC order at time now.
func (l *Ledger) OtcOrderInfo(order *orders.OtcOrder, hash common.Hash, now uint64) (orders.OtcOrderInfo, error) {
	info := orders.OtcOrderInfo{OrderHash: hash, Status: orders.StatusInvalid}
	if order.Validate() != nil || order.TxOrigin == (common.Address{}) {
		return info, nil
	}
	if orders.IsExpired(order.Expiry, now) {
		info.Status = orders.StatusExpired
		return info, nil
	}

	last, err := l.LastOtcNonce(order.Maker, order.NonceBucket)
	if err != nil {
		return info, err
	}
	if order.Nonce.Cmp(last) > 0 {
		info.Status = orders.StatusFillable
	}
	return info, nil
}

// RecordFill adds fillAmount to the filled amount of hash. The total never exceeds takerAmount.
func (l *Ledger) RecordFill(hash common.Hash, fillAmount, takerAmount *big.Int) (*big.Int, error) {
	filled, err := l.FilledAmount(hash)
	if err != nil {
		return nil, err
	}

	next := new(big.Int).Add(filled, fillAmount)
	if next.Cmp(takerAmount) > 0 {
		return nil, fmt.Errorf("record fill of %s: %s exceeds order amount %s", hash.Hex(), next, takerAmount)
	}

	err = l.tx.Set(filledKey(hash), next)
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Cancel marks hash cancelled. Cancelling twice is a no-op.
func (l *Ledger) Cancel(hash common.Hash) error {
	return l.setFlag(cancelledKey(hash), true)
}

// CancelPair raises the minimum valid salt for a maker and ordered token pair.
// A value at or below the current threshold has no effect; it reports whether the threshold moved.
func (l *Ledger) CancelPair(kind PairKind, maker, makerToken, takerToken common.Address, minValidSalt *big.Int) (bool, error) {
	key := minSaltKey(kind, maker, makerToken, takerToken)
	current, err := l.tx.Get(key)
	if err != nil {
		return false, err
	}
	if minValidSalt.Cmp(current) <= 0 {
		return false, nil
	}
	return true, l.tx.Set(key, minValidSalt)
}

// LastOtcNonce returns the highest nonce recorded for a maker's bucket.
func (l *Ledger) LastOtcNonce(maker common.Address, bucket uint64) (*big.Int, error) {
	return l.tx.Get(otcNonceKey(maker, bucket))
}

// RecordOtcNonce advances a maker's bucket to nonce, which must exceed the last recorded nonce.
func (l *Ledger) RecordOtcNonce(maker common.Address, bucket uint64, nonce *big.Int) error {
	key := otcNonceKey(maker, bucket)
	last, err := l.tx.Get(key)
	if err != nil {
		return err
	}
	if nonce.Cmp(last) <= 0 {
		return types.ErrInvalidNonce.WithMessage("nonce %s not above %s in bucket %d", nonce, last, bucket)
	}
	return l.tx.Set(key, nonce)
}

// IsERC721NonceUsed reports whether the maker's nonce was filled or cancelled.
func (l *Ledger) IsERC721NonceUsed(maker common.Address, nonce *big.Int) (bool, error) {
	word, bit := nonceSlot(nonce)
	v, err := l.tx.Get(erc721NonceWordKey(maker, word))
	if err != nil {
		return false, err
	}
	return v.Bit(bit) == 1, nil
}

// MarkERC721Nonce flips the maker's nonce bit. It reports whether the bit was already set.
func (l *Ledger) MarkERC721Nonce(maker common.Address, nonce *big.Int) (bool, error) {
	word, bit := nonceSlot(nonce)
	key := erc721NonceWordKey(maker, word)
	v, err := l.tx.Get(key)
	if err != nil {
		return false, err
	}
	if v.Bit(bit) == 1 {
		return true, nil
	}
	return false, l.tx.Set(key, v.SetBit(v, bit, 1))
}

// nonceSlot maps a nonce to its 256-bit word and bit index.
func nonceSlot(nonce *big.Int) (*big.Int, int) {
	word := new(big.Int).Rsh(nonce, 8)
	bit := int(new(big.Int).And(nonce, wordMask).Int64())
	return word, bit
}

// IsERC1155Cancelled reports whether the maker cancelled the ERC1155 nonce.
func (l *Ledger) IsERC1155Cancelled(maker common.Address, nonce *big.Int) (bool, error) {
	return l.flag(erc1155CancelKey(maker, nonce))
}

// CancelERC1155 marks the maker's ERC1155 nonce unfillable.
func (l *Ledger) CancelERC1155(maker common.Address, nonce *big.Int) error {
	return l.setFlag(erc1155CancelKey(maker, nonce), true)
}

// ERC1155Filled returns the quantity filled of an ERC1155 order.
func (l *Ledger) ERC1155Filled(hash common.Hash) (*big.Int, error) {
	return l.tx.Get(erc1155FilledKey(hash))
}

// RecordERC1155Fill adds quantity to an ERC1155 order. The total never exceeds orderAmount.
func (l *Ledger) RecordERC1155Fill(hash common.Hash, quantity, orderAmount *big.Int) error {
	filled, err := l.ERC1155Filled(hash)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(filled, quantity)
	if next.Cmp(orderAmount) > 0 {
		return &types.ExceedsRemainingOrderAmountError{
			RemainingOrderAmount: new(big.Int).Sub(orderAmount, filled),
			FillAmount:           quantity,
		}
	}
	return l.tx.Set(erc1155FilledKey(hash), next)
}

// PreSign records that maker approved hash without a signature.
func (l *Ledger) PreSign(maker common.Address, hash common.Hash) error {
	return l.setFlag(preSignKey(maker, hash), true)
}

// IsPreSigned reports whether maker pre-signed hash.
func (l *Ledger) IsPreSigned(hash common.Hash, maker common.Address) (bool, error) {
	return l.flag(preSignKey(maker, hash))
}

// SetAllowedSigner registers or revokes a delegate signer for maker.
func (l *Ledger) SetAllowedSigner(maker, signer common.Address, allowed bool) error {
	return l.setFlag(signerKey(maker, signer), allowed)
}

// IsAllowedSigner reports whether signer may sign for maker.
func (l *Ledger) IsAllowedSigner(maker, signer common.Address) (bool, error) {
	return l.flag(signerKey(maker, signer))
}

// SetAllowedOrigin registers or revokes origin as an alternate origin for orders naming txOrigin.
func (l *Ledger) SetAllowedOrigin(txOrigin, origin common.Address, allowed bool) error {
	return l.setFlag(originKey(txOrigin, origin), allowed)
}

// IsAllowedOrigin reports whether origin may fill orders naming txOrigin.
func (l *Ledger) IsAllowedOrigin(txOrigin, origin common.Address) (bool, error) {
	return l.flag(originKey(txOrigin, origin))
}

func (l *Ledger) flag(key string) (bool, error) {
	v, err := l.tx.Get(key)
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}

func (l *Ledger) setFlag(key string, on bool) error {
	if on {
		return l.tx.Set(key, one)
	}
	return l.tx.Set(key, new(big.Int))
}
