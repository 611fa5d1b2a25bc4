package orders

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

//nolint:gochecknoglobals // EIP-712 type hashes
var (
	limitOrderTypeHash = crypto.Keccak256Hash([]byte(
		"LimitOrder(address makerToken,address takerToken,uint128 makerAmount,uint128 takerAmount," +
			"uint128 takerTokenFeeAmount,address maker,address taker,address sender,address feeRecipient," +
			"bytes32 pool,uint64 expiry,uint256 salt)",
	))
	rfqOrderTypeHash = crypto.Keccak256Hash([]byte(
		"RfqOrder(address makerToken,address takerToken,uint128 makerAmount,uint128 takerAmount," +
			"address maker,address txOrigin,bytes32 pool,uint64 expiry,uint256 salt)",
	))
	otcOrderTypeHash = crypto.Keccak256Hash([]byte(
		"OtcOrder(address makerToken,address takerToken,uint128 makerAmount,uint128 takerAmount," +
			"address maker,address taker,address txOrigin,uint256 expiryAndNonce)",
	))
)

// LimitOrder is an open order fillable by anyone unless Taker or Sender restrict it.
// It pays a protocol fee when Taker is unset.
type LimitOrder struct {
	MakerToken          common.Address `json:"makerToken"`
	TakerToken          common.Address `json:"takerToken"`
	MakerAmount         *big.Int       `json:"makerAmount"`
	TakerAmount         *big.Int       `json:"takerAmount"`
	TakerTokenFeeAmount *big.Int       `json:"takerTokenFeeAmount"`
	Maker               common.Address `json:"maker"`
	Taker               common.Address `json:"taker"`
	Sender              common.Address `json:"sender"`
	FeeRecipient        common.Address `json:"feeRecipient"`
	Pool                common.Hash    `json:"pool"`
	Expiry              uint64         `json:"expiry"`
	Salt                *big.Int       `json:"salt"`
}

// StructHash returns the EIP-712 struct hash of the order.
func (o *LimitOrder) StructHash() common.Hash {
	var w words
	w.hash(limitOrderTypeHash)
	w.address(o.MakerToken)
	w.address(o.TakerToken)
	w.uint(o.MakerAmount)
	w.uint(o.TakerAmount)
	w.uint(o.TakerTokenFeeAmount)
	w.address(o.Maker)
	w.address(o.Taker)
	w.address(o.Sender)
	w.address(o.FeeRecipient)
	w.hash(o.Pool)
	w.uint64(o.Expiry)
	w.uint(o.Salt)
	return w.digest()
}

// Hash returns the EIP-712 order hash under domain.
func (o *LimitOrder) Hash(domain Domain) common.Hash {
	return domain.TypedDataHash(o.StructHash())
}

// Validate checks that every integer field fits its declared width.
func (o *LimitOrder) Validate() error {
	if err := checkWidth("makerAmount", o.MakerAmount, maxUint128); err != nil {
		return err
	}
	if err := checkWidth("takerAmount", o.TakerAmount, maxUint128); err != nil {
		return err
	}
	if err := checkWidth("takerTokenFeeAmount", orZero(o.TakerTokenFeeAmount), maxUint128); err != nil {
		return err
	}
	return checkWidth("salt", o.Salt, maxUint256)
}

// RfqOrder is a quote for a specific transaction origin. It never pays a protocol fee.
type RfqOrder struct {
	MakerToken  common.Address `json:"makerToken"`
	TakerToken  common.Address `json:"takerToken"`
	MakerAmount *big.Int       `json:"makerAmount"`
	TakerAmount *big.Int       `json:"takerAmount"`
	Maker       common.Address `json:"maker"`
	TxOrigin    common.Address `json:"txOrigin"`
	Pool        common.Hash    `json:"pool"`
	Expiry      uint64         `json:"expiry"`
	Salt        *big.Int       `json:"salt"`
}

// StructHash returns the EIP-712 struct hash of the order.
func (o *RfqOrder) StructHash() common.Hash {
	var w words
	w.hash(rfqOrderTypeHash)
	w.address(o.MakerToken)
	w.address(o.TakerToken)
	w.uint(o.MakerAmount)
	w.uint(o.TakerAmount)
	w.address(o.Maker)
	w.address(o.TxOrigin)
	w.hash(o.Pool)
	w.uint64(o.Expiry)
	w.uint(o.Salt)
	return w.digest()
}

// Hash returns the EIP-712 order hash under domain.
func (o *RfqOrder) Hash(domain Domain) common.Hash {
	return domain.TypedDataHash(o.StructHash())
}

// Validate checks that every integer field fits its declared width.
func (o *RfqOrder) Validate() error {
	if err := checkWidth("makerAmount", o.MakerAmount, maxUint128); err != nil {
		return err
	}
	if err := checkWidth("takerAmount", o.TakerAmount, maxUint128); err != nil {
		return err
	}
	return checkWidth("salt", o.Salt, maxUint256)
}

// OtcOrder is a one-shot order cancelled by advancing the maker's nonce in NonceBucket.
type OtcOrder struct {
	MakerToken  common.Address `json:"makerToken"`
	TakerToken  common.Address `json:"takerToken"`
	MakerAmount *big.Int       `json:"makerAmount"`
	TakerAmount *big.Int       `json:"takerAmount"`
	Maker       common.Address `json:"maker"`
	Taker       common.Address `json:"taker"`
	TxOrigin    common.Address `json:"txOrigin"`
	Expiry      uint64         `json:"expiry"`
	NonceBucket uint64         `json:"nonceBucket"`
	Nonce       *big.Int       `json:"nonce"`
}

// ExpiryAndNonce packs expiry, bucket and nonce into one word:
// expiry<<192 | nonceBucket<<128 | nonce.
func (o *OtcOrder) ExpiryAndNonce() *big.Int {
	return PackExpiryAndNonce(o.Expiry, o.NonceBucket, o.Nonce)
}

// PackExpiryAndNonce packs the OTC expiry, bucket and nonce into one word.
func PackExpiryAndNonce(expiry, bucket uint64, nonce *big.Int) *big.Int {
	v := new(big.Int).Lsh(new(big.Int).SetUint64(expiry), 192)
	v.Or(v, new(big.Int).Lsh(new(big.Int).SetUint64(bucket), 128))
	return v.Or(v, new(big.Int).And(orZero(nonce), maxUint128))
}

// UnpackExpiryAndNonce is the inverse of PackExpiryAndNonce.
func UnpackExpiryAndNonce(v *big.Int) (expiry, bucket uint64, nonce *big.Int) {
	expiry = new(big.Int).Rsh(v, 192).Uint64()
	bucket = new(big.Int).And(new(big.Int).Rsh(v, 128), maxUint64).Uint64()
	nonce = new(big.Int).And(v, maxUint128)
	return expiry, bucket, nonce
}

// StructHash returns the EIP-712 struct hash of the order.
func (o *OtcOrder) StructHash() common.Hash {
	var w words
	w.hash(otcOrderTypeHash)
	w.address(o.MakerToken)
	w.address(o.TakerToken)
	w.uint(o.MakerAmount)
	w.uint(o.TakerAmount)
	w.address(o.Maker)
	w.address(o.Taker)
	w.address(o.TxOrigin)
	w.uint(o.ExpiryAndNonce())
	return w.digest()
}

// Hash returns the EIP-712 order hash under domain.
func (o *OtcOrder) Hash(domain Domain) common.Hash {
	return domain.TypedDataHash(o.StructHash())
}

// Validate checks that every integer field fits its declared width.
func (o *OtcOrder) Validate() error {
	if err := checkWidth("makerAmount", o.MakerAmount, maxUint128); err != nil {
		return err
	}
	if err := checkWidth("takerAmount", o.TakerAmount, maxUint128); err != nil {
		return err
	}
	return checkWidth("nonce", o.Nonce, maxUint128)
}
