// Package orders defines the signed order variants accepted by the exchange
// and their EIP-712 hashes.
package orders

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OrderStatus is the lifecycle status of a limit, RFQ or OTC order.
type OrderStatus uint8

const (
	StatusInvalid OrderStatus = iota
	StatusFillable
	StatusFilled
	StatusCancelled
	StatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case StatusInvalid:
		return "INVALID"
	case StatusFillable:
		return "FILLABLE"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// MarshalText encodes the status by name.
func (s OrderStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// OrderInfo describes the ledger view of a native order.
type OrderInfo struct {
	OrderHash              common.Hash `json:"orderHash"`
	Status                 OrderStatus `json:"status"`
	TakerTokenFilledAmount *big.Int    `json:"takerTokenFilledAmount"`
}

// OtcOrderInfo describes the ledger view of an OTC order.
type OtcOrderInfo struct {
	OrderHash common.Hash `json:"orderHash"`
	Status    OrderStatus `json:"status"`
}

// Kind names an order variant.
type Kind string

const (
	KindLimit   Kind = "limit"
	KindRfq     Kind = "rfq"
	KindOtc     Kind = "otc"
	KindERC721  Kind = "erc721"
	KindERC1155 Kind = "erc1155"
)

//nolint:gochecknoglobals // well-known sentinels
var (
	// NativeToken stands for the chain's native currency wherever a token address is expected.
	NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

	maxUint64  = new(big.Int).SetUint64(^uint64(0))
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// MaxUint256 returns 2^256-1.
func MaxUint256() *big.Int {
	return new(big.Int).Set(maxUint256)
}

// IsExpired reports whether an order with the given expiry is expired at now.
func IsExpired(expiry, now uint64) bool {
	return now > expiry
}

// orZero returns v, or a fresh zero when v is nil.
func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func checkWidth(field string, v, limit *big.Int) error {
	if v == nil {
		return fmt.Errorf("%s is required", field)
	}
	if v.Sign() < 0 || v.Cmp(limit) > 0 {
		return fmt.Errorf("%s out of range: %s", field, v)
	}
	return nil
}
