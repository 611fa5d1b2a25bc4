package multiplex

import (
	"fmt"
	"math/big"

	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

//nolint:gochecknoglobals // amount encoding constants
var (
	// highBit marks an encoded amount as a fraction of the total.
	highBit = new(big.Int).Lsh(big.NewInt(1), 255)
	// lowerBits masks the fraction out of an encoded amount.
	lowerBits = new(big.Int).Sub(highBit, big.NewInt(1))
	// One is the fraction meaning the whole total.
	One = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// Amount is a leg's sell amount: either an absolute token amount or a
// fraction of the batch total scaled by 1e18.
type Amount struct {
	value    *big.Int
	fraction bool
}

// Absolute returns an amount of exactly v tokens.
func Absolute(v *big.Int) Amount {
	return Amount{value: new(big.Int).Set(v)}
}

// Fraction returns an amount of f/1e18 of the batch total.
func Fraction(f *big.Int) Amount {
	return Amount{value: new(big.Int).Set(f), fraction: true}
}

// Percent returns an amount of p percent of the batch total.
func Percent(p int64) Amount {
	f := new(big.Int).Mul(big.NewInt(p), One)
	return Fraction(f.Quo(f, big.NewInt(100)))
}

// DecodeAmount reads the word encoding: with the high bit set the lower 255
// bits are a fraction of 1e18, otherwise the word is an absolute amount.
func DecodeAmount(raw *big.Int) (Amount, error) {
	if raw == nil || raw.Sign() < 0 || raw.Cmp(orders.MaxUint256()) > 0 {
		return Amount{}, types.ErrInvalidSubcall.WithMessage("sell amount is not a uint256")
	}
	if raw.Bit(255) == 1 {
		return Fraction(new(big.Int).And(raw, lowerBits)), nil
	}
	return Absolute(raw), nil
}

// Encode returns the word encoding of a.
func (a Amount) Encode() *big.Int {
	v := a.raw()
	if a.fraction {
		return new(big.Int).Or(v, highBit)
	}
	return new(big.Int).Set(v)
}

// IsFraction reports whether a is relative to the batch total.
func (a Amount) IsFraction() bool {
	return a.fraction
}

// Value returns the absolute amount or the scaled fraction.
func (a Amount) Value() *big.Int {
	return new(big.Int).Set(a.raw())
}

// Resolve returns the tokens this leg sells given the batch total and what
// earlier legs sold. It never exceeds total - sold.
func (a Amount) Resolve(total, sold *big.Int) *big.Int {
	remaining := new(big.Int).Sub(total, sold)
	if remaining.Sign() <= 0 {
		return new(big.Int)
	}
	amount := a.raw()
	if a.fraction {
		amount = new(big.Int).Mul(total, amount)
		amount.Quo(amount, One)
	}
	if amount.Cmp(remaining) > 0 {
		return remaining
	}
	return new(big.Int).Set(amount)
}

func (a Amount) String() string {
	if a.fraction {
		return fmt.Sprintf("%s/1e18", a.raw())
	}
	return a.raw().String()
}

// MarshalText encodes a as its decimal word.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.Encode().String()), nil
}

// UnmarshalText decodes a decimal or 0x-prefixed hex word.
func (a *Amount) UnmarshalText(text []byte) error {
	v, ok := new(big.Int).SetString(string(text), 0)
	if !ok {
		return types.ErrInvalidSubcall.WithMessage("sell amount %q is not a number", text)
	}
	decoded, err := DecodeAmount(v)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

func (a Amount) raw() *big.Int {
	if a.value == nil {
		return new(big.Int)
	}
	return a.value
}
