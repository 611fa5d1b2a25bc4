package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// FixedRateProvider sells one token for another at a fixed rate out of its
// own inventory.
type FixedRateProvider struct {
	Address   common.Address
	SellToken common.Address
	BuyToken  common.Address
	// Rate is buy tokens delivered per sell token, as Numerator/Denominator.
	Numerator   *big.Int
	Denominator *big.Int
}

// Swap implements Adapter.
func (p *FixedRateProvider) Swap(f *settle.Frame, t Trade) error {
	if t.SellToken != p.SellToken || t.BuyToken != p.BuyToken {
		return types.ErrInvalidToken.WithMessage("provider %s does not trade %s for %s",
			p.Address.Hex(), t.SellToken.Hex(), t.BuyToken.Hex())
	}
	if p.Denominator == nil || p.Denominator.Sign() == 0 {
		return types.ErrInvalidOrder.WithMessage("provider %s has no rate", p.Address.Hex())
	}

	out := new(big.Int).Mul(t.SellAmount, p.Numerator)
	out.Quo(out, p.Denominator)

	if err := f.Bank.TransferFrom(t.SellToken, t.Payer, p.Address, t.SellAmount); err != nil {
		return err
	}
	return f.Bank.Transfer(t.BuyToken, p.Address, t.Recipient, out)
}
