package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/internal/tokens"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

//nolint:gochecknoglobals // pool fee
var (
	feeNumerator   = big.NewInt(997)
	feeDenominator = big.NewInt(1000)
)

// ConstantProductPool is an x*y=k pool over two tokens whose reserves are the
// balances of the pool account. Every swap pays a 0.3% fee to the pool.
type ConstantProductPool struct {
	Address common.Address
	Token0  common.Address
	Token1  common.Address
}

// NewConstantProductPool creates a pool for the token pair held at address.
func NewConstantProductPool(address, token0, token1 common.Address) *ConstantProductPool {
	return &ConstantProductPool{Address: address, Token0: token0, Token1: token1}
}

func (p *ConstantProductPool) trades(sellToken, buyToken common.Address) bool {
	return (sellToken == p.Token0 && buyToken == p.Token1) || (sellToken == p.Token1 && buyToken == p.Token0)
}

// Quote returns the amount of buyToken a swap of sellAmount would deliver.
func (p *ConstantProductPool) Quote(bank *tokens.Bank, sellToken, buyToken common.Address, sellAmount *big.Int) (*big.Int, error) {
	if !p.trades(sellToken, buyToken) {
		return nil, types.ErrInvalidToken.WithMessage("pool %s does not trade %s for %s",
			p.Address.Hex(), sellToken.Hex(), buyToken.Hex())
	}
	reserveIn, err := bank.BalanceOf(sellToken, p.Address)
	if err != nil {
		return nil, err
	}
	reserveOut, err := bank.BalanceOf(buyToken, p.Address)
	if err != nil {
		return nil, err
	}
	return amountOut(sellAmount, reserveIn, reserveOut), nil
}

// Swap implements Adapter.
func (p *ConstantProductPool) Swap(f *settle.Frame, t Trade) error {
	out, err := p.Quote(f.Bank, t.SellToken, t.BuyToken, t.SellAmount)
	if err != nil {
		return err
	}
	if out.Sign() == 0 {
		return types.ErrUnderbought.WithMessage("pool %s has no liquidity", p.Address.Hex())
	}
	if err := f.Bank.TransferFrom(t.SellToken, t.Payer, p.Address, t.SellAmount); err != nil {
		return err
	}
	return f.Bank.Transfer(t.BuyToken, p.Address, t.Recipient, out)
}

// amountOut returns floor(in*997*reserveOut / (reserveIn*1000 + in*997)).
func amountOut(in, reserveIn, reserveOut *big.Int) *big.Int {
	if in.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}
	inWithFee := new(big.Int).Mul(in, feeNumerator)
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, feeDenominator)
	den.Add(den, inWithFee)
	return num.Quo(num, den)
}
