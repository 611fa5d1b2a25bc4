// Package tokens moves fungible tokens, NFTs and native currency between
// accounts inside a state transaction.
package tokens

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/internal/state"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// Standard identifies the token interface of an asset.
type Standard string

const (
	ERC20   Standard = "ERC20"
	ERC721  Standard = "ERC721"
	ERC1155 Standard = "ERC1155"
	Native  Standard = "native"
)

// Transfer describes one asset movement.
type Transfer struct {
	Standard Standard
	Token    common.Address
	TokenID  *big.Int
	From     common.Address
	To       common.Address
	Amount   *big.Int
}

// Hook inspects every transfer before it is applied. A non-nil error fails the transfer.
type Hook func(t Transfer) error

// Bank is the token service bound to one unit of work. Operator is the
// account that pulls tokens on behalf of others and therefore consumes allowances.
type Bank struct {
	tx       *state.Tx
	operator common.Address
	wrapped  common.Address
	hook     Hook
}

// Config holds bank configuration.
type Config struct {
	Operator      common.Address
	WrappedNative common.Address
	Hook          Hook
}

// NewBank returns a bank over tx.
func NewBank(tx *state.Tx, cfg Config) *Bank {
	return &Bank{
		tx:       tx,
		operator: cfg.Operator,
		wrapped:  cfg.WrappedNative,
		hook:     cfg.Hook,
	}
}

// Operator returns the pulling account.
func (b *Bank) Operator() common.Address {
	return b.operator
}

// WrappedNative returns the wrapped native token.
func (b *Bank) WrappedNative() common.Address {
	return b.wrapped
}

// BalanceOf returns the fungible (or native) balance of owner.
func (b *Bank) BalanceOf(token, owner common.Address) (*big.Int, error) {
	return b.tx.Get(balanceKey(token, nil, owner))
}

// BalanceOf1155 returns the ERC1155 balance of owner for id.
func (b *Bank) BalanceOf1155(token common.Address, id *big.Int, owner common.Address) (*big.Int, error) {
	return b.tx.Get(balanceKey(token, id, owner))
}

// OwnsERC721 reports whether owner holds the ERC721 token id.
func (b *Bank) OwnsERC721(token common.Address, id *big.Int, owner common.Address) (bool, error) {
	v, err := b.tx.Get(balanceKey(token, id, owner))
	if err != nil {
		return false, err
	}
	return v.Sign() > 0, nil
}

// Allowance returns how much spender may pull from owner.
func (b *Bank) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	return b.tx.Get(allowanceKey(token, owner, spender))
}

// Approve sets the allowance of spender over owner's tokens. For NFTs any
// non-zero allowance approves every token of the collection.
func (b *Bank) Approve(token, owner, spender common.Address, amount *big.Int) error {
	return b.tx.Set(allowanceKey(token, owner, spender), amount)
}

// Mint credits amount of a fungible token (or native currency) to owner.
func (b *Bank) Mint(token, owner common.Address, amount *big.Int) error {
	_, err := b.tx.Add(balanceKey(token, nil, owner), amount)
	return err
}

// MintERC721 assigns the ERC721 token id to owner.
func (b *Bank) MintERC721(token common.Address, id *big.Int, owner common.Address) error {
	return b.tx.Set(balanceKey(token, id, owner), big.NewInt(1))
}

// MintERC1155 credits amount of the ERC1155 id to owner.
func (b *Bank) MintERC1155(token common.Address, id *big.Int, owner common.Address, amount *big.Int) error {
	_, err := b.tx.Add(balanceKey(token, id, owner), amount)
	return err
}

// Transfer moves tokens owned by from. The caller acts as from, so no allowance is consumed.
func (b *Bank) Transfer(token, from, to common.Address, amount *big.Int) error {
	std := ERC20
	if token == orders.NativeToken {
		std = Native
	}
	return b.move(Transfer{Standard: std, Token: token, From: from, To: to, Amount: amount})
}

// TransferFrom moves fungible tokens on behalf of from. Unless from is the
// operator itself, the operator's allowance is consumed. An allowance of
// 2^256-1 is never decremented. Native currency cannot be pulled.
func (b *Bank) TransferFrom(token, from, to common.Address, amount *big.Int) error {
	t := Transfer{Standard: ERC20, Token: token, From: from, To: to, Amount: amount}
	if token == orders.NativeToken {
		if from != b.operator {
			return b.fail(t, "native currency cannot be pulled")
		}
		t.Standard = Native
		return b.move(t)
	}
	if err := b.spendAllowance(t); err != nil {
		return err
	}
	return b.move(t)
}

// TransferERC721From moves an ERC721 token on behalf of from.
func (b *Bank) TransferERC721From(token, from, to common.Address, id *big.Int) error {
	t := Transfer{Standard: ERC721, Token: token, TokenID: id, From: from, To: to, Amount: big.NewInt(1)}
	if err := b.checkApproval(t); err != nil {
		return err
	}

	owns, err := b.OwnsERC721(token, id, from)
	if err != nil {
		return err
	}
	if !owns {
		return b.fail(t, "not owner")
	}
	return b.move(t)
}

// TransferERC1155From moves amount of an ERC1155 id on behalf of from.
func (b *Bank) TransferERC1155From(token, from, to common.Address, id, amount *big.Int) error {
	t := Transfer{Standard: ERC1155, Token: token, TokenID: id, From: from, To: to, Amount: amount}
	if err := b.checkApproval(t); err != nil {
		return err
	}
	return b.move(t)
}

// Wrap converts owner's native currency into the wrapped native token.
func (b *Bank) Wrap(owner common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := b.Transfer(orders.NativeToken, owner, b.wrapped, amount); err != nil {
		return err
	}
	return b.Mint(b.wrapped, owner, amount)
}

// Unwrap burns owner's wrapped native token and releases native currency.
func (b *Bank) Unwrap(owner common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	key := balanceKey(b.wrapped, nil, owner)
	bal, err := b.tx.Get(key)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return b.fail(Transfer{Standard: ERC20, Token: b.wrapped, From: owner, Amount: amount}, "insufficient balance")
	}
	if err := b.tx.Set(key, bal.Sub(bal, amount)); err != nil {
		return err
	}
	return b.Transfer(orders.NativeToken, b.wrapped, owner, amount)
}

func (b *Bank) spendAllowance(t Transfer) error {
	if t.From == b.operator {
		return nil
	}
	key := allowanceKey(t.Token, t.From, b.operator)
	allowance, err := b.tx.Get(key)
	if err != nil {
		return err
	}
	if allowance.Cmp(orders.MaxUint256()) == 0 {
		return nil
	}
	if allowance.Cmp(t.Amount) < 0 {
		return b.fail(t, fmt.Sprintf("insufficient allowance %s", allowance))
	}
	return b.tx.Set(key, allowance.Sub(allowance, t.Amount))
}

func (b *Bank) checkApproval(t Transfer) error {
	if t.From == b.operator {
		return nil
	}
	approved, err := b.tx.Get(allowanceKey(t.Token, t.From, b.operator))
	if err != nil {
		return err
	}
	if approved.Sign() == 0 {
		return b.fail(t, "operator not approved")
	}
	return nil
}

func (b *Bank) move(t Transfer) error {
	if t.Amount == nil || t.Amount.Sign() < 0 {
		return b.fail(t, "invalid amount")
	}
	if b.hook != nil {
		if err := b.hook(t); err != nil {
			return b.fail(t, err.Error())
		}
	}
	if t.Amount.Sign() == 0 || t.From == t.To {
		return nil
	}

	fromKey := balanceKey(t.Token, t.TokenID, t.From)
	bal, err := b.tx.Get(fromKey)
	if err != nil {
		return err
	}
	if bal.Cmp(t.Amount) < 0 {
		return b.fail(t, "insufficient balance")
	}
	if err := b.tx.Set(fromKey, bal.Sub(bal, t.Amount)); err != nil {
		return err
	}
	_, err = b.tx.Add(balanceKey(t.Token, t.TokenID, t.To), t.Amount)
	return err
}

func (b *Bank) fail(t Transfer, reason string) error {
	amount := t.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	return &types.TransferFailedError{
		Token:  t.Token,
		From:   t.From,
		To:     t.To,
		Amount: new(big.Int).Set(amount),
		Reason: reason,
	}
}

func balanceKey(token common.Address, id *big.Int, owner common.Address) string {
	if id == nil {
		return fmt.Sprintf("bal/%s/0/%s", token.Hex(), owner.Hex())
	}
	return fmt.Sprintf("bal/%s/%s/%s", token.Hex(), id.String(), owner.Hex())
}

func allowanceKey(token, owner, spender common.Address) string {
	return fmt.Sprintf("alw/%s/%s/%s", token.Hex(), owner.Hex(), spender.Hex())
}
