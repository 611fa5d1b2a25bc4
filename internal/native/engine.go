// Package native settles limit, RFQ and OTC orders.
package native

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// Engine settles native orders inside a settle.Frame.
type Engine struct {
	logger *zap.Logger
}

// New creates a native order engine.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// FillParams says who fills an order and where the tokens come from and go.
type FillParams struct {
	TakerTokenFillAmount *big.Int
	// Taker is checked against the order's taker restriction.
	Taker common.Address
	// Sender is checked against a limit order's sender restriction.
	Sender common.Address
	// Payer provides the taker tokens.
	Payer common.Address
	// Recipient receives the maker tokens.
	Recipient common.Address
}

// TakerFill returns params for the immediate caller filling with its own tokens.
func TakerFill(call settle.Call, amount *big.Int) FillParams {
	return FillParams{
		TakerTokenFillAmount: amount,
		Taker:                call.Sender,
		Sender:               call.Sender,
		Payer:                call.Sender,
		Recipient:            call.Sender,
	}
}

// FillResult holds the amounts moved by one fill.
type FillResult struct {
	TakerTokenFilledAmount    *big.Int `json:"takerTokenFilledAmount"`
	MakerTokenFilledAmount    *big.Int `json:"makerTokenFilledAmount"`
	TakerTokenFeeFilledAmount *big.Int `json:"takerTokenFeeFilledAmount"`
	ProtocolFeePaid           *big.Int `json:"protocolFeePaid"`
}

func emptyResult() FillResult {
	return FillResult{
		TakerTokenFilledAmount:    new(big.Int),
		MakerTokenFilledAmount:    new(big.Int),
		TakerTokenFeeFilledAmount: new(big.Int),
		ProtocolFeePaid:           new(big.Int),
	}
}

// settlement is the part of a fill shared by every native order variant.
type settlement struct {
	hash         common.Hash
	maker        common.Address
	makerToken   common.Address
	takerToken   common.Address
	makerAmount  *big.Int
	takerAmount  *big.Int
	feeAmount    *big.Int
	feeRecipient common.Address
	filled       *big.Int
}

// settle clamps the requested amount to what remains, records the fill and moves tokens.
func (e *Engine) settle(f *settle.Frame, s settlement, p FillParams) (FillResult, error) {
	result := emptyResult()

	remaining := new(big.Int).Sub(s.takerAmount, s.filled)
	takerFilled := minBig(p.TakerTokenFillAmount, remaining)
	if takerFilled.Sign() <= 0 {
		return result, nil
	}

	result.TakerTokenFilledAmount = takerFilled
	result.MakerTokenFilledAmount = proportion(takerFilled, s.makerAmount, s.takerAmount)
	if s.feeAmount != nil {
		result.TakerTokenFeeFilledAmount = proportion(takerFilled, s.feeAmount, s.takerAmount)
	}

	if _, err := f.Ledger.RecordFill(s.hash, takerFilled, s.takerAmount); err != nil {
		return result, err
	}
	if err := f.Pay(s.takerToken, p.Payer, s.maker, takerFilled); err != nil {
		return result, err
	}
	if err := f.Bank.TransferFrom(s.makerToken, s.maker, p.Recipient, result.MakerTokenFilledAmount); err != nil {
		return result, err
	}
	if result.TakerTokenFeeFilledAmount.Sign() > 0 {
		err := f.Pay(s.takerToken, p.Payer, s.feeRecipient, result.TakerTokenFeeFilledAmount)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// checkMakerSignature maps signature failures to OrderNotSignedByMakerError.
func (e *Engine) checkMakerSignature(f *settle.Frame, hash common.Hash, maker common.Address, sig signature.Signature) error {
	err := f.Env.Validator.Validate(f.Ledger, hash, maker, sig)
	var invalid *types.InvalidSignerError
	if errors.As(err, &invalid) {
		return &types.OrderNotSignedByMakerError{OrderHash: hash, Signer: invalid.Signer, Maker: maker}
	}
	return err
}

// checkOrigin allows the order's txOrigin itself or any origin it registered.
func (e *Engine) checkOrigin(f *settle.Frame, hash common.Hash, txOrigin common.Address) error {
	origin := f.Call.TxOrigin()
	if txOrigin == origin {
		return nil
	}
	allowed, err := f.Ledger.IsAllowedOrigin(txOrigin, origin)
	if err != nil {
		return err
	}
	if !allowed {
		return &types.OrderNotFillableByOriginError{OrderHash: hash, Origin: origin, OrderTxOrigin: txOrigin}
	}
	return nil
}

// proportion returns floor(x * num / den), or zero when den is zero.
func proportion(x, num, den *big.Int) *big.Int {
	if den.Sign() == 0 {
		return new(big.Int)
	}
	v := new(big.Int).Mul(x, num)
	return v.Quo(v, den)
}

// proportionCeil returns ceil(x * num / den), or zero when den is zero.
func proportionCeil(x, num, den *big.Int) *big.Int {
	if den.Sign() == 0 {
		return new(big.Int)
	}
	v := new(big.Int).Mul(x, num)
	v.Add(v, new(big.Int).Sub(den, big.NewInt(1)))
	return v.Quo(v, den)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
