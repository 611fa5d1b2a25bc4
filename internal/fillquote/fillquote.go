// Package fillquote converts one token into another across a quoted mix of
// bridge swaps and native orders.
package fillquote

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/bridge"
	"github.com/mselser95/exchange-settlement/internal/native"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// Side says whether the fill amount is the exact input or the exact output.
type Side uint8

const (
	Sell Side = iota
	Buy
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderType names the kind of leg consumed at one step of the fill sequence.
type OrderType uint8

const (
	OrderTypeBridge OrderType = iota
	OrderTypeLimit
	OrderTypeRfq
	OrderTypeOtc
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeBridge:
		return "bridge"
	case OrderTypeLimit:
		return "limit"
	case OrderTypeRfq:
		return "rfq"
	case OrderTypeOtc:
		return "otc"
	default:
		return "unknown"
	}
}

// BridgeOrder is a quoted swap through a liquidity source.
type BridgeOrder struct {
	Source           common.Address `json:"source"`
	TakerTokenAmount *big.Int       `json:"takerTokenAmount"`
	MakerTokenAmount *big.Int       `json:"makerTokenAmount"`
	BridgeData       []byte         `json:"bridgeData"`
}

// LimitOrderInfo is a limit order leg. MaxTakerTokenFillAmount caps the leg
// including the taker fee; nil means the whole order.
type LimitOrderInfo struct {
	Order                   *orders.LimitOrder  `json:"order"`
	Signature               signature.Signature `json:"signature"`
	MaxTakerTokenFillAmount *big.Int            `json:"maxTakerTokenFillAmount"`
}

// RfqOrderInfo is an RFQ order leg.
type RfqOrderInfo struct {
	Order                   *orders.RfqOrder    `json:"order"`
	Signature               signature.Signature `json:"signature"`
	MaxTakerTokenFillAmount *big.Int            `json:"maxTakerTokenFillAmount"`
}

// OtcOrderInfo is an OTC order leg.
type OtcOrderInfo struct {
	Order                   *orders.OtcOrder    `json:"order"`
	Signature               signature.Signature `json:"signature"`
	MaxTakerTokenFillAmount *big.Int            `json:"maxTakerTokenFillAmount"`
}

// TransformData describes one quote. FillSequence lists which kind of leg to
// consume next; legs of each kind are consumed in slice order.
type TransformData struct {
	Side         Side             `json:"side"`
	SellToken    common.Address   `json:"sellToken"`
	BuyToken     common.Address   `json:"buyToken"`
	BridgeOrders []BridgeOrder    `json:"bridgeOrders"`
	LimitOrders  []LimitOrderInfo `json:"limitOrders"`
	RfqOrders    []RfqOrderInfo   `json:"rfqOrders"`
	OtcOrders    []OtcOrderInfo   `json:"otcOrders"`
	FillSequence []OrderType      `json:"fillSequence"`
	// FillAmount is the exact amount to sell or buy. On the sell side the
	// maximum uint256 means the payer's whole balance.
	FillAmount *big.Int `json:"fillAmount"`
}

// Result holds the totals of a completed quote.
type Result struct {
	Sold            *big.Int `json:"sold"`
	Bought          *big.Int `json:"bought"`
	ProtocolFeePaid *big.Int `json:"protocolFeePaid"`
}

// Config holds transformer configuration.
type Config struct {
	Native  *native.Engine
	Bridges *bridge.Registry
	Logger  *zap.Logger
}

// Transformer executes fill quotes.
type Transformer struct {
	native  *native.Engine
	bridges *bridge.Registry
	logger  *zap.Logger
}

// New creates a transformer.
func New(cfg *Config) *Transformer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{
		native:  cfg.Native,
		bridges: cfg.Bridges,
		logger:  logger,
	}
}

// fillState tracks a quote while legs are consumed.
type fillState struct {
	fillAmount  *big.Int
	sold        *big.Int
	bought      *big.Int
	protocolFee *big.Int
	next        [4]int
}

func (s *fillState) done(side Side) bool {
	if side == Sell {
		return s.sold.Cmp(s.fillAmount) >= 0
	}
	return s.bought.Cmp(s.fillAmount) >= 0
}

// remaining returns what is left to sell or buy.
func (s *fillState) remaining(side Side) *big.Int {
	if side == Sell {
		return new(big.Int).Sub(s.fillAmount, s.sold)
	}
	return new(big.Int).Sub(s.fillAmount, s.bought)
}

// legResult is what one leg contributed.
type legResult struct {
	sold        *big.Int
	bought      *big.Int
	protocolFee *big.Int
}

func zeroLeg() legResult {
	return legResult{sold: new(big.Int), bought: new(big.Int), protocolFee: new(big.Int)}
}

// Transform sells SellToken taken from payer and delivers BuyToken to
// recipient. Legs that fail contribute nothing; the quote fails only when the
// legs together cannot reach the fill amount.
func (t *Transformer) Transform(f *settle.Frame, data *TransformData, payer, recipient common.Address) (Result, error) {
	if err := t.check(data); err != nil {
		return Result{}, err
	}

	fillAmount := new(big.Int).Set(data.FillAmount)
	if data.Side == Sell && fillAmount.Cmp(orders.MaxUint256()) == 0 {
		balance, err := f.Bank.BalanceOf(data.SellToken, payer)
		if err != nil {
			return Result{}, err
		}
		fillAmount = balance
	}

	s := &fillState{
		fillAmount:  fillAmount,
		sold:        new(big.Int),
		bought:      new(big.Int),
		protocolFee: new(big.Int),
	}

	for _, kind := range data.FillSequence {
		if s.done(data.Side) {
			break
		}
		i := s.next[kind]
		s.next[kind]++

		res, err := t.fillLeg(f, data, s, kind, i, payer, recipient)
		if err != nil {
			LegsTotal.WithLabelValues(kind.String(), "failed").Inc()
			t.logger.Debug("fill-quote-leg-failed",
				zap.String("type", kind.String()),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		if res.sold.Sign() == 0 && res.bought.Sign() == 0 {
			LegsTotal.WithLabelValues(kind.String(), "skipped").Inc()
			continue
		}
		LegsTotal.WithLabelValues(kind.String(), "filled").Inc()
		s.sold.Add(s.sold, res.sold)
		s.bought.Add(s.bought, res.bought)
		s.protocolFee.Add(s.protocolFee, res.protocolFee)
	}

	if data.Side == Sell && s.sold.Cmp(fillAmount) < 0 {
		return Result{}, &types.IncompleteFillSellQuoteError{Token: data.SellToken, Required: fillAmount, Actual: s.sold}
	}
	if data.Side == Buy && s.bought.Cmp(fillAmount) < 0 {
		return Result{}, &types.IncompleteFillBuyQuoteError{Token: data.BuyToken, Required: fillAmount, Actual: s.bought}
	}

	QuotesTotal.WithLabelValues(data.Side.String()).Inc()
	t.logger.Debug("fill-quote-completed",
		zap.String("side", data.Side.String()),
		zap.Stringer("sold", s.sold),
		zap.Stringer("bought", s.bought))

	return Result{Sold: s.sold, Bought: s.bought, ProtocolFeePaid: s.protocolFee}, nil
}

// check rejects malformed quotes before any leg runs. Only these failures
// abort a quote; anything a leg does wrong afterwards only zeroes that leg.
func (t *Transformer) check(data *TransformData) error {
	if data == nil || data.FillAmount == nil || data.FillAmount.Sign() < 0 {
		return types.ErrInvalidOrder.WithMessage("fill amount is required")
	}
	if data.Side != Sell && data.Side != Buy {
		return types.ErrInvalidSubcall.WithMessage("unknown side %d", data.Side)
	}
	if data.SellToken == data.BuyToken {
		return types.ErrInvalidToken.WithMessage("sell and buy token are both %s", data.SellToken.Hex())
	}

	var counts [4]int
	for _, kind := range data.FillSequence {
		if int(kind) >= len(counts) {
			return types.ErrInvalidSubcall.WithMessage("unknown order type %d", kind)
		}
		counts[kind]++
	}
	available := [4]int{len(data.BridgeOrders), len(data.LimitOrders), len(data.RfqOrders), len(data.OtcOrders)}
	for kind, n := range counts {
		if n > available[kind] {
			return types.ErrMismatchedArrayLengths.WithMessage("fill sequence uses %d %s orders, %d given",
				n, OrderType(kind), available[kind])
		}
	}

	for i, o := range data.BridgeOrders {
		if o.TakerTokenAmount == nil || o.MakerTokenAmount == nil {
			return types.ErrInvalidOrder.WithMessage("bridge order %d has no amounts", i)
		}
	}
	for i, o := range data.LimitOrders {
		if o.Order == nil {
			return types.ErrInvalidOrder.WithMessage("limit order %d is missing", i)
		}
		if err := data.checkPair(OrderTypeLimit, i, o.Order.TakerToken, o.Order.MakerToken); err != nil {
			return err
		}
	}
	for i, o := range data.RfqOrders {
		if o.Order == nil {
			return types.ErrInvalidOrder.WithMessage("rfq order %d is missing", i)
		}
		if err := data.checkPair(OrderTypeRfq, i, o.Order.TakerToken, o.Order.MakerToken); err != nil {
			return err
		}
	}
	for i, o := range data.OtcOrders {
		if o.Order == nil {
			return types.ErrInvalidOrder.WithMessage("otc order %d is missing", i)
		}
		if err := data.checkPair(OrderTypeOtc, i, o.Order.TakerToken, o.Order.MakerToken); err != nil {
			return err
		}
	}
	return nil
}

func (d *TransformData) checkPair(kind OrderType, i int, takerToken, makerToken common.Address) error {
	if takerToken != d.SellToken || makerToken != d.BuyToken {
		return types.ErrInvalidToken.WithMessage("%s order %d does not trade %s for %s",
			kind, i, d.SellToken.Hex(), d.BuyToken.Hex())
	}
	return nil
}

// fillLeg runs the i-th leg of kind inside its own checkpoint.
func (t *Transformer) fillLeg(
	f *settle.Frame,
	data *TransformData,
	s *fillState,
	kind OrderType,
	i int,
	payer, recipient common.Address,
) (legResult, error) {
	res := zeroLeg()
	err := f.Try(func() error {
		var err error
		switch kind {
		case OrderTypeBridge:
			res, err = t.fillBridge(f, data, s, data.BridgeOrders[i], payer, recipient)
		case OrderTypeLimit:
			res, err = t.fillLimit(f, data, s, data.LimitOrders[i], payer, recipient)
		case OrderTypeRfq:
			res, err = t.fillRfq(f, data, s, data.RfqOrders[i], payer, recipient)
		case OrderTypeOtc:
			res, err = t.fillOtc(f, data, s, data.OtcOrders[i], payer, recipient)
		}
		return err
	})
	if err != nil {
		return zeroLeg(), err
	}
	return res, nil
}

// takerFillAmount converts the remaining quote into a taker token amount for
// an order pricing takerAmount against makerAmount, capped at limit.
func takerFillAmount(side Side, remaining, takerAmount, makerAmount, limit *big.Int) *big.Int {
	var amount *big.Int
	if side == Sell {
		amount = new(big.Int).Set(remaining)
	} else {
		amount = ceilDiv(new(big.Int).Mul(remaining, takerAmount), makerAmount)
	}
	if limit != nil && limit.Cmp(amount) < 0 {
		amount.Set(limit)
	}
	return amount
}

func ceilDiv(num, den *big.Int) *big.Int {
	if den.Sign() == 0 {
		return new(big.Int)
	}
	v := new(big.Int).Add(num, new(big.Int).Sub(den, big.NewInt(1)))
	return v.Quo(v, den)
}

func (t *Transformer) fillBridge(
	f *settle.Frame,
	data *TransformData,
	s *fillState,
	order BridgeOrder,
	payer, recipient common.Address,
) (legResult, error) {
	res := zeroLeg()
	amount := takerFillAmount(data.Side, s.remaining(data.Side), order.TakerTokenAmount, order.MakerTokenAmount, order.TakerTokenAmount)
	if amount.Sign() == 0 {
		return res, nil
	}

	bought, err := t.bridges.Execute(f, bridge.Trade{
		Source:     order.Source,
		SellToken:  data.SellToken,
		BuyToken:   data.BuyToken,
		SellAmount: amount,
		Payer:      payer,
		Recipient:  recipient,
		Data:       order.BridgeData,
	})
	if err != nil {
		return res, err
	}
	res.sold = amount
	res.bought = bought
	return res, nil
}

func (t *Transformer) fillLimit(
	f *settle.Frame,
	data *TransformData,
	s *fillState,
	info LimitOrderInfo,
	payer, recipient common.Address,
) (legResult, error) {
	res := zeroLeg()
	o := info.Order

	// Open orders owe the protocol fee. Without the budget to pay it the leg is skipped.
	if o.Taker == (common.Address{}) {
		fee := f.Env.ProtocolFee(f.Call.GasPrice)
		if f.EthAvailable().Cmp(fee) < 0 {
			return res, nil
		}
	}

	fee := o.TakerTokenFeeAmount
	if fee == nil {
		fee = new(big.Int)
	}
	withFee := new(big.Int).Add(o.TakerAmount, fee)
	gross := takerFillAmount(data.Side, s.remaining(data.Side), withFee, o.MakerAmount, info.MaxTakerTokenFillAmount)
	net := new(big.Int).Mul(gross, o.TakerAmount)
	net.Quo(net, withFee)
	if net.Sign() == 0 {
		return res, nil
	}

	filled, err := t.native.FillLimitOrder(f, o, info.Signature, t.params(f, net, payer, recipient))
	if err != nil {
		return res, err
	}
	res.sold = new(big.Int).Add(filled.TakerTokenFilledAmount, filled.TakerTokenFeeFilledAmount)
	res.bought = filled.MakerTokenFilledAmount
	res.protocolFee = filled.ProtocolFeePaid
	return res, nil
}

func (t *Transformer) fillRfq(
	f *settle.Frame,
	data *TransformData,
	s *fillState,
	info RfqOrderInfo,
	payer, recipient common.Address,
) (legResult, error) {
	res := zeroLeg()
	o := info.Order
	amount := takerFillAmount(data.Side, s.remaining(data.Side), o.TakerAmount, o.MakerAmount, info.MaxTakerTokenFillAmount)
	if amount.Sign() == 0 {
		return res, nil
	}

	filled, err := t.native.FillRfqOrder(f, o, info.Signature, t.params(f, amount, payer, recipient))
	if err != nil {
		return res, err
	}
	res.sold = filled.TakerTokenFilledAmount
	res.bought = filled.MakerTokenFilledAmount
	return res, nil
}

func (t *Transformer) fillOtc(
	f *settle.Frame,
	data *TransformData,
	s *fillState,
	info OtcOrderInfo,
	payer, recipient common.Address,
) (legResult, error) {
	res := zeroLeg()
	o := info.Order
	amount := takerFillAmount(data.Side, s.remaining(data.Side), o.TakerAmount, o.MakerAmount, info.MaxTakerTokenFillAmount)
	if amount.Sign() == 0 {
		return res, nil
	}

	filled, err := t.native.FillOtcOrder(f, o, info.Signature, t.params(f, amount, payer, recipient))
	if err != nil {
		return res, err
	}
	res.sold = filled.TakerTokenFilledAmount
	res.bought = filled.MakerTokenFilledAmount
	return res, nil
}

// params fills native orders on behalf of the caller.
func (t *Transformer) params(f *settle.Frame, amount *big.Int, payer, recipient common.Address) native.FillParams {
	return native.FillParams{
		TakerTokenFillAmount: amount,
		Taker:                f.Call.Sender,
		Sender:               f.Call.Sender,
		Payer:                payer,
		Recipient:            recipient,
	}
}
