// Package multiplex sells tokens across several liquidity sources in one
// unit of work, either side by side (batch sell) or as a chain of hops
// (multi-hop sell).
package multiplex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/bridge"
	"github.com/mselser95/exchange-settlement/internal/fillquote"
	"github.com/mselser95/exchange-settlement/internal/native"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
)

// DefaultMaxRouteDepth bounds how deeply routes may nest.
const DefaultMaxRouteDepth = 4

// SubcallKind tags a leg of a route.
type SubcallKind uint8

const (
	SubcallInvalid SubcallKind = iota
	SubcallRfq
	SubcallOtc
	SubcallBridge
	SubcallFillQuote
	SubcallBatchSell
	SubcallMultiHopSell
)

func (k SubcallKind) String() string {
	switch k {
	case SubcallRfq:
		return "rfq"
	case SubcallOtc:
		return "otc"
	case SubcallBridge:
		return "bridge"
	case SubcallFillQuote:
		return "fill-quote"
	case SubcallBatchSell:
		return "batch-sell"
	case SubcallMultiHopSell:
		return "multi-hop-sell"
	default:
		return "invalid"
	}
}

// RfqLeg fills an RFQ order.
type RfqLeg struct {
	Order     *orders.RfqOrder    `json:"order"`
	Signature signature.Signature `json:"signature"`
}

// OtcLeg fills an OTC order.
type OtcLeg struct {
	Order     *orders.OtcOrder    `json:"order"`
	Signature signature.Signature `json:"signature"`
}

// BridgeLeg swaps through a registered liquidity source.
type BridgeLeg struct {
	Source common.Address `json:"source"`
	Data   []byte         `json:"data"`
}

// NestedBatchSell splits a leg or hop across further legs.
type NestedBatchSell struct {
	Calls []BatchSellSubcall `json:"calls"`
}

// NestedMultiHopSell routes a leg or hop through intermediate tokens.
// Tokens must start and end with the tokens of the enclosing leg.
type NestedMultiHopSell struct {
	Tokens []common.Address      `json:"tokens"`
	Calls  []MultiHopSellSubcall `json:"calls"`
}

// BatchSellSubcall is one leg of a batch sell. Exactly the payload matching
// Kind is used.
type BatchSellSubcall struct {
	Kind         SubcallKind              `json:"kind"`
	SellAmount   Amount                   `json:"sellAmount"`
	Rfq          *RfqLeg                  `json:"rfq,omitempty"`
	Otc          *OtcLeg                  `json:"otc,omitempty"`
	Bridge       *BridgeLeg               `json:"bridge,omitempty"`
	FillQuote    *fillquote.TransformData `json:"fillQuote,omitempty"`
	BatchSell    *NestedBatchSell         `json:"batchSell,omitempty"`
	MultiHopSell *NestedMultiHopSell      `json:"multiHopSell,omitempty"`
}

// MultiHopSellSubcall is one hop of a multi-hop sell. Hops may be bridge
// swaps or nested routes.
type MultiHopSellSubcall struct {
	Kind         SubcallKind         `json:"kind"`
	Bridge       *BridgeLeg          `json:"bridge,omitempty"`
	BatchSell    *NestedBatchSell    `json:"batchSell,omitempty"`
	MultiHopSell *NestedMultiHopSell `json:"multiHopSell,omitempty"`
}

// Config holds engine configuration.
type Config struct {
	Native        *native.Engine
	Bridges       *bridge.Registry
	FillQuote     *fillquote.Transformer
	MaxRouteDepth int // Maximum nesting of routes (default: 4)
	Logger        *zap.Logger
}

// Engine executes multiplex routes.
type Engine struct {
	native    *native.Engine
	bridges   *bridge.Registry
	fillQuote *fillquote.Transformer
	maxDepth  int
	logger    *zap.Logger
}

// New creates a multiplex engine.
func New(cfg *Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxDepth := cfg.MaxRouteDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxRouteDepth
	}
	return &Engine{
		native:    cfg.Native,
		bridges:   cfg.Bridges,
		fillQuote: cfg.FillQuote,
		maxDepth:  maxDepth,
		logger:    logger,
	}
}

// route is where a route takes its input from and sends its output to.
type route struct {
	payer     common.Address
	recipient common.Address
	depth     int
}

func (r route) nested() route {
	return route{payer: r.payer, recipient: r.recipient, depth: r.depth + 1}
}

func zero() *big.Int {
	return new(big.Int)
}
