// Package events defines the observable side effects of settlement.
package events

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/mselser95/exchange-settlement/pkg/orders"
)

// Type names an event.
type Type string

const (
	TypeLimitOrderFilled       Type = "LimitOrderFilled"
	TypeRfqOrderFilled         Type = "RfqOrderFilled"
	TypeOtcOrderFilled         Type = "OtcOrderFilled"
	TypeOrderCancelled         Type = "OrderCancelled"
	TypePairCancelledOrders    Type = "PairCancelledOrders"
	TypeRfqOrderOriginsAllowed Type = "RfqOrderOriginsAllowed"
	TypeOrderSignerRegistered  Type = "OrderSignerRegistered"
	TypeExpiredOrder           Type = "ExpiredOrder"
	TypeNFTOrderFilled         Type = "NFTOrderFilled"
	TypeNFTOrderCancelled      Type = "NFTOrderCancelled"
	TypeNFTOrderPreSigned      Type = "NFTOrderPreSigned"
	TypeBridgeFill             Type = "BridgeFill"
)

// Payload is the body of an event.
type Payload interface {
	EventType() Type
}

// Event is a payload committed as part of one unit of work.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Operation   string    `json:"operation"`
	Index       int       `json:"index"`
	CommittedAt time.Time `json:"committedAt"`
	Payload     Payload   `json:"payload"`
}

// Seal stamps the payloads of one committed unit of work.
func Seal(operation string, payloads []Payload, at time.Time) []Event {
	out := make([]Event, len(payloads))
	for i, p := range payloads {
		out[i] = Event{
			ID:          uuid.New().String(),
			Type:        p.EventType(),
			Operation:   operation,
			Index:       i,
			CommittedAt: at,
			Payload:     p,
		}
	}
	return out
}

// Sink receives committed events.
type Sink interface {
	Publish(ctx context.Context, events []Event) error
	Close() error
}

// LimitOrderFilled is emitted for every limit order fill.
type LimitOrderFilled struct {
	OrderHash                 common.Hash    `json:"orderHash"`
	Maker                     common.Address `json:"maker"`
	Taker                     common.Address `json:"taker"`
	FeeRecipient              common.Address `json:"feeRecipient"`
	MakerToken                common.Address `json:"makerToken"`
	TakerToken                common.Address `json:"takerToken"`
	TakerTokenFilledAmount    *big.Int       `json:"takerTokenFilledAmount"`
	MakerTokenFilledAmount    *big.Int       `json:"makerTokenFilledAmount"`
	TakerTokenFeeFilledAmount *big.Int       `json:"takerTokenFeeFilledAmount"`
	ProtocolFeePaid           *big.Int       `json:"protocolFeePaid"`
	Pool                      common.Hash    `json:"pool"`
}

func (LimitOrderFilled) EventType() Type { return TypeLimitOrderFilled }

// RfqOrderFilled is emitted for every RFQ order fill.
type RfqOrderFilled struct {
	OrderHash              common.Hash    `json:"orderHash"`
	Maker                  common.Address `json:"maker"`
	Taker                  common.Address `json:"taker"`
	MakerToken             common.Address `json:"makerToken"`
	TakerToken             common.Address `json:"takerToken"`
	TakerTokenFilledAmount *big.Int       `json:"takerTokenFilledAmount"`
	MakerTokenFilledAmount *big.Int       `json:"makerTokenFilledAmount"`
	Pool                   common.Hash    `json:"pool"`
}

func (RfqOrderFilled) EventType() Type { return TypeRfqOrderFilled }

// OtcOrderFilled is emitted for every OTC order fill.
type OtcOrderFilled struct {
	OrderHash              common.Hash    `json:"orderHash"`
	Maker                  common.Address `json:"maker"`
	Taker                  common.Address `json:"taker"`
	MakerToken             common.Address `json:"makerToken"`
	TakerToken             common.Address `json:"takerToken"`
	MakerTokenFilledAmount *big.Int       `json:"makerTokenFilledAmount"`
	TakerTokenFilledAmount *big.Int       `json:"takerTokenFilledAmount"`
}

func (OtcOrderFilled) EventType() Type { return TypeOtcOrderFilled }

// OrderCancelled is emitted for every single-order cancellation, including repeated ones.
type OrderCancelled struct {
	OrderHash common.Hash    `json:"orderHash"`
	Maker     common.Address `json:"maker"`
}

func (OrderCancelled) EventType() Type { return TypeOrderCancelled }

// PairCancelledOrders is emitted when a pair threshold moves.
type PairCancelledOrders struct {
	Kind         orders.Kind    `json:"kind"`
	Maker        common.Address `json:"maker"`
	MakerToken   common.Address `json:"makerToken"`
	TakerToken   common.Address `json:"takerToken"`
	MinValidSalt *big.Int       `json:"minValidSalt"`
}

func (PairCancelledOrders) EventType() Type { return TypePairCancelledOrders }

// RfqOrderOriginsAllowed is emitted when a transaction origin changes its allow-list.
type RfqOrderOriginsAllowed struct {
	Origin  common.Address   `json:"origin"`
	Addrs   []common.Address `json:"addrs"`
	Allowed bool             `json:"allowed"`
}

func (RfqOrderOriginsAllowed) EventType() Type { return TypeRfqOrderOriginsAllowed }

// OrderSignerRegistered is emitted when a maker registers or revokes a delegate signer.
type OrderSignerRegistered struct {
	Maker   common.Address `json:"maker"`
	Signer  common.Address `json:"signer"`
	Allowed bool           `json:"allowed"`
}

func (OrderSignerRegistered) EventType() Type { return TypeOrderSignerRegistered }

// ExpiredOrder is a diagnostic emitted when a route skips an expired order.
type ExpiredOrder struct {
	Kind      orders.Kind    `json:"kind"`
	OrderHash common.Hash    `json:"orderHash"`
	Maker     common.Address `json:"maker"`
	Expiry    uint64         `json:"expiry"`
}

func (ExpiredOrder) EventType() Type { return TypeExpiredOrder }

// NFTOrderFilled is emitted for every ERC721 or ERC1155 fill. Matcher is zero
// unless the fill came from order matching.
type NFTOrderFilled struct {
	Kind            orders.Kind           `json:"kind"`
	Direction       orders.TradeDirection `json:"direction"`
	OrderHash       common.Hash           `json:"orderHash"`
	Maker           common.Address        `json:"maker"`
	Taker           common.Address        `json:"taker"`
	Nonce           *big.Int              `json:"nonce"`
	Erc20Token      common.Address        `json:"erc20Token"`
	Erc20FillAmount *big.Int              `json:"erc20FillAmount"`
	Token           common.Address        `json:"token"`
	TokenID         *big.Int              `json:"tokenId"`
	TokenFillAmount *big.Int              `json:"tokenFillAmount"`
	Matcher         common.Address        `json:"matcher"`
}

func (NFTOrderFilled) EventType() Type { return TypeNFTOrderFilled }

// NFTOrderCancelled is emitted when a maker cancels an NFT order nonce.
type NFTOrderCancelled struct {
	Kind  orders.Kind    `json:"kind"`
	Maker common.Address `json:"maker"`
	Nonce *big.Int       `json:"nonce"`
}

func (NFTOrderCancelled) EventType() Type { return TypeNFTOrderCancelled }

// NFTOrderPreSigned is emitted when a maker approves an NFT order on-ledger.
type NFTOrderPreSigned struct {
	Kind      orders.Kind    `json:"kind"`
	OrderHash common.Hash    `json:"orderHash"`
	Maker     common.Address `json:"maker"`
	Nonce     *big.Int       `json:"nonce"`
}

func (NFTOrderPreSigned) EventType() Type { return TypeNFTOrderPreSigned }

// BridgeFill is emitted for every swap routed through a liquidity adapter.
type BridgeFill struct {
	Source       common.Address `json:"source"`
	InputToken   common.Address `json:"inputToken"`
	OutputToken  common.Address `json:"outputToken"`
	InputAmount  *big.Int       `json:"inputAmount"`
	OutputAmount *big.Int       `json:"outputAmount"`
}

func (BridgeFill) EventType() Type { return TypeBridgeFill }

// Recorder is a Sink that keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends events.
func (r *Recorder) Publish(_ context.Context, events []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the payloads of type t in publication order.
func (r *Recorder) OfType(t Type) []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payload
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e.Payload)
		}
	}
	return out
}

// Close is a no-op.
func (r *Recorder) Close() error { return nil }
