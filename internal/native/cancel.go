package native

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/ledger"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

func (e *Engine) cancel(f *settle.Frame, hash common.Hash, maker common.Address) error {
	sender := f.Call.Sender
	if sender != maker {
		allowed, err := f.Ledger.IsAllowedSigner(maker, sender)
		if err != nil {
			return err
		}
		if !allowed {
			return &types.OnlyOrderMakerAllowedError{OrderHash: hash, Sender: sender, Maker: maker}
		}
	}

	if err := f.Ledger.Cancel(hash); err != nil {
		return err
	}
	f.Emit(events.OrderCancelled{OrderHash: hash, Maker: maker})
	CancellationsTotal.WithLabelValues("order").Inc()
	e.logger.Debug("order-cancelled", zap.String("order-hash", hash.Hex()))
	return nil
}

func (e *Engine) cancelPair(
	f *settle.Frame,
	kind ledger.PairKind,
	maker, makerToken, takerToken common.Address,
	minValidSalt *big.Int,
) error {
	if minValidSalt == nil {
		return types.ErrInvalidOrder.WithMessage("missing minimum valid salt")
	}
	moved, err := f.Ledger.CancelPair(kind, maker, makerToken, takerToken, minValidSalt)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}

	eventKind := orders.KindLimit
	if kind == ledger.PairRfq {
		eventKind = orders.KindRfq
	}
	f.Emit(events.PairCancelledOrders{
		Kind:         eventKind,
		Maker:        maker,
		MakerToken:   makerToken,
		TakerToken:   takerToken,
		MinValidSalt: new(big.Int).Set(minValidSalt),
	})
	CancellationsTotal.WithLabelValues("pair").Inc()
	return nil
}

func (e *Engine) requireSigner(f *settle.Frame, maker common.Address) error {
	allowed, err := f.Ledger.IsAllowedSigner(maker, f.Call.Sender)
	if err != nil {
		return err
	}
	if !allowed {
		return &types.InvalidSignerError{Maker: maker, Signer: f.Call.Sender}
	}
	return nil
}

// RegisterAllowedRfqOrigins lets the transaction origin allow or disallow
// other origins to fill RFQ and OTC orders naming it as txOrigin.
// Only an externally initiated call (sender == origin) may register.
func (e *Engine) RegisterAllowedRfqOrigins(f *settle.Frame, origins []common.Address, allowed bool) error {
	if f.Call.Sender != f.Call.TxOrigin() {
		return types.ErrOnlyOriginRegistrar
	}
	for _, origin := range origins {
		if err := f.Ledger.SetAllowedOrigin(f.Call.Sender, origin, allowed); err != nil {
			return err
		}
	}
	f.Emit(events.RfqOrderOriginsAllowed{
		Origin:  f.Call.Sender,
		Addrs:   append([]common.Address(nil), origins...),
		Allowed: allowed,
	})
	return nil
}

// RegisterAllowedOrderSigner lets the caller allow or revoke a delegate signer.
func (e *Engine) RegisterAllowedOrderSigner(f *settle.Frame, signer common.Address, allowed bool) error {
	if err := f.Ledger.SetAllowedSigner(f.Call.Sender, signer, allowed); err != nil {
		return err
	}
	f.Emit(events.OrderSignerRegistered{Maker: f.Call.Sender, Signer: signer, Allowed: allowed})
	return nil
}
