// Package exchange is the public surface of the settlement engine. Every
// state-changing operation runs as one atomic unit of work; queries run
// against committed state and never commit.
package exchange

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/bridge"
	"github.com/mselser95/exchange-settlement/internal/fillquote"
	"github.com/mselser95/exchange-settlement/internal/multiplex"
	"github.com/mselser95/exchange-settlement/internal/native"
	"github.com/mselser95/exchange-settlement/internal/nft"
	"github.com/mselser95/exchange-settlement/internal/settle"
)

// Config holds exchange configuration.
type Config struct {
	Runner        *settle.Runner
	Bridges       *bridge.Registry // Optional
	NFT           *nft.Config      // Optional
	MaxRouteDepth int              // Maximum nesting of multiplex routes (default: 4)
	Logger        *zap.Logger
}

// Exchange settles orders against one store.
type Exchange struct {
	runner    *settle.Runner
	bridges   *bridge.Registry
	native    *native.Engine
	nft       *nft.Engine
	fillQuote *fillquote.Transformer
	multiplex *multiplex.Engine
	logger    *zap.Logger
}

// New creates an exchange and the engines behind it.
func New(cfg *Config) *Exchange {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bridges := cfg.Bridges
	if bridges == nil {
		bridges = bridge.NewRegistry(logger)
	}
	nftCfg := cfg.NFT
	if nftCfg == nil {
		nftCfg = &nft.Config{}
	}
	if nftCfg.Logger == nil {
		nftCfg.Logger = logger
	}

	nativeEngine := native.New(logger)
	fq := fillquote.New(&fillquote.Config{Native: nativeEngine, Bridges: bridges, Logger: logger})

	return &Exchange{
		runner:    cfg.Runner,
		bridges:   bridges,
		native:    nativeEngine,
		nft:       nft.New(nftCfg),
		fillQuote: fq,
		multiplex: multiplex.New(&multiplex.Config{
			Native:        nativeEngine,
			Bridges:       bridges,
			FillQuote:     fq,
			MaxRouteDepth: cfg.MaxRouteDepth,
			Logger:        logger,
		}),
		logger: logger,
	}
}

// Env returns the static environment the exchange settles under.
func (x *Exchange) Env() *settle.Env {
	return x.runner.Env()
}

// Bridges returns the liquidity sources available to routes.
func (x *Exchange) Bridges() *bridge.Registry {
	return x.bridges
}

// execute runs fn as operation op and returns what fn produced once the unit
// of work has committed.
func execute[T any](
	ctx context.Context,
	x *Exchange,
	op string,
	call settle.Call,
	fn func(f *settle.Frame) (T, error),
) (T, error) {
	var out T
	_, err := x.runner.Execute(ctx, op, call, func(f *settle.Frame) error {
		v, err := fn(f)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// run is execute for operations without a result.
func run(ctx context.Context, x *Exchange, op string, call settle.Call, fn func(f *settle.Frame) error) error {
	_, err := x.runner.Execute(ctx, op, call, fn)
	return err
}

// view evaluates fn against committed state at time now.
func view[T any](ctx context.Context, x *Exchange, now uint64, fn func(f *settle.Frame) (T, error)) (T, error) {
	var out T
	err := x.runner.View(ctx, settle.Call{Now: now}, func(f *settle.Frame) error {
		v, err := fn(f)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// BalanceOf returns owner's committed balance of token.
func (x *Exchange) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return view(ctx, x, 0, func(f *settle.Frame) (*big.Int, error) {
		return f.Bank.BalanceOf(token, owner)
	})
}

// Approve lets the exchange pull up to amount of token from the caller.
func (x *Exchange) Approve(ctx context.Context, call settle.Call, token common.Address, amount *big.Int) error {
	return run(ctx, x, "approve", call, func(f *settle.Frame) error {
		return f.Bank.Approve(token, call.Sender, x.Env().Exchange, amount)
	})
}
