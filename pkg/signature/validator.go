package signature

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/pkg/cache"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

// Registry answers the ledger-backed parts of signature validation.
// Answers must reflect the current state and are never cached.
type Registry interface {
	IsAllowedSigner(maker, signer common.Address) (bool, error)
	IsPreSigned(hash common.Hash, maker common.Address) (bool, error)
}

// Validator checks that a signature authorizes a maker for an order hash.
type Validator struct {
	cache  cache.SignerCache
	logger *zap.Logger
}

// ValidatorConfig holds validator dependencies. Cache may be nil.
type ValidatorConfig struct {
	Cache  cache.SignerCache
	Logger *zap.Logger
}

// NewValidator creates a signature validator.
func NewValidator(cfg *ValidatorConfig) *Validator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Validator{
		cache:  cfg.Cache,
		logger: logger,
	}
}

// Signer recovers the signer of hash, consulting the recovery cache first.
func (v *Validator) Signer(hash common.Hash, sig Signature) (common.Address, error) {
	key := sig.cacheKey(hash)
	if v.cache != nil {
		if signer, ok := v.cache.Get(key); ok {
			return signer, nil
		}
	}

	signer, err := sig.Recover(hash)
	if err != nil {
		return common.Address{}, err
	}

	if v.cache != nil {
		v.cache.Set(key, signer)
	}
	return signer, nil
}

// Validate returns nil when sig authorizes maker for hash, or an
// *types.InvalidSignerError naming the signer that was found.
func (v *Validator) Validate(reg Registry, hash common.Hash, maker common.Address, sig Signature) error {
	if sig.Type == TypePreSigned {
		ok, err := reg.IsPreSigned(hash, maker)
		if err != nil {
			return fmt.Errorf("check pre-sign: %w", err)
		}
		if !ok {
			return &types.InvalidSignerError{Maker: maker}
		}
		return nil
	}

	signer, err := v.Signer(hash, sig)
	if err != nil {
		v.logger.Debug("signature-unrecoverable",
			zap.String("order-hash", hash.Hex()),
			zap.Stringer("type", sig.Type),
			zap.Error(err))
		return &types.InvalidSignerError{Maker: maker}
	}

	if signer == maker {
		return nil
	}

	allowed, err := reg.IsAllowedSigner(maker, signer)
	if err != nil {
		return fmt.Errorf("check allowed signer: %w", err)
	}
	if !allowed {
		return &types.InvalidSignerError{Maker: maker, Signer: signer}
	}
	return nil
}
