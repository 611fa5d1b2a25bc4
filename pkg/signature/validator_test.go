package signature

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/exchange-settlement/pkg/cache"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

type fakeRegistry struct {
	signers   map[common.Address]map[common.Address]bool
	presigned map[common.Hash]common.Address
	err       error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		signers:   make(map[common.Address]map[common.Address]bool),
		presigned: make(map[common.Hash]common.Address),
	}
}

func (f *fakeRegistry) IsAllowedSigner(maker, signer common.Address) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.signers[maker][signer], nil
}

func (f *fakeRegistry) IsPreSigned(hash common.Hash, maker common.Address) (bool, error) {
	m, ok := f.presigned[hash]
	return ok && m == maker, nil
}

func (f *fakeRegistry) allow(maker, signer common.Address) {
	if f.signers[maker] == nil {
		f.signers[maker] = make(map[common.Address]bool)
	}
	f.signers[maker][signer] = true
}

func TestValidate(t *testing.T) {
	makerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	delegateKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	maker := crypto.PubkeyToAddress(makerKey.PublicKey)
	delegate := crypto.PubkeyToAddress(delegateKey.PublicKey)
	hash := crypto.Keccak256Hash([]byte("order"))

	v := NewValidator(&ValidatorConfig{})

	t.Run("eip712-by-maker", func(t *testing.T) {
		sig, err := SignEIP712(hash, makerKey)
		require.NoError(t, err)
		assert.NoError(t, v.Validate(newFakeRegistry(), hash, maker, sig))
	})

	t.Run("ethsign-by-maker", func(t *testing.T) {
		sig, err := SignEthSign(hash, makerKey)
		require.NoError(t, err)
		assert.NoError(t, v.Validate(newFakeRegistry(), hash, maker, sig))
	})

	t.Run("ethsign-checked-as-eip712-fails", func(t *testing.T) {
		sig, err := SignEthSign(hash, makerKey)
		require.NoError(t, err)
		sig.Type = TypeEIP712

		var invalid *types.InvalidSignerError
		require.ErrorAs(t, v.Validate(newFakeRegistry(), hash, maker, sig), &invalid)
		assert.NotEqual(t, maker, invalid.Signer)
	})

	t.Run("unregistered-delegate", func(t *testing.T) {
		sig, err := SignEIP712(hash, delegateKey)
		require.NoError(t, err)

		var invalid *types.InvalidSignerError
		require.ErrorAs(t, v.Validate(newFakeRegistry(), hash, maker, sig), &invalid)
		assert.Equal(t, delegate, invalid.Signer)
		assert.Equal(t, maker, invalid.Maker)
	})

	t.Run("registered-delegate", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.allow(maker, delegate)

		sig, err := SignEIP712(hash, delegateKey)
		require.NoError(t, err)
		assert.NoError(t, v.Validate(reg, hash, maker, sig))
	})

	t.Run("presigned", func(t *testing.T) {
		reg := newFakeRegistry()
		assert.Error(t, v.Validate(reg, hash, maker, PreSigned()))

		reg.presigned[hash] = maker
		assert.NoError(t, v.Validate(reg, hash, maker, PreSigned()))
	})

	t.Run("illegal-type", func(t *testing.T) {
		sig, err := SignEIP712(hash, makerKey)
		require.NoError(t, err)
		sig.Type = TypeIllegal
		assert.Error(t, v.Validate(newFakeRegistry(), hash, maker, sig))
	})

	t.Run("registry-error-propagates", func(t *testing.T) {
		reg := newFakeRegistry()
		reg.err = errors.New("store down")

		sig, err := SignEIP712(hash, delegateKey)
		require.NoError(t, err)

		err = v.Validate(reg, hash, maker, sig)
		require.Error(t, err)
		assert.Equal(t, types.KindUnknown, types.KindOf(err))
	})
}

func TestRevokedDelegateIsRejectedDespiteCache(t *testing.T) {
	signerCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{MaxEntries: 100})
	require.NoError(t, err)
	defer signerCache.Close()

	makerKey, _ := crypto.GenerateKey()
	delegateKey, _ := crypto.GenerateKey()
	maker := crypto.PubkeyToAddress(makerKey.PublicKey)
	delegate := crypto.PubkeyToAddress(delegateKey.PublicKey)
	hash := crypto.Keccak256Hash([]byte("cached"))

	v := NewValidator(&ValidatorConfig{Cache: signerCache})
	reg := newFakeRegistry()
	reg.allow(maker, delegate)

	sig, err := SignEIP712(hash, delegateKey)
	require.NoError(t, err)
	require.NoError(t, v.Validate(reg, hash, maker, sig))
	signerCache.Wait()

	reg.signers[maker][delegate] = false
	assert.Error(t, v.Validate(reg, hash, maker, sig))

	got, err := v.Signer(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, delegate, got)
}

func TestRecoverRejectsBadV(t *testing.T) {
	key, _ := crypto.GenerateKey()
	hash := crypto.Keccak256Hash([]byte("v"))

	sig, err := SignEIP712(hash, key)
	require.NoError(t, err)
	sig.V = 5

	_, err = sig.Recover(hash)
	assert.ErrorIs(t, err, ErrUnrecoverable)
}
