// Package signature recovers and validates order signatures.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Type selects how a signature authorizes an order hash.
type Type uint8

const (
	TypeIllegal Type = iota
	TypeInvalid
	TypeEIP712
	TypeEthSign
	TypePreSigned
)

func (t Type) String() string {
	switch t {
	case TypeIllegal:
		return "ILLEGAL"
	case TypeInvalid:
		return "INVALID"
	case TypeEIP712:
		return "EIP712"
	case TypeEthSign:
		return "ETHSIGN"
	case TypePreSigned:
		return "PRESIGNED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// ErrUnrecoverable is returned when no signer can be derived from a signature.
var ErrUnrecoverable = errors.New("signature: unrecoverable")

// Signature is an ECDSA signature over an order hash, or a pre-sign marker.
type Signature struct {
	Type Type        `json:"signatureType"`
	V    uint8       `json:"v"`
	R    common.Hash `json:"r"`
	S    common.Hash `json:"s"`
}

// PreSigned returns the marker signature for orders authorized on the ledger.
func PreSigned() Signature {
	return Signature{Type: TypePreSigned}
}

// SignEIP712 signs an EIP-712 order hash directly.
func SignEIP712(hash common.Hash, key *ecdsa.PrivateKey) (Signature, error) {
	return sign(TypeEIP712, hash, key)
}

// SignEthSign signs an order hash with the eth_sign message prefix.
func SignEthSign(hash common.Hash, key *ecdsa.PrivateKey) (Signature, error) {
	return sign(TypeEthSign, ethSignDigest(hash), key)
}

func sign(t Type, digest common.Hash, key *ecdsa.PrivateKey) (Signature, error) {
	raw, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return Signature{}, fmt.Errorf("sign digest: %w", err)
	}

	return Signature{
		Type: t,
		V:    raw[64] + 27,
		R:    common.BytesToHash(raw[:32]),
		S:    common.BytesToHash(raw[32:64]),
	}, nil
}

func ethSignDigest(hash common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), hash[:])
}

// Recover derives the signer of hash. PreSigned and invalid types are not recoverable.
func (s Signature) Recover(hash common.Hash) (common.Address, error) {
	var digest common.Hash
	switch s.Type {
	case TypeEIP712:
		digest = hash
	case TypeEthSign:
		digest = ethSignDigest(hash)
	default:
		return common.Address{}, fmt.Errorf("%w: type %s", ErrUnrecoverable, s.Type)
	}

	if s.V != 27 && s.V != 28 {
		return common.Address{}, fmt.Errorf("%w: bad v %d", ErrUnrecoverable, s.V)
	}

	raw := make([]byte, 65)
	copy(raw[:32], s.R[:])
	copy(raw[32:64], s.S[:])
	raw[64] = s.V - 27

	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrUnrecoverable, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

func (s Signature) cacheKey(hash common.Hash) string {
	return fmt.Sprintf("%x:%d:%d:%x:%x", hash[:], s.Type, s.V, s.R[:], s.S[:])
}
