package orders

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// DefaultDomainName is the EIP-712 domain name orders are signed under.
	DefaultDomainName = "ZeroEx"
	// DefaultDomainVersion is the EIP-712 domain version orders are signed under.
	DefaultDomainVersion = "1.0.0"
)

//nolint:gochecknoglobals // EIP-712 type hashes
var domainTypeHash = crypto.Keccak256Hash([]byte(
	"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
))

// Domain is the EIP-712 signing domain of the exchange.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewDomain returns a domain with the default name and version.
func NewDomain(chainID int64, verifyingContract common.Address) Domain {
	return Domain{
		Name:              DefaultDomainName,
		Version:           DefaultDomainVersion,
		ChainID:           big.NewInt(chainID),
		VerifyingContract: verifyingContract,
	}
}

// Separator computes the EIP-712 domain separator.
func (d Domain) Separator() common.Hash {
	var w words
	w.hash(domainTypeHash)
	w.hash(crypto.Keccak256Hash([]byte(d.Name)))
	w.hash(crypto.Keccak256Hash([]byte(d.Version)))
	w.uint(d.ChainID)
	w.address(d.VerifyingContract)
	return w.digest()
}

// TypedDataHash returns keccak256(0x1901 || domainSeparator || structHash).
func (d Domain) TypedDataHash(structHash common.Hash) common.Hash {
	separator := d.Separator()
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, separator[:], structHash[:])
}

// words accumulates 32-byte ABI words for struct hashing.
type words struct {
	buf []byte
}

func (w *words) hash(h common.Hash) {
	w.buf = append(w.buf, h[:]...)
}

func (w *words) address(a common.Address) {
	w.buf = append(w.buf, common.LeftPadBytes(a[:], 32)...)
}

// uint encodes v as a uint256 word; nil encodes as zero.
func (w *words) uint(v *big.Int) {
	if v == nil {
		v = new(big.Int)
	}
	w.buf = append(w.buf, math.U256Bytes(new(big.Int).Set(v))...)
}

func (w *words) uint64(v uint64) {
	w.uint(new(big.Int).SetUint64(v))
}

func (w *words) bytes(b []byte) {
	w.hash(crypto.Keccak256Hash(b))
}

func (w *words) digest() common.Hash {
	return crypto.Keccak256Hash(w.buf)
}

// hashArray hashes a list of struct hashes the way EIP-712 encodes arrays.
func hashArray(items []common.Hash) common.Hash {
	buf := make([]byte, 0, len(items)*common.HashLength)
	for _, h := range items {
		buf = append(buf, h[:]...)
	}
	return crypto.Keccak256Hash(buf)
}
