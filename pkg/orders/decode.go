package orders

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
)

// Hashable is any order variant.
type Hashable interface {
	Hash(domain Domain) common.Hash
	Validate() error
}

// Kinds lists every order variant.
func Kinds() []Kind {
	return []Kind{KindLimit, KindRfq, KindOtc, KindERC721, KindERC1155}
}

// New returns an empty order of the given kind.
func New(kind Kind) (Hashable, error) {
	switch kind {
	case KindLimit:
		return &LimitOrder{}, nil
	case KindRfq:
		return &RfqOrder{}, nil
	case KindOtc:
		return &OtcOrder{}, nil
	case KindERC721:
		return &ERC721Order{}, nil
	case KindERC1155:
		return &ERC1155Order{}, nil
	default:
		return nil, fmt.Errorf("unknown order kind %q", kind)
	}
}

// Decode parses a JSON order of the given kind and checks its field widths.
func Decode(kind Kind, data []byte) (Hashable, error) {
	order, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, order); err != nil {
		return nil, fmt.Errorf("decode %s order: %w", kind, err)
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s order: %w", kind, err)
	}
	return order, nil
}
