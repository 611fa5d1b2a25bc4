package orders

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// TradeDirection is the side of an NFT order from the maker's point of view.
type TradeDirection uint8

const (
	// SellNFT orders offer an NFT for ERC20 tokens.
	SellNFT TradeDirection = iota
	// BuyNFT orders offer ERC20 tokens for an NFT.
	BuyNFT
)

func (d TradeDirection) String() string {
	if d == SellNFT {
		return "SELL_NFT"
	}
	return "BUY_NFT"
}

// NFTOrderStatus is the lifecycle status of an ERC721 or ERC1155 order.
type NFTOrderStatus uint8

const (
	NFTStatusInvalid NFTOrderStatus = iota
	NFTStatusFillable
	NFTStatusUnfillable
	NFTStatusExpired
)

func (s NFTOrderStatus) String() string {
	switch s {
	case NFTStatusInvalid:
		return "INVALID"
	case NFTStatusFillable:
		return "FILLABLE"
	case NFTStatusUnfillable:
		return "UNFILLABLE"
	case NFTStatusExpired:
		return "EXPIRED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

const (
	feeTypeString      = "Fee(address recipient,uint256 amount,bytes feeData)"
	propertyTypeString = "Property(address propertyValidator,bytes propertyData)"
)

//nolint:gochecknoglobals // EIP-712 type hashes
var (
	feeTypeHash      = crypto.Keccak256Hash([]byte(feeTypeString))
	propertyTypeHash = crypto.Keccak256Hash([]byte(propertyTypeString))

	erc721OrderTypeHash = crypto.Keccak256Hash([]byte(
		"ERC721Order(uint8 direction,address maker,address taker,uint256 expiry,uint256 nonce," +
			"address erc20Token,uint256 erc20TokenAmount,Fee[] fees,address erc721Token," +
			"uint256 erc721TokenId,Property[] erc721TokenProperties)" +
			feeTypeString + propertyTypeString,
	))
	erc1155OrderTypeHash = crypto.Keccak256Hash([]byte(
		"ERC1155Order(uint8 direction,address maker,address taker,uint256 expiry,uint256 nonce," +
			"address erc20Token,uint256 erc20TokenAmount,Fee[] fees,address erc1155Token," +
			"uint256 erc1155TokenId,Property[] erc1155TokenProperties,uint128 erc1155TokenAmount)" +
			feeTypeString + propertyTypeString,
	))
)

// Fee is paid by the buyer on top of the order price.
// A non-empty FeeData requires the recipient to acknowledge a fee callback.
type Fee struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
	FeeData   hexutil.Bytes  `json:"feeData"`
}

func (f Fee) structHash() common.Hash {
	var w words
	w.hash(feeTypeHash)
	w.address(f.Recipient)
	w.uint(f.Amount)
	w.bytes(f.FeeData)
	return w.digest()
}

// Property constrains which token ids satisfy a buy order.
// A zero PropertyValidator accepts any token id.
type Property struct {
	PropertyValidator common.Address `json:"propertyValidator"`
	PropertyData      hexutil.Bytes  `json:"propertyData"`
}

func (p Property) structHash() common.Hash {
	var w words
	w.hash(propertyTypeHash)
	w.address(p.PropertyValidator)
	w.bytes(p.PropertyData)
	return w.digest()
}

func hashFees(fees []Fee) common.Hash {
	hashes := make([]common.Hash, len(fees))
	for i, f := range fees {
		hashes[i] = f.structHash()
	}
	return hashArray(hashes)
}

func hashProperties(props []Property) common.Hash {
	hashes := make([]common.Hash, len(props))
	for i, p := range props {
		hashes[i] = p.structHash()
	}
	return hashArray(hashes)
}

// NFTOrder holds the fields shared by ERC721 and ERC1155 orders.
type NFTOrder struct {
	Direction        TradeDirection `json:"direction"`
	Maker            common.Address `json:"maker"`
	Taker            common.Address `json:"taker"`
	Expiry           uint64         `json:"expiry"`
	Nonce            *big.Int       `json:"nonce"`
	Erc20Token       common.Address `json:"erc20Token"`
	Erc20TokenAmount *big.Int       `json:"erc20TokenAmount"`
	Fees             []Fee          `json:"fees"`
}

// TotalFees sums the fee amounts of the order.
func (o *NFTOrder) TotalFees() *big.Int {
	total := new(big.Int)
	for _, f := range o.Fees {
		total.Add(total, orZero(f.Amount))
	}
	return total
}

// Validate checks that the numeric fields are present and in range.
func (o *NFTOrder) Validate() error {
	if err := checkWidth("nonce", o.Nonce, maxUint256); err != nil {
		return err
	}
	if err := checkWidth("erc20TokenAmount", o.Erc20TokenAmount, maxUint256); err != nil {
		return err
	}
	for i, f := range o.Fees {
		if err := checkWidth(fmt.Sprintf("fees[%d].amount", i), f.Amount, maxUint256); err != nil {
			return err
		}
	}
	return nil
}

func (o *NFTOrder) writePrefix(w *words, typeHash common.Hash) {
	w.hash(typeHash)
	w.uint64(uint64(o.Direction))
	w.address(o.Maker)
	w.address(o.Taker)
	w.uint64(o.Expiry)
	w.uint(o.Nonce)
	w.address(o.Erc20Token)
	w.uint(o.Erc20TokenAmount)
	w.hash(hashFees(o.Fees))
}

// ERC721Order trades a single ERC721 token for ERC20 tokens or native currency.
type ERC721Order struct {
	NFTOrder
	Erc721Token           common.Address `json:"erc721Token"`
	Erc721TokenID         *big.Int       `json:"erc721TokenId"`
	Erc721TokenProperties []Property     `json:"erc721TokenProperties"`
}

// StructHash returns the EIP-712 struct hash of the order.
func (o *ERC721Order) StructHash() common.Hash {
	var w words
	o.writePrefix(&w, erc721OrderTypeHash)
	w.address(o.Erc721Token)
	w.uint(o.Erc721TokenID)
	w.hash(hashProperties(o.Erc721TokenProperties))
	return w.digest()
}

// Hash returns the EIP-712 order hash under domain.
func (o *ERC721Order) Hash(domain Domain) common.Hash {
	return domain.TypedDataHash(o.StructHash())
}

// Token returns the NFT contract address.
func (o *ERC721Order) Token() common.Address { return o.Erc721Token }

// TokenID returns the token id named by the order.
func (o *ERC721Order) TokenID() *big.Int { return orZero(o.Erc721TokenID) }

// Properties returns the token property constraints.
func (o *ERC721Order) Properties() []Property { return o.Erc721TokenProperties }

// ERC1155Order trades a quantity of an ERC1155 token and may be filled partially.
type ERC1155Order struct {
	NFTOrder
	Erc1155Token           common.Address `json:"erc1155Token"`
	Erc1155TokenID         *big.Int       `json:"erc1155TokenId"`
	Erc1155TokenProperties []Property     `json:"erc1155TokenProperties"`
	Erc1155TokenAmount     *big.Int       `json:"erc1155TokenAmount"`
}

// StructHash returns the EIP-712 struct hash of the order.
func (o *ERC1155Order) StructHash() common.Hash {
	var w words
	o.writePrefix(&w, erc1155OrderTypeHash)
	w.address(o.Erc1155Token)
	w.uint(o.Erc1155TokenID)
	w.hash(hashProperties(o.Erc1155TokenProperties))
	w.uint(o.Erc1155TokenAmount)
	return w.digest()
}

// Hash returns the EIP-712 order hash under domain.
func (o *ERC1155Order) Hash(domain Domain) common.Hash {
	return domain.TypedDataHash(o.StructHash())
}

// Token returns the NFT contract address.
func (o *ERC1155Order) Token() common.Address { return o.Erc1155Token }

// TokenID returns the token id named by the order.
func (o *ERC1155Order) TokenID() *big.Int { return orZero(o.Erc1155TokenID) }

// Properties returns the token property constraints.
func (o *ERC1155Order) Properties() []Property { return o.Erc1155TokenProperties }

// Validate checks the shared fields and that the order quantity fits in 128 bits.
func (o *ERC1155Order) Validate() error {
	if err := o.NFTOrder.Validate(); err != nil {
		return err
	}
	return checkWidth("erc1155TokenAmount", o.Erc1155TokenAmount, maxUint128)
}
