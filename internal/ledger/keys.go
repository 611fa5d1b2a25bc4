package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PairKind separates the pair-cancellation namespaces of limit and RFQ orders.
type PairKind string

const (
	PairLimit PairKind = "limit"
	PairRfq   PairKind = "rfq"
)

func filledKey(hash common.Hash) string {
	return "fill/" + hash.Hex()
}

func cancelledKey(hash common.Hash) string {
	return "cxl/" + hash.Hex()
}

func minSaltKey(kind PairKind, maker, makerToken, takerToken common.Address) string {
	return fmt.Sprintf("minsalt/%s/%s/%s/%s", kind, maker.Hex(), makerToken.Hex(), takerToken.Hex())
}

func otcNonceKey(maker common.Address, bucket uint64) string {
	return fmt.Sprintf("otcnonce/%s/%d", maker.Hex(), bucket)
}

func erc721NonceWordKey(maker common.Address, word *big.Int) string {
	return fmt.Sprintf("nft721/%s/%s", maker.Hex(), word.String())
}

func erc1155CancelKey(maker common.Address, nonce *big.Int) string {
	return fmt.Sprintf("nft1155cxl/%s/%s", maker.Hex(), nonce.String())
}

func erc1155FilledKey(hash common.Hash) string {
	return "nft1155fill/" + hash.Hex()
}

func preSignKey(maker common.Address, hash common.Hash) string {
	return fmt.Sprintf("presign/%s/%s", maker.Hex(), hash.Hex())
}

func signerKey(maker, signer common.Address) string {
	return fmt.Sprintf("signer/%s/%s", maker.Hex(), signer.Hex())
}

func originKey(txOrigin, origin common.Address) string {
	return fmt.Sprintf("origin/%s/%s", txOrigin.Hex(), origin.Hex())
}
