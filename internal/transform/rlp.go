package transform

import (
	"github.com/erigontech/erigon-lib/rlp"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/godwoken/web3-indexer/internal/web3"
)

// ethTxHash derives the Ethereum-compatible transaction hash (spec
// §4.3 step 5): keccak256 over the RLP encoding of
// (nonce, gas_price, gas_limit, to, value, input, v, r, s), the same
// list shape a legacy Ethereum transaction hashes, grounded on the
// teacher's own use of golang.org/x/crypto/sha3 + erigon-lib/rlp in
// core/blockchain.go.
func ethTxHash(nonce uint32, gasPrice *uint256.Int, gasLimit uint64, to *web3.Address, value *uint256.Int, input []byte, v uint8, r, s [32]byte) (web3.Hash, error) {
	rBig := new(uint256.Int).SetBytes(r[:])
	sBig := new(uint256.Int).SetBytes(s[:])

	encoded, err := rlp.EncodeToBytes([]interface{}{
		uint64(nonce),
		gasPrice,
		gasLimit,
		toRLPAddress(to),
		value,
		input,
		uint64(v),
		rBig,
		sBig,
	})
	if err != nil {
		return web3.Hash{}, err
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(encoded)
	var out web3.Hash
	h.Sum(out[:0])
	return out, nil
}

// toRLPAddress returns to's raw bytes, or an empty slice for contract
// creation, so the "to" field encodes as an RLP empty string rather
// than 20 zero bytes.
func toRLPAddress(to *web3.Address) []byte {
	if to == nil {
		return nil
	}
	return to.Bytes()
}
