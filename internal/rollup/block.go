package rollup

import (
	"encoding/binary"

	"github.com/godwoken/web3-indexer/internal/web3"
)

// RawBlock is the rollup's native block shape as returned by the
// upstream get_block_by_number RPC, exposing exactly the fields the
// block transformer needs (spec §4.1's packed-view accessors). It does
// not interpret transaction or log semantics; that is C3's job.
type RawBlock struct {
	Number          uint64
	Hash            web3.Hash
	ParentBlockHash web3.Hash
	Timestamp       uint64 // milliseconds since epoch, as the rollup emits it
	BlockProducerID uint32
	Transactions    []RawTransaction
	// Raw is the packed RawL2Block molecule bytes the rollup reports
	// alongside the block (spec §4.1's `raw` accessor): blocks.size is
	// its byte length, independent of how many transactions the block
	// contains.
	Raw []byte
}

// RawTransaction is one rollup L2 transaction before address resolution
// or eth-shape projection.
type RawTransaction struct {
	Hash      web3.Hash
	FromID    uint32
	ToID      uint32
	Nonce     uint32
	Args      []byte
	Signature []byte // raw signature bytes; 65 bytes is the recoverable-sig shape
}

// RawReceipt is the upstream transaction receipt: the logs produced by
// one L2 transaction, still in tagged-union wire form.
type RawReceipt struct {
	TxHash     web3.Hash
	ReturnData []byte
	ExitCode   uint8
	Logs       []RawLogEntry
}

// RawLogEntry pairs a log item's service flag with its undecoded
// payload, mirroring how get_transaction_receipt reports it.
type RawLogEntry struct {
	ServiceFlag byte
	Data        []byte
}

// RawScript is a get_script result: the minimal fields the address
// resolver (C2) needs from an account's lock/type script.
type RawScript struct {
	CodeHash web3.Hash
	HashType byte
	Args     []byte
}

// PackedBlockTimestampSeconds converts the rollup's millisecond
// timestamp to the Web3 schema's integer seconds (spec §6 blocks.timestamp).
func PackedBlockTimestampSeconds(b *RawBlock) uint64 {
	return b.Timestamp / 1000
}

// decodeUint32LE reads a little-endian u32 from the first four bytes of
// b. The decoders in this package read their u32 fields through
// encoding/binary directly and do not call it.
func decodeUint32LE(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}
