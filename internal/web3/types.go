// Package web3 holds the Ethereum-shaped records the indexer writes to
// Postgres, and the invariants they must satisfy (spec §3).
package web3

import (
	"github.com/holiman/uint256"
)

// HashLength is the byte length of a Hash (blake2b-256 / keccak-256 output).
const HashLength = 32

// AddressLength is the byte length of an Ethereum-style address.
const AddressLength = 20

// Hash is a 32-byte digest: a rollup block hash, a gw tx hash, or a
// derived Ethereum tx hash.
type Hash [HashLength]byte

// Address is a 20-byte Ethereum-style account address.
type Address [AddressLength]byte

// IsZero reports whether every byte of the address is zero.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a fresh copy of the address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

// Bytes returns a fresh copy of the hash bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashLength)
	copy(b, h[:])
	return b
}

// BytesToAddress left-truncates or zero-extends b into an Address. Callers
// are expected to pass exactly 20 bytes; this never panics on shorter input.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// BytesToHash left-truncates or zero-extends b into a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// Block is one row of the blocks table (spec §3).
type Block struct {
	Number     uint64
	Hash       Hash
	ParentHash Hash
	GasLimit   uint64
	GasUsed    uint64
	Miner      Address
	Size       uint64
	// Timestamp is whole seconds, floor(raw_timestamp_ms/1000).
	Timestamp uint64
}

// Transaction is one row of the transactions table (spec §3).
type Transaction struct {
	GwTxHash  Hash
	EthTxHash Hash

	BlockNumber      uint64
	BlockHash        Hash
	TransactionIndex uint32

	FromAddress Address
	// ToAddress is nil for contract-creation transactions.
	ToAddress *Address

	Value    *uint256.Int
	Nonce    uint32
	GasLimit uint64
	GasPrice *uint256.Int
	Input    []byte

	V uint8
	R [32]byte
	S [32]byte

	CumulativeGasUsed uint64
	GasUsed           uint64

	// ContractAddress is set only when this is a creation whose receipt
	// recorded a non-zero created address.
	ContractAddress *Address
	ExitCode        uint8
}

// Log is one row of the logs table (spec §3).
type Log struct {
	TransactionHash  Hash
	TransactionIndex uint32
	BlockNumber      uint64
	BlockHash        Hash
	Address          Address
	Data             []byte
	LogIndex         uint32
	Topics           []Hash
}

// TransactionWithLogs bundles a transaction with the logs it emitted, in
// the order they must be written (spec §4.4: transaction row first, to
// obtain the generated id the log rows reference).
type TransactionWithLogs struct {
	Tx   Transaction
	Logs []Log
}

// ErrorReceiptRecord is one row of the error_transactions table (spec §3,
// §4.6).
type ErrorReceiptRecord struct {
	TxHash            Hash
	BlockNumber       uint64
	CumulativeGasUsed uint64
	GasUsed           uint64
	StatusCode        uint32
	// StatusReason is at most 32 bytes (spec §4.6).
	StatusReason []byte
}
