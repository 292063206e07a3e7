package rollup

import (
	"encoding/binary"

	"github.com/holiman/uint256"
)

// GWL2TxArgsMaxSize bounds polyjuice input size (spec §4.1: 128 KiB).
const GWL2TxArgsMaxSize = 128 * 1024

// polyjuiceCreateSelector is the selector byte value meaning "this call
// deploys a contract" (spec §4.1, byte offset 7).
const polyjuiceCreateSelector = 3

// PolyjuiceArgs is the decoded polyjuice call envelope carried in a
// transaction's args field (spec §4.1).
type PolyjuiceArgs struct {
	IsCreate bool
	GasLimit uint64
	GasPrice *uint256.Int
	Value    *uint256.Int
	Input    []byte
}

// DecodePolyjuiceArgs decodes a polyjuice args payload.
//
// Layout (little-endian): byte 7 selector, [8,16) gas_limit u64,
// [16,32) gas_price u128, [32,48) value u128, [48,52) input_size u32,
// [52, 52+input_size) input.
func DecodePolyjuiceArgs(args []byte) (*PolyjuiceArgs, error) {
	if len(args) < 52 {
		return nil, decodeErrorf("polyjuice args too short: %d bytes", len(args))
	}
	isCreate := args[7] == polyjuiceCreateSelector
	gasLimit := binary.LittleEndian.Uint64(args[8:16])
	gasPrice := new(uint256.Int).SetBytes(reverse(args[16:32]))
	value := new(uint256.Int).SetBytes(reverse(args[32:48]))
	inputSize := binary.LittleEndian.Uint32(args[48:52])
	if inputSize > GWL2TxArgsMaxSize {
		return nil, decodeErrorf("polyjuice args input size too large: %d", inputSize)
	}
	if len(args) < 52+int(inputSize) {
		return nil, decodeErrorf("polyjuice args input data too short: need %d, have %d", 52+inputSize, len(args))
	}
	input := make([]byte, inputSize)
	copy(input, args[52:52+inputSize])

	return &PolyjuiceArgs{
		IsCreate: isCreate,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Value:    value,
		Input:    input,
	}, nil
}

// EncodePolyjuiceArgs is the inverse of DecodePolyjuiceArgs, used by the
// round-trip tests (spec §8).
func EncodePolyjuiceArgs(a *PolyjuiceArgs) []byte {
	out := make([]byte, 52+len(a.Input))
	// bytes [0,7) are reserved/unused by this decoder; left zero.
	if a.IsCreate {
		out[7] = polyjuiceCreateSelector
	}
	binary.LittleEndian.PutUint64(out[8:16], a.GasLimit)
	putUint128LE(out[16:32], a.GasPrice)
	putUint128LE(out[32:48], a.Value)
	binary.LittleEndian.PutUint32(out[48:52], uint32(len(a.Input)))
	copy(out[52:], a.Input)
	return out
}

// putUint128LE writes the low 128 bits of v into dst (16 bytes) in
// little-endian order.
func putUint128LE(dst []byte, v *uint256.Int) {
	b := v.Bytes() // big-endian, minimal length
	be := reverse(b)
	copy(dst, be)
}

// reverse returns a reversed copy of b (big-endian <-> little-endian for
// the 16-byte u128 fields this codec shuttles through uint256.Int, which
// only has big-endian accessors).
func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
