package rollup

import (
	"encoding/binary"

	"github.com/holiman/uint256"
)

// SUDT args tags (spec §4.1): the simple-UDT contract's args field is a
// tagged union keyed by a 4-byte little-endian discriminant.
const (
	sudtArgsTagQuery    uint32 = 0
	sudtArgsTagTransfer uint32 = 1
)

// SudtArgsKind distinguishes the two SUDT call shapes this indexer cares
// about (spec §4.3's SUDT path).
type SudtArgsKind int

const (
	SudtArgsQuery SudtArgsKind = iota
	SudtArgsTransfer
)

// SudtArgs is the decoded args payload of a call into the SUDT contract.
// Only Kind==SudtArgsTransfer carries transfer fields; SudtArgsQuery is a
// balance/name/symbol/decimals read with no side effect on the ledger
// and is skipped by the block transformer.
type SudtArgs struct {
	Kind SudtArgsKind

	ToAddress []byte // registry address bytes, length varies by encoding
	Amount    *uint256.Int
	Fee       *uint256.Int
}

// DecodeSudtArgs decodes a SUDT contract call's args field.
//
// Layout (little-endian): [0,4) tag; for SudtArgsTransfer: [4,8)
// to_address length, [8, 8+len) to_address bytes, then a 16-byte u128
// amount and a 16-byte u128 fee.
func DecodeSudtArgs(args []byte) (*SudtArgs, error) {
	if len(args) < 4 {
		return nil, decodeErrorf("sudt args too short: %d bytes", len(args))
	}
	tag := binary.LittleEndian.Uint32(args[0:4])
	switch tag {
	case sudtArgsTagQuery:
		return &SudtArgs{Kind: SudtArgsQuery}, nil
	case sudtArgsTagTransfer:
		return decodeSudtTransferArgs(args[4:])
	default:
		return nil, decodeErrorf("sudt args: unknown tag %d", tag)
	}
}

func decodeSudtTransferArgs(rest []byte) (*SudtArgs, error) {
	if len(rest) < 4 {
		return nil, decodeErrorf("sudt transfer args: too short for to_address length")
	}
	toLen := binary.LittleEndian.Uint32(rest[0:4])
	offset := 4
	if len(rest) < offset+int(toLen) {
		return nil, decodeErrorf("sudt transfer args: to_address length exceeds payload")
	}
	to := make([]byte, toLen)
	copy(to, rest[offset:offset+int(toLen)])
	offset += int(toLen)

	if len(rest) < offset+16+16 {
		return nil, decodeErrorf("sudt transfer args: too short for amount+fee")
	}
	amount := new(uint256.Int).SetBytes(reverse(rest[offset : offset+16]))
	offset += 16
	fee := new(uint256.Int).SetBytes(reverse(rest[offset : offset+16]))
	offset += 16

	if offset != len(rest) {
		return nil, decodeErrorf("sudt transfer args: trailing bytes: offset=%d len=%d", offset, len(rest))
	}

	return &SudtArgs{
		Kind:      SudtArgsTransfer,
		ToAddress: to,
		Amount:    amount,
		Fee:       fee,
	}, nil
}

// EncodeSudtArgs is the inverse of DecodeSudtArgs for the transfer
// variant, used by round-trip tests (spec §8).
func EncodeSudtArgs(a *SudtArgs) []byte {
	if a.Kind == SudtArgsQuery {
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, sudtArgsTagQuery)
		return out
	}
	out := make([]byte, 0, 4+4+len(a.ToAddress)+16+16)
	tagBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(tagBuf, sudtArgsTagTransfer)
	out = append(out, tagBuf...)

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(a.ToAddress)))
	out = append(out, lenBuf...)
	out = append(out, a.ToAddress...)

	amountBuf := make([]byte, 16)
	putUint128LE(amountBuf, a.Amount)
	out = append(out, amountBuf...)

	feeBuf := make([]byte, 16)
	putUint128LE(feeBuf, a.Fee)
	out = append(out, feeBuf...)

	return out
}
