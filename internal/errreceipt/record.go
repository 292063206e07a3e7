package errreceipt

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/godwoken/web3-indexer/internal/rollup"
	"github.com/godwoken/web3-indexer/internal/web3"
)

// jsonErrorTxReceipt is the wire shape of one error-receipt
// notification, mirroring the original ErrorTxReceipt struct.
type jsonErrorTxReceipt struct {
	TxHash      string        `json:"tx_hash"`
	BlockNumber string        `json:"block_number"`
	ReturnData  string        `json:"return_data"`
	ExitCode    string        `json:"exit_code"`
	LastLog     *jsonLastLog  `json:"last_log"`
}

type jsonLastLog struct {
	ServiceFlag string `json:"service_flag"`
	Data        string `json:"data"`
}

// BuildRecord constructs an ErrorReceiptRecord from one decoded
// notification (spec §4.6):
//   - defaults: cumulative_gas_used=0, gas_used=0, status_code=0,
//     status_reason = return_data[:min(len,32)];
//   - if last_log decodes as a PolyjuiceSystem log, overwrite
//     gas_used/cumulative_gas_used/status_code from it;
//   - if return_data[4:] ABI-decodes as a single string, replace
//     status_reason with that string truncated to 32 bytes;
//   - if the final status_code is 0, substitute the receipt's exit_code.
func BuildRecord(raw *jsonErrorTxReceipt) (*web3.ErrorReceiptRecord, error) {
	txHashB, err := hexBytes(raw.TxHash)
	if err != nil || len(txHashB) != web3.HashLength {
		return nil, decodeErrorf("error receipt: invalid tx_hash")
	}
	blockNumber, err := hexUint64(raw.BlockNumber)
	if err != nil {
		return nil, decodeErrorf("error receipt: invalid block_number: %w", err)
	}
	returnData, err := hexBytes(raw.ReturnData)
	if err != nil {
		return nil, decodeErrorf("error receipt: invalid return_data: %w", err)
	}
	exitCode, err := hexUint64(raw.ExitCode)
	if err != nil {
		return nil, decodeErrorf("error receipt: invalid exit_code: %w", err)
	}

	rec := &web3.ErrorReceiptRecord{
		TxHash:            web3.BytesToHash(txHashB),
		BlockNumber:        blockNumber,
		CumulativeGasUsed: 0,
		GasUsed:           0,
		StatusCode:        0,
		StatusReason:      truncate(returnData, 32),
	}

	if raw.LastLog != nil {
		flag, err := hexUint64(raw.LastLog.ServiceFlag)
		if err == nil && byte(flag) == rollup.ServiceFlagPolyjuiceSystem {
			data, err := hexBytes(raw.LastLog.Data)
			if err == nil {
				if item, err := rollup.DecodeLogItem(rollup.ServiceFlagPolyjuiceSystem, data); err == nil {
					rec.GasUsed = item.SystemGasUsed
					rec.CumulativeGasUsed = item.SystemCumulativeGasUsed
					rec.StatusCode = item.SystemStatusCode
				}
			}
		}
	}

	if s, ok := decodeABIString(returnData); ok {
		rec.StatusReason = truncate([]byte(s), 32)
	}

	if rec.StatusCode == 0 {
		rec.StatusCode = uint32(exitCode)
	}

	return rec, nil
}

// decodeABIString decodes return_data[4:] as a Solidity ABI-encoded
// single `string` return value: [0,32) offset (must be 0x20), [32,64)
// length, [64, 64+length) UTF-8 bytes.
func decodeABIString(returnData []byte) (string, bool) {
	if len(returnData) < 4 {
		return "", false
	}
	body := returnData[4:]
	if len(body) < 64 {
		return "", false
	}
	offset := beUint64(body[24:32])
	if offset != 32 {
		return "", false
	}
	length := beUint64(body[56:64])
	if uint64(len(body)) < 64+length {
		return "", false
	}
	return string(body[64 : 64+length]), true
}

func beUint64(b []byte) uint64 {
	if len(b) > 8 {
		b = b[len(b)-8:]
	}
	var padded [8]byte
	copy(padded[8-len(b):], b)
	return binary.BigEndian.Uint64(padded[:])
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	out := make([]byte, n)
	copy(out, b[:n])
	return out
}

func hexBytes(s string) ([]byte, error) {
	s = trimHexPrefix(s)
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

func hexUint64(s string) (uint64, error) {
	s = trimHexPrefix(s)
	if s == "" {
		return 0, nil
	}
	b, err := hex.DecodeString(pad(s))
	if err != nil {
		return 0, err
	}
	return beUint64(b), nil
}

func pad(s string) string {
	if len(s)%2 != 0 {
		return "0" + s
	}
	return s
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
