package errreceipt

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwoken/web3-indexer/internal/rollup"
	"github.com/godwoken/web3-indexer/internal/web3"
)

func hexOf(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func abiEncodedString(s string) []byte {
	out := make([]byte, 4) // fake selector
	offsetWord := make([]byte, 32)
	binary.BigEndian.PutUint64(offsetWord[24:32], 32)
	lengthWord := make([]byte, 32)
	binary.BigEndian.PutUint64(lengthWord[24:32], uint64(len(s)))
	out = append(out, offsetWord...)
	out = append(out, lengthWord...)
	out = append(out, []byte(s)...)
	return out
}

func TestBuildRecordDefaults(t *testing.T) {
	txHash := make([]byte, 32)
	txHash[0] = 0xAB
	raw := &jsonErrorTxReceipt{
		TxHash:      hexOf(txHash),
		BlockNumber: "0x5",
		ReturnData:  hexOf([]byte{1, 2, 3, 4}),
		ExitCode:    "0x7",
	}

	rec, err := BuildRecord(raw)
	require.NoError(t, err)
	require.Equal(t, web3.BytesToHash(txHash), rec.TxHash)
	require.Equal(t, uint64(5), rec.BlockNumber)
	require.Equal(t, uint32(7), rec.StatusCode)
	require.Equal(t, []byte{1, 2, 3, 4}, rec.StatusReason)
	require.Equal(t, uint64(0), rec.GasUsed)
}

func TestBuildRecordOverwritesFromSystemLog(t *testing.T) {
	txHash := make([]byte, 32)
	sysLog := rollup.EncodeLogItem(&rollup.LogItem{
		ServiceFlag:             rollup.ServiceFlagPolyjuiceSystem,
		SystemGasUsed:           123,
		SystemCumulativeGasUsed: 456,
		SystemStatusCode:        2,
	})

	raw := &jsonErrorTxReceipt{
		TxHash:      hexOf(txHash),
		BlockNumber: "0x1",
		ReturnData:  hexOf([]byte{0}),
		ExitCode:    "0x9",
		LastLog: &jsonLastLog{
			ServiceFlag: "0x02",
			Data:        hexOf(sysLog),
		},
	}

	rec, err := BuildRecord(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(123), rec.GasUsed)
	require.Equal(t, uint64(456), rec.CumulativeGasUsed)
	require.Equal(t, uint32(2), rec.StatusCode) // nonzero from log, exit_code not substituted
}

func TestBuildRecordSubstitutesExitCodeWhenStatusStillZero(t *testing.T) {
	txHash := make([]byte, 32)
	sysLog := rollup.EncodeLogItem(&rollup.LogItem{
		ServiceFlag:      rollup.ServiceFlagPolyjuiceSystem,
		SystemStatusCode: 0,
	})
	raw := &jsonErrorTxReceipt{
		TxHash:      hexOf(txHash),
		BlockNumber: "0x1",
		ReturnData:  hexOf([]byte{0}),
		ExitCode:    "0x3",
		LastLog: &jsonLastLog{
			ServiceFlag: "0x02",
			Data:        hexOf(sysLog),
		},
	}

	rec, err := BuildRecord(raw)
	require.NoError(t, err)
	require.Equal(t, uint32(3), rec.StatusCode)
}

func TestBuildRecordDecodesABIString(t *testing.T) {
	txHash := make([]byte, 32)
	returnData := abiEncodedString("revert reason")

	raw := &jsonErrorTxReceipt{
		TxHash:      hexOf(txHash),
		BlockNumber: "0x1",
		ReturnData:  hexOf(returnData),
		ExitCode:    "0x1",
	}

	rec, err := BuildRecord(raw)
	require.NoError(t, err)
	require.Equal(t, []byte("revert reason"), rec.StatusReason)
}

func TestBuildRecordInvalidTxHash(t *testing.T) {
	raw := &jsonErrorTxReceipt{
		TxHash:      "0x1234",
		BlockNumber: "0x1",
		ReturnData:  "0x",
		ExitCode:    "0x0",
	}
	_, err := BuildRecord(raw)
	require.Error(t, err)
}

func TestDecodeABIStringTooShort(t *testing.T) {
	_, ok := decodeABIString([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestBeUint64HandlesShortSlices(t *testing.T) {
	require.Equal(t, uint64(0), beUint64(nil))
	require.Equal(t, uint64(1), beUint64([]byte{1}))
	require.Equal(t, uint64(0x0102), beUint64([]byte{1, 2}))
}
