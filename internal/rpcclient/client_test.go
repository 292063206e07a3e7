package rpcclient

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwoken/web3-indexer/internal/web3"
)

func hexHash(b byte) string {
	h := make([]byte, web3.HashLength)
	h[0] = b
	return "0x" + hexEncode(h)
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0xf]
	}
	return string(out)
}

func TestBlockFromJSON(t *testing.T) {
	raw := &jsonBlock{
		Number:          "0x2a",
		Hash:            hexHash(1),
		ParentBlockHash: hexHash(2),
		Timestamp:       "0x5",
		BlockProducerID: "0x1",
		Transactions: []jsonTx{
			{Hash: hexHash(3), FromID: "0xa", ToID: "0xb", Nonce: "0x0", Args: "0x1234", Signature: "0x"},
		},
		Raw: "0xdeadbeef",
	}

	block, err := blockFromJSON(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(42), block.Number)
	require.Equal(t, uint64(5), block.Timestamp)
	require.Equal(t, uint32(1), block.BlockProducerID)
	require.Len(t, block.Transactions, 1)
	require.Equal(t, uint32(10), block.Transactions[0].FromID)
	require.Equal(t, uint32(11), block.Transactions[0].ToID)
	require.Equal(t, []byte{0x12, 0x34}, block.Transactions[0].Args)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, block.Raw)
}

func TestBlockFromJSONRejectsBadHash(t *testing.T) {
	raw := &jsonBlock{
		Number:          "0x1",
		Hash:            "0xbad",
		ParentBlockHash: hexHash(2),
		Timestamp:       "0x1",
		BlockProducerID: "0x1",
	}
	_, err := blockFromJSON(raw)
	require.Error(t, err)
}

func TestTxFromJSONRejectsBadFromID(t *testing.T) {
	_, err := txFromJSON(jsonTx{
		Hash:   hexHash(1),
		FromID: "0xzz",
		ToID:   "0x1",
		Nonce:  "0x0",
		Args:   "0x",
	})
	require.Error(t, err)
}
