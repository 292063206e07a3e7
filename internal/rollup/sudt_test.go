package rollup

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestDecodeSudtArgsQuery(t *testing.T) {
	encoded := EncodeSudtArgs(&SudtArgs{Kind: SudtArgsQuery})
	decoded, err := DecodeSudtArgs(encoded)
	require.NoError(t, err)
	require.Equal(t, SudtArgsQuery, decoded.Kind)
}

func TestDecodeSudtArgsTransferRoundTrip(t *testing.T) {
	original := &SudtArgs{
		Kind:      SudtArgsTransfer,
		ToAddress: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
		Amount:    uint256.NewInt(500),
		Fee:       uint256.NewInt(5),
	}
	encoded := EncodeSudtArgs(original)
	decoded, err := DecodeSudtArgs(encoded)
	require.NoError(t, err)

	require.Equal(t, SudtArgsTransfer, decoded.Kind)
	require.Equal(t, original.ToAddress, decoded.ToAddress)
	require.True(t, original.Amount.Eq(decoded.Amount))
	require.True(t, original.Fee.Eq(decoded.Fee))
}

func TestDecodeSudtArgsUnknownTag(t *testing.T) {
	_, err := DecodeSudtArgs([]byte{0xff, 0xff, 0xff, 0xff})
	require.Error(t, err)
}

func TestDecodeSudtArgsTooShort(t *testing.T) {
	_, err := DecodeSudtArgs([]byte{0x00, 0x00})
	require.Error(t, err)
}
