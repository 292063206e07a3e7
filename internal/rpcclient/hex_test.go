package rpcclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHexBytesDecodesOddLength(t *testing.T) {
	b, err := hexBytes("0x1")
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, b)
}

func TestHexBytesRejectsInvalidHex(t *testing.T) {
	_, err := hexBytes("0xzz")
	require.Error(t, err)
}

func TestHexUint64(t *testing.T) {
	v, err := hexUint64("0xff")
	require.NoError(t, err)
	require.Equal(t, uint64(255), v)
}

func TestHexUint64Empty(t *testing.T) {
	v, err := hexUint64("0x")
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)
}

func TestHexUint64InvalidDigit(t *testing.T) {
	_, err := hexUint64("0xzz")
	require.Error(t, err)
}
