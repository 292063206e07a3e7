package errreceipt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwoken/web3-indexer/internal/indexererr"
)

func TestEnvelopePayloadPlainResult(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"result":{"a":1}}`), &env))

	payload, err := env.Payload()
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(payload))
}

func TestEnvelopePayloadSubscriptionPush(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","params":{"subscription":"0x1","result":{"b":2}}}`), &env))

	payload, err := env.Payload()
	require.NoError(t, err)
	require.JSONEq(t, `{"b":2}`, string(payload))
}

func TestEnvelopePayloadError(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"boom"}}`), &env))

	_, err := env.Payload()
	require.Error(t, err)
	require.True(t, indexererr.Is(err, indexererr.KindWebSocket))
}

func TestEnvelopePayloadNeitherParamsNorResult(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1}`), &env))

	_, err := env.Payload()
	require.Error(t, err)
	require.True(t, indexererr.Is(err, indexererr.KindDecode))
}
