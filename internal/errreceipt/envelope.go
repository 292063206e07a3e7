package errreceipt

import (
	"encoding/json"

	"github.com/godwoken/web3-indexer/internal/indexererr"
)

// Envelope is the untagged JSON-RPC 2.0 response/notification shape the
// error-receipt websocket emits (spec §4.5/§4.6), grounded on the
// original ws_output.rs's Success/HttpSuccess/WsSuccess/Failure enum:
// a plain request/response pair looks like HttpSuccess, a subscription
// push looks like WsSuccess (wraps params.result), and either can carry
// an error object instead.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Params  *wsParams       `json:"params,omitempty"`
	Error   *envelopeError  `json:"error,omitempty"`
}

type wsParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type envelopeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Payload extracts the notification payload regardless of which of the
// three untagged shapes this envelope took.
func (e *Envelope) Payload() (json.RawMessage, error) {
	if e.Error != nil {
		return nil, indexererr.New(indexererr.KindWebSocket, websocketErrorf("rpc error %d: %s", e.Error.Code, e.Error.Message))
	}
	if e.Params != nil {
		return e.Params.Result, nil
	}
	if e.Result != nil {
		return e.Result, nil
	}
	return nil, indexererr.New(indexererr.KindDecode, decodeErrorf("envelope has neither params nor result"))
}
