package rpcclient

import (
	"fmt"

	"github.com/godwoken/web3-indexer/internal/indexererr"
)

var errInvalidHexQuantity = fmt.Errorf("rpcclient: invalid hex quantity")

// transientErrorf builds a TransientUpstream-kind error (spec §7):
// connection refused, timeout, a failed response read, or a non-200 HTTP
// status. A JSON-RPC error object in a response is reported as a
// DecodeError instead (see Client.call).
func transientErrorf(format string, args ...interface{}) error {
	return indexererr.New(indexererr.KindTransientUpstream, fmt.Errorf(format, args...))
}

func decodeErrorf(format string, args ...interface{}) error {
	return indexererr.New(indexererr.KindDecode, fmt.Errorf(format, args...))
}

// missingReceiptErrorf builds a MissingReceipt-kind error (spec §7): the
// polyjuice path requires a receipt to find the PolyjuiceSystem log, and
// upstream has none for this tx hash.
func missingReceiptErrorf(format string, args ...interface{}) error {
	return indexererr.New(indexererr.KindMissingReceipt, fmt.Errorf(format, args...))
}
