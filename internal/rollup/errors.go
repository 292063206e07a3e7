package rollup

import (
	"fmt"

	"github.com/godwoken/web3-indexer/internal/indexererr"
)

// decodeErrorf builds a DecodeError-kind error (spec §4.1/§7): any
// length shortfall or structural mismatch in a packed payload.
func decodeErrorf(format string, args ...interface{}) error {
	return indexererr.New(indexererr.KindDecode, fmt.Errorf(format, args...))
}
