package transform

import (
	"fmt"

	"github.com/godwoken/web3-indexer/internal/indexererr"
)

func decodeErrorf(format string, args ...interface{}) error {
	return indexererr.New(indexererr.KindDecode, fmt.Errorf(format, args...))
}

// missingSystemLogf builds the error for spec §4.3 step 4's "fail block
// if no PolyjuiceSystem log is found in the receipt".
func missingSystemLogf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
