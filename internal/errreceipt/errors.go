package errreceipt

import "fmt"

func decodeErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func websocketErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
