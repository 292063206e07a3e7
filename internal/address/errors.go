package address

import "fmt"

func partialAccountDataf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
