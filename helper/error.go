package helper

import (
	"fmt"
)

// NewError wraps err with the name of the operation that failed.
// The wrapped error stays reachable with errors.Is and errors.As.
func NewError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", operation, err)
}
