//go:build !windows

package filesync

import (
	"errors"
	"syscall"
)

func isLocked(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY)
}
