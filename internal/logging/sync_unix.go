//go:build !windows

package logging

import (
	"errors"
	"syscall"
)

func isTerminalSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
