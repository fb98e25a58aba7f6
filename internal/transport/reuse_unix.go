//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"fmt"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/muurk/ssdp/internal/logging"
)

// reuseControl sets SO_REUSEADDR and, where supported, SO_REUSEPORT so several
// endpoints on one host can bind the group port.
func reuseControl(_, _ string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			opErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			logging.Debug("SO_REUSEPORT not available", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	return opErr
}
