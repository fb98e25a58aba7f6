//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package transport

import "syscall"

// reuseControl leaves socket options at their platform defaults.
func reuseControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
