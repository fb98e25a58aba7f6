//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package version

import "golang.org/x/sys/unix"

// osRelease returns the kernel release, e.g. "6.1.0-18-amd64".
func osRelease() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return ""
	}
	return unix.ByteSliceToString(u.Release[:])
}
