//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package version

// osRelease is not available on this platform.
func osRelease() string {
	return ""
}
