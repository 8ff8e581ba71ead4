//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package term

// Width returns DefaultWidth on platforms without the winsize ioctl.
func Width(int) int {
	return DefaultWidth
}

// IsTerminal is always false on platforms without the winsize ioctl.
func IsTerminal(int) bool {
	return false
}
