//go:build !windows

package conn

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddrControl sets SO_REUSEADDR on every listen socket this package
// creates, mirroring cmd/atlas's per-OS socket tuning split
// (main_windows.go) but for a POSIX socket option rather than a Windows
// console mode. Without it, a Connector that Listens, Closes, and
// re-Listens on the same Key in quick succession (e.g. after a leak
// diagnostic forces a teardown) can hit "address already in use" while
// the kernel still holds the old socket in TIME_WAIT.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var setErr error
	err := c.Control(func(fd uintptr) {
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}
