//go:build windows

package conn

import "syscall"

// reuseAddrControl is a no-op on Windows: SO_REUSEADDR there permits
// multiple sockets to bind the same address simultaneously (a different,
// unwanted semantic from POSIX's "skip TIME_WAIT"), so this package
// leaves Windows listen sockets at their default behavior.
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
