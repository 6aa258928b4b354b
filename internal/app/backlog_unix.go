//go:build unix

package app

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// applyBacklog re-issues listen(2) on the bound socket so the kernel
// queue matches backlog. Zero keeps the runtime default.
func applyBacklog(ln net.Listener, backlog int) error {
	if backlog <= 0 {
		return nil
	}
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("unsupported listener type %T", ln)
	}
	raw, err := tl.SyscallConn()
	if err != nil {
		return err
	}
	var listenErr error
	if err := raw.Control(func(fd uintptr) {
		listenErr = unix.Listen(int(fd), backlog)
	}); err != nil {
		return err
	}
	return listenErr
}
