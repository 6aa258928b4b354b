//go:build !unix

package app

import "net"

func applyBacklog(ln net.Listener, backlog int) error {
	return nil
}
