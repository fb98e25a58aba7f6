package transport

import (
	"errors"
	"fmt"
	"net"
)

// Socket identifies one of the two endpoint sockets.
type Socket int

const (
	Multicast Socket = iota
	Unicast
)

func (s Socket) String() string {
	switch s {
	case Multicast:
		return "multicast"
	case Unicast:
		return "unicast"
	default:
		return fmt.Sprintf("socket(%d)", int(s))
	}
}

// Error is a send or receive failure on one socket.
type Error struct {
	Op     string // "open", "send" or "receive"
	Socket Socket
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("ssdp %s on %s socket: %v", e.Op, e.Socket, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsClosed reports whether err is the result of a socket being closed.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
