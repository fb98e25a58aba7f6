// Package transport owns the two UDP sockets of an SSDP endpoint.
//
// The multicast socket is bound to the group port with address reuse enabled
// and joined to the group; it receives NOTIFY and M-SEARCH traffic. The
// unicast socket is bound to an ephemeral port and is used for every send, so
// search responses addressed to it arrive there.
//
// Each socket runs its own receive loop. A loop reads into a fixed 2048-byte
// buffer, parses the datagram, tags it with the sender and hands it to the
// Handler. Datagrams that fail to parse are dropped. Loops run until Close
// cancels their context; the resulting "use of closed network connection"
// error is treated as a normal stop. Any other receive error goes to
// HandleError and the loop retries after a growing delay capped at one second.
//
// Close returns without waiting for the loops, so a Handler may close the
// transport it is called from. Wait or Done report when both loops have exited.
//
// # Usage Example
//
//	udp, err := transport.Open(ctx, transport.Config{Group: group}, handler)
//	if err != nil {
//	    return err
//	}
//	defer udp.Close()
//
//	if err := udp.Send(n.Bytes(), group); err != nil {
//	    logging.Warn("send failed", zap.Error(err))
//	}
package transport
