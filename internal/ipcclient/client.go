// Package ipcclient is the blocking counterpart to internal/reactor's
// nonblocking event loop: a synchronous request/response call over one
// AF_UNIX stream socket, for the outbound side of an inter-service call
// (protocolsvcd → datasvcd, protocolsvcd → randomsvcd, canonsvcd → both).
// Production callers in these services never need more than one in-flight
// request per collaborator at a time, so a blocking round trip on a
// dedicated fd is simpler than driving the outbound leg through the loop
// that already services the inbound client connections.
package ipcclient

import (
	"golang.org/x/sys/unix"

	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/wire"
)

// Client holds one blocking connection to a collaborator service's control
// socket.
type Client struct {
	fd int
}

// Dial connects to the AF_UNIX stream socket at path, left in its default
// blocking mode (unlike reactor.Dialer.Dial, whose result is meant for
// registration with a Loop).
func Dial(path string) (*Client, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, agenterr.Wrap(err, "socket")
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, agenterr.Wrap(err, "connect "+path)
	}
	return &Client{fd: fd}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	return unix.Close(c.fd)
}

// Call sends req as a raw-data frame and blocks for the matching raw-data
// frame response, satisfying internal/canon's and internal/protocolsvc's
// DataCaller/RandomCaller interfaces (both just "Call(req []byte) []byte").
// A transport failure degrades to an empty response rather than a panic:
// the caller's own response-header decode then reports it as a malformed
// response, the same failure mode an actually malformed peer would produce.
func (c *Client) Call(req []byte) []byte {
	frame, err := wire.EncodeData(req)
	if err != nil {
		return nil
	}
	if err := c.writeAll(frame); err != nil {
		return nil
	}
	resp, err := c.readFrame()
	if err != nil {
		return nil
	}
	return resp
}

func (c *Client) writeAll(p []byte) error {
	for len(p) > 0 {
		n, err := unix.Write(c.fd, p)
		if err != nil {
			return agenterr.Wrap(err, "write")
		}
		p = p[n:]
	}
	return nil
}

func (c *Client) readFrame() ([]byte, error) {
	var buf []byte
	tmp := make([]byte, 4096)
	for {
		if payload, _, err := wire.DecodeData(buf); err == nil {
			return payload, nil
		} else if agenterr.CodeOf(err) != agenterr.WouldBlock {
			return nil, err
		}
		n, err := unix.Read(c.fd, tmp)
		if err != nil {
			return nil, agenterr.Wrap(err, "read")
		}
		if n == 0 {
			return nil, agenterr.Sentinel(agenterr.EOF)
		}
		buf = append(buf, tmp[:n]...)
	}
}
