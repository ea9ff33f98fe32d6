package reactor

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"synnergy-network/internal/agenterr"
)

// Dialer connects to a collaborator's AF_UNIX stream socket under a
// timeout, adapted from the teacher repo's core/network.go Dialer (there a
// generic TCP/WebSocket dialer for peer connections; here narrowed to the
// one transport §6 specifies: local stream sockets between cooperating
// processes).
type Dialer struct {
	Timeout time.Duration
}

// NewDialer constructs a Dialer with the given connect timeout.
func NewDialer(timeout time.Duration) *Dialer {
	return &Dialer{Timeout: timeout}
}

// Dial connects to the AF_UNIX stream socket at path and returns its fd,
// already set nonblocking so it can be registered with a Loop.
func (d *Dialer) Dial(ctx context.Context, path string) (int, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, agenterr.Wrap(err, "socket")
	}
	addr := &unix.SockaddrUnix{Name: path}

	done := make(chan error, 1)
	go func() { done <- unix.Connect(fd, addr) }()

	select {
	case err := <-done:
		if err != nil {
			unix.Close(fd)
			return -1, agenterr.Wrap(err, "connect "+path)
		}
	case <-ctx.Done():
		unix.Close(fd)
		return -1, agenterr.Wrap(ctx.Err(), "connect "+path)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, agenterr.Wrap(err, "set nonblock")
	}
	return fd, nil
}

// Listen creates a nonblocking AF_UNIX stream listener bound to path,
// removing any stale socket file left behind by a prior process first.
func Listen(path string) (int, error) {
	unix.Unlink(path)
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, agenterr.Wrap(err, "socket")
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return -1, agenterr.Wrap(err, "bind "+path)
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, agenterr.Wrap(err, "listen "+path)
	}
	return fd, nil
}

// Accept accepts one pending connection on the nonblocking listener fd. It
// returns agenterr.WouldBlock if none is pending.
func Accept(listenFD int) (int, error) {
	connFD, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return -1, agenterr.Sentinel(agenterr.WouldBlock)
		}
		return -1, agenterr.Wrap(err, "accept4")
	}
	return connFD, nil
}
