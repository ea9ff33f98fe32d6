package reactor

import (
	"golang.org/x/sys/unix"

	"synnergy-network/internal/agenterr"
)

// SendFD passes fd to the peer on an AF_UNIX socket, attached as SCM_RIGHTS
// ancillary data alongside a one-byte payload (some platforms drop
// zero-length sendmsg calls that carry only ancillary data). §6 uses this to
// hand a freshly accepted client connection from the listener process to a
// protocol-service worker without the listener ever reading the connection's
// bytes itself.
func SendFD(sockFD, fd int) error {
	rights := unix.UnixRights(fd)
	if err := unix.Sendmsg(sockFD, []byte{0}, rights, nil, 0); err != nil {
		return agenterr.Wrap(err, "sendmsg scm_rights")
	}
	return nil
}

// RecvFD reads one file descriptor previously sent with SendFD from sockFD.
func RecvFD(sockFD int) (int, error) {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	_, oobn, _, _, err := unix.Recvmsg(sockFD, buf, oob, 0)
	if err != nil {
		return -1, agenterr.Wrap(err, "recvmsg scm_rights")
	}
	cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, agenterr.Wrap(err, "parse control message")
	}
	if len(cmsgs) == 0 {
		return -1, agenterr.New(agenterr.MalformedRequest, "no ancillary data in fd handoff")
	}
	fds, err := unix.ParseUnixRights(&cmsgs[0])
	if err != nil {
		return -1, agenterr.Wrap(err, "parse unix rights")
	}
	if len(fds) != 1 {
		return -1, agenterr.New(agenterr.MalformedRequest, "expected exactly one fd, got %d", len(fds))
	}
	return fds[0], nil
}

// SocketPair creates a connected pair of AF_UNIX datagram sockets suitable
// for fd-passing between a parent and a child it is about to fork/exec, or
// between two already-running processes that share a listening rendezvous
// socket. Both ends are left blocking; callers set nonblock only on sockets
// that will be registered with a Loop.
func SocketPair() (a, b int, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, -1, agenterr.Wrap(err, "socketpair")
	}
	return fds[0], fds[1], nil
}
