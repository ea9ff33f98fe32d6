package reactor

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"synnergy-network/internal/agenterr"
)

// RegisterSignal arranges for delivery of sig to terminate the loop
// cleanly (§4.2 "Signals"). Go's runtime intercepts signals itself, so
// rather than reach for signalfd (which fights the runtime's own signal
// thread), this uses the standard self-pipe trick: os/signal delivers sig
// on a channel, a one-line relay goroutine forwards it into a nonblocking
// pipe, and the pipe's read end is the thing the epoll loop actually waits
// on. Only one signal set may be registered per loop; calling this again
// adds sig to the existing relay.
func (l *Loop) RegisterSignal(sig os.Signal) error {
	if l.sigFD < 0 {
		fds, err := unixPipe2NonBlock()
		if err != nil {
			return agenterr.Wrap(err, "pipe2")
		}
		l.sigFD = fds[0]
		l.sigWriteFD = fds[1]
		ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(l.sigFD)}
		if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, l.sigFD, ev); err != nil {
			return agenterr.Wrap(err, "epoll_ctl add signal pipe")
		}
		l.sigCh = make(chan os.Signal, 8)
		go l.relaySignals()
	}
	signal.Notify(l.sigCh, sig)
	return nil
}

func (l *Loop) relaySignals() {
	for range l.sigCh {
		unix.Write(l.sigWriteFD, []byte{1})
	}
}

// drainSignal discards the pending wakeup bytes and requests a clean loop
// exit. Disposal of the registration happens in Close (§4.2: "Registered
// signals are drained at disposal").
func (l *Loop) drainSignal() {
	var buf [128]byte
	for {
		_, err := unix.Read(l.sigFD, buf[:])
		if err != nil {
			break
		}
	}
	l.RequestExit()
}

func unixPipe2NonBlock() ([2]int, error) {
	var fds [2]int
	err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC)
	return fds, err
}
