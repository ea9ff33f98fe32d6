// Package reactor implements the single-threaded cooperative event loop of
// §4.2: nonblocking socket contexts with read/write buffers, edge-triggered
// readiness callbacks, one-shot timers, and signal-driven graceful exit.
// There is one Loop per service process, and every callback and timer runs
// on the goroutine that calls Run, matching §5's "no shared mutable objects
// between threads" concurrency model. The only goroutines this package
// starts are the signal relay (RegisterSignal) and the connect call inside
// Dialer.Dial; neither touches a socket context or timer.
package reactor

import (
	"container/heap"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"synnergy-network/internal/agenterr"
)

// Callback is invoked when a socket's registered edge fires. It must never
// block; it returns without completing a multi-frame operation to suspend,
// per §4.2's suspension model.
type Callback func(l *Loop, sc *SocketContext)

// SocketContext owns one nonblocking socket's buffers and callbacks (§4.2).
type SocketContext struct {
	FD       int
	ReadBuf  Buffer
	WriteBuf Buffer
	UserData interface{}

	onRead  Callback
	onWrite Callback
	onClose Callback

	closed bool
}

// SetReadCallback registers or deregisters (cb == nil) interest in read
// readiness for sc.
func (l *Loop) SetReadCallback(sc *SocketContext, cb Callback) error {
	sc.onRead = cb
	return l.updateInterest(sc)
}

// SetWriteCallback registers or deregisters (cb == nil) interest in write
// readiness for sc.
func (l *Loop) SetWriteCallback(sc *SocketContext, cb Callback) error {
	sc.onWrite = cb
	return l.updateInterest(sc)
}

// SetCloseCallback registers a callback invoked when a read observes that
// the peer has closed the socket (EOF or a read error). Remove does not
// invoke it.
func (l *Loop) SetCloseCallback(sc *SocketContext, cb Callback) {
	sc.onClose = cb
}

// Loop is one process's single-threaded epoll-backed event loop.
type Loop struct {
	epfd       int
	sockets    map[int]*SocketContext
	timers     timerHeap
	nextTID    uint64
	sigFD      int
	sigWriteFD int
	sigCh      chan os.Signal
	forceExit  bool
	exitReq    bool
}

// New creates an event loop with its own epoll instance.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, agenterr.Wrap(err, "epoll_create1")
	}
	return &Loop{
		epfd:    epfd,
		sockets: make(map[int]*SocketContext),
		sigFD:   -1,
	}, nil
}

// Close releases the loop's epoll fd and signal pipe, if any. It does not
// close registered sockets; callers own those.
func (l *Loop) Close() error {
	if l.sigCh != nil {
		signal.Stop(l.sigCh)
		close(l.sigCh)
	}
	if l.sigFD >= 0 {
		unix.Close(l.sigFD)
		unix.Close(l.sigWriteFD)
		l.sigFD = -1
	}
	return unix.Close(l.epfd)
}

// ForceExit reports whether a fatal, process-wide shutdown has been
// requested (§4.2 "Cancellation"). Every callback must check this on entry.
func (l *Loop) ForceExit() bool { return l.forceExit }

// RequestExit sets force_exit and asks the loop to exit after the current
// iteration (§4.2 "exit_event_loop").
func (l *Loop) RequestExit() {
	l.forceExit = true
	l.exitReq = true
}

// Add registers fd with the loop as a new nonblocking socket context. The
// caller must have already set the fd nonblocking (unix.SetNonblock).
func (l *Loop) Add(fd int) *SocketContext {
	sc := &SocketContext{FD: fd}
	l.sockets[fd] = sc
	// Registered with an empty event set; SetReadCallback/SetWriteCallback
	// populate interest before anything can fire.
	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd)})
	return sc
}

// Remove deregisters sc from the loop. It does not close the underlying
// fd; callers close it themselves once any best-effort cleanup writes have
// been attempted.
func (l *Loop) Remove(sc *SocketContext) {
	if sc.closed {
		return
	}
	sc.closed = true
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, sc.FD, nil)
	delete(l.sockets, sc.FD)
}

func (l *Loop) updateInterest(sc *SocketContext) error {
	if sc.closed {
		return nil
	}
	var events uint32 = unix.EPOLLET
	if sc.onRead != nil {
		events |= unix.EPOLLIN
	}
	if sc.onWrite != nil {
		events |= unix.EPOLLOUT
	}
	ev := &unix.EpollEvent{Events: events, Fd: int32(sc.FD)}
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, sc.FD, ev)
}

// Run drives the loop until RequestExit is called (directly or via a
// registered signal) or a fatal epoll error occurs.
func (l *Loop) Run() error {
	events := make([]unix.EpollEvent, 64)
	for !l.exitReq {
		timeout := l.nextTimeout()
		n, err := unix.EpollWait(l.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return agenterr.Wrap(err, "epoll_wait")
		}
		l.fireExpiredTimers()
		for i := 0; i < n; i++ {
			if l.exitReq {
				break
			}
			fd := int(events[i].Fd)
			if fd == l.sigFD {
				l.drainSignal()
				continue
			}
			sc, ok := l.sockets[fd]
			if !ok || sc.closed {
				continue
			}
			l.dispatch(sc, events[i].Events)
		}
	}
	return nil
}

func (l *Loop) dispatch(sc *SocketContext, events uint32) {
	if events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		if l.forceExit {
			return
		}
		eof := l.drainRead(sc)
		if sc.onRead != nil {
			sc.onRead(l, sc)
		}
		if eof && sc.onClose != nil {
			sc.onClose(l, sc)
		}
	}
	if sc.closed || l.forceExit {
		return
	}
	if events&unix.EPOLLOUT != 0 {
		l.drainWrite(sc)
		if sc.onWrite != nil {
			sc.onWrite(l, sc)
		}
	}
}

// drainRead reads until EAGAIN, appending to sc.ReadBuf. It returns true if
// the peer has closed its end (a zero-length read or a hard reset).
func (l *Loop) drainRead(sc *SocketContext) (eof bool) {
	chunk := make([]byte, 64*1024)
	for {
		n, err := unix.Read(sc.FD, chunk)
		if n > 0 {
			sc.ReadBuf.Append(chunk[:n])
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return false
		}
		if err != nil {
			return true
		}
		if n == 0 {
			return true
		}
		if n < len(chunk) {
			// Short read without EAGAIN: no more data right now on a
			// stream socket in practice, but keep looping to be sure
			// edge-triggered readiness was fully drained.
			continue
		}
	}
}

// drainWrite writes buffered bytes until the buffer empties or the socket
// would block.
func (l *Loop) drainWrite(sc *SocketContext) {
	for sc.WriteBuf.Len() > 0 {
		chunk := sc.WriteBuf.Bytes()
		n, err := unix.Write(sc.FD, chunk)
		if n > 0 {
			sc.WriteBuf.Drain(n)
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		if err != nil {
			return
		}
		if n == 0 {
			return
		}
	}
}

// QueueWrite appends p to sc's write buffer and ensures the write edge is
// registered so Run drains it.
func (l *Loop) QueueWrite(sc *SocketContext, p []byte, onDrained Callback) error {
	sc.WriteBuf.Append(p)
	return l.SetWriteCallback(sc, func(l *Loop, sc *SocketContext) {
		if sc.WriteBuf.Len() == 0 {
			l.SetWriteCallback(sc, nil)
			if onDrained != nil {
				onDrained(l, sc)
			}
		}
	})
}

// --- timers ---

type timerEntry struct {
	deadline time.Time
	cb       func()
	id       uint64
	index    int
	canceled bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Timer is a handle to a pending one-shot timer fire.
type Timer struct {
	entry *timerEntry
}

// Cancel disposes the timer, preventing a pending fire (§4.2 "Timers").
func (t *Timer) Cancel() {
	t.entry.canceled = true
}

// AddTimer schedules cb to fire once after d elapses.
func (l *Loop) AddTimer(d time.Duration, cb func()) *Timer {
	e := &timerEntry{deadline: time.Now().Add(d), cb: cb, id: l.nextTID}
	l.nextTID++
	heap.Push(&l.timers, e)
	return &Timer{entry: e}
}

func (l *Loop) nextTimeout() int {
	for l.timers.Len() > 0 {
		top := l.timers[0]
		if top.canceled {
			heap.Pop(&l.timers)
			continue
		}
		ms := int(time.Until(top.deadline).Milliseconds())
		if ms < 0 {
			ms = 0
		}
		return ms
	}
	return -1
}

func (l *Loop) fireExpiredTimers() {
	now := time.Now()
	for l.timers.Len() > 0 {
		top := l.timers[0]
		if top.canceled {
			heap.Pop(&l.timers)
			continue
		}
		if top.deadline.After(now) {
			return
		}
		heap.Pop(&l.timers)
		top.cb()
	}
}
