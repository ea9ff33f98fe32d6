package reactor

import (
	"os"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func socketpairStream(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestLoopDeliversReadCallbackOnPeerWrite(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	defer l.Close()

	a, b := socketpairStream(t)
	sc := l.Add(a)

	got := make(chan string, 1)
	l.SetReadCallback(sc, func(l *Loop, sc *SocketContext) {
		if sc.ReadBuf.Len() == 0 {
			return
		}
		got <- string(sc.ReadBuf.Bytes())
		sc.ReadBuf.Drain(sc.ReadBuf.Len())
		l.RequestExit()
	})

	unix.Write(b, []byte("hello reactor"))

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	select {
	case msg := <-got:
		if msg != "hello reactor" {
			t.Fatalf("got %q, want %q", msg, "hello reactor")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for read callback")
	}
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestLoopDrainsQueuedWriteToPeer(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	defer l.Close()

	a, b := socketpairStream(t)
	sc := l.Add(a)
	l.QueueWrite(sc, []byte("payload"), func(l *Loop, sc *SocketContext) {
		l.RequestExit()
	})

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	buf := make([]byte, 32)
	var n int
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m, err := unix.Read(b, buf)
		if err == nil && m > 0 {
			n = m
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if string(buf[:n]) != "payload" {
		t.Fatalf("peer read %q, want %q", buf[:n], "payload")
	}
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestAddTimerFiresOnceInDeadlineOrder(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	defer l.Close()

	var order []string
	l.AddTimer(30*time.Millisecond, func() { order = append(order, "second") })
	l.AddTimer(5*time.Millisecond, func() {
		order = append(order, "first")
	})
	l.AddTimer(60*time.Millisecond, func() {
		order = append(order, "third")
		l.RequestExit()
	})

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timers")
	}
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Fatalf("unexpected fire order: %v", order)
	}
}

func TestTimerCancelPreventsFire(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	defer l.Close()

	fired := false
	timer := l.AddTimer(10*time.Millisecond, func() { fired = true })
	timer.Cancel()
	l.AddTimer(30*time.Millisecond, func() { l.RequestExit() })

	if err := l.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if fired {
		t.Fatalf("canceled timer fired")
	}
}

func TestRegisterSignalRequestsExit(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	defer l.Close()

	if err := l.RegisterSignal(syscall.SIGUSR1); err != nil {
		t.Fatalf("register signal: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	time.Sleep(20 * time.Millisecond)
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("find process: %v", err)
	}
	if err := proc.Signal(syscall.SIGUSR1); err != nil {
		t.Fatalf("signal: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal-triggered exit")
	}
	if !l.ForceExit() {
		t.Fatalf("expected ForceExit to be set after signal exit")
	}
}
