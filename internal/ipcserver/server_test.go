package ipcserver

import (
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"synnergy-network/internal/reactor"
	"synnergy-network/internal/wire"
)

func echoUpper(body []byte) []byte {
	out := make([]byte, len(body))
	for i, b := range body {
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return out
}

func dial(t *testing.T, path string) int {
	t.Helper()
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	t.Cleanup(func() { unix.Close(fd) })
	deadline := time.Now().Add(2 * time.Second)
	var connErr error
	for time.Now().Before(deadline) {
		connErr = unix.Connect(fd, &unix.SockaddrUnix{Name: path})
		if connErr == nil {
			return fd
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("connect %s: %v", path, connErr)
	return -1
}

func readFrame(t *testing.T, fd int) []byte {
	t.Helper()
	var buf []byte
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		payload, consumed, err := wire.DecodeData(buf)
		if err == nil {
			_ = consumed
			return payload
		}
		chunk := make([]byte, 4096)
		n, rerr := unix.Read(fd, chunk)
		if rerr != nil {
			if rerr == unix.EAGAIN {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			t.Fatalf("read: %v", rerr)
		}
		buf = append(buf, chunk[:n]...)
	}
	t.Fatal("timed out reading frame")
	return nil
}

func TestServerRoundTripsRequestsFromMultipleConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipcserver.sock")
	listenFD, err := reactor.Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	loop, err := reactor.New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	defer loop.Close()

	srv := New(loop, listenFD, echoUpper)
	srv.Start()

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()
	t.Cleanup(func() {
		loop.RequestExit()
		<-done
	})

	fdA := dial(t, path)
	fdB := dial(t, path)

	reqA, err := wire.EncodeData([]byte("hello"))
	if err != nil {
		t.Fatalf("encode a: %v", err)
	}
	if _, err := unix.Write(fdA, reqA); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if got := readFrame(t, fdA); string(got) != "HELLO" {
		t.Fatalf("conn a got %q, want HELLO", got)
	}

	reqB, err := wire.EncodeData([]byte("world"))
	if err != nil {
		t.Fatalf("encode b: %v", err)
	}
	if _, err := unix.Write(fdB, reqB); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if got := readFrame(t, fdB); string(got) != "WORLD" {
		t.Fatalf("conn b got %q, want WORLD", got)
	}
}
