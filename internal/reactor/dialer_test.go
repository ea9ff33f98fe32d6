package reactor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestDialerConnectsToListener(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "agentd.sock")

	listenFD, err := Listen(sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer unix.Close(listenFD)

	d := NewDialer(time.Second)
	clientFD, err := d.Dial(context.Background(), sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer unix.Close(clientFD)

	var connFD int
	deadline := time.Now().Add(time.Second)
	for {
		connFD, err = Accept(listenFD)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("accept: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	defer unix.Close(connFD)

	if err := unix.Write(clientFD, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 16)
	var n int
	deadline = time.Now().Add(time.Second)
	for {
		n, err = unix.Read(connFD, buf)
		if err == nil && n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("read: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("read %q, want %q", buf[:n], "ping")
	}
}

func TestDialerFailsWithoutListener(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "nobody-here.sock")

	d := NewDialer(200 * time.Millisecond)
	if _, err := d.Dial(context.Background(), sockPath); err == nil {
		t.Fatalf("expected dial to a nonexistent socket to fail")
	}
}

func TestListenRemovesStaleSocketFile(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "stale.sock")
	if err := os.WriteFile(sockPath, []byte("not a socket"), 0o600); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}

	fd, err := Listen(sockPath)
	if err != nil {
		t.Fatalf("listen over stale file: %v", err)
	}
	unix.Close(fd)
}
