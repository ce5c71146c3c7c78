//go:build linux

package systemd

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// listenNotify creates a notify socket and points NOTIFY_SOCKET at it.
func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	// Socket paths are limited to ~108 bytes, t.TempDir can be longer.
	dir, err := os.MkdirTemp("", "sd")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func readMessage(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	buf := make([]byte, 4096)
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Failed to read notification: %v", err)
	}
	return string(buf[:n])
}

func TestNotifyWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	sent, err := Notify("READY=1")
	if err != nil || sent {
		t.Errorf("Notify() = %v, %v, want false, nil", sent, err)
	}
	Ready("idle")
	Stopping()
}

func TestReady(t *testing.T) {
	conn := listenNotify(t)

	Ready("supervising 2 processes")

	if got, want := readMessage(t, conn), "READY=1\nSTATUS=supervising 2 processes"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestReloadingStoppingStatus(t *testing.T) {
	conn := listenNotify(t)

	Reloading()
	msg := readMessage(t, conn)
	if !strings.HasPrefix(msg, "RELOADING=1\nMONOTONIC_USEC=") {
		t.Errorf("reload message = %q", msg)
	}

	Status("%d running", 3)
	if got := readMessage(t, conn); got != "STATUS=3 running" {
		t.Errorf("status message = %q", got)
	}

	Stopping()
	if got := readMessage(t, conn); got != "STOPPING=1" {
		t.Errorf("stop message = %q", got)
	}
}

func TestRunWatchdog(t *testing.T) {
	conn := listenNotify(t)
	t.Setenv("WATCHDOG_USEC", "100000")
	t.Setenv("WATCHDOG_PID", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunWatchdog(ctx)
		close(done)
	}()

	if got := readMessage(t, conn); got != "WATCHDOG=1" {
		t.Errorf("watchdog message = %q", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunWatchdog did not return after cancel")
	}
}

func TestRunWatchdogDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")

	done := make(chan struct{})
	go func() {
		RunWatchdog(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWatchdog should return when the watchdog is disabled")
	}
}
