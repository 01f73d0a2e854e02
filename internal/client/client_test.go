package client

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/edirooss/crescentd/internal/crescenterr"
	"github.com/edirooss/crescentd/internal/descriptor"
	"github.com/edirooss/crescentd/internal/layout"
	"github.com/edirooss/crescentd/internal/protocol"
)

// fakeServer accepts a single connection and runs handle against it,
// standing in for a supervisor's per-connection task so client.go can be
// exercised without spawning a real child process.
func fakeServer(t *testing.T, name string, handle func(*protocol.Codec)) {
	t.Helper()

	dir, err := layout.EnsureAppDir(name)
	if err != nil {
		t.Fatalf("EnsureAppDir: %v", err)
	}
	sockPath, err := layout.SocketPath(name)
	if err != nil {
		t.Fatalf("SocketPath: %v", err)
	}
	_ = dir

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(protocol.NewCodec(conn))
	}()
}

func TestPingSuccess(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	const name = "app1"

	fakeServer(t, name, func(c *protocol.Codec) {
		ev, err := c.ReadEvent()
		if err != nil || ev.Kind != protocol.KindPing {
			return
		}
		c.WriteEvent(protocol.Ping())
	})

	if err := Ping(name); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestPingNoSocketIsConnectError(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	err := Ping("ghost")
	if err == nil {
		t.Fatalf("expected error connecting to nonexistent socket")
	}
	if !errors.Is(err, crescenterr.ErrSocketConnect) {
		t.Fatalf("got %v, want ErrSocketConnect", err)
	}
}

func TestGetAppInfo(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	const name = "app2"

	want := &descriptor.Descriptor{Name: name, ExecutablePath: "/usr/bin/true"}
	fakeServer(t, name, func(c *protocol.Codec) {
		ev, err := c.ReadEvent()
		if err != nil || ev.Kind != protocol.KindRetrieveAppInfo {
			return
		}
		c.WriteEvent(protocol.RetrieveAppInfoReply(want))
	})

	got, err := GetAppInfo(name)
	if err != nil {
		t.Fatalf("GetAppInfo: %v", err)
	}
	if got.Name != want.Name || got.ExecutablePath != want.ExecutablePath {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSendCommandRejectsEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := SendCommand("app3", "   "); err != crescenterr.ErrEmptyCommand {
		t.Fatalf("got %v, want ErrEmptyCommand", err)
	}
}

func TestSendCommandForwardsTrimmed(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	const name = "app4"

	received := make(chan string, 1)
	fakeServer(t, name, func(c *protocol.Codec) {
		ev, err := c.ReadEvent()
		if err != nil {
			return
		}
		received <- ev.Text
	})

	if err := SendCommand(name, "  hello  "); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if got := <-received; got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestAppAlreadyRunningMissingPIDFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	running, err := AppAlreadyRunning("nope")
	if err != nil {
		t.Fatalf("AppAlreadyRunning: %v", err)
	}
	if running {
		t.Fatalf("expected not running with no pid file")
	}
}

func TestAppAlreadyRunningShortPIDFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	const name = "app5"

	if _, err := layout.EnsureAppDir(name); err != nil {
		t.Fatalf("EnsureAppDir: %v", err)
	}
	pidPath, _ := layout.PIDPath(name)
	if err := os.WriteFile(pidPath, []byte("111\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	running, err := AppAlreadyRunning(name)
	if err != nil {
		t.Fatalf("AppAlreadyRunning: %v", err)
	}
	if running {
		t.Fatalf("expected not running with a single-line pid file")
	}
}

func TestAppAlreadyRunningStaleSocket(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	const name = "app6"

	if _, err := layout.EnsureAppDir(name); err != nil {
		t.Fatalf("EnsureAppDir: %v", err)
	}
	pidPath, _ := layout.PIDPath(name)
	if err := os.WriteFile(pidPath, []byte("111\n222\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// No listener bound: the socket path does not exist at all, which
	// connect() surfaces the same way a stale/orphaned socket file would.

	running, err := AppAlreadyRunning(name)
	if err != nil {
		t.Fatalf("AppAlreadyRunning: %v", err)
	}
	if running {
		t.Fatalf("expected not running with unreachable socket")
	}
}

func TestAppAlreadyRunningTrue(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	const name = "app7"

	fakeServer(t, name, func(c *protocol.Codec) {
		ev, err := c.ReadEvent()
		if err != nil || ev.Kind != protocol.KindPing {
			return
		}
		c.WriteEvent(protocol.Ping())
	})

	pidPath, _ := layout.PIDPath(name)
	if err := os.WriteFile(pidPath, []byte("111\n222\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	running, err := AppAlreadyRunning(name)
	if err != nil {
		t.Fatalf("AppAlreadyRunning: %v", err)
	}
	if !running {
		t.Fatalf("expected running with live ping")
	}
}

func TestSignalFromPIDFileMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := Kill("nope"); err == nil {
		t.Fatalf("expected error killing an app with no pid file")
	}
}

func TestLayoutPathsConsistentWithSocket(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	const name = "app8"

	dir, err := layout.EnsureAppDir(name)
	if err != nil {
		t.Fatalf("EnsureAppDir: %v", err)
	}
	sockPath, _ := layout.SocketPath(name)
	if filepath.Dir(sockPath) != dir {
		t.Fatalf("socket path %q not under app dir %q", sockPath, dir)
	}
}
