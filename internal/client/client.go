// Package client implements the thin, blocking helpers subcommands use to
// talk to a running supervisor: connect, write one request frame,
// optionally read one reply, close (spec §4.7).
package client

import (
	"errors"
	"fmt"
	"net"

	"github.com/edirooss/crescentd/internal/crescenterr"
	"github.com/edirooss/crescentd/internal/daemon"
	"github.com/edirooss/crescentd/internal/descriptor"
	"github.com/edirooss/crescentd/internal/layout"
	"github.com/edirooss/crescentd/internal/protocol"
	"github.com/edirooss/crescentd/internal/sigbridge"
)

// connect dials the application's control socket.
func connect(name string) (net.Conn, error) {
	sockPath, err := layout.SocketPath(name)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crescenterr.ErrSocketConnect, err)
	}
	return conn, nil
}

// Ping round-trips a Ping event. A nil return means the supervisor is
// alive and responsive.
func Ping(name string) error {
	conn, err := connect(name)
	if err != nil {
		return err
	}
	defer conn.Close()

	codec := protocol.NewCodec(conn)
	if err := codec.WriteEvent(protocol.Ping()); err != nil {
		return err
	}
	reply, err := codec.ReadEvent()
	if err != nil {
		return err
	}
	if reply.Kind != protocol.KindPing {
		return fmt.Errorf("unexpected reply kind %q to Ping", reply.Kind)
	}
	return nil
}

// GetAppInfo retrieves the running application's descriptor snapshot.
func GetAppInfo(name string) (*descriptor.Descriptor, error) {
	conn, err := connect(name)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	codec := protocol.NewCodec(conn)
	if err := codec.WriteEvent(protocol.RetrieveAppInfoRequest()); err != nil {
		return nil, err
	}
	reply, err := codec.ReadEvent()
	if err != nil {
		return nil, err
	}
	if reply.Kind != protocol.KindRetrieveAppInfo || reply.AppInfo == nil {
		return nil, fmt.Errorf("unexpected reply to RetrieveAppInfo")
	}
	return reply.AppInfo, nil
}

// CommandHistory retrieves the current history, most-recent-first.
func CommandHistory(name string) ([]string, error) {
	conn, err := connect(name)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	codec := protocol.NewCodec(conn)
	if err := codec.WriteEvent(protocol.CommandHistoryRequest()); err != nil {
		return nil, err
	}
	reply, err := codec.ReadEvent()
	if err != nil {
		return nil, err
	}
	if reply.Kind != protocol.KindCommandHistory {
		return nil, fmt.Errorf("unexpected reply kind %q to CommandHistory", reply.Kind)
	}
	return reply.History, nil
}

// SendCommand trims text and, if non-empty, forwards it as a WriteStdin
// event. An empty or whitespace-only command is rejected client-side
// (spec §8, "Boundary behaviors").
func SendCommand(name, text string) error {
	trimmed := descriptor.NormalizeStdin(text)
	if trimmed == "" {
		return crescenterr.ErrEmptyCommand
	}

	conn, err := connect(name)
	if err != nil {
		return err
	}
	defer conn.Close()

	codec := protocol.NewCodec(conn)
	return codec.WriteEvent(protocol.WriteStdin(trimmed))
}

// Stop requests termination. With force=false it sends a Stop event,
// letting the supervisor prefer the descriptor's stop_command over
// SIGTERM. With force=true it bypasses the supervisor entirely and
// delivers SIGTERM directly to the child PID recorded in the PID file.
func Stop(name string, force bool) error {
	if force {
		return signalFromPIDFile(name, int(sigbridge.SignalStop))
	}

	conn, err := connect(name)
	if err != nil {
		return err
	}
	defer conn.Close()

	codec := protocol.NewCodec(conn)
	return codec.WriteEvent(protocol.Stop())
}

// Kill always delivers SIGKILL directly to the child PID, independent of
// any stop_command — a distinct verb from Stop(force=true) in spirit
// (both send a signal, but Kill never negotiates).
func Kill(name string) error {
	return signalFromPIDFile(name, int(sigbridge.SignalKill))
}

// Signal delivers an arbitrary signal number to the child PID.
func Signal(name string, signum int) error {
	return signalFromPIDFile(name, signum)
}

func signalFromPIDFile(name string, signum int) error {
	pidPath, err := layout.PIDPath(name)
	if err != nil {
		return err
	}
	_, childPID, lines, err := daemon.ReadPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("%w: %v", crescenterr.ErrApplicationNotRunning, err)
	}
	if lines < 2 {
		return crescenterr.ErrApplicationNotRunning
	}
	return sigbridge.Send(childPID, signum)
}

// AppAlreadyRunning implements the liveness oracle (spec §4.5): the PID
// file must have at least two entries AND a fresh Ping must succeed. A
// connection error means the socket is stale ("not running"); any other
// error propagates.
func AppAlreadyRunning(name string) (bool, error) {
	pidPath, err := layout.PIDPath(name)
	if err != nil {
		return false, err
	}
	_, _, lines, err := daemon.ReadPIDFile(pidPath)
	if err != nil {
		return false, nil
	}
	if lines < 2 {
		return false, nil
	}

	if err := Ping(name); err != nil {
		if errors.Is(err, crescenterr.ErrSocketConnect) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
