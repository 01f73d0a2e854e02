//go:build linux

// Package supervisor is the subprocess runtime: it forks the child, owns
// its stdin pipe, binds the control socket, dispatches control events, and
// tears everything down when the child exits or a Stop event arrives
// (spec §4.5 — "the core of the core").
//
// The accept loop, per-connection handlers, and the child waiter are the
// supervisor's long-lived activities (spec §5). The accept loop and the
// waiter run in a golang.org/x/sync/errgroup group the way the teacher's
// processmgr coordinates its pipe-drain and reap goroutines, generalized
// from a single-process wrapper into the full fork/bind/serve/cleanup
// lifecycle this spec calls for; each per-connection handler is a plain
// goroutine started by the accept loop.
package supervisor

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/crescentd/internal/crescenterr"
	"github.com/edirooss/crescentd/internal/daemon"
	"github.com/edirooss/crescentd/internal/descriptor"
	"github.com/edirooss/crescentd/internal/layout"
	"github.com/edirooss/crescentd/internal/protocol"
	"github.com/edirooss/crescentd/internal/sigbridge"
)

// startupGrace is how long Run waits after spawning the child before
// assuming it did not exit immediately (spec §4.5 step 2).
const startupGrace = 50 * time.Millisecond

// Supervisor owns one running application: its child process, its control
// socket, its command history, and the mutex-guarded stdin writer shared
// by every connection (spec §5, "global mutable state... a single
// supervisor struct").
type Supervisor struct {
	log     *zap.Logger
	desc    *descriptor.Descriptor
	history *descriptor.History

	childPID int

	stdinMu     sync.Mutex
	stdin       io.WriteCloser
	stdinClosed bool
}

// Run spawns desc's child process inside appDir, services the control
// socket until the child exits or a Stop is processed, and returns after
// cleanup. It blocks for the lifetime of the application.
func Run(log *zap.Logger, desc *descriptor.Descriptor, appDir string) error {
	argv := desc.Argv()
	if len(argv) == 0 || argv[0] == "" {
		return crescenterr.ErrExecutablePathNotGiven
	}

	logPath, err := layout.LogPath(desc.Name)
	if err != nil {
		return err
	}
	pidPath, err := layout.PIDPath(desc.Name)
	if err != nil {
		return err
	}
	sockPath, err := layout.SocketPath(desc.Name)
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = appDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		logFile.Close()
		return fmt.Errorf("%w: %v", crescenterr.ErrSubprocessFailedToStart, err)
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("%w: %v", crescenterr.ErrSubprocessFailedToStart, err)
	}
	childPID := cmd.Process.Pid
	log.Info("child started", zap.String("app", desc.Name), zap.Int("child_pid", childPID))

	// A single Wait() call feeds both the immediate-exit check below and
	// the long-lived waiter further down; exec.Cmd.Wait must not be
	// called twice.
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case werr := <-waitCh:
		logFile.Close()
		return fmt.Errorf("%w: %v", crescenterr.ErrSubprocessFailedToStart, werr)
	case <-time.After(startupGrace):
	}

	if err := daemon.AppendChildPID(pidPath, childPID); err != nil {
		_ = sigbridge.Send(childPID, int(sigbridge.SignalKill))
		logFile.Close()
		return fmt.Errorf("append child pid: %w", err)
	}

	// A leftover socket file at this point is an orphan from a previous,
	// now-dead supervisor: the launch path would have refused to start
	// over a live one.
	_ = os.Remove(sockPath)

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		_ = sigbridge.Send(childPID, int(sigbridge.SignalKill))
		logFile.Close()
		return fmt.Errorf("%w: %v", crescenterr.ErrSocketBind, err)
	}

	s := &Supervisor{
		log:      log,
		desc:     desc,
		history:  &descriptor.History{},
		childPID: childPID,
		stdin:    stdin,
	}

	var g errgroup.Group
	g.Go(func() error { return s.acceptLoop(listener) })
	g.Go(func() error { return s.waitChild(cmd, waitCh, listener, sockPath, logFile) })
	return g.Wait()
}

// acceptLoop repeatedly accepts a connection and hands it to a fresh
// per-connection goroutine. It returns nil once the listener is closed as
// part of cleanup (spec §4.5, "accept loop exits only when the listener
// is closed").
func (s *Supervisor) acceptLoop(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return nil
		}
		go s.handleConn(conn)
	}
}

// handleConn services one client connection until the client closes it or
// a read fails. Closing the listener does not close connections already
// accepted.
func (s *Supervisor) handleConn(conn net.Conn) {
	defer conn.Close()

	connLog := s.log.With(zap.String("conn_id", uuid.NewString()))
	codec := protocol.NewCodec(conn)

	for {
		ev, err := codec.ReadEvent()
		if err != nil {
			var unknown *protocol.ErrUnknownVariant
			if errors.As(err, &unknown) {
				connLog.Warn("dropping malformed control frame", zap.Error(err))
				continue
			}
			if !errors.Is(err, io.EOF) {
				connLog.Debug("control connection closed", zap.Error(err))
			}
			return
		}
		s.dispatch(connLog, codec, ev)
	}
}

// dispatch applies one decoded event and, for request/reply kinds, writes
// the reply back on the same connection (spec §4.5's per-connection
// effect table).
func (s *Supervisor) dispatch(log *zap.Logger, codec *protocol.Codec, ev protocol.Event) {
	switch ev.Kind {
	case protocol.KindPing:
		if err := codec.WriteEvent(protocol.Ping()); err != nil {
			log.Debug("write Ping reply failed", zap.Error(err))
		}

	case protocol.KindRetrieveAppInfo:
		if err := codec.WriteEvent(protocol.RetrieveAppInfoReply(s.desc)); err != nil {
			log.Debug("write RetrieveAppInfo reply failed", zap.Error(err))
		}

	case protocol.KindCommandHistory:
		if err := codec.WriteEvent(protocol.CommandHistoryReply(s.history.Snapshot())); err != nil {
			log.Debug("write CommandHistory reply failed", zap.Error(err))
		}

	case protocol.KindWriteStdin:
		text := descriptor.NormalizeStdin(ev.Text)
		if text == "" {
			return
		}
		s.history.Push(text)
		s.writeStdin(text + "\n")

	case protocol.KindStop:
		s.handleStop()

	default:
		log.Warn("dispatch: unhandled event kind", zap.String("kind", string(ev.Kind)))
	}
}

// writeStdin writes line to the child's stdin under the exclusive stdin
// mutex. A broken pipe escalates to SIGTERM and permanently closes the
// writer; any other write error is logged and does not escalate (spec
// §4.5, "Write-to-stdin discipline").
func (s *Supervisor) writeStdin(line string) {
	s.stdinMu.Lock()
	defer s.stdinMu.Unlock()

	if s.stdinClosed || s.stdin == nil {
		return
	}

	if _, err := io.WriteString(s.stdin, line); err != nil {
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) {
			s.log.Warn("stdin broken pipe; sending SIGTERM", zap.Error(err))
			if serr := sigbridge.Send(s.childPID, int(sigbridge.SignalStop)); serr != nil {
				s.log.Warn("SIGTERM after broken pipe failed", zap.Error(serr))
			}
			_ = s.stdin.Close()
			s.stdinClosed = true
			return
		}
		s.log.Error("stdin write failed", zap.Error(err))
	}
}

// handleStop implements the Stop effect: prefer the descriptor's
// stop_command over SIGTERM, and never wait for the child here — the
// waiter observes the exit independently.
func (s *Supervisor) handleStop() {
	if s.desc.StopCommand != "" {
		s.writeStdin(s.desc.StopCommand + "\n")
		return
	}
	if err := sigbridge.Send(s.childPID, int(sigbridge.SignalStop)); err != nil {
		s.log.Warn("SIGTERM delivery failed", zap.Error(err))
	}
}

// waitChild blocks until the child exits, records its exit status, and
// performs the cleanup invariants: socket removed, listener closed, log
// file closed. The PID file is deliberately left in place (spec §4.5).
func (s *Supervisor) waitChild(cmd *exec.Cmd, waitCh <-chan error, listener net.Listener, sockPath string, logFile *os.File) error {
	err := <-waitCh

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus); ok {
				s.log.Info("child exited",
					zap.Int("exit_code", status.ExitStatus()),
					zap.Bool("signaled", status.Signaled()),
				)
			} else {
				s.log.Info("child exited", zap.Error(err))
			}
		} else {
			s.log.Error("wait on child failed", zap.Error(err))
		}
	} else {
		s.log.Info("child exited cleanly")
	}

	s.stdinMu.Lock()
	if s.stdin != nil && !s.stdinClosed {
		_ = s.stdin.Close()
		s.stdinClosed = true
	}
	s.stdinMu.Unlock()

	_ = os.Remove(sockPath)
	_ = listener.Close()
	_ = logFile.Close()

	return nil
}
