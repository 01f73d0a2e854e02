// Package sigbridge delivers POSIX signals to a child PID and translates
// errno into the taxonomy clients and the supervisor distinguish on.
// Grounded on the Setpgid/Pdeathsig + syscall.Kill pattern used by the
// teacher's process.Close (zmux-server's processmgr) and containish's use
// of golang.org/x/sys/unix for raw signal plumbing.
package sigbridge

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/edirooss/crescentd/internal/crescenterr"
)

// Convenience aliases named in spec §6.
const (
	SignalStop = unix.SIGTERM
	SignalKill = unix.SIGKILL
)

// Bridge is a small interface wrapping signal delivery so tests can
// substitute an in-memory sink (spec §9, "Signals as a capability").
type Bridge interface {
	Send(pid int, signum int) error
}

// OS delivers signals via the real kernel.
type OS struct{}

// Send best-effort delivers signum to pid. signum == 0 is a liveness
// probe: a nil error means the process exists and is signalable.
func (OS) Send(pid int, signum int) error {
	return Send(pid, signum)
}

// Send best-effort delivers signum to pid, translating errno into
// *crescenterr.SignalError. A nil return means success; for signum == 0
// that means the process exists and we may signal it.
func Send(pid int, signum int) error {
	err := unix.Kill(pid, unix.Signal(signum))
	if err == nil {
		return nil
	}

	var errno unix.Errno
	if !errors.As(err, &errno) {
		return &crescenterr.SignalError{Kind: crescenterr.SignalErrorUnknown, Err: err}
	}

	switch errno {
	case unix.EPERM:
		return &crescenterr.SignalError{Kind: crescenterr.SignalErrorPermission, Err: err}
	case unix.ESRCH:
		return &crescenterr.SignalError{Kind: crescenterr.SignalErrorNoSuchProcess, Err: err}
	case unix.EINVAL:
		return &crescenterr.SignalError{Kind: crescenterr.SignalErrorInvalid, Err: err}
	default:
		return &crescenterr.SignalError{Kind: crescenterr.SignalErrorUnknown, Code: int(errno), Err: err}
	}
}

// IsAlive reports whether pid is live and signalable (Send(pid, 0) ==
// nil).
func IsAlive(pid int) bool {
	return Send(pid, 0) == nil
}
