package sigbridge

import (
	"os"
	"os/exec"
	"testing"

	"github.com/edirooss/crescentd/internal/crescenterr"
)

func TestSendZeroToSelfIsAlive(t *testing.T) {
	if !IsAlive(os.Getpid()) {
		t.Fatalf("expected current process to be alive")
	}
}

func TestSendToNonExistentProcess(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run 'true': %v", err)
	}
	pid := cmd.Process.Pid

	err := Send(pid, 0)
	if err == nil {
		t.Fatalf("expected error signalling reaped process")
	}
	se, ok := err.(*crescenterr.SignalError)
	if !ok {
		t.Fatalf("expected *crescenterr.SignalError, got %T", err)
	}
	if se.Kind != crescenterr.SignalErrorNoSuchProcess {
		t.Fatalf("expected SignalErrorNoSuchProcess, got %v", se.Kind)
	}
}

func TestSendInvalidSignal(t *testing.T) {
	err := Send(os.Getpid(), 999)
	if err == nil {
		t.Fatalf("expected error for invalid signal number")
	}
}
