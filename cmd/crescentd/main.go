//go:build linux

// Command crescentd launches and daemonizes one supervised application.
// Argument parsing here is intentionally minimal: full subcommand
// dispatch, profile file resolution, and the init-system adapter are
// external collaborators outside the core this repository implements.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/edirooss/crescentd/internal/client"
	"github.com/edirooss/crescentd/internal/crescenterr"
	"github.com/edirooss/crescentd/internal/daemon"
	"github.com/edirooss/crescentd/internal/descriptor"
	"github.com/edirooss/crescentd/internal/layout"
	"github.com/edirooss/crescentd/internal/supervisor"
)

func main() {
	name := flag.String("name", "", "application name (single token, no whitespace)")
	exe := flag.String("exe", "", "absolute path to the executable")
	interpreter := flag.String("interpreter", "", "optional interpreter to run exe under")
	stopCommand := flag.String("stop-command", "", "optional text sent to stdin on Stop")
	flag.Parse()

	if err := run(*name, *exe, *interpreter, *stopCommand, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, crescenterr.Message(err))
		os.Exit(1)
	}
}

func run(name, exe, interpreter, stopCommand string, appArgs []string) error {
	if strings.ContainsAny(name, " \t\n") {
		return crescenterr.ErrNameContainsWhitespace
	}
	if exe == "" {
		return crescenterr.ErrExecutablePathNotGiven
	}
	if _, err := os.Stat(exe); err != nil {
		return fmt.Errorf("%w: %s", crescenterr.ErrExecutablePathNotFound, exe)
	}

	if running, err := client.AppAlreadyRunning(name); err != nil {
		return err
	} else if running {
		return fmt.Errorf("%s: %w", name, crescenterr.ErrApplicationAlreadyRun)
	}

	// Not running per the liveness oracle above; any existing app
	// directory is therefore stale (e.g. an orphan socket left behind by
	// a supervisor that died without cleaning up). Remove and recreate
	// it so start always begins from a clean directory (spec §8,
	// "Boundary behaviors"). Only the original invocation does this: the
	// process daemon.Daemonize re-executes (marked by
	// CRESCENTD_DAEMON_STAGE=1) already has its stderr on the fresh log
	// file, which removing the directory again would unlink.
	if os.Getenv("CRESCENTD_DAEMON_STAGE") != "1" {
		if existing, derr := layout.AppDir(name); derr == nil {
			_ = os.RemoveAll(existing)
		}
	}

	appDir, err := layout.EnsureAppDir(name)
	if err != nil {
		return err
	}
	pidPath, err := layout.PIDPath(name)
	if err != nil {
		return err
	}
	logPath, err := layout.LogPath(name)
	if err != nil {
		return err
	}

	if err := daemon.Daemonize(daemon.Options{WorkDir: appDir, PIDPath: pidPath, LogPath: logPath}); err != nil {
		return err
	}
	// Only the detached process reaches this point; the original
	// invocation already exited inside Daemonize.

	desc := &descriptor.Descriptor{
		Name:            name,
		ExecutablePath:  exe,
		Interpreter:     interpreter,
		AppArgs:         appArgs,
		StopCommand:     stopCommand,
		InterpreterArgs: nil,
	}

	log, err := zap.NewProduction()
	if err != nil {
		log = zap.NewNop()
	}
	defer log.Sync()

	return supervisor.Run(log, desc, appDir)
}
