package attachtui

import (
	"bytes"
	"context"
	"fmt"
	"net"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/edirooss/crescentd/internal/crescenterr"
	"github.com/edirooss/crescentd/internal/daemon"
	"github.com/edirooss/crescentd/internal/layout"
	"github.com/edirooss/crescentd/internal/protocol"
	"github.com/edirooss/crescentd/internal/stats"
	"github.com/edirooss/crescentd/internal/tail"
)

// seedLines is the initial backlog size requested before following the
// log live (spec §4.8: "preceded by an initial read_last(200)").
const seedLines = 200

// lineSplitter adapts a channel of complete lines to the io.Writer sink
// tail.Watch streams appended bytes into.
type lineSplitter struct {
	out chan<- string
	buf []byte
}

func (w *lineSplitter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf[:idx])
		w.buf = w.buf[idx+1:]
		w.out <- line
	}
	return len(p), nil
}

// controlReader forwards decoded events from conn to ch until the
// connection closes, at which point ch is closed.
func controlReader(codec *protocol.Codec, ch chan<- protocol.Event) {
	defer close(ch)
	for {
		ev, err := codec.ReadEvent()
		if err != nil {
			return
		}
		ch <- ev
	}
}

// Attach opens the control socket and log tail for name and runs the
// attach TUI until the session ends (Esc, or the supervisor/child going
// away).
func Attach(name string) error {
	sockPath, err := layout.SocketPath(name)
	if err != nil {
		return err
	}
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		return fmt.Errorf("%w: %v", crescenterr.ErrApplicationNotRunning, err)
	}
	defer conn.Close()

	pidPath, err := layout.PIDPath(name)
	if err != nil {
		return err
	}
	_, childPID, lines, err := daemon.ReadPIDFile(pidPath)
	if err != nil || lines < 2 {
		return crescenterr.ErrApplicationNotRunning
	}

	logPath, err := layout.LogPath(name)
	if err != nil {
		return err
	}
	tailer := tail.New(logPath)
	seed, err := tailer.ReadLast(seedLines)
	if err != nil {
		return fmt.Errorf("read log backlog: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logCh := make(chan string, 256)
	go func() {
		defer close(logCh)
		_ = tailer.Watch(ctx, &lineSplitter{out: logCh})
	}()

	statsCh := make(chan string, 8)
	if sampler, serr := stats.New(childPID); serr == nil {
		go stats.Run(ctx, sampler, statsCh)
	}

	controlCh := make(chan protocol.Event, 32)
	codec := protocol.NewCodec(conn)
	go controlReader(codec, controlCh)

	// Seed local history from the supervisor (spec §4.8, "Startup query").
	_ = codec.WriteEvent(protocol.CommandHistoryRequest())

	model := New(name, seed, logCh, statsCh, controlCh, codec)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = program.Run()
	return err
}
