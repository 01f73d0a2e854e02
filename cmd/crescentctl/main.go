// Command crescentctl is a thin client for an already-running
// application's control socket. Pretty status/list output, shell
// completion, and full subcommand dispatch live outside this core.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/edirooss/crescentd/internal/attachtui"
	"github.com/edirooss/crescentd/internal/client"
	"github.com/edirooss/crescentd/internal/crescenterr"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: crescentctl <ping|send|attach|stop|kill|signal> <name> [args]")
		os.Exit(1)
	}

	verb, name := os.Args[1], os.Args[2]
	rest := os.Args[3:]

	if err := dispatch(verb, name, rest); err != nil {
		fmt.Fprintln(os.Stderr, crescenterr.Message(err))
		os.Exit(1)
	}
}

func dispatch(verb, name string, rest []string) error {
	switch verb {
	case "ping":
		return client.Ping(name)

	case "send":
		text := readLineOrArg(rest)
		return client.SendCommand(name, text)

	case "attach":
		return attachtui.Attach(name)

	case "stop":
		force := len(rest) > 0 && rest[0] == "--force"
		return client.Stop(name, force)

	case "kill":
		return client.Kill(name)

	case "signal":
		if len(rest) == 0 {
			return fmt.Errorf("signal: missing signal number")
		}
		num, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("signal: invalid signal number %q", rest[0])
		}
		return client.Signal(name, num)

	default:
		return fmt.Errorf("unknown verb %q", verb)
	}
}

func readLineOrArg(rest []string) string {
	if len(rest) > 0 {
		return rest[0]
	}
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}
