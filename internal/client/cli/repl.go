package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Sync(ctx context.Context) error
	Pending(ctx context.Context) error
	Failed(ctx context.Context) error
	Retry(ctx context.Context, id string) error
	AddLogEntry(ctx context.Context) error
	AddComment(ctx context.Context) error
	AddAttachment(ctx context.Context) error
	Fetch(ctx context.Context, path string) error
}

// runREPL starts a simple read–eval–print loop for the Obrasync CLI.
//
// It reads a line from the provided reader, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on reader EOF or when the user types
// "exit" or "quit".
//
// The reader must be the same buffered reader the command handlers prompt
// from; a second buffer over the same stream could read ahead and swallow
// input meant for a prompt.
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("obra %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if err != nil {
				return
			}
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: status, sync, pending, failed, retry <id>, log, comment, attach, fetch <path>, logout, exit")
			} else {
				printlnFn("Available commands: login, status, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "status":
			_ = a.Status(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "pending":
			_ = a.Pending(ctx)

		case "failed":
			_ = a.Failed(ctx)

		case "retry":
			if len(args) == 0 {
				printlnFn("Usage: retry <id>")
				continue
			}
			_ = a.Retry(ctx, args[0])

		case "log":
			_ = a.AddLogEntry(ctx)

		case "comment":
			_ = a.AddComment(ctx)

		case "attach":
			_ = a.AddAttachment(ctx)

		case "fetch":
			if len(args) == 0 {
				printlnFn("Usage: fetch <path>")
				continue
			}
			_ = a.Fetch(ctx, args[0])

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
