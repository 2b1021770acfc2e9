package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	s := ""
	if user := a.session.Username(); user != "" {
		s = user + " "
	}
	s = s + string(a.mode())
	return fmt.Sprintf("(%s)", s)
}

// Root runs the interactive loop until the user exits. The REPL shares the
// app's buffered reader with the command prompts so neither side reads ahead
// of the other.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to Obrasync CLI (type 'help' for commands)")

	runREPL(ctx, a, a.getStatus, a.reader)
}
