// Package cli provides terminal I/O, output formatting and command dispatch
// for the arena.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI runs a Session as a line REPL.
type CLI struct {
	Session   *Session
	In        io.Reader
	Out       io.Writer
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI over the given session.
func New(s *Session) *CLI {
	return &CLI{
		Session: s,
		In:      os.Stdin,
		Out:     os.Stdout,
	}
}

// Run loops: prompt, input, dispatch, output. It returns at end of input,
// on /quit, or when ctx is done.
func (c *CLI) Run(ctx context.Context) {
	defs := c.Session.Defs
	c.printLine(fmt.Sprintf("%s v%s: %d enemies, turn limit %d.", defs.Game.Title, defs.Game.Version, len(defs.Archetypes), defs.TurnLimit()))
	c.printLine("Type /help for commands.")
	c.printLine("")

	scanner := bufio.NewScanner(c.In)
	for ctx.Err() == nil {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else if !strings.HasPrefix(input, "/") {
			c.lastCmd = input
		}

		reply := c.Session.Execute(ctx, input)
		c.Print(reply)
		if reply.Quit {
			return
		}
	}
}

// Print writes a reply, bracketing system lines.
func (c *CLI) Print(r Reply) {
	for _, l := range r.Lines {
		if l.System {
			c.printSystem(l.Text)
		} else {
			c.printLine(l.Text)
		}
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
