// btarena pits a behaviour tree against turn-based enemy archetypes and runs
// the Enemy Mastery curriculum over it.
// Usage: btarena [--version] [--plain] [--config <file>] [--script <file>] [--trace] [--db <path>] [--curriculum] [tree.bt]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nathoo/btarena/agent"
	"github.com/nathoo/btarena/cli"
	"github.com/nathoo/btarena/config"
	"github.com/nathoo/btarena/content"
	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/loader"
	"github.com/nathoo/btarena/store"
	"github.com/nathoo/btarena/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: btarena [--version] [--plain] [--config <file>] [--script <file>] [--trace] [--db <path>] [--curriculum] [tree.bt]\n"

func main() {
	plain := false
	trace := false
	curriculum := false
	var treeFile, scriptFile, configFile, dbPath string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("btarena %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--trace":
			trace = true
		case "--curriculum":
			curriculum = true
		case "--script", "--config", "--db":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a value\n", args[i])
				os.Exit(1)
			}
			switch args[i] {
			case "--script":
				scriptFile = args[i+1]
			case "--config":
				configFile = args[i+1]
			case "--db":
				dbPath = args[i+1]
			}
			i++
		case "-h", "--help":
			fmt.Print(usage)
			return
		default:
			if treeFile != "" {
				fmt.Fprint(os.Stderr, usage)
				os.Exit(1)
			}
			treeFile = args[i]
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	interactive := scriptFile == "" && !curriculum && !plain && isTerminal()
	logOut := io.Writer(os.Stderr)
	if interactive {
		// Log lines would tear the alternate screen.
		logOut = io.Discard
	}
	logger, err := cfg.Logger(logOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	defs, err := loadContent(cfg.ContentDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading content: %v\n", err)
		os.Exit(1)
	}

	src := content.StarterTree
	if treeFile != "" {
		data, err := os.ReadFile(treeFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading tree: %v\n", err)
			os.Exit(1)
		}
		src = string(data)
	}

	session, err := cli.NewSession(defs, cfg, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing tree: %v\n", err)
		os.Exit(1)
	}
	session.Logger = logger
	session.SetTrace(trace)
	mock := agent.NewMock()
	session.Critic, session.Generator = mock, mock

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening run history: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()
		session.Recorder = st
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Curriculum mode: one run, printed, then exit.
	if curriculum {
		cli.New(session).Print(session.Execute(ctx, fmt.Sprintf("curriculum %d", cfg.MaxIterations)))
		return
	}

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		c := cli.New(session)
		c.In = f
		c.EchoInput = true
		c.Run(ctx)
		return
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if !interactive {
		cli.New(session).Run(ctx)
		return
	}

	if err := tui.Run(session); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadContent(dir string) (*state.Defs, error) {
	if dir == "" {
		return loader.Default()
	}
	return loader.Load(dir)
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
