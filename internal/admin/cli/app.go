// Package cli implements authctl, the operator tool that shares the
// server's configuration: schema migrations, offline password hashing and
// forced session revocation.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dmitrijs2005/credkeeper/internal/server/config"
)

// ErrUsage is returned for an unknown command or bad command flags.
var ErrUsage = errors.New("usage error")

type command struct {
	summary string
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"migrate":         {"apply pending database migrations", (*App).Migrate},
	"hash-password":   {"read a password and print its hash", (*App).HashPassword},
	"revoke-sessions": {"revoke every refresh token of a user (-user <id>)", (*App).RevokeSessions},
	"config":          {"print the effective configuration, secrets masked", (*App).PrintConfig},
}

type App struct {
	config *config.Config
	in     io.Reader
	out    io.Writer
}

func NewApp(cfg *config.Config, in io.Reader, out io.Writer) *App {
	return &App{config: cfg, in: in, out: out}
}

// Run dispatches to the first argument naming a command. Server flags may
// appear anywhere in args; they were already applied to the config.
func (a *App) Run(ctx context.Context, args []string) error {
	for i, arg := range args {
		if arg == "help" {
			a.usage()
			return nil
		}
		if cmd, ok := commands[arg]; ok {
			return cmd.run(a, ctx, args[i+1:])
		}
	}

	a.usage()
	return fmt.Errorf("%w: no command given", ErrUsage)
}

func (a *App) usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "Usage: authctl <command> [flags]")
	fmt.Fprintln(a.out, "Commands:")
	for _, name := range names {
		fmt.Fprintf(a.out, "  %-16s %s\n", name, commands[name].summary)
	}
}
