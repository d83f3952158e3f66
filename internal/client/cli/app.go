// Package cli is the credkeeper command-line client: one auth operation
// per invocation, with the session persisted between runs.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/client/client"
)

// ErrUsage is returned for an unknown command or missing arguments.
var ErrUsage = errors.New("usage error")

// AuthClient is implemented by client.GRPCClient.
type AuthClient interface {
	Register(ctx context.Context, email, password string) error
	VerifyAccount(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password, deviceInfo string) (client.Tokens, error)
	Refresh(ctx context.Context) (client.Tokens, error)
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) (*client.Identity, error)
	Tokens() client.Tokens
	SetTokens(client.Tokens)
}

// SessionStore is implemented by client.SessionStore.
type SessionStore interface {
	Load(ctx context.Context) (*client.Session, error)
	Save(ctx context.Context, s *client.Session) error
	Clear(ctx context.Context) error
}

// Prompt indirections, replaced in tests.
var (
	getSimpleText  = GetSimpleText
	getPassword    = GetPassword
	getNewPassword = GetNewPassword
)

type App struct {
	client     AuthClient
	sessions   SessionStore
	deviceInfo string
	timeout    time.Duration
	reader     *bufio.Reader
	out        io.Writer
}

func NewApp(c AuthClient, s SessionStore, deviceInfo string, timeout time.Duration, in io.Reader, out io.Writer) *App {
	return &App{
		client:     c,
		sessions:   s,
		deviceInfo: deviceInfo,
		timeout:    timeout,
		reader:     bufio.NewReader(in),
		out:        out,
	}
}

type command struct {
	summary string
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"register": {"create an account", (*App).Register},
	"verify":   {"activate an account: verify <token>", (*App).Verify},
	"resend":   {"mail a new activation link", (*App).Resend},
	"login":    {"sign in and remember the session", (*App).Login},
	"whoami":   {"show the signed-in identity", (*App).WhoAmI},
	"refresh":  {"get a new access token", (*App).Refresh},
	"logout":   {"end the session on the server and locally", (*App).Logout},
	"status":   {"show the stored session", (*App).Status},
}

// Run executes the first argument that names a command; client flags may
// appear anywhere in args.
func (a *App) Run(ctx context.Context, args []string) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

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

	fmt.Fprintln(a.out, "Usage: credkeeper <command> [flags]")
	fmt.Fprintln(a.out, "Commands:")
	for _, name := range names {
		fmt.Fprintf(a.out, "  %-10s %s\n", name, commands[name].summary)
	}
}
