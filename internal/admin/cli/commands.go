package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/flagx"
	"github.com/dmitrijs2005/credkeeper/internal/server"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// sessionRevoker is the piece of the auth service revoke-sessions needs.
type sessionRevoker interface {
	RevokeAllSessions(ctx context.Context, userID string) (int64, error)
}

// openRevoker is a seam; it builds the service from the shared config.
var openRevoker = func(ctx context.Context, cfg *config.Config, logOut io.Writer) (sessionRevoker, func() error, error) {
	app, err := server.NewApp(ctx, cfg, logOut)
	if err != nil {
		return nil, nil, err
	}
	return app.AuthService(), app.Close, nil
}

// Migrate applies the embedded migrations. With memory storage there is
// nothing to do.
func (a *App) Migrate(ctx context.Context, args []string) error {
	if a.config.StorageKind == config.StorageMemory {
		fmt.Fprintln(a.out, "memory storage: nothing to migrate")
		return nil
	}

	db, _, err := server.OpenStorage(ctx, a.config, timex.SystemClock{})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintln(a.out, "migrations applied")
	return nil
}

// HashPassword prints the configured hasher's encoding of a password read
// from the terminal without echo, or from the first line of piped input.
func (a *App) HashPassword(ctx context.Context, args []string) error {
	hasher, err := cryptox.NewPasswordHasher(a.config.PasswordHasher)
	if err != nil {
		return err
	}

	pw, err := a.readSecret()
	if err != nil {
		return fmt.Errorf("error reading password: %w", err)
	}

	hash, err := hasher.Hash(pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, hash)
	return nil
}

func (a *App) readSecret() (string, error) {
	if f, ok := a.in.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(a.out, "Enter password: ")
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// RevokeSessions logs a user out everywhere.
func (a *App) RevokeSessions(ctx context.Context, args []string) error {
	var userID string

	fs := flag.NewFlagSet("revoke-sessions", flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.StringVar(&userID, "user", "", "user id")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-user"})); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if userID == "" {
		return fmt.Errorf("%w: -user is required", ErrUsage)
	}

	svc, closeFn, err := openRevoker(ctx, a.config, io.Discard)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := svc.RevokeAllSessions(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "revoked %d session(s) of user %s\n", n, userID)
	return nil
}

const masked = "****"

// PrintConfig shows the effective settings after defaults, JSON and flags.
func (a *App) PrintConfig(ctx context.Context, args []string) error {
	c := a.config
	secret := func(s string) string {
		if s == "" {
			return ""
		}
		return masked
	}

	rows := [][2]string{
		{"http address", c.EndpointAddrHTTP},
		{"grpc address", c.EndpointAddrGRPC},
		{"storage", c.StorageKind},
		{"database dsn", secret(c.DatabaseDSN)},
		{"secret key", secret(c.SecretKey)},
		{"access token ttl", c.AccessTokenValidityDuration.String()},
		{"refresh token ttl", c.RefreshTokenValidityDuration.String()},
		{"verification token ttl", c.VerificationTokenValidityDuration.String()},
		{"app base url", c.AppBaseURL},
		{"password hasher", c.PasswordHasher},
		{"notifier", c.Notifier},
		{"mail from", c.MailFrom},
		{"s3 bucket", c.S3Bucket},
		{"s3 endpoint", c.S3BaseEndpoint},
		{"log level", c.LogLevel},
	}
	for _, r := range rows {
		fmt.Fprintf(a.out, "%-24s %s\n", r[0]+":", r[1])
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("config is not valid: %w", err)
	}
	return nil
}
