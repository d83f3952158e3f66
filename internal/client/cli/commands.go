package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/client/client"
	"github.com/dmitrijs2005/credkeeper/internal/common"
)

// Register prompts for an email and password and creates the account.
func (a *App) Register(ctx context.Context, args []string) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getNewPassword(a.out)
	if err != nil {
		return err
	}
	defer common.Wipe(password)

	if err := a.client.Register(ctx, email, string(password)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Registered. Check your email for the activation link.")
	return nil
}

// Verify accepts either the bare token or the whole activation link.
func (a *App) Verify(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: verify <token>", ErrUsage)
	}
	token := args[0]
	if _, after, ok := strings.Cut(token, "token="); ok {
		token = after
	}

	if err := a.client.VerifyAccount(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account verified. You can log in now.")
	return nil
}

func (a *App) Resend(ctx context.Context, args []string) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	if err := a.client.ResendVerification(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the account exists and is not verified, a new link was sent.")
	return nil
}

func (a *App) Login(ctx context.Context, args []string) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.Wipe(password)

	tokens, err := a.client.Login(ctx, email, string(password), a.deviceInfo)
	if err != nil {
		return err
	}

	if err := a.sessions.Save(ctx, &client.Session{Email: email, Tokens: tokens}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s.\n", email)
	return nil
}

// restore loads the stored session into the client.
func (a *App) restore(ctx context.Context) (*client.Session, error) {
	sess, err := a.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	a.client.SetTokens(sess.Tokens)
	return sess, nil
}

// persist saves tokens the client may have refreshed during a call.
func (a *App) persist(ctx context.Context, sess *client.Session) error {
	current := a.client.Tokens()
	if current == sess.Tokens {
		return nil
	}
	sess.Tokens = current
	return a.sessions.Save(ctx, sess)
}

func (a *App) WhoAmI(ctx context.Context, args []string) error {
	sess, err := a.restore(ctx)
	if err != nil {
		return err
	}

	id, err := a.client.WhoAmI(ctx)
	if err != nil {
		return err
	}
	if err := a.persist(ctx, sess); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s %v (token valid until %s)\n", id.Subject, id.Roles, id.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func (a *App) Refresh(ctx context.Context, args []string) error {
	sess, err := a.restore(ctx)
	if err != nil {
		return err
	}

	if _, err := a.client.Refresh(ctx); err != nil {
		return err
	}
	if err := a.persist(ctx, sess); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Access token refreshed.")
	return nil
}

// Logout forgets the local session even if the server could not be told,
// unless it is merely unreachable.
func (a *App) Logout(ctx context.Context, args []string) error {
	if _, err := a.restore(ctx); err != nil {
		return err
	}

	err := a.client.Logout(ctx)
	if errors.Is(err, client.ErrUnavailable) {
		return err
	}

	if cerr := a.sessions.Clear(ctx); cerr != nil {
		return cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) Status(ctx context.Context, args []string) error {
	sess, err := a.sessions.Load(ctx)
	if errors.Is(err, client.ErrNoSession) {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s, access token valid until %s.\n",
		sess.Email, sess.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
