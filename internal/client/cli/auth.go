package cli

import (
	"context"
	"errors"

	"github.com/obrasync/obrasync/internal/common"
)

// Login prompts for credentials and authenticates against the server.
func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username:", a.out)
	if err != nil {
		return err
	}

	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer wipe(password)

	if err := a.session.Login(ctx, username, string(password)); err != nil {
		a.log.Error(ctx, "login failed", "error", err)
		printlnFn("Login failed:", friendlyError(err))
		return err
	}

	printlnFn("Logged in as", username)
	return nil
}

// Logout clears the session, locally and at rest.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		a.log.Error(ctx, "logout failed", "error", err)
		return err
	}
	printlnFn("Logged out")
	return nil
}

func friendlyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, common.ErrUnauthorized):
		return "invalid credentials"
	case errors.Is(err, common.ErrUnavailable):
		return "server unreachable"
	default:
		return err.Error()
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
