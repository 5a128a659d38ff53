// Package session resolves who is acting on a request and where they are in
// the sign-in flow.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"confessions/internal/middleware"
	"confessions/internal/models"
	"confessions/internal/repository"
)

// Gate supplies the current authenticated user. Every mutating engine
// operation consults it first.
type Gate interface {
	// CurrentUser returns the signed-in user, or nil and no error when the
	// caller is anonymous.
	CurrentUser(ctx context.Context) (*models.User, error)
	// RequireLogin starts the external sign-in flow. Its completion is
	// observed by calling CurrentUser again; nothing is retried.
	RequireLogin(ctx context.Context) error
}

// TokenGate resolves the user from the verified token subject that the auth
// middleware put in the request context.
type TokenGate struct {
	users    repository.Store[models.User]
	loginURL string
}

// NewTokenGate creates a TokenGate. loginURL is returned to clients as the
// place to sign in.
func NewTokenGate(users repository.Store[models.User], loginURL string) *TokenGate {
	return &TokenGate{users: users, loginURL: loginURL}
}

// CurrentUser loads the user for the token subject, creating the bare record
// (no username) on first sign-in.
func (g *TokenGate) CurrentUser(ctx context.Context) (*models.User, error) {
	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		return nil, nil
	}

	u, err := g.users.Get(ctx, userID)
	if err == nil {
		return u, nil
	}
	if !models.HasCode(err, models.CodeNotFound) {
		return nil, err
	}

	u = &models.User{ID: userID}
	if err := g.users.Create(ctx, u); err != nil {
		// Two first requests raced; the other one created the record.
		if models.HasCode(err, models.CodeConflict) {
			return g.users.Get(ctx, userID)
		}
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "user created on first sign-in", slog.String("user_id", userID))
	return u, nil
}

// RequireLogin reports that sign-in is needed.
func (g *TokenGate) RequireLogin(_ context.Context) error {
	return &models.AppError{
		Code:    models.CodeUnauthenticated,
		Message: "Sign in required",
		Err:     fmt.Errorf("sign in at %s and resubmit", g.loginURL),
	}
}
