package session

import (
	"context"
	"errors"
	"testing"

	"confessions/internal/database"
	"confessions/internal/middleware"
	"confessions/internal/models"
	"confessions/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateStub struct {
	currentFn func(ctx context.Context) (*models.User, error)
	logins    int
}

func (g *gateStub) CurrentUser(ctx context.Context) (*models.User, error) {
	return g.currentFn(ctx)
}

func (g *gateStub) RequireLogin(context.Context) error {
	g.logins++
	return models.NewUnauthenticatedError("Sign in required")
}

func userGate(u *models.User) *gateStub {
	return &gateStub{currentFn: func(context.Context) (*models.User, error) { return u, nil }}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from    State
		event   Event
		want    State
		wantErr bool
	}{
		{StateUnknown, EventResolvedAnonymous, StateAnonymous, false},
		{StateUnknown, EventResolvedUser, StateAuthenticatedIncomplete, false},
		{StateUnknown, EventProfileCompleted, StateUnknown, true},
		{StateUnknown, EventSignedOut, StateUnknown, true},
		{StateAnonymous, EventResolvedUser, StateAuthenticatedIncomplete, false},
		{StateAnonymous, EventProfileCompleted, StateAnonymous, true},
		{StateAuthenticatedIncomplete, EventProfileCompleted, StateAuthenticatedComplete, false},
		{StateAuthenticatedIncomplete, EventSignedOut, StateAnonymous, false},
		{StateAuthenticatedIncomplete, EventResolvedAnonymous, StateAuthenticatedIncomplete, true},
		{StateAuthenticatedComplete, EventResolvedUser, StateAuthenticatedComplete, false},
		{StateAuthenticatedComplete, EventSignedOut, StateAnonymous, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				var invalid *ErrInvalidTransition
				assert.ErrorAs(t, err, &invalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMachine_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		m := NewMachine(userGate(nil))
		snap, err := m.Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAnonymous, snap.State)
		assert.Nil(t, snap.User)
	})

	t.Run("fresh sign-in stops at setup", func(t *testing.T) {
		m := NewMachine(userGate(&models.User{ID: "u1"}))
		snap, err := m.Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticatedIncomplete, snap.State)
	})

	t.Run("complete profile goes to feed", func(t *testing.T) {
		m := NewMachine(userGate(&models.User{ID: "u1", Username: "owl", DisplayName: "Owl"}))
		snap, err := m.Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticatedComplete, snap.State)
		assert.Equal(t, "owl", snap.User.Username)
	})

	t.Run("gate failure keeps state", func(t *testing.T) {
		m := NewMachine(&gateStub{currentFn: func(context.Context) (*models.User, error) {
			return nil, models.NewStoreError("get", errors.New("down"))
		}})
		snap, err := m.Resolve(ctx)
		assert.True(t, models.HasCode(err, models.CodeStoreFailure))
		assert.Equal(t, StateUnknown, snap.State)
	})

	t.Run("sign out after sign in", func(t *testing.T) {
		current := &models.User{ID: "u1", Username: "owl", DisplayName: "Owl"}
		m := NewMachine(&gateStub{currentFn: func(context.Context) (*models.User, error) { return current, nil }})
		_, err := m.Resolve(ctx)
		require.NoError(t, err)

		current = nil
		snap, err := m.Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateAnonymous, snap.State)
	})
}

func TestMachine_CompleteProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("completes", func(t *testing.T) {
		m := NewMachine(userGate(&models.User{ID: "u1"}))
		snap, err := m.CompleteProfile(ctx, func(context.Context) (*models.User, error) {
			return &models.User{ID: "u1", Username: "owl", DisplayName: "Owl"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, StateAuthenticatedComplete, snap.State)
	})

	t.Run("setup error keeps incomplete", func(t *testing.T) {
		m := NewMachine(userGate(&models.User{ID: "u1"}))
		snap, err := m.CompleteProfile(ctx, func(context.Context) (*models.User, error) {
			return nil, models.NewConflictError("Username might be taken")
		})
		assert.True(t, models.HasCode(err, models.CodeConflict))
		assert.Equal(t, StateAuthenticatedIncomplete, snap.State)
	})

	t.Run("anonymous is sent to sign in", func(t *testing.T) {
		gate := userGate(nil)
		m := NewMachine(gate)
		called := false
		snap, err := m.CompleteProfile(ctx, func(context.Context) (*models.User, error) {
			called = true
			return nil, nil
		})
		assert.True(t, models.HasCode(err, models.CodeUnauthenticated))
		assert.Equal(t, StateAnonymous, snap.State)
		assert.False(t, called)
		assert.Equal(t, 1, gate.logins)
	})

	t.Run("sign out", func(t *testing.T) {
		m := NewMachine(userGate(&models.User{ID: "u1"}))
		_, err := m.Resolve(ctx)
		require.NoError(t, err)
		require.NoError(t, m.SignOut())
		assert.Equal(t, StateAnonymous, m.State())
		assert.Error(t, m.SignOut())
	})
}

func TestTokenGate(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	users := repository.NewStore[models.User](db)
	gate := NewTokenGate(users, "/login")

	t.Run("anonymous", func(t *testing.T) {
		u, err := gate.CurrentUser(context.Background())
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("first sign-in creates bare user", func(t *testing.T) {
		ctx := middleware.WithUserID(context.Background(), "user-42")
		u, err := gate.CurrentUser(ctx)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "user-42", u.ID)
		assert.Empty(t, u.Username)
		assert.False(t, u.IsComplete())
		assert.Equal(t, models.AvatarPurple, u.AvatarColor)

		again, err := gate.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, u.ID, again.ID)

		all, err := users.List(context.Background(), "", 0)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("require login", func(t *testing.T) {
		err := gate.RequireLogin(context.Background())
		assert.True(t, models.HasCode(err, models.CodeUnauthenticated))
		assert.Contains(t, err.Error(), "/login")
	})
}
