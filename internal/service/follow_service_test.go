package service

import (
	"context"
	"testing"

	"confessions/internal/models"
	"confessions/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counts(t *testing.T, s *stores, id string) (followers, following int64) {
	t.Helper()
	u, err := s.users.Get(context.Background(), id)
	require.NoError(t, err)
	return u.FollowerCount, u.FollowingCount
}

func TestFollowService_SelfFollowIsDeclined(t *testing.T) {
	s := newStores(t, false)
	svc := NewFollowService(&ctxGate{}, s.follows, s.users)
	s.user(t, "u1")

	res, err := svc.Follow(as("u1"), "u1")
	require.NoError(t, err)
	assert.Equal(t, &FollowResult{Declined: true}, res)

	res, err = svc.Unfollow(as("u1"), "u1")
	require.NoError(t, err)
	assert.True(t, res.Declined)

	edges, err := s.follows.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, edges)

	followers, following := counts(t, s, "u1")
	assert.Zero(t, followers)
	assert.Zero(t, following)
}

func TestFollowService_FollowUnfollowSymmetry(t *testing.T) {
	for _, atomic := range []bool{false, true} {
		s := newStores(t, atomic)
		svc := NewFollowService(&ctxGate{}, s.follows, s.users)
		s.user(t, "a")
		s.user(t, "b")

		res, err := svc.Follow(as("a"), "b")
		require.NoError(t, err)
		assert.Equal(t, &FollowResult{Changed: true, Following: true}, res)

		following, err := svc.IsFollowing(context.Background(), "a", "b")
		require.NoError(t, err)
		assert.True(t, following)
		reverse, err := svc.IsFollowing(context.Background(), "b", "a")
		require.NoError(t, err)
		assert.False(t, reverse)

		_, aFollowing := counts(t, s, "a")
		bFollowers, _ := counts(t, s, "b")
		assert.EqualValues(t, 1, aFollowing)
		assert.EqualValues(t, 1, bFollowers)

		// A repeat follow is a no-op.
		res, err = svc.Follow(as("a"), "b")
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.True(t, res.Following)
		bFollowers, _ = counts(t, s, "b")
		assert.EqualValues(t, 1, bFollowers)

		res, err = svc.Unfollow(as("a"), "b")
		require.NoError(t, err)
		assert.Equal(t, &FollowResult{Changed: true}, res)

		_, aFollowing = counts(t, s, "a")
		bFollowers, _ = counts(t, s, "b")
		assert.Zero(t, aFollowing)
		assert.Zero(t, bFollowers)

		res, err = svc.Unfollow(as("a"), "b")
		require.NoError(t, err)
		assert.False(t, res.Changed)
	}
}

func TestFollowService_UnfollowFloorsAtZero(t *testing.T) {
	s := newStores(t, false)
	svc := NewFollowService(&ctxGate{}, s.follows, s.users)
	s.user(t, "a")
	s.user(t, "b")

	// An edge whose counters were never bumped.
	require.NoError(t, s.follows.Create(context.Background(), &models.Follow{FollowerID: "a", FollowingID: "b"}))

	_, err := svc.Unfollow(as("a"), "b")
	require.NoError(t, err)

	_, aFollowing := counts(t, s, "a")
	bFollowers, _ := counts(t, s, "b")
	assert.Zero(t, aFollowing)
	assert.Zero(t, bFollowers)
}

func TestFollowService_UnfollowRemovesDuplicateEdges(t *testing.T) {
	s := newStores(t, true)
	svc := NewFollowService(&ctxGate{}, s.follows, s.users)
	s.user(t, "a")
	s.user(t, "b")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, s.follows.Create(ctx, &models.Follow{FollowerID: "a", FollowingID: "b"}))
	}
	require.NoError(t, s.users.Update(ctx, "b", repository.Fields{models.FieldFollowerCount: 2}))
	require.NoError(t, s.users.Update(ctx, "a", repository.Fields{models.FieldFollowingCount: 2}))

	res, err := svc.Unfollow(as("a"), "b")
	require.NoError(t, err)
	assert.True(t, res.Changed)

	edges, err := s.follows.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, edges)
	_, aFollowing := counts(t, s, "a")
	bFollowers, _ := counts(t, s, "b")
	assert.Zero(t, aFollowing)
	assert.Zero(t, bFollowers)
}

func TestFollowService_Rejections(t *testing.T) {
	s := newStores(t, false)
	gate := &ctxGate{}
	svc := NewFollowService(gate, s.follows, s.users)
	s.user(t, "a")

	_, err := svc.Follow(context.Background(), "a")
	assertCode(t, err, models.CodeUnauthenticated)
	assert.Equal(t, 1, gate.logins)

	_, err = svc.Follow(as("a"), "ghost")
	assertCode(t, err, models.CodeNotFound)

	edges, err := s.follows.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestFollowService_CounterFailureKeepsEdge(t *testing.T) {
	s := newStores(t, false)
	users := &failingStore[models.User]{Store: s.users, failUpdate: true}
	svc := NewFollowService(&ctxGate{}, s.follows, users)
	s.user(t, "a")
	s.user(t, "b")

	_, err := svc.Follow(as("a"), "b")
	assertCode(t, err, models.CodeStoreFailure)

	following, err := svc.IsFollowing(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.True(t, following)
}

func TestFollowService_IsFollowingShortCircuits(t *testing.T) {
	s := newStores(t, false)
	svc := NewFollowService(&ctxGate{}, s.follows, s.users)

	for _, pair := range [][2]string{{"", "b"}, {"a", ""}, {"a", "a"}} {
		got, err := svc.IsFollowing(context.Background(), pair[0], pair[1])
		require.NoError(t, err)
		assert.False(t, got)
	}
}
