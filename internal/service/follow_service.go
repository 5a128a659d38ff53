package service

import (
	"context"

	"confessions/internal/models"
	"confessions/internal/observability"
	"confessions/internal/repository"
	"confessions/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// FollowService maintains follow edges and the follower/following counters
// on both users. The edge is the source of truth; counters are display data
// and are not rolled back when a step fails.
type FollowService struct {
	gate    session.Gate
	follows repository.Store[models.Follow]
	users   repository.Store[models.User]
}

// FollowResult reports what Follow or Unfollow did. Declined is set for a
// self-follow, which is silently ignored.
type FollowResult struct {
	Changed   bool `json:"changed"`
	Declined  bool `json:"declined"`
	Following bool `json:"following"`
}

// NewFollowService returns a new FollowService.
func NewFollowService(gate session.Gate, follows repository.Store[models.Follow], users repository.Store[models.User]) *FollowService {
	return &FollowService{
		gate:    gate,
		follows: follows,
		users:   users,
	}
}

// Follow makes the current user follow targetID.
func (s *FollowService) Follow(ctx context.Context, targetID string) (res *FollowResult, err error) {
	span, ctx := observability.NewSpan(ctx, "follow.follow", attribute.String("target.id", targetID))
	outcome := observability.OutcomeApplied
	defer func() { finish(span, "follow", err, outcome) }()

	me, err := requireUser(ctx, s.gate)
	if err != nil {
		return nil, err
	}
	if me.ID == targetID {
		outcome = observability.OutcomeDeclined
		return &FollowResult{Declined: true}, nil
	}
	if _, err := s.users.Get(ctx, targetID); err != nil {
		return nil, err
	}

	edges, err := s.edges(ctx, me.ID, targetID, 1)
	if err != nil {
		return nil, err
	}
	if len(edges) > 0 {
		outcome = observability.OutcomeNoop
		return &FollowResult{Following: true}, nil
	}

	if err := s.follows.Create(ctx, &models.Follow{FollowerID: me.ID, FollowingID: targetID}); err != nil {
		return nil, err
	}
	if err := s.adjustPair(ctx, me.ID, targetID, 1); err != nil {
		logPartial(ctx, "follow", targetID, err)
		return nil, err
	}
	return &FollowResult{Changed: true, Following: true}, nil
}

// Unfollow removes the current user's edge to targetID. Duplicate edges left
// by racing follows are all removed and the counters lowered once per edge.
func (s *FollowService) Unfollow(ctx context.Context, targetID string) (res *FollowResult, err error) {
	span, ctx := observability.NewSpan(ctx, "follow.unfollow", attribute.String("target.id", targetID))
	outcome := observability.OutcomeApplied
	defer func() { finish(span, "unfollow", err, outcome) }()

	me, err := requireUser(ctx, s.gate)
	if err != nil {
		return nil, err
	}
	if me.ID == targetID {
		outcome = observability.OutcomeDeclined
		return &FollowResult{Declined: true}, nil
	}
	if _, err := s.users.Get(ctx, targetID); err != nil {
		return nil, err
	}

	edges, err := s.edges(ctx, me.ID, targetID, 0)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		outcome = observability.OutcomeNoop
		return &FollowResult{}, nil
	}

	var removed int64
	for _, e := range edges {
		if err := s.follows.Delete(ctx, e.ID); err != nil {
			// Deleted by a concurrent unfollow.
			if models.HasCode(err, models.CodeNotFound) {
				continue
			}
			if removed > 0 {
				if perr := s.adjustPair(ctx, me.ID, targetID, -removed); perr != nil {
					logPartial(ctx, "unfollow", targetID, perr)
				}
			}
			return nil, err
		}
		removed++
	}
	if removed == 0 {
		outcome = observability.OutcomeNoop
		return &FollowResult{}, nil
	}

	if err := s.adjustPair(ctx, me.ID, targetID, -removed); err != nil {
		logPartial(ctx, "unfollow", targetID, err)
		return nil, err
	}
	return &FollowResult{Changed: true}, nil
}

// IsFollowing reports whether followerID follows targetID.
func (s *FollowService) IsFollowing(ctx context.Context, followerID, targetID string) (bool, error) {
	if followerID == "" || targetID == "" || followerID == targetID {
		return false, nil
	}
	edges, err := s.edges(ctx, followerID, targetID, 1)
	if err != nil {
		return false, err
	}
	return len(edges) > 0, nil
}

func (s *FollowService) edges(ctx context.Context, followerID, targetID string, limit int) ([]*models.Follow, error) {
	return s.follows.Filter(ctx, repository.Criteria{
		"follower_id":  followerID,
		"following_id": targetID,
	}, "", limit)
}

// adjustPair moves target.follower_count and follower.following_count by
// delta. The two steps are independent and both always run.
func (s *FollowService) adjustPair(ctx context.Context, followerID, targetID string, delta int64) error {
	var g errgroup.Group
	g.Go(func() error {
		return adjustCounter(ctx, s.users, targetID, models.FieldFollowerCount, delta, func(u *models.User) int64 {
			return u.FollowerCount
		})
	})
	g.Go(func() error {
		return adjustCounter(ctx, s.users, followerID, models.FieldFollowingCount, delta, func(u *models.User) int64 {
			return u.FollowingCount
		})
	})
	return g.Wait()
}
