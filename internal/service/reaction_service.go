package service

import (
	"context"

	"confessions/internal/models"
	"confessions/internal/observability"
	"confessions/internal/repository"
	"confessions/internal/session"

	"go.opentelemetry.io/otel/attribute"
)

// ReactionService applies hug and relate reactions, at most once per
// (user, post, type), and keeps the post counters in step.
//
// The uniqueness check is a read before the write. Two identical requests
// from the same user that arrive together can both pass it and leave a
// duplicate Reaction and a double count. Concurrent reactions from
// different users can lose an increment on stores without atomic counters.
type ReactionService struct {
	gate      session.Gate
	reactions repository.Store[models.Reaction]
	posts     repository.Store[models.Confession]
	feed      FeedInvalidator
}

// ReactionResult is the state after React. Created is false when the
// reaction already existed and nothing changed.
type ReactionResult struct {
	Reaction *models.Reaction   `json:"reaction"`
	Post     *models.Confession `json:"post"`
	Created  bool               `json:"created"`
}

// ReactionState tells the current user which reactions they have left.
type ReactionState struct {
	Hugged  bool `json:"hugged"`
	Related bool `json:"related"`
}

func NewReactionService(
	gate session.Gate,
	reactions repository.Store[models.Reaction],
	posts repository.Store[models.Confession],
	feed FeedInvalidator,
) *ReactionService {
	return &ReactionService{
		gate:      gate,
		reactions: reactions,
		posts:     posts,
		feed:      feed,
	}
}

// React records that the current user hugged or related to postID.
func (s *ReactionService) React(ctx context.Context, postID string, reactionType models.ReactionType) (res *ReactionResult, err error) {
	span, ctx := observability.NewSpan(ctx, "reaction.react",
		attribute.String("post.id", postID),
		attribute.String("reaction.type", string(reactionType)),
	)
	outcome := observability.OutcomeApplied
	defer func() { finish(span, "react", err, outcome) }()

	user, err := requireUser(ctx, s.gate)
	if err != nil {
		return nil, err
	}
	if !reactionType.Valid() {
		return nil, models.NewValidationError("Reaction type must be hug or relate")
	}

	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}

	existing, err := s.reactions.Filter(ctx, repository.Criteria{
		"user_id":       user.ID,
		"post_id":       postID,
		"reaction_type": reactionType,
	}, "", 1)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		outcome = observability.OutcomeNoop
		return &ReactionResult{Reaction: existing[0], Post: post, Created: false}, nil
	}

	reaction := &models.Reaction{
		UserID:       user.ID,
		PostID:       postID,
		ReactionType: reactionType,
	}
	if err := s.reactions.Create(ctx, reaction); err != nil {
		return nil, err
	}

	field := reactionType.CounterField()
	if err := adjustCounter(ctx, s.posts, postID, field, 1, func(p *models.Confession) int64 {
		if field == models.FieldRelateCount {
			return p.RelateCount
		}
		return p.HugCount
	}); err != nil {
		logPartial(ctx, "react", postID, err)
		return nil, err
	}

	if s.feed != nil {
		s.feed.InvalidateFeed(ctx)
	}

	updated, err := s.posts.Get(ctx, postID)
	if err != nil {
		// The reaction and count are stored; report the expected state.
		updated = post
		if reactionType == models.ReactionRelate {
			updated.RelateCount++
		} else {
			updated.HugCount++
		}
	}
	return &ReactionResult{Reaction: reaction, Post: updated, Created: true}, nil
}

// State reports which reactions the current user has on postID. Anonymous
// callers get the zero value.
func (s *ReactionService) State(ctx context.Context, postID string) (ReactionState, error) {
	var state ReactionState

	user, err := s.gate.CurrentUser(ctx)
	if err != nil || user == nil {
		return state, err
	}

	mine, err := s.reactions.Filter(ctx, repository.Criteria{
		"user_id": user.ID,
		"post_id": postID,
	}, "", 0)
	if err != nil {
		return state, err
	}
	for _, r := range mine {
		switch r.ReactionType {
		case models.ReactionHug:
			state.Hugged = true
		case models.ReactionRelate:
			state.Related = true
		}
	}
	return state, nil
}
