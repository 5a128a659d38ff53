// Package retention deletes confessions past their lifetime along with the
// comments and reactions that hang off them.
package retention

import (
	"context"
	"log/slog"
	"time"

	"confessions/internal/middleware"
	"confessions/internal/observability"
	"confessions/internal/repository"

	"github.com/google/uuid"
)

// Result counts what one sweep removed.
type Result struct {
	Cutoff      time.Time `json:"cutoff"`
	Confessions int64     `json:"confessions"`
	Comments    int64     `json:"comments"`
	Reactions   int64     `json:"reactions"`
}

// FeedInvalidator drops the cached feed so removed posts stop being served.
type FeedInvalidator interface {
	InvalidateFeed(ctx context.Context)
}

// Sweeper removes expired confessions. Every step works on the id set taken
// at the start of the pass. Children go first so a failed sweep never leaves
// comments pointing at a deleted post; the next run picks up whatever was
// left. A comment or reaction written on an expiring post between its
// children being deleted and the post itself can still be orphaned.
type Sweeper struct {
	confessions repository.Pruner
	comments    repository.Pruner
	reactions   repository.Pruner
	feed        FeedInvalidator
	maxAge      time.Duration
	now         func() time.Time
}

// NewSweeper returns a Sweeper that removes confessions older than maxAge.
// feed may be nil.
func NewSweeper(confessions, comments, reactions repository.Pruner, feed FeedInvalidator, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		confessions: confessions,
		comments:    comments,
		reactions:   reactions,
		feed:        feed,
		maxAge:      maxAge,
		now:         time.Now,
	}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	res := Result{Cutoff: s.now().Add(-s.maxAge)}

	ids, err := s.confessions.IDsBefore(ctx, res.Cutoff)
	if err != nil {
		return res, err
	}
	if len(ids) == 0 {
		return res, nil
	}

	if res.Comments, err = s.comments.DeleteWhereIn(ctx, "confession_id", ids); err != nil {
		return res, err
	}
	observability.RetentionDeleted.WithLabelValues("comments").Add(float64(res.Comments))

	if res.Reactions, err = s.reactions.DeleteWhereIn(ctx, "post_id", ids); err != nil {
		return res, err
	}
	observability.RetentionDeleted.WithLabelValues("reactions").Add(float64(res.Reactions))

	if res.Confessions, err = s.confessions.DeleteWhereIn(ctx, "id", ids); err != nil {
		return res, err
	}
	observability.RetentionDeleted.WithLabelValues("confessions").Add(float64(res.Confessions))

	if res.Confessions > 0 && s.feed != nil {
		s.feed.InvalidateFeed(ctx)
	}

	return res, nil
}

// Run implements cron.Job.
func (s *Sweeper) Run() {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "job-retention-"+uuid.NewString())

	res, err := s.Sweep(ctx)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "retention sweep failed", slog.String("error", err.Error()))
		return
	}
	middleware.Logger.InfoContext(ctx, "retention sweep finished",
		slog.Time("cutoff", res.Cutoff),
		slog.Int64("confessions", res.Confessions),
		slog.Int64("comments", res.Comments),
		slog.Int64("reactions", res.Reactions),
	)
}
