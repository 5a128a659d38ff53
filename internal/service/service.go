// Package service holds the interaction engines: reactions, follows,
// comments, posts and profiles. Every mutating operation is gated on the
// current user and decomposes into independent single-record store calls;
// nothing here takes locks or opens transactions.
package service

import (
	"context"
	"log/slog"

	"confessions/internal/middleware"
	"confessions/internal/models"
	"confessions/internal/notifications"
	"confessions/internal/observability"
	"confessions/internal/repository"
	"confessions/internal/session"
)

// ReportPublisher forwards report intent to moderation.
type ReportPublisher interface {
	PublishReport(ctx context.Context, r notifications.Report) error
}

// FeedInvalidator drops cached feed data after a post changes.
type FeedInvalidator interface {
	InvalidateFeed(ctx context.Context)
}

// requireUser returns the signed-in user. For anonymous callers it starts
// sign-in through the gate and returns UNAUTHENTICATED.
func requireUser(ctx context.Context, gate session.Gate) (*models.User, error) {
	u, err := gate.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	if err := gate.RequireLogin(ctx); err != nil {
		return nil, err
	}
	return nil, models.NewUnauthenticatedError("Sign in required")
}

// adjustCounter adds delta to an integer column, floored at 0. Stores that
// implement repository.Incrementer do it in one statement. Otherwise the
// current value is read and current+delta written back, which can lose an
// update when two writers interleave.
func adjustCounter[T any](
	ctx context.Context,
	store repository.Store[T],
	id, field string,
	delta int64,
	current func(*T) int64,
) error {
	if inc, ok := store.(repository.Incrementer); ok {
		return inc.Increment(ctx, id, field, delta)
	}

	entity, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	next := current(entity) + delta
	if next < 0 {
		next = 0
	}
	return store.Update(ctx, id, repository.Fields{field: next})
}

// finish records the outcome of an engine operation on the span and metrics.
func finish(span *observability.Span, kind string, err error, outcome string) {
	if err != nil {
		span.SetError(err)
		if models.HasCode(err, models.CodeValidation) || models.HasCode(err, models.CodeUnauthenticated) ||
			models.HasCode(err, models.CodeNotFound) || models.HasCode(err, models.CodeConflict) {
			outcome = observability.OutcomeRejected
		} else {
			outcome = observability.OutcomeFailed
		}
	}
	observability.RecordInteraction(kind, outcome)
	span.SetOutcome(outcome)
	span.End()
}

func logPartial(ctx context.Context, kind, id string, err error) {
	observability.PartialFailures.WithLabelValues(kind).Inc()
	middleware.Logger.WarnContext(ctx, "counter update failed after record write",
		slog.String("kind", kind),
		slog.String("id", id),
		slog.Bool("partial", true),
		slog.String("error", err.Error()),
	)
}
