package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"confessions/internal/middleware"
	"confessions/internal/models"
	"confessions/internal/notifications"
	"confessions/internal/observability"
	"confessions/internal/repository"
	"confessions/internal/session"

	"go.opentelemetry.io/otel/attribute"
)

// MaxCommentLength is the longest comment accepted, in characters.
const MaxCommentLength = 500

// CommentService posts, hugs and reports comments.
//
// Unlike post reactions, comment hugs are not de-duplicated: every call adds
// one. Reporting a comment only notifies moderation and stores nothing.
type CommentService struct {
	gate      session.Gate
	comments  repository.Store[models.Comment]
	posts     repository.Store[models.Confession]
	publisher ReportPublisher
}

// NewCommentService returns a new CommentService. publisher may be nil.
func NewCommentService(
	gate session.Gate,
	comments repository.Store[models.Comment],
	posts repository.Store[models.Confession],
	publisher ReportPublisher,
) *CommentService {
	return &CommentService{
		gate:      gate,
		comments:  comments,
		posts:     posts,
		publisher: publisher,
	}
}

// Post adds a supportive comment to postID.
func (s *CommentService) Post(ctx context.Context, postID, text string) (c *models.Comment, err error) {
	span, ctx := observability.NewSpan(ctx, "comment.post", attribute.String("post.id", postID))
	defer func() { finish(span, "comment", err, observability.OutcomeApplied) }()

	user, err := requireUser(ctx, s.gate)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(text)
	if content == "" {
		return nil, models.NewValidationError("Comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, models.NewValidationError("Comment must be 500 characters or fewer")
	}

	if _, err := s.posts.Get(ctx, postID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ConfessionID: postID,
		Content:      content,
		AuthorID:     user.ID,
		IsSupportive: true,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Hug adds one hug to the comment.
func (s *CommentService) Hug(ctx context.Context, commentID string) (c *models.Comment, err error) {
	span, ctx := observability.NewSpan(ctx, "comment.hug", attribute.String("comment.id", commentID))
	defer func() { finish(span, "comment_hug", err, observability.OutcomeApplied) }()

	if _, err := requireUser(ctx, s.gate); err != nil {
		return nil, err
	}

	comment, err := s.comments.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := adjustCounter(ctx, s.comments, commentID, models.FieldHugCount, 1, func(c *models.Comment) int64 {
		return c.HugCount
	}); err != nil {
		return nil, err
	}

	updated, err := s.comments.Get(ctx, commentID)
	if err != nil {
		comment.HugCount++
		return comment, nil
	}
	return updated, nil
}

// Report notifies moderation about the comment.
func (s *CommentService) Report(ctx context.Context, commentID string) (err error) {
	span, ctx := observability.NewSpan(ctx, "comment.report", attribute.String("comment.id", commentID))
	defer func() { finish(span, "comment_report", err, observability.OutcomeApplied) }()

	user, err := requireUser(ctx, s.gate)
	if err != nil {
		return err
	}
	if _, err := s.comments.Get(ctx, commentID); err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "comment reported", slog.String("comment_id", commentID))
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishReport(ctx, notifications.Report{
		Target:     notifications.TargetComment,
		TargetID:   commentID,
		ReporterID: user.ID,
		ReportedAt: time.Now().UTC(),
	}); err != nil {
		return models.NewStoreError("publish report", err)
	}
	return nil
}

// List returns the comments on postID, newest first.
func (s *CommentService) List(ctx context.Context, postID string) ([]*models.Comment, error) {
	return s.comments.Filter(ctx, repository.Criteria{"confession_id": postID}, "-"+models.FieldCreatedDate, 0)
}
