package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"confessions/internal/cache"
	"confessions/internal/feed"
	"confessions/internal/middleware"
	"confessions/internal/models"
	"confessions/internal/notifications"
	"confessions/internal/observability"
	"confessions/internal/repository"
	"confessions/internal/session"

	"go.opentelemetry.io/otel/attribute"
)

// Post field limits, in characters.
const (
	MaxTitleLength   = 100
	MaxContentLength = 2000
)

// PostService creates, loads and reports confessions.
type PostService struct {
	gate      session.Gate
	posts     repository.Store[models.Confession]
	cache     *cache.Client
	publisher ReportPublisher
	limit     int
	ttl       time.Duration
}

// CreatePostInput is the body of a new confession.
type CreatePostInput struct {
	Title    string          `json:"title"`
	Content  string          `json:"content"`
	Category models.Category `json:"category"`
	ImageURL string          `json:"image_url"`
}

// FeedPage is a composed feed plus the header totals of the loaded set.
type FeedPage struct {
	Posts   []*models.Confession `json:"posts"`
	Summary feed.Summary         `json:"summary"`
	Query   feed.Query           `json:"query"`
}

// NewPostService returns a new PostService. feedCache and publisher may be
// nil; limit is how many recent posts the feed loads, ttl how long that
// load is cached.
func NewPostService(
	gate session.Gate,
	posts repository.Store[models.Confession],
	feedCache *cache.Client,
	publisher ReportPublisher,
	limit int,
	ttl time.Duration,
) *PostService {
	if limit <= 0 {
		limit = 50
	}
	return &PostService{
		gate:      gate,
		posts:     posts,
		cache:     feedCache,
		publisher: publisher,
		limit:     limit,
		ttl:       ttl,
	}
}

// Create publishes a confession by the current user.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (p *models.Confession, err error) {
	span, ctx := observability.NewSpan(ctx, "post.create", attribute.String("post.category", string(in.Category)))
	defer func() { finish(span, "post", err, observability.OutcomeApplied) }()

	user, err := requireUser(ctx, s.gate)
	if err != nil {
		return nil, err
	}

	post, err := in.validate()
	if err != nil {
		return nil, err
	}
	post.AuthorID = user.ID

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	s.InvalidateFeed(ctx)
	return post, nil
}

func (in CreatePostInput) validate() (*models.Confession, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)

	switch {
	case title == "":
		return nil, models.NewValidationError("Title is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return nil, models.NewValidationError("Title must be 100 characters or fewer")
	case content == "":
		return nil, models.NewValidationError("Content is required")
	case utf8.RuneCountInString(content) > MaxContentLength:
		return nil, models.NewValidationError("Content must be 2000 characters or fewer")
	case !in.Category.Valid():
		return nil, models.NewValidationError("Pick a category")
	}

	imageURL := strings.TrimSpace(in.ImageURL)
	if imageURL != "" {
		u, err := url.Parse(imageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, models.NewValidationError("Image URL must be an http or https link")
		}
	}

	return &models.Confession{
		Title:    title,
		Content:  content,
		Category: in.Category,
		ImageURL: imageURL,
	}, nil
}

// Get returns one confession.
func (s *PostService) Get(ctx context.Context, id string) (*models.Confession, error) {
	return s.posts.Get(ctx, id)
}

// Feed loads the most recent posts and composes them for q. The summary
// covers the loaded set, not the filtered one.
func (s *PostService) Feed(ctx context.Context, q feed.Query) (*FeedPage, error) {
	span, ctx := observability.NewSpan(ctx, "post.feed",
		attribute.String("feed.sort", string(q.SortBy)),
		attribute.String("feed.category", string(q.Category)),
	)
	defer span.End()

	var loaded []*models.Confession
	err := s.cache.Aside(ctx, cache.FeedKey(s.limit), &loaded, s.ttl, func() error {
		posts, err := s.posts.List(ctx, "-"+models.FieldCreatedDate, s.limit)
		if err != nil {
			return err
		}
		loaded = posts
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &FeedPage{
		Posts:   feed.Compose(loaded, q),
		Summary: feed.Summarize(loaded),
		Query:   q,
	}, nil
}

// ByAuthor returns authorID's most recent posts.
func (s *PostService) ByAuthor(ctx context.Context, authorID string, limit int) ([]*models.Confession, error) {
	return s.posts.Filter(ctx, repository.Criteria{"author_id": authorID}, "-"+models.FieldCreatedDate, limit)
}

// Report flags the post and notifies moderation.
func (s *PostService) Report(ctx context.Context, id string) (p *models.Confession, err error) {
	span, ctx := observability.NewSpan(ctx, "post.report", attribute.String("post.id", id))
	defer func() { finish(span, "post_report", err, observability.OutcomeApplied) }()

	user, err := requireUser(ctx, s.gate)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if inc, ok := s.posts.(repository.Incrementer); ok {
		if err := s.posts.Update(ctx, id, repository.Fields{models.FieldIsReported: true}); err != nil {
			return nil, err
		}
		if err := inc.Increment(ctx, id, models.FieldReportCount, 1); err != nil {
			logPartial(ctx, "post_report", id, err)
			return nil, err
		}
	} else {
		if err := s.posts.Update(ctx, id, repository.Fields{
			models.FieldIsReported:  true,
			models.FieldReportCount: post.ReportCount + 1,
		}); err != nil {
			return nil, err
		}
	}
	s.InvalidateFeed(ctx)

	if s.publisher != nil {
		if err := s.publisher.PublishReport(ctx, notifications.Report{
			Target:     notifications.TargetConfession,
			TargetID:   id,
			ReporterID: user.ID,
			ReportedAt: time.Now().UTC(),
		}); err != nil {
			middleware.Logger.WarnContext(ctx, "moderation notice not delivered",
				slog.String("post_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	updated, err := s.posts.Get(ctx, id)
	if err != nil {
		post.IsReported = true
		post.ReportCount++
		return post, nil
	}
	return updated, nil
}

// InvalidateFeed drops the cached feed load.
func (s *PostService) InvalidateFeed(ctx context.Context) {
	s.cache.Invalidate(ctx, cache.FeedKey(s.limit))
}
