// Package seed fills a database with demo users, confessions and
// interactions. Everything goes through the interaction engines, so counters
// match the records they summarize. Intended for development only.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"confessions/internal/middleware"
	"confessions/internal/models"
	"confessions/internal/repository"
	"confessions/internal/service"
	"confessions/internal/session"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Options controls the size of a random seed.
type Options struct {
	Users           int
	Posts           int
	CommentsPerPost int
	FollowsPerUser  int
	// MaxDays spreads post dates over the last MaxDays days.
	MaxDays int
	// Seed makes the run reproducible when non-zero.
	Seed int64
}

// Summary counts what a seed run created.
type Summary struct {
	Users     int `json:"users"`
	Posts     int `json:"posts"`
	Reactions int `json:"reactions"`
	Comments  int `json:"comments"`
	Follows   int `json:"follows"`
}

// Seeder writes demo data through the engines.
type Seeder struct {
	db        *gorm.DB
	posts     repository.Store[models.Confession]
	userSvc   *service.UserService
	postSvc   *service.PostService
	reactSvc  *service.ReactionService
	followSvc *service.FollowService
	commSvc   *service.CommentService
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB) *Seeder {
	users := repository.NewCountingStore[models.User](db)
	posts := repository.NewCountingStore[models.Confession](db)
	comments := repository.NewCountingStore[models.Comment](db)
	gate := session.NewTokenGate(users, "")

	postSvc := service.NewPostService(gate, posts, nil, nil, 50, 0)
	followSvc := service.NewFollowService(gate, repository.NewStore[models.Follow](db), users)
	return &Seeder{
		db:        db,
		posts:     posts,
		userSvc:   service.NewUserService(gate, users, postSvc, followSvc),
		postSvc:   postSvc,
		reactSvc:  service.NewReactionService(gate, repository.NewStore[models.Reaction](db), posts, nil),
		followSvc: followSvc,
		commSvc:   service.NewCommentService(gate, comments, posts, nil),
	}
}

func as(userID string) context.Context {
	return middleware.WithUserID(context.Background(), userID)
}

// ClearAll deletes every row the application owns.
func (s *Seeder) ClearAll() error {
	for _, m := range []any{&models.Reaction{}, &models.Comment{}, &models.Follow{}, &models.Confession{}, &models.User{}} {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	return nil
}

// Random seeds a random campus.
func (s *Seeder) Random(opts Options) (Summary, error) {
	var sum Summary
	if opts.Users <= 0 {
		return sum, fmt.Errorf("seed needs at least one user")
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 25
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	faker := gofakeit.New(seed)
	r := rand.New(rand.NewSource(seed))

	userIDs := make([]string, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		id := uuid.NewString()
		_, err := s.userSvc.SetupProfile(as(id), service.ProfileInput{
			Username:    username(faker.FirstName(), i),
			DisplayName: clip(faker.Name(), 30),
			Bio:         clip(faker.HipsterSentence(8), 150),
			AvatarColor: models.AvatarColors[r.Intn(len(models.AvatarColors))],
		})
		if err != nil {
			return sum, fmt.Errorf("seed user %d: %w", i, err)
		}
		userIDs = append(userIDs, id)
		sum.Users++
	}

	for _, follower := range userIDs {
		for j := 0; j < opts.FollowsPerUser; j++ {
			target := userIDs[r.Intn(len(userIDs))]
			res, err := s.followSvc.Follow(as(follower), target)
			if err != nil {
				return sum, fmt.Errorf("seed follow: %w", err)
			}
			if res.Changed {
				sum.Follows++
			}
		}
	}

	for i := 0; i < opts.Posts; i++ {
		author := userIDs[r.Intn(len(userIDs))]
		post, err := s.postSvc.Create(as(author), service.CreatePostInput{
			Title:    clip(strings.TrimSuffix(faker.Sentence(5), "."), service.MaxTitleLength),
			Content:  clip(faker.Paragraph(1, 3, 12, " "), service.MaxContentLength),
			Category: models.Categories[r.Intn(len(models.Categories))],
		})
		if err != nil {
			return sum, fmt.Errorf("seed post %d: %w", i, err)
		}
		sum.Posts++

		age := time.Duration(r.Intn(opts.MaxDays*24*60)) * time.Minute
		if err := s.posts.Update(context.Background(), post.ID, repository.Fields{
			models.FieldCreatedDate: time.Now().Add(-age),
		}); err != nil {
			return sum, err
		}

		for _, uid := range userIDs {
			for _, rt := range []models.ReactionType{models.ReactionHug, models.ReactionRelate} {
				if r.Intn(4) != 0 {
					continue
				}
				if _, err := s.reactSvc.React(as(uid), post.ID, rt); err != nil {
					return sum, fmt.Errorf("seed reaction: %w", err)
				}
				sum.Reactions++
			}
		}

		for j := 0; j < opts.CommentsPerPost; j++ {
			commenter := userIDs[r.Intn(len(userIDs))]
			if _, err := s.commSvc.Post(as(commenter), post.ID, clip(faker.Sentence(10), service.MaxCommentLength)); err != nil {
				return sum, fmt.Errorf("seed comment: %w", err)
			}
			sum.Comments++
		}
	}

	middleware.Logger.Info("seed complete",
		slog.Int("users", sum.Users),
		slog.Int("posts", sum.Posts),
		slog.Int("reactions", sum.Reactions),
		slog.Int("comments", sum.Comments),
		slog.Int("follows", sum.Follows),
	)
	return sum, nil
}

// username builds a valid, unique handle from a first name.
func username(first string, i int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(first) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	suffix := fmt.Sprintf("_%d", i)
	base := b.String()
	if base == "" {
		base = "user"
	}
	if len(base)+len(suffix) > 20 {
		base = base[:20-len(suffix)]
	}
	return base + suffix
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
