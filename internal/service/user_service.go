package service

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"confessions/internal/models"
	"confessions/internal/observability"
	"confessions/internal/repository"
	"confessions/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ProfilePostLimit is how many recent posts a profile shows.
const ProfilePostLimit = 10

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]{1,20}$`)

// UserService handles profile setup and profile pages.
type UserService struct {
	gate    session.Gate
	users   repository.Store[models.User]
	posts   *PostService
	follows *FollowService
}

// ProfileInput is the profile setup form.
type ProfileInput struct {
	Username    string             `json:"username"`
	DisplayName string             `json:"display_name"`
	Bio         string             `json:"bio"`
	AvatarColor models.AvatarColor `json:"avatar_color"`
}

// Profile is a user page: the user, their recent posts and whether the
// viewer follows them.
type Profile struct {
	User        *models.User         `json:"user"`
	Posts       []*models.Confession `json:"posts"`
	IsFollowing bool                 `json:"is_following"`
	IsSelf      bool                 `json:"is_self"`
}

// NewUserService returns a new UserService.
func NewUserService(gate session.Gate, users repository.Store[models.User], posts *PostService, follows *FollowService) *UserService {
	return &UserService{
		gate:    gate,
		users:   users,
		posts:   posts,
		follows: follows,
	}
}

// SetupProfile fills in the current user's profile. The username can be
// chosen once; later calls may repeat it but not change it. Follower
// counters are left alone.
func (s *UserService) SetupProfile(ctx context.Context, in ProfileInput) (u *models.User, err error) {
	span, ctx := observability.NewSpan(ctx, "user.setup_profile")
	defer func() { finish(span, "profile", err, observability.OutcomeApplied) }()

	me, err := requireUser(ctx, s.gate)
	if err != nil {
		return nil, err
	}

	fields, err := in.validate()
	if err != nil {
		return nil, err
	}
	username := fields["username"].(string)
	span.AddAttributes(attribute.String("user.username", username))

	if me.Username != "" && me.Username != username {
		return nil, models.NewValidationError("Username cannot be changed")
	}
	if me.Username == "" {
		taken, err := s.users.Filter(ctx, repository.Criteria{"username": username}, "", 1)
		if err != nil {
			return nil, err
		}
		if len(taken) > 0 && taken[0].ID != me.ID {
			return nil, models.NewConflictError("Username might be taken")
		}
	}

	if err := s.users.Update(ctx, me.ID, fields); err != nil {
		if models.HasCode(err, models.CodeConflict) {
			return nil, models.NewConflictError("Username might be taken")
		}
		return nil, err
	}
	return s.users.Get(ctx, me.ID)
}

func (in ProfileInput) validate() (repository.Fields, error) {
	username := strings.TrimSpace(in.Username)
	displayName := strings.TrimSpace(in.DisplayName)
	bio := strings.TrimSpace(in.Bio)

	if !usernamePattern.MatchString(username) {
		return nil, models.NewValidationError("Username must be 1-20 letters, numbers, underscores or dots")
	}
	if displayName == "" || utf8.RuneCountInString(displayName) > 30 {
		return nil, models.NewValidationError("Display name must be 1-30 characters")
	}
	if utf8.RuneCountInString(bio) > 150 {
		return nil, models.NewValidationError("Bio must be 150 characters or fewer")
	}

	color := in.AvatarColor
	if color == "" {
		color = models.AvatarPurple
	}
	if !color.Valid() {
		return nil, models.NewValidationError("Unknown avatar color")
	}

	return repository.Fields{
		"username":     username,
		"display_name": displayName,
		"bio":          bio,
		"avatar_color": color,
	}, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.users.Get(ctx, id)
}

// Profile loads id's page for the current viewer, who may be anonymous.
func (s *UserService) Profile(ctx context.Context, id string) (*Profile, error) {
	viewer, err := s.gate.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	p := &Profile{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.users.Get(gctx, id)
		p.User = u
		return err
	})
	g.Go(func() error {
		posts, err := s.posts.ByAuthor(gctx, id, ProfilePostLimit)
		p.Posts = posts
		return err
	})
	if viewer != nil {
		g.Go(func() error {
			following, err := s.follows.IsFollowing(gctx, viewer.ID, id)
			p.IsFollowing = following
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.Posts == nil {
		p.Posts = []*models.Confession{}
	}
	p.IsSelf = viewer != nil && viewer.ID == id
	return p, nil
}
