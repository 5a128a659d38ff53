package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"confessions/internal/models"
	"confessions/internal/service"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Fixtures is a hand-written demo campus. Users are referenced by username.
type Fixtures struct {
	Users       []FixtureUser       `yaml:"users"`
	Confessions []FixtureConfession `yaml:"confessions"`
	Follows     []FixtureFollow     `yaml:"follows"`
}

type FixtureUser struct {
	Username    string `yaml:"username"`
	DisplayName string `yaml:"display_name"`
	Bio         string `yaml:"bio"`
	AvatarColor string `yaml:"avatar_color"`
}

type FixtureConfession struct {
	Author   string           `yaml:"author"`
	Title    string           `yaml:"title"`
	Content  string           `yaml:"content"`
	Category string           `yaml:"category"`
	Hugs     []string         `yaml:"hugs"`
	Relates  []string         `yaml:"relates"`
	Comments []FixtureComment `yaml:"comments"`
}

type FixtureComment struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

type FixtureFollow struct {
	Follower  string `yaml:"follower"`
	Following string `yaml:"following"`
}

// LoadFixtures decodes fixtures from r. Unknown keys are rejected.
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixtures
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &f, nil
}

// LoadFixturesFile reads fixtures from path.
func LoadFixturesFile(path string) (*Fixtures, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return LoadFixtures(file)
}

// Apply writes f through the engines.
func (s *Seeder) Apply(ctx context.Context, f *Fixtures) (Summary, error) {
	var sum Summary
	ids := make(map[string]string, len(f.Users))

	lookup := func(username string) (string, error) {
		id, ok := ids[username]
		if !ok {
			return "", fmt.Errorf("fixture references unknown user %q", username)
		}
		return id, nil
	}
	act := func(username string) (context.Context, error) {
		id, err := lookup(username)
		if err != nil {
			return nil, err
		}
		return as(id), nil
	}

	for _, u := range f.Users {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		id := uuid.NewString()
		if _, err := s.userSvc.SetupProfile(as(id), service.ProfileInput{
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Bio:         u.Bio,
			AvatarColor: models.AvatarColor(u.AvatarColor),
		}); err != nil {
			return sum, fmt.Errorf("user %q: %w", u.Username, err)
		}
		ids[u.Username] = id
		sum.Users++
	}

	for _, fl := range f.Follows {
		actx, err := act(fl.Follower)
		if err != nil {
			return sum, err
		}
		target, err := lookup(fl.Following)
		if err != nil {
			return sum, err
		}
		res, err := s.followSvc.Follow(actx, target)
		if err != nil {
			return sum, fmt.Errorf("follow %s -> %s: %w", fl.Follower, fl.Following, err)
		}
		if res.Changed {
			sum.Follows++
		}
	}

	for _, c := range f.Confessions {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		actx, err := act(c.Author)
		if err != nil {
			return sum, err
		}
		post, err := s.postSvc.Create(actx, service.CreatePostInput{
			Title:    c.Title,
			Content:  c.Content,
			Category: models.Category(c.Category),
		})
		if err != nil {
			return sum, fmt.Errorf("confession %q: %w", c.Title, err)
		}
		sum.Posts++

		react := func(users []string, rt models.ReactionType) error {
			for _, name := range users {
				rctx, err := act(name)
				if err != nil {
					return err
				}
				res, err := s.reactSvc.React(rctx, post.ID, rt)
				if err != nil {
					return fmt.Errorf("%s on %q: %w", rt, c.Title, err)
				}
				if res.Created {
					sum.Reactions++
				}
			}
			return nil
		}
		if err := react(c.Hugs, models.ReactionHug); err != nil {
			return sum, err
		}
		if err := react(c.Relates, models.ReactionRelate); err != nil {
			return sum, err
		}

		for _, cm := range c.Comments {
			cctx, err := act(cm.Author)
			if err != nil {
				return sum, err
			}
			if _, err := s.commSvc.Post(cctx, post.ID, cm.Content); err != nil {
				return sum, fmt.Errorf("comment on %q: %w", c.Title, err)
			}
			sum.Comments++
		}
	}

	return sum, nil
}
