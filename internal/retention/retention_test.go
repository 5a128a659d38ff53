package retention

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"confessions/internal/database"
	"confessions/internal/models"
	"confessions/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"
)

var now = time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type feedStub struct{ invalidations int }

func (f *feedStub) InvalidateFeed(context.Context) { f.invalidations++ }

func newSweeper(db *gorm.DB, feed FeedInvalidator) *Sweeper {
	s := NewSweeper(
		repository.NewPruner[models.Confession](db),
		repository.NewPruner[models.Comment](db),
		repository.NewPruner[models.Reaction](db),
		feed,
		30*24*time.Hour,
	)
	s.now = func() time.Time { return now }
	return s
}

func TestSweeper_RemovesExpiredPostsAndChildren(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	posts := repository.NewStore[models.Confession](db)
	comments := repository.NewStore[models.Comment](db)
	reactions := repository.NewStore[models.Reaction](db)

	old := &models.Confession{AuthorID: "a", Title: "old", Content: "x", Category: models.CategoryRant, CreatedDate: now.Add(-31 * 24 * time.Hour)}
	fresh := &models.Confession{AuthorID: "a", Title: "fresh", Content: "x", Category: models.CategoryRant, CreatedDate: now.Add(-29 * 24 * time.Hour)}
	require.NoError(t, posts.Create(ctx, old))
	require.NoError(t, posts.Create(ctx, fresh))

	for _, p := range []*models.Confession{old, fresh} {
		require.NoError(t, comments.Create(ctx, &models.Comment{ConfessionID: p.ID, Content: "hi", AuthorID: "b", CreatedDate: now}))
		require.NoError(t, reactions.Create(ctx, &models.Reaction{UserID: "b", PostID: p.ID, ReactionType: models.ReactionHug, CreatedDate: now}))
	}

	feed := &feedStub{}
	res, err := newSweeper(db, feed).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.invalidations)
	assert.Equal(t, Result{Cutoff: now.Add(-30 * 24 * time.Hour), Confessions: 1, Comments: 1, Reactions: 1}, res)

	left, err := posts.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, fresh.ID, left[0].ID)

	leftComments, err := comments.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, leftComments, 1)
	assert.Equal(t, fresh.ID, leftComments[0].ConfessionID)

	// Nothing left to do, so the cached feed stays.
	res, err = newSweeper(db, feed).Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Confessions)
	assert.Equal(t, 1, feed.invalidations)
}

type prunerStub struct {
	ids    []string
	idsErr error
	inErr  error
	column string
	values []string
	calls  int
}

func (p *prunerStub) IDsBefore(context.Context, time.Time) ([]string, error) {
	return p.ids, p.idsErr
}

func (p *prunerStub) DeleteWhereIn(_ context.Context, column string, values []string) (int64, error) {
	p.calls++
	p.column = column
	p.values = values
	if p.inErr != nil {
		return 0, p.inErr
	}
	return int64(len(values)), nil
}

func TestSweeper_DeletesTheSnapshot(t *testing.T) {
	posts := &prunerStub{ids: []string{"p1", "p2"}}
	comments := &prunerStub{}
	reactions := &prunerStub{}
	feed := &feedStub{}

	res, err := NewSweeper(posts, comments, reactions, feed, time.Hour).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Confessions)

	assert.Equal(t, "confession_id", comments.column)
	assert.Equal(t, "post_id", reactions.column)
	assert.Equal(t, "id", posts.column)
	for _, p := range []*prunerStub{posts, comments, reactions} {
		assert.Equal(t, []string{"p1", "p2"}, p.values)
	}
	assert.Equal(t, 1, feed.invalidations)
}

func TestSweeper_StopsOnChildFailure(t *testing.T) {
	posts := &prunerStub{ids: []string{"p1"}}
	comments := &prunerStub{inErr: errors.New("locked")}
	reactions := &prunerStub{}
	feed := &feedStub{}

	_, err := NewSweeper(posts, comments, reactions, feed, time.Hour).Sweep(context.Background())
	assert.Error(t, err)
	assert.Zero(t, posts.calls)
	assert.Zero(t, reactions.calls)
	assert.Zero(t, feed.invalidations)
}

func TestSweeper_ListFailure(t *testing.T) {
	posts := &prunerStub{idsErr: errors.New("down")}
	_, err := NewSweeper(posts, &prunerStub{}, &prunerStub{}, nil, time.Hour).Sweep(context.Background())
	assert.Error(t, err)
}

type countingJob struct{ runs atomic.Int32 }

func (j *countingJob) Run() { j.runs.Add(1) }

func TestScheduler_RunsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	job := &countingJob{}
	s := NewScheduler(job, "@every 1s")
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(&countingJob{}, "every tuesday")
	assert.Error(t, s.Start())
}
