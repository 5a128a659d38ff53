package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishReport(context.Background(), Report{Target: TargetComment, TargetID: "c1"}))
	assert.NoError(t, n.StartReportSubscriber(context.Background(), func(Report) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.PublishReport(context.Background(), Report{}))
}

func TestNotifier_PublishAndSubscribe(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []Report
	)
	require.NoError(t, n.StartReportSubscriber(ctx, func(r Report) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, r)
	}))

	require.NoError(t, n.PublishReport(context.Background(), Report{
		Target:     TargetComment,
		TargetID:   "comment-1",
		ReporterID: "user-1",
	}))
	// malformed payloads are skipped
	require.NoError(t, rdb.Publish(context.Background(), ModerationChannel, "not json").Err())
	require.NoError(t, n.PublishReport(context.Background(), Report{Target: TargetConfession, TargetID: "post-1"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "comment-1", received[0].TargetID)
	assert.Equal(t, "user-1", received[0].ReporterID)
	assert.False(t, received[0].ReportedAt.IsZero())
	assert.Equal(t, TargetConfession, received[1].Target)
}

func TestNotifier_SubscriberRecoversFromPanic(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		calls int
	)
	require.NoError(t, n.StartReportSubscriber(ctx, func(Report) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			panic("handler bug")
		}
	}))

	require.NoError(t, n.PublishReport(context.Background(), Report{TargetID: "a"}))
	require.NoError(t, n.PublishReport(context.Background(), Report{TargetID: "b"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	}, time.Second, 10*time.Millisecond)
}
