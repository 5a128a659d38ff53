// Package notifications delivers moderation notices over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/redis/go-redis/v9"
)

// ModerationChannel carries report notices for the external moderation team.
const ModerationChannel = "moderation:reports"

// Report target kinds.
const (
	TargetConfession = "confession"
	TargetComment    = "comment"
)

// Report is the notice published when a user flags content. Publishing it
// is the whole of the report workflow on this side.
type Report struct {
	Target     string    `json:"target"`
	TargetID   string    `json:"target_id"`
	ReporterID string    `json:"reporter_id"`
	ReportedAt time.Time `json:"reported_at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishReport sends r to ModerationChannel. Without Redis it is a no-op.
func (n *Notifier) PublishReport(ctx context.Context, r Report) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return n.rdb.Publish(ctx, ModerationChannel, string(payload)).Err()
}

// StartReportSubscriber subscribes to ModerationChannel and calls onReport
// for every decodable notice until ctx is cancelled.
func (n *Notifier) StartReportSubscriber(ctx context.Context, onReport func(Report)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, ModerationChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", ModerationChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var r Report
				if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil {
					log.Printf("moderation subscriber: dropping malformed payload: %v", err)
					continue
				}
				func() {
					defer func() {
						if rec := recover(); rec != nil {
							log.Printf("PANIC in ReportSubscriber: %v\n%s", rec, debug.Stack())
						}
					}()
					onReport(r)
				}()
			}
		}
	}()

	return nil
}
