package cache

import "fmt"

// FeedKeyPrefix is formatted with the feed limit.
const FeedKeyPrefix = "feed:recent:%d"

// FeedKey is the key for the most recent limit confessions.
func FeedKey(limit int) string {
	return fmt.Sprintf(FeedKeyPrefix, limit)
}
