package cache

import (
	"fmt"
	"time"
)

const (
	FeedVersionKey    = "feed:version"
	FeedPageKeyFormat = "feed:v%d:p%d:s%d"
)

const (
	DefaultFeedTTL = 30 * time.Second
)

// FeedPageKey addresses one cached page for the given feed version.
func FeedPageKey(version int64, page, pageSize int) string {
	return fmt.Sprintf(FeedPageKeyFormat, version, page, pageSize)
}
