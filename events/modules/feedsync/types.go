// Package feedsync defines the Kafka event contract emitted after a feed
// sync pass and the consumer side that recorrelates affected projects.
package feedsync

import (
	"time"

	"github.com/riskhub/riskhub-backend/feeds"
)

// EventTypeSyncCompleted is the event_type of a successful feed sync pass.
const EventTypeSyncCompleted = "feed.sync.completed"

// SyncCompletedEvent is published after a feed adapter finishes an upsert
// pass against the global vulnerability corpus.
type SyncCompletedEvent struct {
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	SchemaVersion string    `json:"schema_version"`

	Source string      `json:"source"`
	RunID  string      `json:"run_id"`
	Stats  feeds.Stats `json:"stats"`
}
