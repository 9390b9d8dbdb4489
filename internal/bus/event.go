package bus

import "time"

// Event kinds published inside the daemon. Subscribers match on prefix, so
// "message." receives every outbox outcome.
const (
	KindStatusChanged = "session.status_changed"
	KindUserChanged   = "session.user_changed"

	KindFeedMessage   = "feed.message"
	KindFeedJoined    = "feed.joined"
	KindFeedLeft      = "feed.left"
	KindFeedReconnect = "feed.reconnecting"

	KindMessageQueued = "message.queued"
	KindMessageAck    = "message.send_ack"
	KindMessageFailed = "message.send_failed"

	KindTimelineChanged     = "inbox.timeline_changed"
	KindConversationOpened  = "inbox.conversation_opened"
	KindConversationDeleted = "inbox.conversation_deleted"

	KindIndexProgress = "index.progress"
	KindJobsFetched   = "jobs.fetched"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
