package inbox

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrAlreadyInterested    = errors.New("already marked interest for this hackathon")
	ErrOwnHackathon         = errors.New("cannot mark interest on your own hackathon")
	ErrHackathonNotFound    = errors.New("hackathon not found")
	ErrSelfChat             = errors.New("cannot start a chat with yourself")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrEntryNotFound        = errors.New("timeline entry not found")
	ErrClosed               = errors.New("inbox closed")
)

// State is the lifecycle of a Synchronizer.
type State string

const (
	NoActiveConversation State = "NO_ACTIVE_CONVERSATION"
	ConversationOpen     State = "CONVERSATION_OPEN"
	SubscribedToFeed     State = "SUBSCRIBED_TO_FEED"
	Closed               State = "CLOSED"
)

// EntryState is the delivery state of a timeline entry.
type EntryState string

const (
	EntryPending EntryState = "pending"
	EntrySent    EntryState = "sent"
	EntryFailed  EntryState = "failed"
)

// Entry is one rendered message in the active conversation's timeline.
type Entry struct {
	Key            string // stable render key
	ID             string // server id, empty while pending
	TempID         int64  // local id of an optimistic entry, 0 for feed rows
	ClientRef      string
	ConversationID string
	SenderID       string
	SenderName     string
	Content        string
	Payload        Payload
	CreatedAt      time.Time
	State          EntryState
	Error          string
}

// Conversation is a conversation as listed for the current user.
type Conversation struct {
	ID            string
	Title         string
	OtherUserID   string
	OtherUsername string
}

// DisplayName is the label shown in conversation lists.
func (c Conversation) DisplayName() string {
	if c.OtherUsername != "" {
		return c.OtherUsername
	}
	if c.Title != "" {
		return c.Title
	}
	return "Direct Chat"
}

// Contact is a directory search hit.
type Contact struct {
	ID       string
	Username string
}

// TimelineChanged is the payload of bus.KindTimelineChanged.
type TimelineChanged struct {
	ConversationID string
}
