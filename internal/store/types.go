package store

// Conversation is the cached view of a two-party conversation as seen by
// the logged-in user.
type Conversation struct {
	ID                 string
	Title              string
	OtherUserID        string
	OtherUsername      string
	LastMessageAt      int64 // unix millis
	LastMessagePreview string
	Deleted            bool
}

// DisplayName is what a conversation list shows for c.
func (c Conversation) DisplayName() string {
	if c.OtherUsername != "" {
		return c.OtherUsername
	}
	if c.Title != "" {
		return c.Title
	}
	return c.ID
}

// Message is a confirmed message row mirrored from the backend.
type Message struct {
	ID             int64
	ConversationID string
	RemoteID       string
	SenderID       string
	SenderName     string
	Content        string
	ClientRef      string
	FromMe         bool
	CreatedAt      int64 // unix millis
}

// User is a cached directory entry.
type User struct {
	ID       string
	Username string
	FullName string
}

// Outbox statuses.
const (
	OutboxQueued  = "queued"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxEntry is a message waiting for, or done with, its authoritative write.
type OutboxEntry struct {
	ID             int64
	ClientRef      string
	TempID         int64
	ConversationID string
	SenderID       string
	Content        string
	Status         string
	Attempts       int
	ErrorMessage   string
	ServerID       string
	CreatedAt      int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
