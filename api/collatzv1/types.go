package collatzv1

// SessionStatus mirrors the daemon state machine.
type SessionStatus string

const (
	SessionStatusBooting      SessionStatus = "BOOTING"
	SessionStatusAuthRequired SessionStatus = "AUTH_REQUIRED"
	SessionStatusConnecting   SessionStatus = "CONNECTING"
	SessionStatusSyncing      SessionStatus = "SYNCING"
	SessionStatusReady        SessionStatus = "READY"
	SessionStatusReconnecting SessionStatus = "RECONNECTING"
	SessionStatusDegraded     SessionStatus = "DEGRADED"
	SessionStatusError        SessionStatus = "ERROR"
)

type Empty struct{}

type GetSessionStatusRequest struct{}

type GetSessionStatusResponse struct {
	Session           string        `json:"session"`
	Status            SessionStatus `json:"status"`
	StatusSinceUnixMs int64         `json:"status_since_unix_ms"`
	UserID            string        `json:"user_id,omitempty"`
	Email             string        `json:"email,omitempty"`
	UptimeMs          int64         `json:"uptime_ms"`
	ConversationCount int32         `json:"conversation_count"`
	MessageCount      int32         `json:"message_count"`
	PendingCount      int32         `json:"pending_count"`
	RealtimeConnected bool          `json:"realtime_connected"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type LogoutRequest struct{}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type WatchSessionStatusRequest struct{}

type StatusEvent struct {
	From     SessionStatus `json:"from"`
	To       SessionStatus `json:"to"`
	AtUnixMs int64         `json:"at_unix_ms"`
}

type ListSessionsRequest struct{}

type SessionInfo struct {
	Name          string `json:"name"`
	DaemonRunning bool   `json:"daemon_running"`
	LoggedIn      bool   `json:"logged_in"`
}

type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// Conversation is a conversation as listed for the logged-in user.
type Conversation struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	DisplayName         string `json:"display_name"`
	OtherUserID         string `json:"other_user_id,omitempty"`
	OtherUsername       string `json:"other_username,omitempty"`
	LastMessageAtUnixMs int64  `json:"last_message_at_unix_ms,omitempty"`
	LastMessagePreview  string `json:"last_message_preview,omitempty"`
}

type ListConversationsRequest struct {
	// Refresh asks the daemon to reload the list from the backend first.
	Refresh bool `json:"refresh"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type StartChatRequest struct {
	Username string `json:"username" validate:"required"`
}

type StartChatResponse struct {
	Conversation Conversation `json:"conversation"`
}

type OpenConversationRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
}

// TimelineEntry is one rendered message of the active conversation.
type TimelineEntry struct {
	Key             string `json:"key"`
	ID              string `json:"id,omitempty"`
	TempID          int64  `json:"temp_id,omitempty"`
	ConversationID  string `json:"conversation_id"`
	SenderID        string `json:"sender_id"`
	SenderName      string `json:"sender_name,omitempty"`
	FromMe          bool   `json:"from_me"`
	Text            string `json:"text"`
	PayloadKind     string `json:"payload_kind"`
	State           string `json:"state"`
	Error           string `json:"error,omitempty"`
	CreatedAtUnixMs int64  `json:"created_at_unix_ms"`
}

type GetTimelineRequest struct{}

type GetTimelineResponse struct {
	ConversationID string          `json:"conversation_id"`
	State          string          `json:"state"`
	Entries        []TimelineEntry `json:"entries"`
	Draft          string          `json:"draft,omitempty"`
}

type SendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// SendImageRequest uploads a file readable by the daemon and sends it as an
// image message to the active conversation.
type SendImageRequest struct {
	Path    string `json:"path" validate:"required"`
	Caption string `json:"caption,omitempty"`
}

type SendMessageResponse struct {
	Entry TimelineEntry `json:"entry"`
}

type RetryMessageRequest struct {
	TempID int64 `json:"temp_id" validate:"gt=0"`
}

type DiscardMessageRequest struct {
	TempID int64 `json:"temp_id" validate:"gt=0"`
}

type DeleteConversationRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
}

type SetDraftRequest struct {
	Text string `json:"text"`
}

type SearchUsersRequest struct {
	Query string `json:"query"`
	Limit int32  `json:"limit" validate:"gte=0,lte=50"`
}

type Contact struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type SearchUsersResponse struct {
	Users []Contact `json:"users"`
}

type MarkInterestRequest struct {
	HackathonID string `json:"hackathon_id" validate:"required"`
}

type MarkInterestResponse struct {
	Conversation Conversation `json:"conversation"`
}

type WatchTimelineRequest struct{}

// TimelineEvent signals that the active timeline or the conversation list
// changed; clients refetch with GetTimeline or ListConversations.
type TimelineEvent struct {
	Kind           string `json:"kind"`
	ConversationID string `json:"conversation_id,omitempty"`
	ClientRef      string `json:"client_ref,omitempty"`
	AtUnixMs       int64  `json:"at_unix_ms"`
}

type SearchMessagesRequest struct {
	Query          string `json:"query" validate:"required"`
	ConversationID string `json:"conversation_id,omitempty"`
	Limit          int32  `json:"limit" validate:"gte=0,lte=200"`
}

type SearchHit struct {
	ConversationID  string `json:"conversation_id"`
	MessageID       string `json:"message_id"`
	SenderName      string `json:"sender_name"`
	Snippet         string `json:"snippet"`
	CreatedAtUnixMs int64  `json:"created_at_unix_ms"`
}

type SearchMessagesResponse struct {
	Results []SearchHit `json:"results"`
}

type RecommendationFilters struct {
	Location        string   `json:"location,omitempty"`
	JobType         string   `json:"job_type,omitempty"`
	HackathonType   string   `json:"hackathon_type,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	TeamSize        int32    `json:"team_size,omitempty"`
	Difficulty      string   `json:"difficulty,omitempty"`
	ProjectCategory []string `json:"project_category,omitempty"`
	HackathonOffset int32    `json:"hackathon_offset,omitempty"`
}

type GetRecommendationsRequest struct {
	Filters RecommendationFilters `json:"filters"`
}

type Recommendation struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

type GetRecommendationsResponse struct {
	Jobs       []Recommendation `json:"jobs"`
	Hackathons []Recommendation `json:"hackathons"`
	Projects   []Recommendation `json:"projects"`
}

type RunEmbeddingsRequest struct {
	Kinds []string `json:"kinds"`
}

type EmbeddingResult struct {
	Kind     string `json:"kind"`
	Scanned  int32  `json:"scanned"`
	Embedded int32  `json:"embedded"`
	ZeroFill int32  `json:"zero_fill"`
	Failed   int32  `json:"failed"`
}

type RunEmbeddingsResponse struct {
	Results []EmbeddingResult `json:"results"`
}

type FetchJobsRequest struct{}

type FetchJobsResponse struct {
	Requests  int32 `json:"requests"`
	Jobs      int32 `json:"jobs"`
	Pruned    bool  `json:"pruned"`
	Exhausted bool  `json:"exhausted"`
}

type GetProfileStatusRequest struct{}

type GetProfileStatusResponse struct {
	UserID         string   `json:"user_id"`
	Username       string   `json:"username"`
	Complete       bool     `json:"complete"`
	Missing        []string `json:"missing,omitempty"`
	CurrentStreak  int32    `json:"current_streak"`
	BestStreak     int32    `json:"best_streak"`
	CheckedInToday bool     `json:"checked_in_today"`
}

type CheckInRequest struct{}
