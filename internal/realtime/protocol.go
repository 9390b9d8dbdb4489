package realtime

import "encoding/json"

// Phoenix channel events.
const (
	eventJoin        = "phx_join"
	eventLeave       = "phx_leave"
	eventReply       = "phx_reply"
	eventError       = "phx_error"
	eventClose       = "phx_close"
	eventHeartbeat   = "heartbeat"
	eventAccessToken = "access_token"
	eventChanges     = "postgres_changes"

	heartbeatTopic = "phoenix"
)

type envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref,omitempty"`
}

type reply struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type joinPayload struct {
	Config      joinConfig `json:"config"`
	AccessToken string     `json:"access_token,omitempty"`
}

type joinConfig struct {
	Broadcast struct {
		Ack  bool `json:"ack"`
		Self bool `json:"self"`
	} `json:"broadcast"`
	Presence struct {
		Key string `json:"key"`
	} `json:"presence"`
	PostgresChanges []ChangeFilter `json:"postgres_changes"`
	Private         bool           `json:"private"`
}

type changePayload struct {
	Data struct {
		Schema          string          `json:"schema"`
		Table           string          `json:"table"`
		CommitTimestamp string          `json:"commit_timestamp"`
		Type            string          `json:"type"`
		Record          json.RawMessage `json:"record"`
		OldRecord       json.RawMessage `json:"old_record"`
	} `json:"data"`
	IDs []int64 `json:"ids"`
}

// ChangeFilter selects the row changes a channel receives.
type ChangeFilter struct {
	Event  string `json:"event"` // INSERT, UPDATE, DELETE or *
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"` // e.g. conversation_id=eq.<id>
}

// Change is one row change delivered on a channel.
type Change struct {
	Topic           string
	Schema          string
	Table           string
	Type            string
	CommitTimestamp string
	Record          json.RawMessage
	OldRecord       json.RawMessage
}

func strPtr(s string) *string { return &s }
