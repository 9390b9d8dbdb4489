package supabase

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// User is a row of the users table.
type User struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	FullName  string   `json:"full_name,omitempty"`
	College   string   `json:"college,omitempty"`
	Branch    string   `json:"branch,omitempty"`
	Year      string   `json:"year,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// Conversation is a row of the conversations table.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	PairKey   *string   `json:"pair_key,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// ConversationSummary is a conversation as listed for one user, with the
// other participant resolved.
type ConversationSummary struct {
	Conversation
	OtherUserID   string
	OtherUsername string
}

// Participant is a row of conversation_participants.
type Participant struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Deleted        bool   `json:"deleted"`
}

// Message is a row of the messages table.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      Timestamp `json:"created_at"`
	ClientRef      *string   `json:"client_ref,omitempty"`
	Sender         *struct {
		Username string `json:"username"`
	} `json:"users,omitempty"`
}

// UnmarshalJSON accepts uuid and bigint message ids alike.
func (m *Message) UnmarshalJSON(b []byte) error {
	type plain Message
	aux := struct {
		*plain
		ID FlexID `json:"id"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	m.ID = string(aux.ID)
	return nil
}

// Ref returns the client reference, "" when the row has none.
func (m Message) Ref() string {
	if m.ClientRef == nil {
		return ""
	}
	return *m.ClientRef
}

// SenderName returns the embedded sender username when it was selected.
func (m Message) SenderName() string {
	if m.Sender == nil {
		return ""
	}
	return m.Sender.Username
}

// NewMessage is the insert payload for messages.
type NewMessage struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	ClientRef      string `json:"client_ref,omitempty"`
}

// FlexID decodes ids the backend serializes as either strings or numbers.
type FlexID string

func (id *FlexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}

// Hackathon is the subset of a hackathons row the client needs.
type Hackathon struct {
	ID     FlexID `json:"id"`
	Title  string `json:"title"`
	UserID string `json:"user_id"`
}

// Timestamp decodes both RFC 3339 values (REST) and the postgres text form
// realtime records may carry ("2026-01-02 03:04:05.123+00").
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}
