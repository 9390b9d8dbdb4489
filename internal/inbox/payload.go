package inbox

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/collatz-app/collatz/internal/supabase"
)

// Payload is the decoded form of a message's content. Content is either
// plain text or a JSON object tagged by "type".
type Payload interface {
	Kind() string
}

// TextPayload is human-authored text, and the fallback for anything that
// is not a well-formed tagged object.
type TextPayload struct {
	Text string
}

// HackathonInterestPayload announces that a user is interested in a
// hackathon.
type HackathonInterestPayload struct {
	HackathonID        supabase.FlexID `json:"hackathonId"`
	HackathonTitle     string          `json:"hackathonTitle"`
	InterestedUsername string          `json:"interestedUsername"`
	Time               time.Time       `json:"time"`
}

// ImagePayload points at an uploaded image.
type ImagePayload struct {
	URL     string `json:"url"`
	Name    string `json:"name,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// UnknownPayload is a tagged object of a type this client does not know.
type UnknownPayload struct {
	Type string
	Raw  string
}

const (
	kindText              = "text"
	kindHackathonInterest = "hackathon_interest"
	kindImage             = "image"
)

func (TextPayload) Kind() string              { return kindText }
func (HackathonInterestPayload) Kind() string { return kindHackathonInterest }
func (ImagePayload) Kind() string             { return kindImage }
func (p UnknownPayload) Kind() string         { return p.Type }

// DecodePayload classifies content. Only a JSON object with a non-empty
// string "type" is structured; everything else, including malformed
// payloads of a known type, is text.
func DecodePayload(content string) Payload {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return TextPayload{Text: content}
	}
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(trimmed), &tag); err != nil || tag.Type == "" {
		return TextPayload{Text: content}
	}

	switch tag.Type {
	case kindHackathonInterest:
		var p HackathonInterestPayload
		if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
			return TextPayload{Text: content}
		}
		return p
	case kindImage:
		var p ImagePayload
		if err := json.Unmarshal([]byte(trimmed), &p); err != nil || p.URL == "" {
			return TextPayload{Text: content}
		}
		return p
	case kindText:
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
			return TextPayload{Text: content}
		}
		return TextPayload{Text: p.Text}
	default:
		return UnknownPayload{Type: tag.Type, Raw: content}
	}
}

// EncodePayload produces message content for p. Text is sent verbatim.
func EncodePayload(p Payload) (string, error) {
	switch v := p.(type) {
	case TextPayload:
		return v.Text, nil
	case UnknownPayload:
		return v.Raw, nil
	case HackathonInterestPayload, ImagePayload:
		b, err := json.Marshal(tagged{Type: p.Kind(), Payload: v})
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported payload %T", p)
	}
}

// tagged flattens a payload's fields next to "type".
type tagged struct {
	Type    string
	Payload any
}

func (t tagged) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(t.Payload)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(t.Type)
	fields["type"] = typ
	return json.Marshal(fields)
}

// Render returns the one-line text shown for p.
func Render(p Payload) string {
	switch v := p.(type) {
	case TextPayload:
		return v.Text
	case HackathonInterestPayload:
		return fmt.Sprintf("Hey, I'm interested in your hackathon %q", v.HackathonTitle)
	case ImagePayload:
		if v.Caption != "" {
			return "[image] " + v.Caption
		}
		return "[image] " + v.URL
	case UnknownPayload:
		return v.Raw
	default:
		return ""
	}
}
