package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Rpc calls a stored procedure and decodes its JSON result into out.
// postgrest-go reports transport failures through the client's ClientError
// and returns error bodies verbatim, so both are checked here.
func (c *Client) Rpc(ctx context.Context, name string, body any, out any) error {
	pc := c.rest(ctx)
	raw := pc.Rpc(name, "", body)
	if pc.ClientError != nil {
		return wrapError("rpc "+name, pc.ClientError)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rpc %s: %w", name, err)
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal([]byte(trimmed), &apiErr) == nil && apiErr.Message != "" && apiErr.Code != "" {
			return fmt.Errorf("rpc %s: %w", name, &APIError{Code: apiErr.Code, Message: apiErr.Message})
		}
	}
	if out == nil || trimmed == "" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return fmt.Errorf("rpc %s: decode: %w", name, err)
	}
	return nil
}
