package supabase

import "context"

// HackathonByID returns the hackathon row with its creator.
func (c *Client) HackathonByID(ctx context.Context, id string) (*Hackathon, error) {
	var out []Hackathon
	_, err := c.rest(ctx).From("hackathons").
		Select("id, title, user_id", "", false).
		Eq("id", id).
		Limit(1, "").
		ExecuteTo(&out)
	if err != nil {
		return nil, wrapError("get hackathon", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// InsertInterest records that userID is interested in a hackathon. A second
// mark by the same user fails with ErrUniqueViolation.
func (c *Client) InsertInterest(ctx context.Context, userID, hackathonID string) error {
	_, _, err := c.rest(ctx).From("hackathon_interest").
		Insert(map[string]any{"user_id": userID, "hackathon_id": hackathonID}, false, "", "minimal", "").
		Execute()
	return wrapError("mark interest", err)
}
