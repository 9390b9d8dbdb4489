package supabase

import (
	"context"
	"time"

	"github.com/supabase-community/postgrest-go"
)

// ActivityDates returns the days on which userID was active, newest first.
func (c *Client) ActivityDates(ctx context.Context, userID string) ([]time.Time, error) {
	var rows []struct {
		Date string `json:"date"`
	}
	_, err := c.rest(ctx).From("user_streaks").
		Select("date", "", false).
		Eq("user_id", userID).
		Order("date", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, wrapError("list activity", err)
	}
	dates := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		d, err := parseDate(r.Date)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// CheckIn records activity for userID on day. A second check-in for the
// same day fails with ErrUniqueViolation.
func (c *Client) CheckIn(ctx context.Context, userID string, day time.Time) error {
	_, _, err := c.rest(ctx).From("user_streaks").
		Insert(map[string]any{"user_id": userID, "date": day.Format(time.DateOnly)}, false, "", "minimal", "").
		Execute()
	return wrapError("check in", err)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
