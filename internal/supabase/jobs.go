package supabase

import (
	"context"
	"time"
)

// ExternalJob is a row of external_jobs, as fetched from a job board.
type ExternalJob struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Location       string    `json:"location"`
	Type           string    `json:"type"`
	SkillsRequired []string  `json:"skills_required"`
	SalaryMin      *float64  `json:"salary_min"`
	SalaryMax      *float64  `json:"salary_max"`
	PostedDate     *string   `json:"posted_date"`
	RedirectURL    *string   `json:"redirect_url"`
	External       bool      `json:"external"`
	LastSeen       time.Time `json:"last_seen"`
}

// UpsertExternalJobs inserts or refreshes jobs keyed by id.
func (c *Client) UpsertExternalJobs(ctx context.Context, jobs []ExternalJob) error {
	if len(jobs) == 0 {
		return nil
	}
	_, _, err := c.rest(ctx).From("external_jobs").
		Upsert(jobs, "id", "minimal", "").
		Execute()
	return wrapError("upsert external jobs", err)
}

// DeleteStaleJobs removes jobs last seen before cutoff.
func (c *Client) DeleteStaleJobs(ctx context.Context, cutoff time.Time) error {
	_, _, err := c.rest(ctx).From("external_jobs").
		Delete("minimal", "").
		Lt("last_seen", cutoff.UTC().Format(time.RFC3339)).
		Execute()
	return wrapError("delete stale jobs", err)
}
