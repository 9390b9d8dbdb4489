package recommend

import (
	"context"
	"strings"

	"github.com/collatz-app/collatz/internal/supabase"
)

// Source fetches raw rows for one category.
type Source interface {
	Category() Category
	Fetch(ctx context.Context, userID string, f Filters) ([]Raw, error)
}

// Caller invokes a stored procedure and decodes its JSON result into out.
type Caller interface {
	Rpc(ctx context.Context, name string, body any, out any) error
}

const untitled = "Untitled"

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return untitled
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intOrNil(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// JobSource calls match_jobs_for_user_filtered.
type JobSource struct {
	rpc   Caller
	limit int
}

func NewJobSource(rpc Caller, limit int) *JobSource {
	return &JobSource{rpc: rpc, limit: limit}
}

func (s *JobSource) Category() Category { return CategoryJob }

type jobRow struct {
	ID         supabase.FlexID `json:"id"`
	Title      string          `json:"title"`
	JobTitle   string          `json:"job_title"`
	Company    string          `json:"company"`
	Similarity *float64        `json:"similarity"`
}

func (s *JobSource) Fetch(ctx context.Context, userID string, f Filters) ([]Raw, error) {
	body := map[string]any{
		"user_id":         userID,
		"match_count":     s.limit,
		"location_filter": strOrNil(f.Location),
		"type_filter":     strOrNil(f.JobType),
	}
	var rows []jobRow
	if err := s.rpc.Rpc(ctx, "match_jobs_for_user_filtered", body, &rows); err != nil {
		return nil, err
	}
	return normalizeJobs(rows), nil
}

func normalizeJobs(rows []jobRow) []Raw {
	out := make([]Raw, 0, len(rows))
	for _, r := range rows {
		out = append(out, Raw{ID: string(r.ID), Title: firstNonEmpty(r.Title, r.JobTitle), Similarity: r.Similarity})
	}
	return out
}

// HackathonSource calls match_hackathons_for_user.
type HackathonSource struct {
	rpc   Caller
	limit int
}

func NewHackathonSource(rpc Caller, limit int) *HackathonSource {
	return &HackathonSource{rpc: rpc, limit: limit}
}

func (s *HackathonSource) Category() Category { return CategoryHackathon }

type hackathonRow struct {
	ID         supabase.FlexID `json:"id"`
	Title      string          `json:"title"`
	Name       string          `json:"name"`
	Similarity *float64        `json:"similarity"`
}

func (s *HackathonSource) Fetch(ctx context.Context, userID string, f Filters) ([]Raw, error) {
	body := map[string]any{
		"p_user_id":         userID,
		"match_limit":       s.limit,
		"match_offset":      f.HackathonOffset,
		"filter_type":       strOrNil(f.HackathonType),
		"filter_skills":     nilIfEmpty(f.Skills),
		"filter_categories": nilIfEmpty(f.Categories),
		"filter_team_size":  intOrNil(f.TeamSize),
	}
	var rows []hackathonRow
	if err := s.rpc.Rpc(ctx, "match_hackathons_for_user", body, &rows); err != nil {
		return nil, err
	}
	return normalizeHackathons(rows), nil
}

func normalizeHackathons(rows []hackathonRow) []Raw {
	out := make([]Raw, 0, len(rows))
	for _, r := range rows {
		out = append(out, Raw{ID: string(r.ID), Title: firstNonEmpty(r.Title, r.Name), Similarity: r.Similarity})
	}
	return out
}

// ProjectSource calls match_projects_for_user_with_filters. Only public
// projects are matched.
type ProjectSource struct {
	rpc   Caller
	limit int
}

func NewProjectSource(rpc Caller, limit int) *ProjectSource {
	return &ProjectSource{rpc: rpc, limit: limit}
}

func (s *ProjectSource) Category() Category { return CategoryProject }

type projectRow struct {
	ID          supabase.FlexID `json:"id"`
	Title       string          `json:"title"`
	ProjectName string          `json:"project_name"`
	Similarity  *float64        `json:"similarity"`
}

func (s *ProjectSource) Fetch(ctx context.Context, userID string, f Filters) ([]Raw, error) {
	body := map[string]any{
		"p_user_id":    userID,
		"p_categories": nilIfEmpty(f.ProjectCategory),
		"p_difficulty": strOrNil(f.Difficulty),
		"p_visibility": "public",
		"match_limit":  s.limit,
	}
	var rows []projectRow
	if err := s.rpc.Rpc(ctx, "match_projects_for_user_with_filters", body, &rows); err != nil {
		return nil, err
	}
	return normalizeProjects(rows), nil
}

func normalizeProjects(rows []projectRow) []Raw {
	out := make([]Raw, 0, len(rows))
	for _, r := range rows {
		out = append(out, Raw{ID: string(r.ID), Title: firstNonEmpty(r.Title, r.ProjectName), Similarity: r.Similarity})
	}
	return out
}
