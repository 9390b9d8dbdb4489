package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/collatz-app/collatz/internal/supabase"
)

type searchResponse struct {
	Count   int         `json:"count"`
	Results []adzunaJob `json:"results"`
}

type adzunaJob struct {
	ID          supabase.FlexID `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Created     string          `json:"created"`
	RedirectURL string          `json:"redirect_url"`
	SalaryMin   *float64        `json:"salary_min"`
	SalaryMax   *float64        `json:"salary_max"`
	Contract    string          `json:"contract_time"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

var skillPattern = regexp.MustCompile(`(?i)\b(JavaScript|Python|React|Node|SQL|AWS|Java|HTML|CSS)\b|\bC\+\+`)

// ExtractSkills returns the known skill keywords mentioned in text, in order
// of appearance, without duplicates.
func ExtractSkills(text string) []string {
	matches := skillPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

func (f *Fetcher) searchURL(term string, page int) string {
	q := url.Values{}
	q.Set("app_id", f.cfg.AppID)
	q.Set("app_key", f.cfg.AppKey)
	q.Set("results_per_page", strconv.Itoa(f.cfg.ResultsPerPage))
	q.Set("what", term)
	return fmt.Sprintf("%s/%s/search/%d?%s", strings.TrimRight(f.cfg.BaseURL, "/"), f.cfg.Country, page, q.Encode())
}

// search fetches one result page, retrying transient failures. Client
// errors other than 429 are permanent.
func (f *Fetcher) search(ctx context.Context, term string, page int) ([]adzunaJob, error) {
	op := func() ([]adzunaJob, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.searchURL(term, page), nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := f.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("adzuna: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		var out searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode adzuna response: %w", err))
		}
		return out.Results, nil
	}
	return backoff.Retry(ctx, op, f.retry...)
}
