// Package jobs keeps the external_jobs table fresh from the Adzuna job
// search API.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/collatz-app/collatz/internal/bus"
	"github.com/collatz-app/collatz/internal/metrics"
	"github.com/collatz-app/collatz/internal/supabase"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned by Run when no API credentials are set.
var ErrNotConfigured = errors.New("job board credentials not configured")

// Writer persists fetched jobs.
type Writer interface {
	UpsertExternalJobs(ctx context.Context, jobs []supabase.ExternalJob) error
	DeleteStaleJobs(ctx context.Context, cutoff time.Time) error
}

// Config configures a Fetcher.
type Config struct {
	BaseURL        string
	AppID          string
	AppKey         string
	Country        string
	ResultsPerPage int
	DailyBudget    int
	SearchTerms    []string
	StaleAfter     time.Duration
}

// Result summarizes one fetch run.
type Result struct {
	Requests  int
	Jobs      int
	Pruned    bool
	Exhausted bool
}

// Fetcher pages through search results for every configured term. The
// request budget is shared by all runs of one Fetcher and refills over a day.
type Fetcher struct {
	cfg     Config
	writer  Writer
	http    *http.Client
	budget  *rate.Limiter
	retry   []backoff.RetryOption
	bus     *bus.Bus
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg Config, w Writer, b *bus.Bus, m *metrics.Collector, logger *zap.Logger) *Fetcher {
	if cfg.ResultsPerPage <= 0 {
		cfg.ResultsPerPage = 20
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 24 * time.Hour
	}
	if cfg.Country == "" {
		cfg.Country = "in"
	}
	var budget *rate.Limiter
	if cfg.DailyBudget > 0 {
		budget = rate.NewLimiter(rate.Every(24*time.Hour/time.Duration(cfg.DailyBudget)), cfg.DailyBudget)
	} else {
		budget = rate.NewLimiter(0, 0)
	}
	return &Fetcher{
		cfg:     cfg,
		writer:  w,
		http:    &http.Client{Timeout: 20 * time.Second},
		budget:  budget,
		retry:   []backoff.RetryOption{backoff.WithMaxTries(3), backoff.WithMaxElapsedTime(time.Minute)},
		bus:     b,
		metrics: m,
		logger:  logger.With(zap.String("component", "jobs")),
		now:     time.Now,
	}
}

// Run fetches every term until results run out or the budget is spent, then
// prunes jobs that were not seen within the stale window.
func (f *Fetcher) Run(ctx context.Context) (Result, error) {
	var res Result
	if f.cfg.AppID == "" || f.cfg.AppKey == "" {
		return res, ErrNotConfigured
	}

	seen := make(map[string]bool)
terms:
	for _, term := range f.cfg.SearchTerms {
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if !f.budget.Allow() {
				res.Exhausted = true
				f.logger.Info("daily request budget spent", zap.Int("requests", res.Requests))
				break terms
			}
			results, err := f.search(ctx, term, page)
			res.Requests++
			if err != nil {
				f.logger.Warn("search failed", zap.String("term", term), zap.Int("page", page), zap.Error(err))
				break
			}
			if len(results) == 0 {
				break
			}

			rows := f.toRows(results)
			if err := f.writer.UpsertExternalJobs(ctx, rows); err != nil {
				f.logger.Error("failed to upsert jobs", zap.String("term", term), zap.Error(err))
			} else {
				f.metrics.JobsWritten(len(rows))
				for _, r := range rows {
					seen[r.ID] = true
				}
			}
			if len(results) < f.cfg.ResultsPerPage {
				break
			}
		}
	}
	res.Jobs = len(seen)

	cutoff := f.now().Add(-f.cfg.StaleAfter)
	if err := f.writer.DeleteStaleJobs(ctx, cutoff); err != nil {
		f.logger.Error("failed to prune stale jobs", zap.Error(err))
	} else {
		res.Pruned = true
	}

	f.logger.Info("synced external jobs", zap.Int("jobs", res.Jobs), zap.Int("requests", res.Requests))
	if f.bus != nil {
		f.bus.Emit(bus.KindJobsFetched, res)
	}
	return res, nil
}

func (f *Fetcher) toRows(results []adzunaJob) []supabase.ExternalJob {
	now := f.now().UTC()
	rows := make([]supabase.ExternalJob, 0, len(results))
	for _, j := range results {
		id := string(j.ID)
		if id == "" {
			continue
		}
		row := supabase.ExternalJob{
			ID:             id,
			Title:          j.Title,
			Company:        orDefault(j.Company.DisplayName, "Unknown"),
			Location:       orDefault(j.Location.DisplayName, "Remote"),
			Type:           orDefault(j.Contract, "Full Time"),
			SkillsRequired: ExtractSkills(j.Description),
			SalaryMin:      nonZero(j.SalaryMin),
			SalaryMax:      nonZero(j.SalaryMax),
			PostedDate:     nonEmpty(j.Created),
			RedirectURL:    nonEmpty(j.RedirectURL),
			External:       true,
			LastSeen:       now,
		}
		rows = append(rows, row)
	}
	return rows
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nonZero(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r Result) String() string {
	return fmt.Sprintf("%d jobs from %d requests", r.Jobs, r.Requests)
}
