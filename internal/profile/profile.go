// Package profile reports profile completeness and activity streaks.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/collatz-app/collatz/internal/supabase"
	"go.uber.org/zap"
)

// ErrAlreadyCheckedIn is returned when today's activity is already recorded.
var ErrAlreadyCheckedIn = errors.New("already checked in today")

// Completion describes which required profile fields are missing.
type Completion struct {
	Complete bool
	Missing  []string
}

// CheckCompletion requires username, college, branch and year to be set.
func CheckCompletion(u supabase.User) Completion {
	required := []struct {
		name  string
		value string
	}{
		{"username", u.Username},
		{"college", u.College},
		{"branch", u.Branch},
		{"year", u.Year},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return Completion{Complete: len(missing) == 0, Missing: missing}
}

const day = 24 * time.Hour

// Streak counts activity days walking back from now. Each step back may
// span up to two and a half days, so a single missed day does not break
// the streak.
func Streak(dates []time.Time, now time.Time) int {
	sorted := uniqueDays(dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].After(sorted[j]) })

	streak := 0
	cursor := wallClockUTC(now)
	for _, d := range sorted {
		if d.After(cursor) {
			continue
		}
		if cursor.Sub(d) >= 5*day/2 {
			break
		}
		streak++
		cursor = cursor.Add(-day)
	}
	return streak
}

// BestStreak returns the longest run of consecutive calendar days.
func BestStreak(dates []time.Time) int {
	sorted := uniqueDays(dates)
	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	best, current := 1, 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Sub(sorted[i-1]) == day {
			current++
			best = max(best, current)
		} else {
			current = 1
		}
	}
	return best
}

func uniqueDays(dates []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = truncateDay(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// wallClockUTC keeps t's local wall clock reading but labels it UTC, so it
// compares against dates stored without a zone.
func wallClockUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Remote is the slice of the backend the profile service reads.
type Remote interface {
	UserByID(ctx context.Context, id string) (*supabase.User, error)
	ActivityDates(ctx context.Context, userID string) ([]time.Time, error)
	CheckIn(ctx context.Context, userID string, day time.Time) error
}

// Status is a user's profile summary.
type Status struct {
	User           supabase.User
	Completion     Completion
	CurrentStreak  int
	BestStreak     int
	CheckedInToday bool
}

// Service reads profile status and records check-ins.
type Service struct {
	remote Remote
	logger *zap.Logger
	now    func() time.Time
}

func NewService(remote Remote, logger *zap.Logger) *Service {
	return &Service{remote: remote, logger: logger.With(zap.String("component", "profile")), now: time.Now}
}

// Status loads the user's profile and activity history.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	u, err := s.remote.UserByID(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("load profile: %w", err)
	}
	dates, err := s.remote.ActivityDates(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("load activity: %w", err)
	}

	now := s.now()
	today := truncateDay(now)
	st := Status{
		User:          *u,
		Completion:    CheckCompletion(*u),
		CurrentStreak: Streak(dates, now),
		BestStreak:    BestStreak(dates),
	}
	for _, d := range dates {
		if truncateDay(d).Equal(today) {
			st.CheckedInToday = true
			break
		}
	}
	return st, nil
}

// CheckIn records activity for today.
func (s *Service) CheckIn(ctx context.Context, userID string) error {
	err := s.remote.CheckIn(ctx, userID, truncateDay(s.now()))
	if errors.Is(err, supabase.ErrUniqueViolation) {
		return ErrAlreadyCheckedIn
	}
	if err != nil {
		return fmt.Errorf("check in: %w", err)
	}
	s.logger.Info("checked in", zap.String("user_id", userID))
	return nil
}
