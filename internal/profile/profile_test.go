package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/collatz-app/collatz/internal/supabase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dates(ss ...string) []time.Time {
	out := make([]time.Time, len(ss))
	for i, s := range ss {
		out[i] = date(s)
	}
	return out
}

func TestCheckCompletion(t *testing.T) {
	tests := []struct {
		name    string
		user    supabase.User
		missing []string
	}{
		{"complete", supabase.User{Username: "ada", College: "IIT", Branch: "CSE", Year: "3"}, nil},
		{"blank fields", supabase.User{Username: "ada", College: "  ", Year: "2"}, []string{"college", "branch"}},
		{"empty", supabase.User{}, []string{"username", "college", "branch", "year"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CheckCompletion(tt.user)
			assert.Equal(t, tt.missing, c.Missing)
			assert.Equal(t, len(tt.missing) == 0, c.Complete)
		})
	}
}

func TestStreak(t *testing.T) {
	now := time.Date(2025, 10, 18, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{"none", nil, 0},
		{"today only", dates("2025-10-18"), 1},
		{"three consecutive", dates("2025-10-16", "2025-10-18", "2025-10-17"), 3},
		{"yesterday only", dates("2025-10-17"), 1},
		{"one missed day keeps streak", dates("2025-10-18", "2025-10-16"), 2},
		{"stale", dates("2025-10-14", "2025-10-13"), 0},
		{"duplicates counted once", dates("2025-10-18", "2025-10-18", "2025-10-17"), 2},
		{"gap breaks", dates("2025-10-18", "2025-10-17", "2025-10-12"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streak(tt.dates, now))
		})
	}
}

func TestStreakUsesLocalCalendarDay(t *testing.T) {
	zone := time.FixedZone("IST", 5*3600+1800)
	// 01:00 on the 19th in IST is still the 18th in UTC.
	now := time.Date(2025, 10, 19, 1, 0, 0, 0, zone)
	assert.Equal(t, 2, Streak(dates("2025-10-19", "2025-10-18"), now))
}

func TestBestStreak(t *testing.T) {
	assert.Equal(t, 0, BestStreak(nil))
	assert.Equal(t, 1, BestStreak(dates("2025-10-01")))
	assert.Equal(t, 3, BestStreak(dates("2025-10-01", "2025-10-02", "2025-10-05", "2025-10-06", "2025-10-07")))
	assert.Equal(t, 2, BestStreak(dates("2025-10-02", "2025-10-01", "2025-10-01")))
	assert.Equal(t, 2, BestStreak(dates("2025-09-30", "2025-10-01", "2025-10-03")))
}

type fakeRemote struct {
	user     *supabase.User
	dates    []time.Time
	checked  []time.Time
	checkErr error
}

func (f *fakeRemote) UserByID(_ context.Context, id string) (*supabase.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, supabase.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeRemote) ActivityDates(context.Context, string) ([]time.Time, error) {
	return f.dates, nil
}

func (f *fakeRemote) CheckIn(_ context.Context, _ string, day time.Time) error {
	if f.checkErr != nil {
		return f.checkErr
	}
	f.checked = append(f.checked, day)
	return nil
}

func TestServiceStatus(t *testing.T) {
	r := &fakeRemote{
		user:  &supabase.User{ID: "u1", Username: "ada", College: "IIT"},
		dates: dates("2025-10-18", "2025-10-17", "2025-10-10", "2025-10-11", "2025-10-12"),
	}
	s := NewService(r, zap.NewNop())
	s.now = func() time.Time { return time.Date(2025, 10, 18, 9, 0, 0, 0, time.UTC) }

	st, err := s.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, st.Completion.Complete)
	assert.Equal(t, []string{"branch", "year"}, st.Completion.Missing)
	assert.Equal(t, 2, st.CurrentStreak)
	assert.Equal(t, 3, st.BestStreak)
	assert.True(t, st.CheckedInToday)

	_, err = s.Status(context.Background(), "nobody")
	assert.ErrorIs(t, err, supabase.ErrNotFound)
}

func TestServiceCheckIn(t *testing.T) {
	r := &fakeRemote{}
	s := NewService(r, zap.NewNop())
	s.now = func() time.Time { return time.Date(2025, 10, 18, 22, 30, 0, 0, time.UTC) }

	require.NoError(t, s.CheckIn(context.Background(), "u1"))
	require.Len(t, r.checked, 1)
	assert.Equal(t, date("2025-10-18"), r.checked[0])

	r.checkErr = &supabase.APIError{Code: "23505", Message: "duplicate key value"}
	assert.ErrorIs(t, s.CheckIn(context.Background(), "u1"), ErrAlreadyCheckedIn)

	r.checkErr = errors.New("network down")
	err := s.CheckIn(context.Background(), "u1")
	assert.ErrorContains(t, err, "network down")
}
