package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveSource("jobs", "ok", time.Second)
	c.MessageSent("ok")
	c.FeedEvent("reconnect")
	c.Embedded("profiles", "ok")
	c.JobsWritten(3)
}

func TestCountersAreExposed(t *testing.T) {
	c := New()
	c.ObserveSource("jobs", "error", 10*time.Millisecond)
	c.ObserveSource("jobs", "error", 10*time.Millisecond)
	c.MessageSent("ok")
	c.JobsWritten(4)

	out := scrape(t, c)
	for _, want := range []string{
		`collatz_recommend_source_requests_total{outcome="error",source="jobs"} 2`,
		`collatz_outbox_messages_total{outcome="ok"} 1`,
		`collatz_jobs_upserted_total 4`,
		`collatz_recommend_source_duration_seconds_count{source="jobs"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.MessageSent("ok")
	if strings.Contains(scrape(t, b), "collatz_outbox_messages_total{") {
		t.Error("second collector saw sends recorded on the first")
	}
}

func TestRegistryGathers(t *testing.T) {
	c := New()
	c.FeedEvent("connected")
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "collatz_realtime_events_total" {
			found = true
		}
	}
	if !found {
		t.Error("realtime events family not gathered")
	}
}
