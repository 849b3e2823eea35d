package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	storemodel "github.com/missuo/flux-panel/internal/store/model"
)

func TestDurationUntilNextHour(t *testing.T) {
	now := time.Date(2025, time.January, 1, 10, 59, 30, 0, time.UTC)
	if got := durationUntilNextHour(now); got != 30*time.Second {
		t.Fatalf("durationUntilNextHour() = %v", got)
	}
	onHour := time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC)
	if got := durationUntilNextHour(onHour); got != time.Hour {
		t.Fatalf("durationUntilNextHour(on the hour) = %v", got)
	}
}

func TestDurationUntilNextDailyMaintenance(t *testing.T) {
	cases := []struct {
		now  time.Time
		want time.Duration
	}{
		{time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 5 * time.Second},
		{time.Date(2025, time.January, 1, 0, 0, 5, 0, time.UTC), 24 * time.Hour},
		{time.Date(2025, time.January, 1, 23, 0, 0, 0, time.UTC), time.Hour + 5*time.Second},
	}
	for _, tc := range cases {
		if got := durationUntilNextDailyMaintenance(tc.now); got != tc.want {
			t.Errorf("durationUntilNextDailyMaintenance(%v) = %v, want %v", tc.now, got, tc.want)
		}
	}
}

func TestUsageSampleJob(t *testing.T) {
	srv := newPanel(t)
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	a, _ := newTestApp(t, srv.URL, "tkn", now)

	a.runUsageSampleJob(now)
	if rows, _ := a.Repository().ListUsageSince(0); len(rows) != 0 {
		t.Fatalf("no snapshot yet, expected no samples, got %d", len(rows))
	}

	if _, _, err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	a.runUsageSampleJob(now)
	a.runUsageSampleJob(now.Add(time.Hour))
	rows, err := a.Repository().ListUsageSince(0)
	if err != nil {
		t.Fatalf("ListUsageSince: %v", err)
	}
	if len(rows) != 2 || rows[0].Flow != 2*1073741824 || rows[1].Flow != 0 {
		t.Fatalf("unexpected samples %+v", rows)
	}

	later := now.Add(49*time.Hour + time.Minute)
	a.runUsageSampleJob(later)
	rows, _ = a.Repository().ListUsageSince(0)
	if len(rows) != 1 || rows[0].CreatedTime != later.Truncate(time.Hour).UnixMilli() {
		t.Fatalf("samples past retention must be purged, got %+v", rows)
	}
}

func TestExpiryReportJob(t *testing.T) {
	srv := newPanel(t)
	now := time.Date(2025, time.June, 1, 0, 0, 5, 0, time.UTC)
	a, logs := newTestApp(t, srv.URL, "tkn", now)

	if _, _, err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	a.runExpiryReportJob(context.Background(), now)
	out := logs.String()
	for _, want := range []string{
		"account expires in 2 day(s)",
		"flow resets on 2025-06-02",
		`tunnel "t1" assignment expired on 2025-05-01`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in logs:\n%s", want, out)
		}
	}
}

func TestExpiryReportJobStopsWithContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	now := time.Date(2025, time.June, 1, 0, 0, 5, 0, time.UTC)
	a, logs := newTestApp(t, srv.URL, "tkn", now)
	if _, err := a.Repository().SaveSnapshot(storemodel.WidgetSnapshot{TotalFlowGB: 10, ExpTime: "2025-06-03"}, now); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.runExpiryReportJob(ctx, now)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expiry report must return once its context is cancelled")
	}
	if !strings.Contains(logs.String(), "account expires in 2 day(s)") {
		t.Fatalf("cached snapshot must still be reported, got %q", logs.String())
	}
}

func TestBackgroundJobsStartStop(t *testing.T) {
	srv := newPanel(t)
	a, _ := newTestApp(t, srv.URL, "tkn", time.Now())
	ctx := context.Background()
	a.StartBackgroundJobs(ctx)
	a.StartBackgroundJobs(ctx)
	a.StopBackgroundJobs()
	a.StopBackgroundJobs()

	var nilApp *App
	nilApp.StartBackgroundJobs(ctx)
	nilApp.StopBackgroundJobs()
}
