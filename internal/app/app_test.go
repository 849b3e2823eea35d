package app

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/missuo/flux-panel/internal/api"
	"github.com/missuo/flux-panel/internal/config"
)

const packageBody = `{"code":0,"msg":"ok","ts":1,"data":{
	"userInfo": {"flow": 10, "inFlow": 1073741824, "outFlow": 1073741824, "num": 3, "expTime": "2025-06-03", "flowResetTime": 2},
	"tunnelPermissions": [{"tunnelId": 1, "tunnelName": "t1", "flow": 0, "inFlow": 0, "outFlow": 0, "tunnelFlow": 9, "expTime": "2025-05-01"}],
	"forwards": [{"id": 1, "name": "bad"}],
	"statisticsFlows": []
}}`

func newPanel(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/user/login":
			_, _ = io.WriteString(w, `{"code":0,"msg":"ok","ts":1,"data":{"token":"fresh","role_id":1,"name":"alice"}}`)
		case "/api/v1/user/package":
			if r.Header.Get("Authorization") != "Bearer fresh" && r.Header.Get("Authorization") != "Bearer tkn" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, packageBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, serverURL, token string, now time.Time) (*App, *strings.Builder) {
	t.Helper()
	cfg := config.Config{
		ServerURL:       serverURL,
		Token:           token,
		DBType:          config.DBTypeSQLite,
		DBPath:          ":memory:",
		ExpiryWarnDays:  7,
		RefreshInterval: time.Hour,
		HTTPTimeout:     5 * time.Second,
	}
	var logs strings.Builder
	a, err := New(cfg, WithLogger(log.New(&logs, "", 0)), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a, &logs
}

func TestRefreshStoresSnapshot(t *testing.T) {
	srv := newPanel(t)
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	a, logs := newTestApp(t, srv.URL, "tkn", now)

	d, snap, err := a.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(d.Forwards) != 0 || len(d.Assignments) != 1 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
	if !strings.Contains(logs.String(), "dashboard:") {
		t.Fatalf("skipped rows should be logged, got %q", logs.String())
	}
	if snap.TotalFlowGB != 10 || snap.UsedFlowBytes != 2*1073741824 || snap.ServerURL != srv.URL {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	stored, err := a.Repository().LoadSnapshot()
	if err != nil || stored == nil || stored.Revision != snap.Revision {
		t.Fatalf("LoadSnapshot() = %+v, %v", stored, err)
	}
	if url, _ := a.Repository().ServerURL(); url != srv.URL {
		t.Fatalf("server URL not saved: %q", url)
	}
}

func TestRefreshNeedsSession(t *testing.T) {
	srv := newPanel(t)
	a, _ := newTestApp(t, srv.URL, "", time.Now())
	if _, _, err := a.Refresh(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Refresh() = %v, want ErrNoSession", err)
	}
	if err := a.Run(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Run() = %v, want ErrNoSession", err)
	}
}

func TestLoginSavesToken(t *testing.T) {
	srv := newPanel(t)
	a, _ := newTestApp(t, srv.URL, "", time.Now())

	s, err := a.Login(context.Background(), "alice", "secret", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Token != "fresh" || a.Client().Token() != "fresh" {
		t.Fatalf("client token not switched: %q", a.Client().Token())
	}
	if tok, _ := a.Repository().AuthToken(); tok != "fresh" {
		t.Fatalf("token not saved: %q", tok)
	}
	if _, _, err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh after login: %v", err)
	}

	if err := a.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if a.Client().Token() != "" {
		t.Fatalf("Logout must drop the token")
	}
	if tok, _ := a.Repository().AuthToken(); tok != "" {
		t.Fatalf("Logout must clear the saved token")
	}
}

func TestRunStopsOnUnauthorized(t *testing.T) {
	srv := newPanel(t)
	a, _ := newTestApp(t, srv.URL, "revoked", time.Now())
	if err := a.Run(context.Background()); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("Run() = %v, want ErrUnauthorized", err)
	}
}

func TestRunUntilCancelled(t *testing.T) {
	srv := newPanel(t)
	a, _ := newTestApp(t, srv.URL, "tkn", time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if s, _ := a.Repository().LoadSnapshot(); s != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("initial refresh did not store a snapshot")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
