package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/missuo/flux-panel/internal/diag"
	"github.com/missuo/flux-panel/internal/model"
	"github.com/missuo/flux-panel/internal/topology"
)

type recordedRequest struct {
	Path string
	Auth string
	Body map[string]any
}

type fakePanel struct {
	t        *testing.T
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]string
}

func newFakePanel(t *testing.T, routes map[string]string) (*fakePanel, *httptest.Server) {
	t.Helper()
	p := &fakePanel{t: t, routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *fakePanel) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	p.mu.Lock()
	p.requests = append(p.requests, recordedRequest{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
	p.mu.Unlock()

	resp, ok := p.routes[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if resp == "401" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":401,"msg":"expired","ts":1}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, resp)
}

func (p *fakePanel) last() recordedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		p.t.Fatalf("no request recorded")
	}
	return p.requests[len(p.requests)-1]
}

func success(data string) string {
	return `{"code":0,"msg":"ok","ts":1700000000000,"data":` + data + `}`
}

func TestLogin(t *testing.T) {
	p, srv := newFakePanel(t, map[string]string{
		pathLogin: success(`{"token":"tkn","role_id":0,"name":"admin_user","requirePasswordChange":true}`),
	})
	c := New(srv.URL + "/")
	s, err := c.Login(context.Background(), "admin_user", "admin_user", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Token != "tkn" || s.Role != model.RoleAdmin || !s.RequirePasswordChange {
		t.Fatalf("unexpected session %+v", s)
	}
	req := p.last()
	if req.Body["username"] != "admin_user" || req.Body["password"] != "admin_user" {
		t.Fatalf("unexpected login body %v", req.Body)
	}
	if _, present := req.Body["captchaId"]; present {
		t.Fatalf("empty captchaId must be omitted")
	}
	if req.Auth != "" {
		t.Fatalf("login must not send a token, got %q", req.Auth)
	}
}

func TestAPIErrorAndUnauthorized(t *testing.T) {
	_, srv := newFakePanel(t, map[string]string{
		pathLogin:       `{"code":-1,"msg":"bad credentials","ts":1}`,
		pathForwardList: "401",
		pathNodeList:    `{"code":401,"msg":"token expired","ts":1}`,
	})
	c := New(srv.URL, WithToken("old"))

	_, err := c.Login(context.Background(), "u", "p", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != -1 || apiErr.Msg != "bad credentials" {
		t.Fatalf("expected APIError, got %v", err)
	}
	if _, err := c.Forwards(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("HTTP 401 must map to ErrUnauthorized, got %v", err)
	}
	if _, err := c.Nodes(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("code 401 must map to ErrUnauthorized, got %v", err)
	}
	if _, err := c.Tunnels(context.Background()); err == nil {
		t.Fatalf("HTTP 404 must fail")
	}
}

func TestDashboardDecodesLargeCounters(t *testing.T) {
	p, srv := newFakePanel(t, map[string]string{
		pathPackage: success(`{
			"userInfo": {"flow": 100, "inFlow": 9007199254740993, "outFlow": 0, "num": 5, "usedNum": 2, "expTime": 1893456000000},
			"tunnelPermissions": [{"tunnelId": 3, "flow": 0, "inFlow": 10, "outFlow": 20, "tunnelFlow": 2}],
			"forwards": [],
			"statisticsFlows": null
		}`),
	})
	c := New(srv.URL).WithToken("tkn")
	d, err := c.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.Account.InFlowBytes != 9007199254740993 {
		t.Fatalf("counter lost precision: %d", d.Account.InFlowBytes)
	}
	if len(d.Assignments) != 1 || d.Assignments[0].Usage().Used() != 30 {
		t.Fatalf("unexpected assignments %+v", d.Assignments)
	}
	if got := p.last().Auth; got != "Bearer tkn" {
		t.Fatalf("Authorization = %q", got)
	}
}

func TestListsSkipInvalidRows(t *testing.T) {
	var counter diag.Counter
	_, srv := newFakePanel(t, map[string]string{
		pathForwardList: success(`[
			{"id": 1, "name": "a", "tunnelId": 1, "inPort": 100, "remoteAddr": "1.1.1.1:80,,", "status": 1},
			{"id": 2, "name": "b", "tunnelId": 1, "inPort": "x", "remoteAddr": "1.1.1.1:80", "status": 1}
		]`),
		pathUserList: success(`[{"id": 3, "user": "bob", "roleId": 1, "flow": 10, "num": 1, "status": 0}]`),
	})
	c := New(srv.URL, WithToken("tkn"), WithReporter(&counter))

	forwards, err := c.Forwards(context.Background())
	if len(forwards) != 1 || forwards[0].ID != 1 {
		t.Fatalf("unexpected forwards %+v", forwards)
	}
	var lerr *model.ListError
	if !errors.As(err, &lerr) || lerr.Skipped[1] == nil {
		t.Fatalf("expected row 1 skipped, got %v", err)
	}
	if counter.Count(diag.MalformedAddressEntry) != 2 {
		t.Fatalf("expected 2 dropped remote entries, got %d", counter.Count(diag.MalformedAddressEntry))
	}

	users, err := c.Users(context.Background())
	if err != nil || len(users) != 1 || users[0].Enabled() {
		t.Fatalf("Users() = %+v, %v", users, err)
	}
}

func TestCreateForwardValidatesBeforeSending(t *testing.T) {
	p, srv := newFakePanel(t, map[string]string{
		pathForwardCreate: success(`null`),
		pathForwardUpdate: success(`null`),
		pathForwardPause:  success(`null`),
	})
	c := New(srv.URL, WithToken("tkn"))
	tn := model.Tunnel{ID: 3, InboundPortStart: 1000, InboundPortEnd: 2000}

	draft := model.ForwardDraft{Name: "web", TunnelID: 3, RemoteAddr: "10.0.0.5:80", InboundPort: 3000}
	var rerr *topology.RangeError
	if err := c.CreateForward(context.Background(), tn, draft); !errors.As(err, &rerr) {
		t.Fatalf("expected RangeError, got %v", err)
	}
	p.mu.Lock()
	sent := len(p.requests)
	p.mu.Unlock()
	if sent != 0 {
		t.Fatalf("invalid draft must not be sent")
	}

	draft.InboundPort = 1500
	if err := c.CreateForward(context.Background(), tn, draft); err != nil {
		t.Fatalf("CreateForward: %v", err)
	}
	req := p.last()
	if req.Path != pathForwardCreate || req.Body["inPort"] != float64(1500) || req.Body["strategy"] != "fifo" {
		t.Fatalf("unexpected create request %+v", req)
	}

	auto := draft
	auto.InboundPort = 0
	if err := c.CreateForward(context.Background(), tn, auto); err != nil {
		t.Fatalf("CreateForward without port: %v", err)
	}
	if _, ok := p.last().Body["inPort"]; ok {
		t.Fatalf("inPort must be left to the panel, got %+v", p.last().Body)
	}

	if err := c.UpdateForward(context.Background(), 9, tn, draft); err != nil {
		t.Fatalf("UpdateForward: %v", err)
	}
	if got := p.last().Body["id"]; got != float64(9) {
		t.Fatalf("update id = %v", got)
	}

	if err := c.PauseForward(context.Background(), 9); err != nil {
		t.Fatalf("PauseForward: %v", err)
	}
	if err := c.PauseForward(context.Background(), 0); err == nil {
		t.Fatalf("id 0 must be rejected")
	}
}

func TestWithTokenCopies(t *testing.T) {
	base := New("http://panel.example")
	authed := base.WithToken(" tkn ")
	if base.Token() != "" || authed.Token() != "tkn" {
		t.Fatalf("WithToken must not modify the receiver: %q %q", base.Token(), authed.Token())
	}
	if authed.BaseURL() != "http://panel.example" {
		t.Fatalf("BaseURL() = %q", authed.BaseURL())
	}
}
