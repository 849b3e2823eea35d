package model

import (
	"errors"
	"math"
	"testing"

	"github.com/missuo/flux-panel/internal/diag"
	"github.com/missuo/flux-panel/internal/lifecycle"
	"github.com/missuo/flux-panel/internal/topology"
)

const forwardJSON = `{
	"id": 42,
	"name": "web",
	"tunnelId": 3,
	"tunnelName": "hk-sg",
	"inIp": "10.0.0.1,10.0.0.2",
	"inPort": 10080,
	"remoteAddr": "192.168.1.10:80,192.168.1.11:80",
	"strategy": "round",
	"status": 1,
	"inFlow": 1024,
	"outFlow": 2048,
	"userId": 7,
	"userName": "alice",
	"createdTime": 1735689600000
}`

func TestForwardFromFields(t *testing.T) {
	f, err := ForwardFromFields(decode(t, forwardJSON))
	if err != nil {
		t.Fatalf("ForwardFromFields: %v", err)
	}
	if !f.Running() || f.Status != lifecycle.Running {
		t.Fatalf("status 1 must be running")
	}
	if got := f.FormattedInAddress(); got != "10.0.0.1:10080, 10.0.0.2:10080" {
		t.Fatalf("FormattedInAddress() = %q", got)
	}
	if got := f.FormattedRemoteAddress(); got != "192.168.1.10:80, 192.168.1.11:80" {
		t.Fatalf("FormattedRemoteAddress() = %q", got)
	}
	if got := f.FormattedTotalFlow(); got != "3.0 KB" {
		t.Fatalf("FormattedTotalFlow() = %q", got)
	}
	if eps := f.Endpoints(); len(eps) != 2 || eps[0].Port != 80 {
		t.Fatalf("Endpoints() = %v", eps)
	}
}

func TestForwardRoundTrip(t *testing.T) {
	in := decode(t, forwardJSON)
	f, err := ForwardFromFields(in)
	if err != nil {
		t.Fatalf("ForwardFromFields: %v", err)
	}
	out, err := f.Fields()
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	assertSameValues(t, in, out)
}

func TestForwardDefaults(t *testing.T) {
	f, err := ForwardFromFields(decode(t,
		`{"id": 1, "name": "n", "tunnelId": 1, "inPort": 1, "remoteAddr": "a.example:1", "status": 0}`))
	if err != nil {
		t.Fatalf("ForwardFromFields: %v", err)
	}
	if f.Strategy != DefaultStrategy {
		t.Fatalf("Strategy = %q", f.Strategy)
	}
	if f.Running() {
		t.Fatalf("status 0 must be paused")
	}
	if got := f.FormattedInAddress(); got != ":1" {
		t.Fatalf("FormattedInAddress() without ip = %q", got)
	}
}

func TestForwardWithoutStatus(t *testing.T) {
	f, err := ForwardFromFields(decode(t,
		`{"id": 7, "name": "n", "tunnelId": 1, "inPort": 1, "remoteAddr": "a.example:1", "inFlow": 1, "outFlow": 2}`))
	if err != nil {
		t.Fatalf("missing status must be accepted: %v", err)
	}
	if f.Status != lifecycle.Paused {
		t.Fatalf("missing status = %s, want paused", f.Status)
	}
	if _, err := ForwardFromFields(decode(t,
		`{"id": 7, "name": "n", "tunnelId": 1, "inPort": 1, "remoteAddr": "a.example:1", "status": "on"}`)); err == nil {
		t.Fatalf("a non-numeric status must still be rejected")
	}
}

func TestForwardTotalBytesSaturates(t *testing.T) {
	f := Forward{InFlowBytes: math.MaxInt64, OutFlowBytes: 1}
	if got := f.TotalBytes(); got != math.MaxInt64 {
		t.Fatalf("TotalBytes() = %d, want MaxInt64", got)
	}
}

func TestForwardRemoteAddress(t *testing.T) {
	t.Run("no entries", func(t *testing.T) {
		_, err := ForwardFromFields(decode(t,
			`{"id": 1, "name": "n", "tunnelId": 1, "inPort": 1, "remoteAddr": " , ,", "status": 1}`))
		ve := mustValidationError(t, err)
		if !ve.Has("remoteAddr", OutOfRangeValue) {
			t.Fatalf("expected remoteAddr out of range, got %v", ve)
		}
	})
	t.Run("malformed entries dropped", func(t *testing.T) {
		var c diag.Counter
		f, err := ForwardFromFields(decode(t,
			`{"id": 1, "name": "n", "tunnelId": 1, "inPort": 1, "remoteAddr": "1.1.1.1:80,,nohost,2.2.2.2:99999", "status": 1}`),
			WithReporter(&c))
		if err != nil {
			t.Fatalf("ForwardFromFields: %v", err)
		}
		if len(f.Endpoints()) != 1 {
			t.Fatalf("expected one usable endpoint, got %v", f.Endpoints())
		}
		if c.Count(diag.MalformedAddressEntry) != 3 {
			t.Fatalf("expected 3 dropped targets, got %d", c.Count(diag.MalformedAddressEntry))
		}
	})
	t.Run("missing", func(t *testing.T) {
		_, err := ForwardFromFields(decode(t, `{"id": 1, "name": "n", "tunnelId": 1, "inPort": 1, "status": 1}`))
		ve := mustValidationError(t, err)
		if !ve.Has("remoteAddr", MissingField) || ve.Has("remoteAddr", OutOfRangeValue) {
			t.Fatalf("missing remoteAddr must be reported once, got %v", ve)
		}
	})
}

func TestForwardDraftValidate(t *testing.T) {
	tn := Tunnel{ID: 3, InboundPortStart: 10000, InboundPortEnd: 10010}
	base := ForwardDraft{Name: "web", TunnelID: 3, RemoteAddr: "1.1.1.1:80", InboundPort: 10005}

	if _, err := base.Validate(tn); err != nil {
		t.Fatalf("valid draft rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*ForwardDraft)
		want   error
	}{
		{"empty name", func(d *ForwardDraft) { d.Name = "  " }, ErrDraftName},
		{"other tunnel", func(d *ForwardDraft) { d.TunnelID = 4 }, ErrDraftTunnel},
		{"no targets", func(d *ForwardDraft) { d.RemoteAddr = "nohost, ," }, ErrDraftTargets},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := base
			tc.mutate(&d)
			if _, err := d.Validate(tn); !errors.Is(err, tc.want) {
				t.Fatalf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}

	d := base
	d.InboundPort = 9999
	var rerr *topology.RangeError
	if _, err := d.Validate(tn); !errors.As(err, &rerr) {
		t.Fatalf("out of range port must return RangeError, got %v", err)
	}

	d = base
	d.RemoteAddr = "1.1.1.1:80, bad ,[2001:db8::2]:443"
	dropped, err := d.Validate(tn)
	if err != nil || dropped != 1 {
		t.Fatalf("Validate() = %d, %v", dropped, err)
	}
	fields := d.Fields()
	if fields["remoteAddr"] != "1.1.1.1:80,[2001:db8::2]:443" {
		t.Fatalf("draft remoteAddr = %v", fields["remoteAddr"])
	}
	if fields["strategy"] != DefaultStrategy {
		t.Fatalf("draft strategy = %v", fields["strategy"])
	}
}

func TestForwardDraftWithoutPort(t *testing.T) {
	tn := Tunnel{ID: 3, InboundPortStart: 10000, InboundPortEnd: 10010}
	d := ForwardDraft{Name: "web", TunnelID: 3, RemoteAddr: "1.1.1.1:80"}

	if _, err := d.Validate(tn); err != nil {
		t.Fatalf("draft without a port must leave allocation to the panel: %v", err)
	}
	if _, ok := d.Fields()["inPort"]; ok {
		t.Fatalf("inPort must be omitted when unset, got %v", d.Fields())
	}

	d.InboundPort = -1
	var rerr *topology.RangeError
	if _, err := d.Validate(tn); !errors.As(err, &rerr) {
		t.Fatalf("negative port must return RangeError, got %v", err)
	}

	d.InboundPort = 10001
	if got := d.Fields()["inPort"]; got != 10001 {
		t.Fatalf("inPort = %v, want 10001", got)
	}
}

func TestForwardDraftFromForward(t *testing.T) {
	f, err := ForwardFromFields(decode(t, forwardJSON))
	if err != nil {
		t.Fatalf("ForwardFromFields: %v", err)
	}
	d := f.Draft()
	if d.TunnelID != 3 || d.InboundPort != 10080 || d.Strategy != "round" {
		t.Fatalf("Draft() = %+v", d)
	}
}
