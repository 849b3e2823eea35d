package model

import (
	"errors"
	"strings"

	"github.com/missuo/flux-panel/internal/diag"
	"github.com/missuo/flux-panel/internal/lifecycle"
	"github.com/missuo/flux-panel/internal/quota"
	"github.com/missuo/flux-panel/internal/topology"
)

// DefaultStrategy is the load-balancing strategy assumed when a forward
// carries none.
const DefaultStrategy = "fifo"

// Forward is a forwarding rule on a tunnel. RemoteAddr keeps the raw,
// possibly multi-valued, target list.
type Forward struct {
	ID            int64              `json:"id" validate:"gt=0"`
	Name          string             `json:"name"`
	TunnelID      int64              `json:"tunnelId" validate:"gt=0"`
	TunnelName    string             `json:"tunnelName,omitempty"`
	InboundIP     string             `json:"inIp"`
	InboundPort   int                `json:"inPort" validate:"min=1,max=65535"`
	RemoteAddr    string             `json:"remoteAddr"`
	InterfaceName string             `json:"interfaceName,omitempty"`
	Strategy      string             `json:"strategy"`
	Status        lifecycle.RunState `json:"status"`
	InFlowBytes   int64              `json:"inFlow" validate:"gte=0"`
	OutFlowBytes  int64              `json:"outFlow" validate:"gte=0"`
	OwnerUserID   int64              `json:"userId" validate:"gte=0"`
	OwnerName     string             `json:"userName,omitempty"`
	CreatedAt     string             `json:"createdTime,omitempty"`
}

// ForwardFromFields builds a Forward. remoteAddr must hold at least one
// address; empty segments and targets without a usable port are dropped
// from the count and reported, not rejected. Dashboard rows carry no
// status; a missing status reads as paused.
func ForwardFromFields(fields map[string]any, opts ...Option) (Forward, error) {
	r := newReader("Forward", fields, buildOptions(opts))
	f := Forward{
		ID:            r.getInt64("id", true),
		Name:          r.getString("name", true),
		TunnelID:      r.getInt64("tunnelId", true),
		TunnelName:    r.getString("tunnelName", false),
		InboundIP:     r.getString("inIp", false),
		InboundPort:   r.getInt("inPort", true),
		RemoteAddr:    r.getString("remoteAddr", true),
		InterfaceName: r.getString("interfaceName", false),
		Strategy:      r.getString("strategy", false),
		Status:        lifecycle.RunningStatus(r.getInt("status", false)),
		InFlowBytes:   r.getInt64("inFlow", false),
		OutFlowBytes:  r.getInt64("outFlow", false),
		OwnerUserID:   r.getInt64("userId", false),
		OwnerName:     r.getString("userName", false),
		CreatedAt:     r.getText("createdTime"),
	}
	if strings.TrimSpace(f.Strategy) == "" {
		f.Strategy = DefaultStrategy
	}
	r.checkAddressList("inIp", f.InboundIP)
	r.checkRemote("remoteAddr", f.RemoteAddr)
	r.checkRanges(f)
	if err := r.err(); err != nil {
		return Forward{}, err
	}
	return f, nil
}

func (r *reader) checkRemote(key, raw string) {
	if r.hasIssue(key) {
		return
	}
	entries, _ := topology.SplitAddressList(raw)
	if len(entries) == 0 {
		r.add(key, OutOfRangeValue, "no address entries")
		return
	}
	if _, dropped := topology.ParseEndpoints(raw); dropped > 0 {
		r.warn(diag.MalformedAddressEntry, key, "malformed remote target dropped", dropped)
	}
}

func (f Forward) Running() bool { return f.Status == lifecycle.Running }

func (f Forward) InboundAddresses() []string { return topology.ParseAddressList(f.InboundIP) }

// RemoteAddresses lists the non-empty remote entries in order.
func (f Forward) RemoteAddresses() []string { return topology.ParseAddressList(f.RemoteAddr) }

// Endpoints parses the remote targets, dropping malformed ones.
func (f Forward) Endpoints() []topology.Endpoint {
	eps, _ := topology.ParseEndpoints(f.RemoteAddr)
	return eps
}

// FormattedInAddress renders every inbound IP with the forward's port.
func (f Forward) FormattedInAddress() string {
	return topology.FormatAddress(f.InboundIP, f.InboundPort)
}

func (f Forward) FormattedRemoteAddress() string {
	return strings.Join(f.RemoteAddresses(), ", ")
}

// TotalBytes is inbound plus outbound traffic through the forward.
func (f Forward) TotalBytes() int64 { return quota.UsedBytes(f.InFlowBytes, f.OutFlowBytes, quota.Double) }

func (f Forward) FormattedTotalFlow() string { return quota.FormattedUsed(f.TotalBytes()) }

// Draft returns the editable fields of f.
func (f Forward) Draft() ForwardDraft {
	return ForwardDraft{
		Name:          f.Name,
		TunnelID:      f.TunnelID,
		RemoteAddr:    f.RemoteAddr,
		InboundPort:   f.InboundPort,
		InterfaceName: f.InterfaceName,
		Strategy:      f.Strategy,
	}
}

func (f Forward) Fields() (map[string]any, error) {
	m := map[string]any{
		"id":         f.ID,
		"name":       f.Name,
		"tunnelId":   f.TunnelID,
		"inIp":       f.InboundIP,
		"inPort":     f.InboundPort,
		"remoteAddr": f.RemoteAddr,
		"strategy":   f.Strategy,
		"status":     f.Status.Code(),
		"inFlow":     f.InFlowBytes,
		"outFlow":    f.OutFlowBytes,
		"userId":     f.OwnerUserID,
	}
	putOptional(m, "tunnelName", f.TunnelName)
	putOptional(m, "interfaceName", f.InterfaceName)
	putOptional(m, "userName", f.OwnerName)
	putExpiry(m, "createdTime", f.CreatedAt)
	return m, nil
}

// ForwardDraft is the payload of a create or update request.
type ForwardDraft struct {
	Name          string
	TunnelID      int64
	RemoteAddr    string
	// InboundPort 0 lets the panel pick a free port in the tunnel's range.
	InboundPort   int
	InterfaceName string
	Strategy      string
}

var (
	ErrDraftName    = errors.New("forward name is required")
	ErrDraftTunnel  = errors.New("forward tunnel does not match")
	ErrDraftTargets = errors.New("forward needs at least one host:port target")
)

// Validate checks d against the tunnel it will be created on. Malformed
// targets are dropped as long as one valid target remains; dropped reports
// how many.
func (d ForwardDraft) Validate(t Tunnel) (dropped int, err error) {
	if strings.TrimSpace(d.Name) == "" {
		return 0, ErrDraftName
	}
	if d.TunnelID != t.ID {
		return 0, ErrDraftTunnel
	}
	eps, dropped := topology.ParseEndpoints(d.RemoteAddr)
	if len(eps) == 0 {
		return dropped, ErrDraftTargets
	}
	if d.InboundPort != 0 {
		if err := t.CheckForwardPort(d.InboundPort); err != nil {
			return dropped, err
		}
	}
	return dropped, nil
}

// Fields flattens the draft into request keys. Only parseable targets are
// sent, and inPort is left out when the panel should allocate it.
func (d ForwardDraft) Fields() map[string]any {
	eps, _ := topology.ParseEndpoints(d.RemoteAddr)
	strategy := strings.TrimSpace(d.Strategy)
	if strategy == "" {
		strategy = DefaultStrategy
	}
	m := map[string]any{
		"name":       strings.TrimSpace(d.Name),
		"tunnelId":   d.TunnelID,
		"remoteAddr": topology.JoinEndpoints(eps),
		"strategy":   strategy,
	}
	if d.InboundPort != 0 {
		m["inPort"] = d.InboundPort
	}
	putOptional(m, "interfaceName", d.InterfaceName)
	return m
}
