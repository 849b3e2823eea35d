package model

import (
	"github.com/missuo/flux-panel/internal/lifecycle"
	"github.com/missuo/flux-panel/internal/topology"
)

// Node is a backend-managed host with its own allocatable port range.
type Node struct {
	ID         int64  `json:"id" validate:"gt=0"`
	Name       string `json:"name"`
	Secret     string `json:"secret"`
	IP         string `json:"ip"`
	ExternalIP string `json:"serverIp,omitempty"`
	Version    string `json:"version,omitempty"`
	PortStart  int    `json:"portSta" validate:"min=1,max=65535"`
	PortEnd    int    `json:"portEnd" validate:"min=1,max=65535,gtefield=PortStart"`
	HTTPCap    int    `json:"http" validate:"gte=0"`
	TLSCap     int    `json:"tls" validate:"gte=0"`
	SocksCap   int    `json:"socks" validate:"gte=0"`
	IsOnline   bool   `json:"isOnline"`
}

// NodeFromFields builds a Node. The online flag is read from isOnline, or
// from the backend status code (1 online) when isOnline is absent.
func NodeFromFields(fields map[string]any, opts ...Option) (Node, error) {
	r := newReader("Node", fields, buildOptions(opts))
	n := Node{
		ID:         r.getInt64("id", true),
		Name:       r.getString("name", true),
		Secret:     r.getString("secret", false),
		IP:         r.getString("ip", true),
		ExternalIP: r.getString("serverIp", false),
		Version:    r.getString("version", false),
		PortStart:  r.getInt("portSta", true),
		PortEnd:    r.getInt("portEnd", true),
		HTTPCap:    r.getInt("http", false),
		TLSCap:     r.getInt("tls", false),
		SocksCap:   r.getInt("socks", false),
	}
	if online, ok := r.getBool("isOnline"); ok {
		n.IsOnline = online
	} else if r.has("status") && !r.has("isOnline") {
		n.IsOnline = r.getInt("status", false) == 1
	}
	r.checkAddressList("ip", n.IP)
	r.checkRanges(n)
	if err := r.err(); err != nil {
		return Node{}, err
	}
	return n, nil
}

func (n Node) PortRange() string { return topology.PortRangeDescription(n.PortStart, n.PortEnd) }

func (n Node) Presence() lifecycle.Presence { return lifecycle.OnlineStatus(n.IsOnline) }

// Addresses lists the node's IPs.
func (n Node) Addresses() []string { return topology.ParseAddressList(n.IP) }

// CanHost checks that t's inbound range fits inside n's allocatable range.
func (n Node) CanHost(t Tunnel) error {
	return topology.CheckTunnelRange(t.InboundPortStart, t.InboundPortEnd, n.PortStart, n.PortEnd)
}

// WithPresence returns a copy of n with the online flag replaced. Used when a
// live status frame supersedes the listed state.
func (n Node) WithPresence(p lifecycle.Presence) Node {
	n.IsOnline = p == lifecycle.Online
	return n
}

func (n Node) Fields() (map[string]any, error) {
	m := map[string]any{
		"id":       n.ID,
		"name":     n.Name,
		"secret":   n.Secret,
		"ip":       n.IP,
		"portSta":  n.PortStart,
		"portEnd":  n.PortEnd,
		"http":     n.HTTPCap,
		"tls":      n.TLSCap,
		"socks":    n.SocksCap,
		"isOnline": n.IsOnline,
	}
	putOptional(m, "serverIp", n.ExternalIP)
	putOptional(m, "version", n.Version)
	return m, nil
}
