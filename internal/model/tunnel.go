package model

import (
	"github.com/missuo/flux-panel/internal/diag"
	"github.com/missuo/flux-panel/internal/quota"
	"github.com/missuo/flux-panel/internal/topology"
)

// Tunnel is a configured path from an inbound node to an outbound node.
type Tunnel struct {
	ID               int64           `json:"id" validate:"gt=0"`
	Name             string          `json:"name"`
	InboundNodeID    int64           `json:"inNodeId" validate:"gte=0"`
	OutboundNodeID   int64           `json:"outNodeId" validate:"gte=0"`
	InboundIP        string          `json:"inIp"`
	OutboundIP       string          `json:"outIp"`
	Kind             TunnelKind      `json:"type"`
	Billing          quota.Direction `json:"flow"`
	Protocol         Protocol        `json:"protocol"`
	TrafficRatio     float64         `json:"trafficRatio" validate:"gt=0"`
	InboundPortStart int             `json:"inNodePortSta" validate:"min=1,max=65535"`
	InboundPortEnd   int             `json:"inNodePortEnd" validate:"min=1,max=65535,gtefield=InboundPortStart"`
	TCPListenAddr    string          `json:"tcpListenAddr,omitempty"`
	UDPListenAddr    string          `json:"udpListenAddr,omitempty"`
	InterfaceName    string          `json:"interfaceName,omitempty"`
	InboundNodeName  string          `json:"inNodeName,omitempty"`
	OutboundNodeName string          `json:"outNodeName,omitempty"`
}

// TunnelFromFields builds a Tunnel. A missing trafficRatio means 1.0.
func TunnelFromFields(fields map[string]any, opts ...Option) (Tunnel, error) {
	r := newReader("Tunnel", fields, buildOptions(opts))
	t := Tunnel{
		ID:               r.getInt64("id", true),
		Name:             r.getString("name", true),
		InboundNodeID:    r.getInt64("inNodeId", false),
		OutboundNodeID:   r.getInt64("outNodeId", false),
		InboundIP:        r.getString("inIp", false),
		OutboundIP:       r.getString("outIp", false),
		Kind:             ParseTunnelKind(r.getInt("type", true)),
		Billing:          quota.ParseDirection(r.getInt("flow", true)),
		Protocol:         ParseProtocol(r.getString("protocol", true)),
		TrafficRatio:     r.getFloat("trafficRatio", false, 1),
		InboundPortStart: r.getInt("inNodePortSta", true),
		InboundPortEnd:   r.getInt("inNodePortEnd", true),
		TCPListenAddr:    r.getString("tcpListenAddr", false),
		UDPListenAddr:    r.getString("udpListenAddr", false),
		InterfaceName:    r.getString("interfaceName", false),
		InboundNodeName:  r.getString("inNodeName", false),
		OutboundNodeName: r.getString("outNodeName", false),
	}
	r.checkAddressList("inIp", t.InboundIP)
	r.checkRanges(t)
	if err := r.err(); err != nil {
		return Tunnel{}, err
	}
	return t, nil
}

// IsPortValid reports whether port lies in the tunnel's inbound range.
func (t Tunnel) IsPortValid(port int) bool {
	return topology.IsPortValid(port, t.InboundPortStart, t.InboundPortEnd)
}

func (t Tunnel) PortRange() string {
	return topology.PortRangeDescription(t.InboundPortStart, t.InboundPortEnd)
}

// InboundAddresses lists the tunnel's entry IPs.
func (t Tunnel) InboundAddresses() []string { return topology.ParseAddressList(t.InboundIP) }

// CheckForwardPort validates a requested inbound port for a forward on t.
func (t Tunnel) CheckForwardPort(port int) error {
	return topology.CheckForwardPort(port, t.InboundPortStart, t.InboundPortEnd)
}

// Fields flattens the tunnel. Unknown kind, direction or protocol cannot be
// written back.
func (t Tunnel) Fields() (map[string]any, error) {
	kind, err := t.Kind.Code()
	if err != nil {
		return nil, err
	}
	dir, err := t.Billing.Code()
	if err != nil {
		return nil, err
	}
	proto, err := t.Protocol.Code()
	if err != nil {
		return nil, err
	}
	m := map[string]any{
		"id":            t.ID,
		"name":          t.Name,
		"inNodeId":      t.InboundNodeID,
		"outNodeId":     t.OutboundNodeID,
		"inIp":          t.InboundIP,
		"outIp":         t.OutboundIP,
		"type":          kind,
		"flow":          dir,
		"protocol":      proto,
		"trafficRatio":  t.TrafficRatio,
		"inNodePortSta": t.InboundPortStart,
		"inNodePortEnd": t.InboundPortEnd,
	}
	putOptional(m, "tcpListenAddr", t.TCPListenAddr)
	putOptional(m, "udpListenAddr", t.UDPListenAddr)
	putOptional(m, "interfaceName", t.InterfaceName)
	putOptional(m, "inNodeName", t.InboundNodeName)
	putOptional(m, "outNodeName", t.OutboundNodeName)
	return m, nil
}

// checkAddressList reports empty segments in a comma-delimited field.
func (r *reader) checkAddressList(key, raw string) []string {
	entries, dropped := topology.SplitAddressList(raw)
	if dropped > 0 {
		r.warn(diag.MalformedAddressEntry, key, "empty address segment dropped", dropped)
	}
	return entries
}

func putOptional(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}
