// Package topology validates port ranges between nodes, tunnels and
// forwards, and parses the comma-delimited address lists used for fan-out
// forwarding.
package topology

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	MinPort = 1
	MaxPort = 65535
)

// IsPortValid reports whether start <= port <= end.
func IsPortValid(port, start, end int) bool {
	return port >= start && port <= end
}

// PortRangeDescription renders "start" for a single port, else "start-end".
func PortRangeDescription(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + "-" + strconv.Itoa(end)
}

// RangeError reports a port or port range outside the range that must
// contain it.
type RangeError struct {
	What       string
	Start, End int
	OuterStart int
	OuterEnd   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %s outside allowed range %s", e.What,
		PortRangeDescription(e.Start, e.End), PortRangeDescription(e.OuterStart, e.OuterEnd))
}

// CheckTunnelRange checks a tunnel's advertised inbound range against the
// allocatable range of its inbound node.
func CheckTunnelRange(tunnelStart, tunnelEnd, nodeStart, nodeEnd int) error {
	if tunnelStart > tunnelEnd ||
		!IsPortValid(tunnelStart, nodeStart, nodeEnd) ||
		!IsPortValid(tunnelEnd, nodeStart, nodeEnd) {
		return &RangeError{What: "tunnel port range", Start: tunnelStart, End: tunnelEnd, OuterStart: nodeStart, OuterEnd: nodeEnd}
	}
	return nil
}

// CheckForwardPort checks a forward's requested inbound port against its
// tunnel's range.
func CheckForwardPort(port, tunnelStart, tunnelEnd int) error {
	if !IsPortValid(port, tunnelStart, tunnelEnd) {
		return &RangeError{What: "inbound port", Start: port, End: port, OuterStart: tunnelStart, OuterEnd: tunnelEnd}
	}
	return nil
}

// SplitAddressList splits raw on commas, trims each segment and drops empty
// ones, keeping order. dropped counts the discarded segments.
func SplitAddressList(raw string) (entries []string, dropped int) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, 0
	}
	parts := strings.Split(raw, ",")
	entries = make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			dropped++
			continue
		}
		entries = append(entries, p)
	}
	return entries, dropped
}

// ParseAddressList is SplitAddressList without the dropped count.
func ParseAddressList(raw string) []string {
	entries, _ := SplitAddressList(raw)
	return entries
}

// FormatAddress renders ip:port for every entry of a possibly multi-valued
// ip field, joined with ", ". IPv6 literals are bracketed.
func FormatAddress(ip string, port int) string {
	hosts := ParseAddressList(ip)
	if len(hosts) == 0 {
		return ":" + strconv.Itoa(port)
	}
	p := strconv.Itoa(port)
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = net.JoinHostPort(strings.Trim(h, "[]"), p)
	}
	return strings.Join(out, ", ")
}

// Endpoint is one remote host:port target.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoints parses a remote address list. Entries without a host or a
// numeric port in [1,65535] are dropped and counted, as are empty segments.
func ParseEndpoints(raw string) (endpoints []Endpoint, dropped int) {
	entries, dropped := SplitAddressList(raw)
	endpoints = make([]Endpoint, 0, len(entries))
	for _, e := range entries {
		ep, ok := parseEndpoint(e)
		if !ok {
			dropped++
			continue
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, dropped
}

func parseEndpoint(s string) (Endpoint, bool) {
	host, portText, err := net.SplitHostPort(s)
	if err != nil || strings.TrimSpace(host) == "" {
		return Endpoint{}, false
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < MinPort || port > MaxPort {
		return Endpoint{}, false
	}
	return Endpoint{Host: host, Port: port}, true
}

// JoinEndpoints renders endpoints back into the comma-delimited wire form.
func JoinEndpoints(endpoints []Endpoint) string {
	parts := make([]string, len(endpoints))
	for i, e := range endpoints {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}
