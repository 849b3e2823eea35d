package model

import (
	"errors"
	"strings"
)

// ErrUnknownVariant is returned when an enumeration holding an unrecognized
// backend code would be written back to the backend.
var ErrUnknownVariant = errors.New("unknown enumeration variant")

// Role of an account as seen by an admin.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleUser
)

// ParseRole maps roleId: 0 admin, 1 user.
func ParseRole(code int) Role {
	switch code {
	case 0:
		return RoleAdmin
	case 1:
		return RoleUser
	default:
		return RoleUnknown
	}
}

func (r Role) Code() (int, error) {
	switch r {
	case RoleAdmin:
		return 0, nil
	case RoleUser:
		return 1, nil
	default:
		return 0, ErrUnknownVariant
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "unknown"
	}
}

// AccountStatus of a user record.
type AccountStatus int

const (
	StatusUnknown AccountStatus = iota
	StatusDisabled
	StatusEnabled
)

// ParseAccountStatus maps status: 0 disabled, 1 enabled.
func ParseAccountStatus(code int) AccountStatus {
	switch code {
	case 0:
		return StatusDisabled
	case 1:
		return StatusEnabled
	default:
		return StatusUnknown
	}
}

func (s AccountStatus) Code() (int, error) {
	switch s {
	case StatusDisabled:
		return 0, nil
	case StatusEnabled:
		return 1, nil
	default:
		return 0, ErrUnknownVariant
	}
}

func (s AccountStatus) String() string {
	switch s {
	case StatusDisabled:
		return "disabled"
	case StatusEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

// TunnelKind is the forwarding mode of a tunnel.
type TunnelKind int

const (
	KindUnknown TunnelKind = iota
	PortForward
	TunnelForward
)

// ParseTunnelKind maps type: 1 port forward, 2 tunnel forward.
func ParseTunnelKind(code int) TunnelKind {
	switch code {
	case 1:
		return PortForward
	case 2:
		return TunnelForward
	default:
		return KindUnknown
	}
}

func (k TunnelKind) Code() (int, error) {
	switch k {
	case PortForward:
		return 1, nil
	case TunnelForward:
		return 2, nil
	default:
		return 0, ErrUnknownVariant
	}
}

func (k TunnelKind) String() string {
	switch k {
	case PortForward:
		return "port forward"
	case TunnelForward:
		return "tunnel forward"
	default:
		return "unknown"
	}
}

// Protocol carried by a tunnel.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	TCP
	UDP
	TCPAndUDP
)

// ParseProtocol maps the backend protocol string, case-insensitively.
func ParseProtocol(s string) Protocol {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp":
		return TCP
	case "udp":
		return UDP
	case "tcp+udp", "tcp,udp", "all":
		return TCPAndUDP
	default:
		return ProtocolUnknown
	}
}

func (p Protocol) Code() (string, error) {
	switch p {
	case TCP:
		return "tcp", nil
	case UDP:
		return "udp", nil
	case TCPAndUDP:
		return "tcp+udp", nil
	default:
		return "", ErrUnknownVariant
	}
}

func (p Protocol) String() string {
	switch p {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	case TCPAndUDP:
		return "tcp+udp"
	default:
		return "unknown"
	}
}
