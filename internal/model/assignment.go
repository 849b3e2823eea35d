package model

import (
	"time"

	"github.com/missuo/flux-panel/internal/lifecycle"
	"github.com/missuo/flux-panel/internal/quota"
)

// TunnelAssignment is an account's grant on one tunnel.
type TunnelAssignment struct {
	ID              int64           `json:"id,omitempty" validate:"gte=0"`
	TunnelID        int64           `json:"tunnelId" validate:"gt=0"`
	TunnelName      string          `json:"tunnelName"`
	FlowQuotaGB     int64           `json:"flow" validate:"gte=0"`
	InFlowBytes     int64           `json:"inFlow" validate:"gte=0"`
	OutFlowBytes    int64           `json:"outFlow" validate:"gte=0"`
	ForwardQuota    int64           `json:"num" validate:"gte=0"`
	ExpiresAt       string          `json:"expTime,omitempty"`
	ResetDayOfMonth int             `json:"flowResetTime" validate:"gte=0,lte=31"`
	Billing         quota.Direction `json:"tunnelFlow"`
}

// TunnelAssignmentFromFields builds a TunnelAssignment from one entry of the
// dashboard's tunnelPermissions list.
func TunnelAssignmentFromFields(fields map[string]any, opts ...Option) (TunnelAssignment, error) {
	r := newReader("TunnelAssignment", fields, buildOptions(opts))
	t := TunnelAssignment{
		ID:              r.getInt64("id", false),
		TunnelID:        r.getInt64("tunnelId", true),
		TunnelName:      r.getString("tunnelName", false),
		FlowQuotaGB:     r.getInt64("flow", true),
		InFlowBytes:     r.getInt64("inFlow", true),
		OutFlowBytes:    r.getInt64("outFlow", true),
		ForwardQuota:    r.getInt64("num", false),
		ExpiresAt:       r.getExpiry("expTime"),
		ResetDayOfMonth: r.getInt("flowResetTime", false),
		Billing:         quota.ParseDirection(r.getInt("tunnelFlow", true)),
	}
	r.checkRanges(t)
	if err := r.err(); err != nil {
		return TunnelAssignment{}, err
	}
	return t, nil
}

// Usage bills according to the tunnel's direction.
func (t TunnelAssignment) Usage() quota.Usage {
	return quota.Usage{QuotaGB: t.FlowQuotaGB, InBytes: t.InFlowBytes, OutBytes: t.OutFlowBytes, Direction: t.Billing}
}

func (t TunnelAssignment) UnlimitedForwards() bool { return quota.IsUnlimitedCount(t.ForwardQuota) }

func (t TunnelAssignment) Expiration(now time.Time) lifecycle.Expiration {
	return lifecycle.ExpirationStatus(t.ExpiresAt, now)
}

func (t TunnelAssignment) NextReset(now time.Time) (time.Time, bool) {
	return lifecycle.NextFlowReset(t.ResetDayOfMonth, now)
}

// Fields flattens the assignment. An unknown billing direction cannot be
// written back.
func (t TunnelAssignment) Fields() (map[string]any, error) {
	dir, err := t.Billing.Code()
	if err != nil {
		return nil, err
	}
	m := map[string]any{
		"tunnelId":      t.TunnelID,
		"tunnelName":    t.TunnelName,
		"flow":          t.FlowQuotaGB,
		"inFlow":        t.InFlowBytes,
		"outFlow":       t.OutFlowBytes,
		"num":           t.ForwardQuota,
		"flowResetTime": t.ResetDayOfMonth,
		"tunnelFlow":    dir,
	}
	if t.ID != 0 {
		m["id"] = t.ID
	}
	putExpiry(m, "expTime", t.ExpiresAt)
	return m, nil
}
