package model

import (
	"time"

	"github.com/missuo/flux-panel/internal/lifecycle"
	"github.com/missuo/flux-panel/internal/quota"
)

// UserAccount is an account as listed to an admin.
type UserAccount struct {
	ID              int64         `json:"id" validate:"gt=0"`
	Username        string        `json:"user"`
	Role            Role          `json:"roleId"`
	FlowQuotaGB     int64         `json:"flow" validate:"gte=0"`
	InFlowBytes     int64         `json:"inFlow" validate:"gte=0"`
	OutFlowBytes    int64         `json:"outFlow" validate:"gte=0"`
	ForwardQuota    int64         `json:"num" validate:"gte=0"`
	ExpiresAt       string        `json:"expTime,omitempty"`
	ResetDayOfMonth int           `json:"flowResetTime" validate:"gte=0,lte=31"`
	Status          AccountStatus `json:"status"`
}

func UserAccountFromFields(fields map[string]any, opts ...Option) (UserAccount, error) {
	r := newReader("UserAccount", fields, buildOptions(opts))
	u := UserAccount{
		ID:              r.getInt64("id", true),
		Username:        r.getString("user", true),
		Role:            ParseRole(r.getInt("roleId", true)),
		FlowQuotaGB:     r.getInt64("flow", true),
		InFlowBytes:     r.getInt64("inFlow", false),
		OutFlowBytes:    r.getInt64("outFlow", false),
		ForwardQuota:    r.getInt64("num", true),
		ExpiresAt:       r.getExpiry("expTime"),
		ResetDayOfMonth: r.getInt("flowResetTime", false),
		Status:          ParseAccountStatus(r.getInt("status", true)),
	}
	r.checkRanges(u)
	if err := r.err(); err != nil {
		return UserAccount{}, err
	}
	return u, nil
}

func (u UserAccount) IsAdmin() bool { return u.Role == RoleAdmin }

func (u UserAccount) Enabled() bool { return u.Status == StatusEnabled }

func (u UserAccount) Usage() quota.Usage {
	return quota.Usage{QuotaGB: u.FlowQuotaGB, InBytes: u.InFlowBytes, OutBytes: u.OutFlowBytes, Direction: quota.Double}
}

func (u UserAccount) UnlimitedForwards() bool { return quota.IsUnlimitedCount(u.ForwardQuota) }

func (u UserAccount) Expiration(now time.Time) lifecycle.Expiration {
	return lifecycle.ExpirationStatus(u.ExpiresAt, now)
}

// Fields flattens the account for an update request. Accounts whose role or
// status came back as an unknown code are refused.
func (u UserAccount) Fields() (map[string]any, error) {
	role, err := u.Role.Code()
	if err != nil {
		return nil, err
	}
	status, err := u.Status.Code()
	if err != nil {
		return nil, err
	}
	m := map[string]any{
		"id":            u.ID,
		"user":          u.Username,
		"roleId":        role,
		"flow":          u.FlowQuotaGB,
		"inFlow":        u.InFlowBytes,
		"outFlow":       u.OutFlowBytes,
		"num":           u.ForwardQuota,
		"flowResetTime": u.ResetDayOfMonth,
		"status":        status,
	}
	putExpiry(m, "expTime", u.ExpiresAt)
	return m, nil
}
