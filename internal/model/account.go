package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/missuo/flux-panel/internal/diag"
	"github.com/missuo/flux-panel/internal/lifecycle"
	"github.com/missuo/flux-panel/internal/quota"
)

// AccountQuota is the logged-in user's plan: flow quota, usage and forward
// allowance.
type AccountQuota struct {
	Username         string `json:"user,omitempty"`
	FlowQuotaGB      int64  `json:"flow" validate:"gte=0"`
	InFlowBytes      int64  `json:"inFlow" validate:"gte=0"`
	OutFlowBytes     int64  `json:"outFlow" validate:"gte=0"`
	ForwardQuota     int64  `json:"num" validate:"gte=0"`
	UsedForwardCount int64  `json:"usedNum" validate:"gte=0"`
	ExpiresAt        string `json:"expTime,omitempty"`
	ResetDayOfMonth  int    `json:"flowResetTime" validate:"gte=0,lte=31"`
}

// AccountQuotaFromFields builds an AccountQuota from a decoded userInfo object.
func AccountQuotaFromFields(fields map[string]any, opts ...Option) (AccountQuota, error) {
	r := newReader("AccountQuota", fields, buildOptions(opts))
	a := AccountQuota{
		Username:         r.getString("user", false),
		FlowQuotaGB:      r.getInt64("flow", true),
		InFlowBytes:      r.getInt64("inFlow", true),
		OutFlowBytes:     r.getInt64("outFlow", true),
		ForwardQuota:     r.getInt64("num", true),
		UsedForwardCount: r.getInt64("usedNum", false),
		ExpiresAt:        r.getExpiry("expTime"),
		ResetDayOfMonth:  r.getInt("flowResetTime", false),
	}
	r.checkRanges(a)
	if err := r.err(); err != nil {
		return AccountQuota{}, err
	}
	return a, nil
}

// Usage bills both directions: account usage is inFlow + outFlow.
func (a AccountQuota) Usage() quota.Usage {
	return quota.Usage{QuotaGB: a.FlowQuotaGB, InBytes: a.InFlowBytes, OutBytes: a.OutFlowBytes, Direction: quota.Double}
}

func (a AccountQuota) UnlimitedForwards() bool { return quota.IsUnlimitedCount(a.ForwardQuota) }

func (a AccountQuota) ForwardSlotsLeft() (int64, bool) {
	return quota.SlotsLeft(a.ForwardQuota, a.UsedForwardCount)
}

func (a AccountQuota) Expiration(now time.Time) lifecycle.Expiration {
	return lifecycle.ExpirationStatus(a.ExpiresAt, now)
}

func (a AccountQuota) NextReset(now time.Time) (time.Time, bool) {
	return lifecycle.NextFlowReset(a.ResetDayOfMonth, now)
}

// Fields flattens the quota back into backend keys.
func (a AccountQuota) Fields() (map[string]any, error) {
	m := map[string]any{
		"flow":          a.FlowQuotaGB,
		"inFlow":        a.InFlowBytes,
		"outFlow":       a.OutFlowBytes,
		"num":           a.ForwardQuota,
		"usedNum":       a.UsedForwardCount,
		"flowResetTime": a.ResetDayOfMonth,
	}
	if a.Username != "" {
		m["user"] = a.Username
	}
	putExpiry(m, "expTime", a.ExpiresAt)
	return m, nil
}

// getExpiry reads an expiry value and warns, without failing, when it will
// not parse.
func (r *reader) getExpiry(key string) string {
	s := r.getText(key)
	if _, _, err := lifecycle.ParseExpiry(s, time.UTC); err != nil {
		r.warn(diag.UnparseableDate, key, err.Error(), 1)
	}
	return s
}

// putExpiry writes epoch-millis expiries back as integers and anything else
// as text.
func putExpiry(m map[string]any, key, value string) {
	if value == "" {
		return
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
		m[key] = n
		return
	}
	m[key] = value
}
