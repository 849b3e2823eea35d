package model

import (
	"time"

	"github.com/missuo/flux-panel/internal/lifecycle"
	"github.com/missuo/flux-panel/internal/quota"
)

// Shared value names.
const (
	KeyServerURL = "serverURL"
	KeyAuthToken = "authToken"
	KeySnapshot  = "fluxData"
)

// WidgetSnapshot is the last known account usage, rendered by the widget
// without contacting the panel.
type WidgetSnapshot struct {
	TotalFlowGB   int64     `json:"totalFlow"`
	UsedFlowBytes int64     `json:"usedFlow"`
	ExpTime       string    `json:"expTime,omitempty"`
	ServerURL     string    `json:"serverURL,omitempty"`
	LastUpdate    time.Time `json:"lastUpdate"`
	Revision      string    `json:"revision"`
}

func (s WidgetSnapshot) Unlimited() bool { return quota.IsUnlimitedFlow(s.TotalFlowGB) }

func (s WidgetSnapshot) Percentage() quota.Percentage {
	return quota.UsagePercentage(s.UsedFlowBytes, s.TotalFlowGB)
}

func (s WidgetSnapshot) TotalText() string { return quota.FormattedTotal(s.TotalFlowGB) }

func (s WidgetSnapshot) UsedText() string { return quota.FormattedUsed(s.UsedFlowBytes) }

func (s WidgetSnapshot) Expiration(now time.Time) lifecycle.Expiration {
	return lifecycle.ExpirationStatus(s.ExpTime, now)
}

// Stale reports whether the snapshot is older than maxAge at now.
func (s WidgetSnapshot) Stale(now time.Time, maxAge time.Duration) bool {
	return s.LastUpdate.IsZero() || now.Sub(s.LastUpdate) > maxAge
}
