package model

import (
	"fmt"

	"github.com/missuo/flux-panel/internal/diag"
)

// TrafficSample is one hourly usage point. The backend does not guarantee
// PeriodFlowBytes <= CumulativeFlowBytes; values are kept as delivered.
type TrafficSample struct {
	ID                  int64  `json:"id"`
	UserID              int64  `json:"userId"`
	PeriodFlowBytes     int64  `json:"flow"`
	CumulativeFlowBytes int64  `json:"totalFlow"`
	Timestamp           string `json:"time"`
}

func TrafficSampleFromFields(fields map[string]any, opts ...Option) (TrafficSample, error) {
	r := newReader("TrafficSample", fields, buildOptions(opts))
	s := TrafficSample{
		ID:                  r.getInt64("id", true),
		UserID:              r.getInt64("userId", true),
		PeriodFlowBytes:     r.getInt64("flow", true),
		CumulativeFlowBytes: r.getInt64("totalFlow", true),
		Timestamp:           r.getString("time", false),
	}
	if err := r.err(); err != nil {
		return TrafficSample{}, err
	}
	if s.Suspect() {
		r.warn(diag.UntrustedSample, "flow",
			fmt.Sprintf("period %d, cumulative %d", s.PeriodFlowBytes, s.CumulativeFlowBytes), 1)
	}
	return s, nil
}

// Suspect reports samples whose counters are inconsistent.
func (s TrafficSample) Suspect() bool {
	return s.PeriodFlowBytes < 0 || s.CumulativeFlowBytes < 0 || s.PeriodFlowBytes > s.CumulativeFlowBytes
}

func (s TrafficSample) Fields() (map[string]any, error) {
	return map[string]any{
		"id":        s.ID,
		"userId":    s.UserID,
		"flow":      s.PeriodFlowBytes,
		"totalFlow": s.CumulativeFlowBytes,
		"time":      s.Timestamp,
	}, nil
}
