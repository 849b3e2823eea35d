// Package lifecycle classifies expiry dates and maps raw status codes to
// closed display states. The current time is always a parameter.
package lifecycle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/missuo/flux-panel/internal/diag"
)

// DefaultSoonThreshold is the number of days before expiry at which an
// account or assignment is shown as expiring soon.
const DefaultSoonThreshold = 7

// Kind is the coarse expiration state.
type Kind int

const (
	Permanent Kind = iota
	Active
	ExpiringSoon
	Expired
)

func (k Kind) String() string {
	switch k {
	case Permanent:
		return "permanent"
	case Active:
		return "active"
	case ExpiringSoon:
		return "expiring soon"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Expiration is the result of classifying an expiry value.
type Expiration struct {
	Kind Kind
	// DaysLeft counts calendar days from now's date to the expiry date.
	// Zero for Permanent and Expired.
	DaysLeft int
	// At is the parsed expiry instant; zero for Permanent.
	At time.Time
}

func (e Expiration) String() string {
	switch e.Kind {
	case Active, ExpiringSoon:
		return fmt.Sprintf("%s (%d days left)", e.Kind, e.DaysLeft)
	default:
		return e.Kind.String()
	}
}

// Classifier carries the soon-to-expire threshold and the sink for
// unparseable dates.
type Classifier struct {
	// SoonThreshold in days; values <= 0 select DefaultSoonThreshold.
	SoonThreshold int
	Reporter      diag.Reporter
	// Entity and Field label warnings.
	Entity string
	Field  string
}

// ExpirationStatus classifies expiresAt with the default threshold and no
// warning sink.
func ExpirationStatus(expiresAt string, now time.Time) Expiration {
	return Classifier{}.Classify(expiresAt, now)
}

// Classify maps an expiry value to its state relative to now. Unparseable
// input fails open to Permanent and is reported as a data-quality warning.
func (c Classifier) Classify(expiresAt string, now time.Time) Expiration {
	at, permanent, err := ParseExpiry(expiresAt, now.Location())
	if err != nil {
		diag.OrDiscard(c.Reporter).Warn(diag.Warning{
			Kind:   diag.UnparseableDate,
			Entity: c.Entity,
			Field:  c.Field,
			Detail: err.Error(),
		})
		return Expiration{Kind: Permanent}
	}
	if permanent {
		return Expiration{Kind: Permanent}
	}

	days := calendarDays(now, at)
	if days < 0 {
		return Expiration{Kind: Expired, At: at}
	}
	threshold := c.SoonThreshold
	if threshold <= 0 {
		threshold = DefaultSoonThreshold
	}
	if days <= threshold {
		return Expiration{Kind: ExpiringSoon, DaysLeft: days, At: at}
	}
	return Expiration{Kind: Active, DaysLeft: days, At: at}
}

var expiryLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseExpiry decodes an expiry value. Empty input, and epoch milliseconds
// <= 0, mean no expiry. Layouts without a zone are read in loc.
func ParseExpiry(raw string, loc *time.Location) (at time.Time, permanent bool, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, true, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if isInteger(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("parse expiry millis %q: %w", s, err)
		}
		if ms <= 0 {
			return time.Time{}, true, nil
		}
		return time.UnixMilli(ms).In(loc), false, nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("parse expiry %q: unrecognized date", s)
}

func isInteger(s string) bool {
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// calendarDays counts whole calendar days from now's date to at's date,
// both taken in now's location.
func calendarDays(now, at time.Time) int {
	at = at.In(now.Location())
	a := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}
