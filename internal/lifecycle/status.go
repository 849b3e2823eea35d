package lifecycle

import "time"

// RunState is the display state of a forward.
type RunState int

const (
	Paused RunState = iota
	Running
)

// RunningStatus maps the backend status code: 0 is paused, anything else
// running.
func RunningStatus(status int) RunState {
	if status == 0 {
		return Paused
	}
	return Running
}

func (s RunState) String() string {
	if s == Running {
		return "running"
	}
	return "paused"
}

// Code returns the backend status code for s.
func (s RunState) Code() int {
	if s == Running {
		return 1
	}
	return 0
}

// Presence is the display state of a node.
type Presence int

const (
	Offline Presence = iota
	Online
)

// OnlineStatus passes the node's online flag through as a Presence.
func OnlineStatus(isOnline bool) Presence {
	if isOnline {
		return Online
	}
	return Offline
}

func (p Presence) String() string {
	if p == Online {
		return "online"
	}
	return "offline"
}

// NextFlowReset returns the midnight, in now's location, of the next day on
// which monthly usage resets. A reset day past the end of a month fires on
// that month's last day. resetDay <= 0 means usage never resets.
func NextFlowReset(resetDay int, now time.Time) (time.Time, bool) {
	if resetDay <= 0 {
		return time.Time{}, false
	}
	loc := now.Location()
	y, m, d := now.Date()

	day := effectiveResetDay(resetDay, y, m, loc)
	if day > d {
		return time.Date(y, m, day, 0, 0, 0, 0, loc), true
	}
	next := time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	ny, nm, _ := next.Date()
	return time.Date(ny, nm, effectiveResetDay(resetDay, ny, nm, loc), 0, 0, 0, 0, loc), true
}

func effectiveResetDay(resetDay, year int, month time.Month, loc *time.Location) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if resetDay > last {
		return last
	}
	return resetDay
}
