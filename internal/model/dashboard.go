package model

import (
	"errors"
	"fmt"
)

// Dashboard is the /user/package aggregate for the logged-in account.
type Dashboard struct {
	Account     AccountQuota
	Assignments []TunnelAssignment
	Forwards    []Forward
	Samples     []TrafficSample
}

// DashboardFromFields builds the dashboard. An invalid userInfo fails the
// whole dashboard; invalid list rows are skipped and returned as *ListError
// values joined into the error, next to a usable Dashboard.
func DashboardFromFields(fields map[string]any, opts ...Option) (Dashboard, error) {
	o := buildOptions(opts)
	r := newReader("Dashboard", fields, o)
	info := r.getObject("userInfo", true)
	permissions := r.getList("tunnelPermissions")
	forwards := r.getList("forwards")
	samples := r.getList("statisticsFlows")
	if err := r.err(); err != nil {
		return Dashboard{}, err
	}

	account, err := AccountQuotaFromFields(info, opts...)
	if err != nil {
		return Dashboard{}, fmt.Errorf("userInfo: %w", err)
	}
	d := Dashboard{Account: account}

	var errs []error
	var lerr error
	d.Assignments, lerr = BuildList("TunnelAssignment", permissions, TunnelAssignmentFromFields, opts...)
	errs = append(errs, lerr)
	d.Forwards, lerr = BuildList("Forward", forwards, ForwardFromFields, opts...)
	errs = append(errs, lerr)
	d.Samples, lerr = BuildList("TrafficSample", samples, TrafficSampleFromFields, opts...)
	errs = append(errs, lerr)

	return d, errors.Join(errs...)
}

// Assignment returns the grant for tunnelID, if any.
func (d Dashboard) Assignment(tunnelID int64) (TunnelAssignment, bool) {
	for _, a := range d.Assignments {
		if a.TunnelID == tunnelID {
			return a, true
		}
	}
	return TunnelAssignment{}, false
}

// UsedForwards returns the account's used forward count, falling back to
// the number of listed forwards when the backend omits usedNum.
func (d Dashboard) UsedForwards() int64 {
	if d.Account.UsedForwardCount > 0 {
		return d.Account.UsedForwardCount
	}
	return int64(len(d.Forwards))
}
