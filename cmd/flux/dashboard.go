package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/missuo/flux-panel/internal/lifecycle"
	"github.com/missuo/flux-panel/internal/model"
	"github.com/missuo/flux-panel/internal/quota"
)

func (c *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the account quota and tunnel assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			d, _, err := c.app.Refresh(ctx)
			if err != nil {
				return err
			}
			printDashboard(cmd.OutOrStdout(), d, time.Now(), c.app.Classifier)
			return nil
		},
	}
}

func printDashboard(out io.Writer, d model.Dashboard, now time.Time, classify func(string) lifecycle.Classifier) {
	acct := d.Account
	u := acct.Usage()
	if acct.Username != "" {
		fmt.Fprintf(out, "Account:   %s\n", acct.Username)
	}
	fmt.Fprintf(out, "Flow:      %s / %s%s\n", u.UsedText(), u.Total(), percentText(u.Percentage()))
	if left, ok := u.Remaining(); ok {
		fmt.Fprintf(out, "Remaining: %s\n", quota.FormattedUsed(left))
	}
	if slots, ok := acct.ForwardSlotsLeft(); ok {
		fmt.Fprintf(out, "Forwards:  %d / %d (%d left)\n", d.UsedForwards(), acct.ForwardQuota, slots)
	} else {
		fmt.Fprintf(out, "Forwards:  %d / %s\n", d.UsedForwards(), quota.UnlimitedText)
	}
	fmt.Fprintf(out, "Expires:   %s\n", classify("AccountQuota").Classify(acct.ExpiresAt, now))
	if next, ok := acct.NextReset(now); ok {
		fmt.Fprintf(out, "Resets:    %s\n", next.Format("2006-01-02"))
	}

	if len(d.Assignments) == 0 {
		return
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TUNNEL\tBILLING\tUSED\tQUOTA\tEXPIRES")
	for _, a := range d.Assignments {
		au := a.Usage()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\n",
			a.TunnelName, a.Billing, au.UsedText(), au.Total(), percentText(au.Percentage()),
			classify("TunnelAssignment").Classify(a.ExpiresAt, now))
	}
	_ = w.Flush()
}

func percentText(p quota.Percentage) string {
	if p.Unlimited {
		return ""
	}
	return fmt.Sprintf(" (%.1f%%)", p.Value)
}

// listNotice prints a one-line note when some rows were skipped.
func listNotice(out io.Writer, err error) error {
	if err == nil {
		return nil
	}
	var lerr *model.ListError
	if errors.As(err, &lerr) {
		fmt.Fprintf(out, "note: %v\n", lerr)
		return nil
	}
	return err
}
