package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	storemodel "github.com/missuo/flux-panel/internal/store/model"
)

func (c *cli) widgetCmd() *cobra.Command {
	var (
		offline bool
		maxAge  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Refresh and print the saved widget snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !offline {
				ctx, cancel := requestContext(cmd)
				defer cancel()
				if _, _, err := c.app.Refresh(ctx); err != nil {
					c.app.Logger().Printf("refresh: %v; showing the saved snapshot", err)
				}
			}
			snap, err := c.app.Repository().LoadSnapshot()
			if err != nil {
				return err
			}
			if snap == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshot saved yet; run flux login first")
				return nil
			}
			printSnapshot(cmd, *snap, time.Now(), maxAge)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "print the saved snapshot without contacting the panel")
	cmd.Flags().DurationVar(&maxAge, "max-age", time.Hour, "mark snapshots older than this as stale")
	return cmd
}

func printSnapshot(cmd *cobra.Command, s storemodel.WidgetSnapshot, now time.Time, maxAge time.Duration) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Flow:    %s / %s%s\n", s.UsedText(), s.TotalText(), percentText(s.Percentage()))
	fmt.Fprintf(out, "Expires: %s\n", s.Expiration(now))
	stale := ""
	if s.Stale(now, maxAge) {
		stale = " (stale)"
	}
	fmt.Fprintf(out, "Updated: %s%s\n", humanize.Time(s.LastUpdate), stale)
	if s.ServerURL != "" {
		fmt.Fprintf(out, "Panel:   %s\n", s.ServerURL)
	}
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the snapshot and usage history fresh until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Run(cmd.Context())
		},
	}
}
