package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/missuo/flux-panel/internal/api"
	"github.com/missuo/flux-panel/internal/model"
)

func (c *cli) forwardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forwards",
		Short: "List and manage forwards",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			forwards, err := c.app.Client().Forwards(ctx)
			if err := listNotice(cmd.ErrOrStderr(), err); err != nil {
				return err
			}
			if len(forwards) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No forwards found")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTUNNEL\tSTATUS\tIN\tREMOTE\tFLOW")
			for _, f := range forwards {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					f.ID, f.Name, f.TunnelName, f.Status, f.FormattedInAddress(), f.FormattedRemoteAddress(), f.FormattedTotalFlow())
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(
		c.forwardSaveCmd(false),
		c.forwardSaveCmd(true),
		c.forwardActionCmd("delete", "Delete a forward", (*api.Client).DeleteForward),
		c.forwardActionCmd("force-delete", "Delete a forward even if its node is unreachable", (*api.Client).ForceDeleteForward),
		c.forwardActionCmd("pause", "Pause a forward", (*api.Client).PauseForward),
		c.forwardActionCmd("resume", "Resume a paused forward", (*api.Client).ResumeForward),
	)
	return cmd
}

func (c *cli) forwardSaveCmd(update bool) *cobra.Command {
	var d model.ForwardDraft
	use, short := "create", "Create a forward on one of your tunnels"
	if update {
		use, short = "update [id]", "Update an existing forward"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(boolInt(update)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := c.app.Client()
			t, err := findTunnel(ctx, client, d.TunnelID)
			if err != nil {
				return err
			}
			if !update {
				if err := client.CreateForward(ctx, t, d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forward %q created on %s\n", d.Name, t.Name)
				return nil
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := client.UpdateForward(ctx, id, t, d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forward %d updated\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&d.Name, "name", "", "forward name")
	cmd.Flags().Int64Var(&d.TunnelID, "tunnel", 0, "tunnel id")
	cmd.Flags().StringVar(&d.RemoteAddr, "remote", "", "comma-separated host:port targets")
	cmd.Flags().IntVar(&d.InboundPort, "port", 0, "inbound port inside the tunnel's range; 0 lets the panel pick one")
	cmd.Flags().StringVar(&d.Strategy, "strategy", model.DefaultStrategy, "load-balancing strategy")
	cmd.Flags().StringVar(&d.InterfaceName, "interface", "", "outbound interface name")
	for _, f := range []string{"name", "tunnel", "remote"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (c *cli) forwardActionCmd(use, short string, action func(*api.Client, context.Context, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			if err := action(c.app.Client(), ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forward %d: %s done\n", id, use)
			return nil
		},
	}
}

func findTunnel(ctx context.Context, client *api.Client, id int64) (model.Tunnel, error) {
	tunnels, err := client.UserTunnels(ctx)
	if err := listNotice(io.Discard, err); err != nil {
		return model.Tunnel{}, err
	}
	for _, t := range tunnels {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Tunnel{}, fmt.Errorf("tunnel %d is not available to this account", id)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
