package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/missuo/flux-panel/internal/model"
)

func (c *cli) tunnelsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "tunnels",
		Short: "List tunnels available to the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := c.app.Client()
			var (
				tunnels []model.Tunnel
				err     error
			)
			if all {
				tunnels, err = client.Tunnels(ctx)
			} else {
				tunnels, err = client.UserTunnels(ctx)
			}
			if err := listNotice(cmd.ErrOrStderr(), err); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tPROTOCOL\tBILLING\tRATIO\tPORTS\tINBOUND")
			for _, t := range tunnels {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%g\t%s\t%s\n",
					t.ID, t.Name, t.Kind, t.Protocol, t.Billing, t.TrafficRatio, t.PortRange(), t.InboundIP)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every tunnel (admin only)")
	return cmd
}

func (c *cli) nodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List nodes (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			nodes, err := c.app.Client().Nodes(ctx)
			if err := listNotice(cmd.ErrOrStderr(), err); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tIP\tPORTS\tVERSION\tSTATUS")
			for _, n := range nodes {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					n.ID, n.Name, n.IP, n.PortRange(), n.Version, n.Presence())
			}
			return w.Flush()
		},
	}
}

func (c *cli) usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List accounts (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			users, err := c.app.Client().Users(ctx)
			if err := listNotice(cmd.ErrOrStderr(), err); err != nil {
				return err
			}
			now := time.Now()
			classify := c.app.Classifier("UserAccount")
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER\tROLE\tSTATUS\tUSED\tQUOTA\tEXPIRES")
			for _, u := range users {
				usage := u.Usage()
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					u.ID, u.Username, u.Role, u.Status, usage.UsedText(), usage.Total(),
					classify.Classify(u.ExpiresAt, now))
			}
			return w.Flush()
		},
	}
}
