package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/missuo/flux-panel/internal/app"
	"github.com/missuo/flux-panel/internal/config"
)

type cli struct {
	envFiles []string
	app      *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "flux",
		Short:         "Flux panel client",
		Long:          `Inspect quotas, forwards and tunnels of a Flux panel account, and keep the widget snapshot fresh.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.envFiles...)
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}
	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", []string{".env"}, "dotenv files read for FLUX_* settings")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.dashboardCmd(),
		c.forwardsCmd(),
		c.tunnelsCmd(),
		c.nodesCmd(),
		c.usersCmd(),
		c.watchCmd(),
		c.widgetCmd(),
		c.runCmd(),
	)
	return root
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := c.app.Shutdown(ctx)
	c.app = nil
	return err
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func (c *cli) loginCmd() *cobra.Command {
	var username, password, captcha string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			s, err := c.app.Login(ctx, username, password, captcha)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", s.Name, s.Role)
			if s.RequirePasswordChange {
				fmt.Fprintln(cmd.OutOrStdout(), "The account still uses the default password; change it in the panel.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().StringVar(&captcha, "captcha", "", "captcha id, when the panel requires one")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session and snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
