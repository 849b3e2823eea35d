package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/missuo/flux-panel/internal/live"
)

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream node online/offline changes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := c.app.Client()
			w, err := live.NewWatcher(client.BaseURL(), client.Token(), live.WithLogger(c.app.Logger()))
			if err != nil {
				return err
			}
			errc := make(chan error, 1)
			go func() { errc <- w.Run(cmd.Context()) }()

			out := cmd.OutOrStdout()
			for st := range w.Events() {
				fmt.Fprintf(out, "node %d %s\n", st.NodeID, st.Presence)
			}
			err = <-errc
			if errors.Is(err, live.ErrUnauthorized) {
				return fmt.Errorf("watch: %w; log in again", err)
			}
			return err
		},
	}
}
