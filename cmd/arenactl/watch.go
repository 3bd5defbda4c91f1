package main

import (
	"strings"

	"github.com/GoPolymarket/arena/internal/model"
	"github.com/GoPolymarket/arena/internal/stream"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		server string
		agent  string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail recorded trades as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			endpoint := strings.TrimRight(server, "/") + "/v1/stream"
			endpoint = "ws" + strings.TrimPrefix(endpoint, "http")
			out := cmd.OutOrStdout()
			var writeErr error
			err := stream.Watch(cmd.Context(), endpoint, agent, func(ev *model.TradeRecorded) {
				if writeErr == nil {
					writeErr = writeJSON(out, ev)
				}
			})
			if err != nil {
				return err
			}
			return writeErr
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "arena base URL")
	cmd.Flags().StringVar(&agent, "agent", "", "only show trades of this agent")
	return cmd
}
