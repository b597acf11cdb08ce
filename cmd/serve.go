package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

func NewServeCmd(svc **service.Service) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the editor endpoint",
		Long: `Serve the websocket endpoint an embedded editor connects to, plus
Prometheus metrics on /metrics. Edits are saved as they arrive and the editor
state is restored when the editor reconnects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			if addr != "" {
				s.Config.ListenAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := s.Watch(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Editor endpoint: ws://%s/ws\n", s.Config.ListenAddr)
			return s.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides listen_addr)")

	return cmd
}
