package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"loadctl/internal/monitor"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check backend connectivity and version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			render := func(report monitor.HealthReport) {
				_ = writeOutput(cmd, ctx, report, func() error {
					fmt.Fprintln(out, healthLine(report, colorize))
					return nil
				})
			}

			if !watch {
				hm := ctx.newHealthMonitor(client, nil)
				report := hm.Check(cmd.Context())
				render(report)
				if report.State != monitor.HealthHealthy {
					return errors.New("backend unreachable")
				}
				return nil
			}

			reports := make(chan monitor.HealthReport, 1)
			hm := ctx.newHealthMonitor(client, func(report monitor.HealthReport) {
				select {
				case reports <- report:
				case <-cmd.Context().Done():
				}
			})
			hm.Start(cmd.Context())
			defer hm.Close()

			var last monitor.HealthState
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case report := <-reports:
					if report.State != last {
						render(report)
						last = report.State
					}
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep probing and report connectivity changes")
	return cmd
}
