package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loadctl/internal/monitor"
	"loadctl/internal/services"
	"loadctl/internal/session"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "run SCRIPT",
		Short: "Start a generated script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			sink := newEventSink()
			var onEvent func(monitor.PollerEvent)
			if watch {
				onEvent = sink.deliver
			}
			s, _, err := ctx.newSession(client, ctx.newPoller(client, onEvent))
			if err != nil {
				return err
			}
			defer s.Close()
			defer sink.close()

			script := strings.TrimSpace(args[0])
			runErr := s.RunScript(cmd.Context(), script)
			snap := s.Snapshot()
			if err := writeOutput(cmd, ctx, snap, func() error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStepLine(session.StepRun, snap.Steps[session.StepRun], colorize))
				if runErr == nil && snap.Run != nil {
					fmt.Fprint(out, renderRunStatus(*snap.Run, true, colorize))
				}
				return nil
			}); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if watch {
				return watchRun(cmd.Context(), cmd, ctx, sink)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the run status until it ends")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop [PID]",
		Short: "Stop a running test (defaults to the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, client, err := ctx.newSession(nil, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if len(args) == 1 {
				pid := strings.TrimSpace(args[0])
				if err := client.Stop(cmd.Context(), pid); err != nil {
					return services.Wrap(services.Marker(err), "cli", "stop", "Failed to stop test: "+services.Message(err), err)
				}
				fmt.Fprintln(out, renderStatusLine("Stop", statusOK, "Test stopped (process "+pid+")", colorize))
				return nil
			}

			if _, _, err := s.RefreshStatus(cmd.Context()); err != nil {
				return services.Wrap(services.Marker(err), "cli", "status", "Failed to check test status: "+services.Message(err), err)
			}
			if err := s.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, renderStepLine(session.StepStop, s.Status(session.StepStop), colorize))
			return nil
		},
	}
}

func newStopAllCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "stop-all",
		Short: "Stop every running test on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				fmt.Fprint(out, "Stop all running tests? [y/N] ")
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				switch strings.ToLower(strings.TrimSpace(answer)) {
				case "y", "yes":
				default:
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			s, _, err := ctx.newSession(nil, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.StopAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, renderStepLine(session.StepStopAll, s.Status(session.StepStopAll), shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of the active test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			sink := newEventSink()
			var onEvent func(monitor.PollerEvent)
			if watch {
				onEvent = sink.deliver
			}
			poller := ctx.newPoller(client, onEvent)
			s, _, err := ctx.newSession(client, poller)
			if err != nil {
				return err
			}
			defer s.Close()
			defer sink.close()

			status, active, err := s.RefreshStatus(cmd.Context())
			if err != nil {
				return services.Wrap(services.Marker(err), "cli", "status", "Failed to check test status: "+services.Message(err), err)
			}
			if !watch || !active {
				view := statusView{Active: active}
				if active {
					view.Status = &status
				}
				return writeOutput(cmd, ctx, view, func() error {
					fmt.Fprint(cmd.OutOrStdout(), renderRunStatus(status, active, shouldColorize(cmd.OutOrStdout())))
					return nil
				})
			}
			poller.Start(&status)
			return watchRun(cmd.Context(), cmd, ctx, sink)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling until the test ends")
	return cmd
}
