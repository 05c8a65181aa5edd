package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loadctl/internal/monitor"
	"loadctl/internal/session"
	"loadctl/internal/textutil"
	"loadctl/internal/validate"
)

func newCycleCommand(ctx *commandContext) *cobra.Command {
	var name string
	var host string
	var run bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "cycle FILE",
		Short: "Upload, convert and generate a script from a capture, optionally running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			desc := validate.ScriptDescriptor{
				Filename: strings.TrimSpace(name),
				Host:     strings.TrimSpace(host),
			}
			if desc.Filename == "" {
				desc.Filename = textutil.ScriptName(path, validate.MaxFilenameLength)
			}
			if err := validate.Check(desc); err != nil {
				return err
			}

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

			file, err := session.FileFromPath(path)
			if err != nil {
				return err
			}
			s.Select(file)

			steps := []cycleStep{
				{session.StepUpload, s.Upload},
				{session.StepConvert, s.Convert},
				{session.StepGenerate, func(c context.Context) error { return s.Generate(c, desc) }},
			}
			if run || watch {
				steps = append(steps, cycleStep{session.StepRun, s.Run})
			}
			if err := runCycle(cmd, ctx, s, steps); err != nil {
				return err
			}
			if watch {
				return watchRun(cmd.Context(), cmd, ctx, sink)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Script filename (defaults to the capture file name)")
	cmd.Flags().StringVar(&host, "host", "", "Target host: IPv4 address, http(s) URL, domain or localhost")
	cmd.Flags().BoolVar(&run, "run", false, "Run the generated script")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Run the script and follow its status until it ends")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

type cycleStep struct {
	step session.Step
	fn   func(context.Context) error
}

// runCycle executes steps in order, reporting each outcome, and stops at the
// first failure.
func runCycle(cmd *cobra.Command, ctx *commandContext, s *session.Session, steps []cycleStep) error {
	format, err := ctx.outputFormat()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	var failure error
	for _, step := range steps {
		err := step.fn(cmd.Context())
		if format == outputTable {
			fmt.Fprintln(out, renderStepLine(step.step, s.Status(step.step), colorize))
		}
		if err != nil {
			failure = err
			break
		}
	}
	if format != outputTable {
		if err := writeOutput(cmd, ctx, s.Snapshot(), nil); err != nil {
			return err
		}
	}
	return failure
}
