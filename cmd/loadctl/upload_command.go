package main

import (
	"github.com/spf13/cobra"

	"loadctl/internal/session"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var convert bool

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a capture file to the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := ctx.newSession(nil, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			file, err := session.FileFromPath(args[0])
			if err != nil {
				return err
			}
			s.Select(file)

			steps := []cycleStep{{session.StepUpload, s.Upload}}
			if convert {
				steps = append(steps, cycleStep{session.StepConvert, s.Convert})
			}
			return runCycle(cmd, ctx, s, steps)
		},
	}

	cmd.Flags().BoolVar(&convert, "convert", false, "Convert the capture after uploading")
	return cmd
}
