package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"loadctl/internal/validate"
)

type validationView struct {
	Filename       string `json:"filename" yaml:"filename"`
	FilenameError  string `json:"filename_error,omitempty" yaml:"filename_error,omitempty"`
	Host           string `json:"host" yaml:"host"`
	HostError      string `json:"host_error,omitempty" yaml:"host_error,omitempty"`
	NormalizedHost string `json:"normalized_host,omitempty" yaml:"normalized_host,omitempty"`
	Valid          bool   `json:"valid" yaml:"valid"`
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var name string
	var host string

	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Check a script filename and target host without contacting the backend",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			view := validationView{
				Filename:      name,
				FilenameError: validate.ValidateFilename(name),
				Host:          host,
				HostError:     validate.ValidateHost(host),
			}
			view.Valid = view.FilenameError == "" && view.HostError == ""
			if view.HostError == "" {
				view.NormalizedHost = validate.NormalizeHost(host)
			}

			if err := writeOutput(cmd, ctx, view, func() error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, validationLine("Filename", view.FilenameError, name, colorize))
				fmt.Fprintln(out, validationLine("Host", view.HostError, view.NormalizedHost, colorize))
				return nil
			}); err != nil {
				return err
			}
			if !view.Valid {
				return errors.New("descriptor is invalid")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Script filename")
	cmd.Flags().StringVar(&host, "host", "", "Target host")
	return cmd
}

func validationLine(label, problem, value string, colorize bool) string {
	if problem != "" {
		return renderStatusLine(label, statusError, problem, colorize)
	}
	return renderStatusLine(label, statusOK, value, colorize)
}
