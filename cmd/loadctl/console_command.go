package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"loadctl/internal/monitor"
	"loadctl/internal/services"
	"loadctl/internal/session"
	"loadctl/internal/textutil"
	"loadctl/internal/validate"
)

const consoleHelp = `Commands:
  select PATH          choose a capture file (restarts the cycle)
  upload               upload the selected file
  convert              convert the uploaded capture into flow data
  name NAME            set the script filename
  host HOST            set the target host
  generate [NAME HOST] generate a script from the flow data
  run [SCRIPT]         run the generated script, or a script from the catalog
  stop                 stop the active test
  stop-all             stop every test on the backend
  scripts              list generated scripts
  refresh              fetch the run status once
  status               show the session
  actions              show which operations are available
  health               probe the backend now
  clear                discard the selected file and everything derived from it
  help                 show this help
  quit                 leave the console`

var errQuit = errors.New("quit")

// lockedWriter serializes writes from the prompt loop and the background
// monitors.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

type console struct {
	cc       *commandContext
	session  *session.Session
	health   *monitor.HealthMonitor
	out      io.Writer
	colorize bool
	draft    validate.ScriptDescriptor
}

func newConsoleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive control panel keeping one session open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			out := &lockedWriter{w: cmd.OutOrStdout()}
			c := &console{cc: ctx, out: out, colorize: shouldColorize(cmd.OutOrStdout())}

			poller := ctx.newPoller(client, c.onPollerEvent)
			s, _, err := ctx.newSession(client, poller)
			if err != nil {
				return err
			}
			defer s.Close()
			c.session = s

			var healthMu sync.Mutex
			var lastHealth monitor.HealthState
			c.health = ctx.newHealthMonitor(client, func(report monitor.HealthReport) {
				healthMu.Lock()
				defer healthMu.Unlock()
				if report.State == lastHealth {
					return
				}
				lastHealth = report.State
				fmt.Fprintln(c.out, healthLine(report, c.colorize))
			})
			c.health.Start(cmd.Context())
			defer c.health.Close()

			fmt.Fprintf(c.out, "loadctl console connected to %s (type 'help')\n", client.BaseURL())
			return c.loop(cmd.Context(), cmd.InOrStdin())
		},
	}
}

func (c *console) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				return nil
			}
			err := c.dispatch(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(c.out, renderStatusLine("Error", statusError, services.Message(err), c.colorize))
			}
		}
	}
}

func (c *console) dispatch(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	command, args := strings.ToLower(fields[0]), fields[1:]

	switch command {
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "select", "file":
		if len(args) == 0 {
			return errors.New("usage: select PATH")
		}
		path := strings.Join(args, " ")
		file, err := session.FileFromPath(path)
		if err != nil {
			return err
		}
		c.session.Select(file)
		if c.draft.Filename == "" {
			c.draft.Filename = textutil.ScriptName(path, validate.MaxFilenameLength)
		}
		fmt.Fprintln(c.out, renderStatusLine("File", statusOK, fmt.Sprintf("%s (%s)", file.Name, formatBytes(&file.Size)), c.colorize))
		return nil
	case "upload":
		return c.step(session.StepUpload, c.session.Upload(ctx))
	case "convert":
		return c.step(session.StepConvert, c.session.Convert(ctx))
	case "name":
		c.draft.Filename = strings.Join(args, " ")
		return c.showDraftField("Filename", validate.ValidateFilename(c.draft.Filename), c.draft.Filename)
	case "host":
		c.draft.Host = strings.Join(args, " ")
		return c.showDraftField("Host", validate.ValidateHost(c.draft.Host), c.draft.Host)
	case "generate":
		if len(args) >= 2 {
			c.draft = validate.ScriptDescriptor{Filename: args[0], Host: args[1]}
		}
		return c.step(session.StepGenerate, c.session.Generate(ctx, c.draft))
	case "run":
		if len(args) > 0 {
			return c.step(session.StepRun, c.session.RunScript(ctx, args[0]))
		}
		return c.step(session.StepRun, c.session.Run(ctx))
	case "stop":
		return c.step(session.StepStop, c.session.Stop(ctx))
	case "stop-all":
		return c.step(session.StepStopAll, c.session.StopAll(ctx))
	case "scripts":
		scripts, err := c.session.Scripts(ctx)
		if err != nil {
			return err
		}
		if len(scripts) == 0 {
			fmt.Fprintln(c.out, "No scripts generated yet")
			return nil
		}
		fmt.Fprintln(c.out, scriptsTable(scripts))
		return nil
	case "refresh":
		status, active, err := c.session.RefreshStatus(ctx)
		if err != nil {
			return services.Wrap(services.Marker(err), "console", "refresh", "Failed to check test status: "+services.Message(err), err)
		}
		fmt.Fprint(c.out, renderRunStatus(status, active, c.colorize))
		return nil
	case "status":
		for _, l := range snapshotLines(c.session.Snapshot(), c.colorize) {
			fmt.Fprintln(c.out, l)
		}
		return nil
	case "actions":
		actions := c.session.Actions(c.draft)
		rows := [][]string{
			{"upload", yesNo(actions.Upload)},
			{"convert", yesNo(actions.Convert)},
			{"generate", yesNo(actions.Generate)},
			{"run", yesNo(actions.Run)},
			{"stop", yesNo(actions.Stop)},
			{"stop-all", yesNo(actions.StopAll)},
		}
		fmt.Fprintln(c.out, renderTable(tableSpec{headers: []string{"Action", "Available"}}, rows))
		return nil
	case "health":
		fmt.Fprintln(c.out, healthLine(c.health.Check(ctx), c.colorize))
		return nil
	case "clear":
		c.session.Clear()
		fmt.Fprintln(c.out, renderStatusLine("Session", statusInfo, "Cleared", c.colorize))
		return nil
	default:
		return fmt.Errorf("unknown command %q (type 'help')", command)
	}
}

// step prints the recorded outcome of an operation. Local rejections and
// remote failures are both already in the step status.
func (c *console) step(step session.Step, err error) error {
	if err != nil && (errors.Is(err, services.ErrBusy) || errors.Is(err, services.ErrSuperseded)) {
		return err
	}
	fmt.Fprintln(c.out, renderStepLine(step, c.session.Status(step), c.colorize))
	return nil
}

func (c *console) showDraftField(label, problem, value string) error {
	fmt.Fprintln(c.out, validationLine(label, problem, value, c.colorize))
	return nil
}

func (c *console) onPollerEvent(event monitor.PollerEvent) {
	switch event.Kind {
	case monitor.EventStatus:
		if event.Status != nil {
			fmt.Fprint(c.out, "\n"+renderRunStatus(*event.Status, true, c.colorize))
		}
	case monitor.EventCleared:
		fmt.Fprintln(c.out, "\n"+renderStatusLine("Test", statusInfo, "No test running", c.colorize))
	case monitor.EventError:
		fmt.Fprintln(c.out, "\n"+renderStatusLine("Status", statusWarn, "Failed to check test status: "+services.Message(event.Err), c.colorize))
	}
}
