package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"loadctl/internal/monitor"
	"loadctl/internal/services"
)

// eventSink hands poller events to a watching command. Sends stop blocking
// once the watcher has gone, so the poller can always be closed.
type eventSink struct {
	events chan monitor.PollerEvent
	done   chan struct{}
	once   sync.Once
}

func newEventSink() *eventSink {
	return &eventSink{
		events: make(chan monitor.PollerEvent, 16),
		done:   make(chan struct{}),
	}
}

func (s *eventSink) deliver(event monitor.PollerEvent) {
	select {
	case s.events <- event:
	case <-s.done:
	}
}

func (s *eventSink) close() {
	s.once.Do(func() { close(s.done) })
}

// watchRun renders status updates until the run ends or ctx is cancelled.
func watchRun(ctx context.Context, cmd *cobra.Command, cc *commandContext, sink *eventSink) error {
	defer sink.close()
	format, err := cc.outputFormat()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-sink.events:
			switch event.Kind {
			case monitor.EventStarted, monitor.EventStatus:
				if event.Status == nil {
					continue
				}
				if format != outputTable {
					if err := writeOutput(cmd, cc, event.Status, nil); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s ", event.At.Format("15:04:05"))
				fmt.Fprint(out, renderRunStatus(*event.Status, true, colorize))
			case monitor.EventError:
				fmt.Fprintln(cmd.ErrOrStderr(), renderStatusLine("Status", statusWarn, "Failed to check test status: "+services.Message(event.Err), colorize))
			case monitor.EventCleared, monitor.EventStopped:
				if format == outputTable {
					fmt.Fprintln(out, renderStatusLine("Test", statusInfo, "No test running", colorize))
				}
				return nil
			}
		}
	}
}
