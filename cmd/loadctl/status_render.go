package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"loadctl/internal/session"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

func okOr(ok bool, otherwise statusKind) statusKind {
	if ok {
		return statusOK
	}
	return otherwise
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var (
	numberPrinter = message.NewPrinter(language.English)
	titleCaser    = cases.Title(language.English)
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func stepKind(state session.State) statusKind {
	switch state {
	case session.StateSuccess:
		return statusOK
	case session.StateError:
		return statusError
	default:
		return statusInfo
	}
}

func renderStepLine(step session.Step, status session.StepStatus, colorize bool) string {
	message := status.Message
	if message == "" {
		message = string(status.State)
	}
	return renderStatusLine(stepLabel(step), stepKind(status.State), message, colorize)
}

func stepLabel(step session.Step) string {
	return titleCaser.String(strings.ReplaceAll(string(step), "-", " "))
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func formatCount(value *float64) string {
	if value == nil {
		return "-"
	}
	return numberPrinter.Sprintf("%d", int64(*value))
}

func formatRate(value *float64) string {
	if value == nil {
		return "-"
	}
	return numberPrinter.Sprintf("%.1f/s", *value)
}

func formatMillis(value *float64) string {
	if value == nil {
		return "-"
	}
	return numberPrinter.Sprintf("%.0f ms", *value)
}

func formatBytes(value *int64) string {
	if value == nil {
		return "-"
	}
	size := float64(*value)
	switch {
	case size >= 1<<20:
		return numberPrinter.Sprintf("%.1f MiB", size/(1<<20))
	case size >= 1<<10:
		return numberPrinter.Sprintf("%.1f KiB", size/(1<<10))
	default:
		return numberPrinter.Sprintf("%d B", *value)
	}
}
