package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"wiffecg/internal/stage"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 14
	statusIndent     = "  "
)

var statusStyles = [...]struct {
	tag   string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func (k statusKind) tag() string {
	if int(k) < len(statusStyles) {
		return statusStyles[k].tag
	}
	return statusStyles[statusInfo].tag
}

func paint(text, color string, colorize bool) string {
	if !colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

// renderStatusLine formats one "  Label:  [TAG] message" row.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", kind.tag())
	if message != "" {
		b.WriteByte(' ')
		b.WriteString(message)
	}
	color := ""
	if int(kind) < len(statusStyles) {
		color = statusStyles[kind].color
	}
	return paint(b.String(), color, colorize)
}

// stageStatus maps a persisted stage onto a status kind and message.
func stageStatus(s stage.Stage) (statusKind, string) {
	switch s {
	case stage.Completed:
		return statusOK, s.String()
	case stage.Error:
		return statusError, s.String()
	default:
		return statusWarn, fmt.Sprintf("%s (next work: %s)", s, s.Label())
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	return []string{
		paint(heading, ansiBlue, colorize),
		paint(strings.Repeat("-", len(heading)), ansiBlue, colorize),
	}
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
