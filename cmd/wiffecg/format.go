package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numbers = message.NewPrinter(language.English)

func formatCount(n int64) string {
	return numbers.Sprintf("%d", n)
}

func formatMS(v float64) string {
	return numbers.Sprintf("%.1f", v)
}

func formatRate(hz float64) string {
	return fmt.Sprintf("%g Hz", hz)
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

// formatWhen renders an absolute timestamp with a relative hint.
func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format(time.DateTime), humanize.Time(t))
}
