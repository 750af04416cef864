package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05.000"

var levelColors = map[string]string{
	"ERROR": "\x1b[31m",
	"WARN":  "\x1b[33m",
	"INFO":  "\x1b[36m",
	"DEBUG": "\x1b[90m",
}

const colorReset = "\x1b[0m"

// consoleHandler writes one human-readable line per record:
//
//	<time> <LEVEL> component[stage]: message key=value ...
//
// The component and stage attributes are lifted into the subject instead of
// being repeated as trailing pairs.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     slog.Leveler
	prefix    string
	preset    []field
	addSource bool
	color     bool
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl slog.Leveler, addSource, color bool) *consoleHandler {
	return &consoleHandler{mu: new(sync.Mutex), out: w, level: lvl, addSource: addSource, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = slices.Clone(h.preset)
	for _, attr := range attrs {
		next.preset = appendField(next.preset, h.prefix, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clone(h.preset)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.prefix, attr)
		return true
	})

	var component, stage string
	rest := fields[:0]
	for _, f := range fields {
		switch {
		case f.key == FieldComponent && component == "":
			component = plainString(f.value)
		case f.key == FieldStage && stage == "":
			stage = plainString(f.value)
		case f.key == FieldComponent, f.key == FieldStage:
		default:
			rest = append(rest, f)
		}
	}

	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}
	line := make([]byte, 0, 160)
	line = when.Local().AppendFormat(line, consoleTimeLayout)
	line = append(line, ' ')
	line = h.appendLevel(line, record.Level)
	line = append(line, ' ')
	if subject := subjectOf(component, stage); subject != "" {
		line = append(line, subject...)
		line = append(line, ": "...)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line = append(line, msg...)
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			line = fmt.Appendf(line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		line = append(line, ' ')
		line = append(line, f.key...)
		line = append(line, '=')
		line = appendValue(line, f.value)
	}
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(line)
	return err
}

func (h *consoleHandler) appendLevel(dst []byte, level slog.Level) []byte {
	label := levelLabel(level)
	if !h.color {
		return append(dst, label...)
	}
	dst = append(dst, levelColors[label]...)
	dst = append(dst, label...)
	return append(dst, colorReset...)
}

func subjectOf(component, stage string) string {
	if stage == "" {
		return component
	}
	if component == "" {
		return stage
	}
	return component + "[" + stage + "]"
}

func appendField(dst []field, prefix string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() != slog.KindGroup {
		return append(dst, field{key: prefix + attr.Key, value: value})
	}
	nested := prefix
	if attr.Key != "" {
		nested = prefix + attr.Key + "."
	}
	for _, member := range value.Group() {
		dst = appendField(dst, nested, member)
	}
	return dst
}

func plainString(v slog.Value) string {
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return string(appendValue(nil, v))
}

func appendValue(dst []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindBool:
		return strconv.AppendBool(dst, v.Bool())
	case slog.KindInt64:
		return strconv.AppendInt(dst, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(dst, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(dst, v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return append(dst, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().UTC().AppendFormat(dst, time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return appendText(dst, err.Error())
		}
		return appendText(dst, fmt.Sprint(v.Any()))
	default:
		return appendText(dst, v.String())
	}
}

func appendText(dst []byte, s string) []byte {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.AppendQuote(dst, s)
	}
	return append(dst, s...)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
