package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
)

const jsonTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: rewriteJSONAttr,
	})
}

func rewriteJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			return slog.String("ts", attr.Value.Time().UTC().Format(jsonTimeLayout))
		}
		attr.Key = "ts"
	case slog.LevelKey:
		return slog.String("level", strings.ToLower(levelLabel(levelOf(attr.Value))))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			return slog.String("caller", filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
		}
	}
	return attr
}

func levelOf(v slog.Value) slog.Level {
	if lvl, ok := v.Any().(slog.Level); ok {
		return lvl
	}
	return slog.LevelInfo
}
