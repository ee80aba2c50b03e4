package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogBridge adapts a zerolog.Logger to the slog.Handler interface so
// components that take an *slog.Logger share the service's log stream.
type slogBridge struct {
	zl     *zerolog.Logger
	attrs  []slog.Attr
	prefix string // dotted group path applied to attr keys
}

// NewSlog wraps zl in an *slog.Logger. Records pick up any context
// fields (request id, collection) the same way direct zerolog calls do.
func NewSlog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&slogBridge{zl: zl})
}

func (b *slogBridge) Enabled(_ context.Context, _ slog.Level) bool {
	// zerolog applies its own level filtering
	return true
}

func (b *slogBridge) Handle(ctx context.Context, r slog.Record) error {
	base := FromContext(ctx, b.zl)

	var ev *zerolog.Event
	switch {
	case r.Level >= slog.LevelError:
		ev = base.Error()
	case r.Level >= slog.LevelWarn:
		ev = base.Warn()
	case r.Level >= slog.LevelInfo:
		ev = base.Info()
	default:
		ev = base.Debug()
	}

	for _, a := range b.attrs {
		// keys were prefixed when the attr was attached
		ev = field(ev, a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		ev = field(ev, b.prefix+a.Key, a.Value)
		return true
	})

	ev.Msg(r.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *b
	cp.attrs = cp.attrs[:len(cp.attrs):len(cp.attrs)]
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, slog.Attr{Key: b.prefix + a.Key, Value: a.Value})
	}
	return &cp
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	cp := *b
	cp.prefix = b.prefix + name + "."
	return &cp
}

func field(ev *zerolog.Event, key string, value slog.Value) *zerolog.Event {
	v := value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return ev.Str(key, v.String())
	case slog.KindInt64:
		return ev.Int64(key, v.Int64())
	case slog.KindUint64:
		return ev.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return ev.Float64(key, v.Float64())
	case slog.KindBool:
		return ev.Bool(key, v.Bool())
	case slog.KindDuration:
		return ev.Dur(key, v.Duration())
	case slog.KindTime:
		return ev.Time(key, v.Time())
	default:
		return ev.Interface(key, v.Any())
	}
}
