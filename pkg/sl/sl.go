package sl

import "golang.org/x/exp/slog"

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.Attr{
		Key:   "err",
		Value: slog.StringValue(err.Error()),
	}
}

// Level maps a config string onto a slog level, falling back to info.
func Level(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
