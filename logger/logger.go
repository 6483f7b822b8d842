package logger

import (
	"io"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	GLOBAL_LOGGER log.Logger = log.NewNopLogger()
)

func base(w io.Writer, lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, level.Allow(level.ParseDefault(lvl, level.InfoValue())))
	return log.With(logger, "ts", log.TimestampFormat(
		func() time.Time { return time.Now() },
		time.DateTime,
	))
}

// New builds a logfmt logger filtered at lvl. Unknown levels fall back to info.
func New(w io.Writer, lvl string) log.Logger {
	return log.With(base(w, lvl), "caller", log.DefaultCaller)
}

// SetupLogging configures GLOBAL_LOGGER for the package level helpers and
// returns a logger for injection into components.
func SetupLogging(lvl string) log.Logger {
	GLOBAL_LOGGER = log.With(base(os.Stderr, lvl), "caller", log.Caller(4))
	return New(os.Stderr, lvl)
}

func Info(keyvals ...interface{}) error {
	return level.Info(GLOBAL_LOGGER).Log(keyvals...)
}

func Debug(keyvals ...interface{}) error {
	return level.Debug(GLOBAL_LOGGER).Log(keyvals...)
}

func Warn(keyvals ...interface{}) error {
	return level.Warn(GLOBAL_LOGGER).Log(keyvals...)
}

func Error(keyvals ...interface{}) error {
	return level.Error(GLOBAL_LOGGER).Log(keyvals...)
}
