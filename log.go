package firebird

import (
	"fmt"
	"strings"

	"src.goblgobl.com/utils/log"
)

// Message severity levels, mirroring the PostgreSQL client_min_messages
// scale. A connection drops diagnostics below its configured minimum.
const (
	LogDebug5  = 10
	LogDebug4  = 11
	LogDebug3  = 12
	LogDebug2  = 13
	LogDebug1  = 14
	LogInfo    = 17
	LogNotice  = 18
	LogWarning = 19
	LogError   = 20
	LogFatal   = 21
	LogPanic   = 22
)

// DefaultClientMinMessages is the severity gate applied to new
// connections; everything from DEBUG1 upwards is emitted.
const DefaultClientMinMessages = LogDebug1

var logLevelNames = map[int]string{
	LogDebug5:  "DEBUG5",
	LogDebug4:  "DEBUG4",
	LogDebug3:  "DEBUG3",
	LogDebug2:  "DEBUG2",
	LogDebug1:  "DEBUG1",
	LogInfo:    "INFO",
	LogNotice:  "NOTICE",
	LogWarning: "WARNING",
	LogError:   "ERROR",
	LogFatal:   "FATAL",
	LogPanic:   "PANIC",
}

// logLevelName returns the display name for a severity level.
func logLevelName(level int) string {
	if name, ok := logLevelNames[level]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL%d", level)
}

// logLevelFromName parses a client_min_messages setting.
func logLevelFromName(name string) (int, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for level, levelName := range logLevelNames {
		if levelName == upper {
			return level, true
		}
	}
	return 0, false
}

// logLevel routes a library severity onto the structured logger.
func logLevel(level int, ctx string) log.Logger {
	switch {
	case level >= LogError:
		return log.Error(ctx)
	case level >= LogNotice:
		return log.Warn(ctx)
	default:
		return log.Info(ctx)
	}
}

// log emits a connection diagnostic, subject to the connection's
// client_min_messages gate.
func (c *Conn) log(level int, format string, args ...any) {
	if level < c.clientMinMessages {
		return
	}
	logLevel(level, "firebird").
		String("severity", logLevelName(level)).
		String("message", fmt.Sprintf(format, args...)).
		Log()
}
