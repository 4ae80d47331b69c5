package logger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	LOG_ENABLE           = "SMARTSIM_HPC_LOGLEVEL"
	LOG_PATH             = "SMARTSIM_HPC_LOGPATH"
	LOG_FORMAT           = "SMARTSIM_HPC_LOGFORMAT"
	LOG_TIMEOUT          = "SMARTSIM_HPC_TIMEOUT"
	LOG_DEFAULT_TIMEOUT  = 24
	HPC_DEBUG_LOGGING    = 10
	HPC_INFO_LOGGING     = 20
	HPC_WARNING_LOGGING  = 30
	HPC_ERROR_LOGGING    = 40
	HPC_CRITICAL_LOGGING = 50
	HPC_DEFAULT_LOGGING  = HPC_WARNING_LOGGING
	logFilename          = "smartsim-hpc.log"
	levelCritical        = slog.Level(12)
)

var (
	mu  sync.Mutex
	Log *slog.Logger
)

func init() {
	SetOutput(os.Stderr)
}

func newHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		// filtering is done against LogLevel()
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == levelCritical {
					a.Value = slog.StringValue("CRITICAL")
				}
			}
			return a
		},
	}
	if os.Getenv(LOG_FORMAT) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// EnvVars lists the variables controlling logging.
func EnvVars() []string {
	return []string{LOG_ENABLE, LOG_PATH, LOG_FORMAT, LOG_TIMEOUT}
}

// SetOutput redirects all log records to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	Log = slog.New(newHandler(w))
}

// OpenFile mirrors log records into $SMARTSIM_HPC_LOGPATH/smartsim-hpc.log.
// The file is restarted once it is older than $SMARTSIM_HPC_TIMEOUT hours.
func OpenFile() error {
	logPath := os.TempDir()
	if env := os.Getenv(LOG_PATH); len(env) > 0 {
		logPath = env
	}
	timeout := LOG_DEFAULT_TIMEOUT
	if env := os.Getenv(LOG_TIMEOUT); len(env) > 0 {
		if t, err := strconv.Atoi(env); err == nil {
			timeout = t
		}
	}
	logfile := filepath.Join(logPath, logFilename)
	if f, err := os.Open(logfile); err == nil {
		scanner := bufio.NewScanner(f)
		scanner.Scan()
		f.Close()
		if tag, terr := time.Parse(time.RFC3339, scanner.Text()); terr == nil {
			if int(time.Since(tag).Hours()) > timeout {
				os.Remove(logfile)
			}
		} else {
			os.Remove(logfile)
		}
	}
	f, err := os.OpenFile(logfile,
		os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("logger: OpenFile: %w", err)
	}
	if stat, serr := f.Stat(); serr == nil && stat.Size() == 0 {
		f.WriteString(time.Now().Format(time.RFC3339) + "\n")
		f.Sync()
	}
	SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

func LogLevel() int {
	if env, err := strconv.Atoi(os.Getenv(LOG_ENABLE)); err == nil {
		return env
	}
	return HPC_DEFAULT_LOGGING
}

func slogLevel(level int) slog.Level {
	switch level {
	case HPC_DEBUG_LOGGING:
		return slog.LevelDebug
	case HPC_INFO_LOGGING:
		return slog.LevelInfo
	case HPC_WARNING_LOGGING:
		return slog.LevelWarn
	case HPC_ERROR_LOGGING:
		return slog.LevelError
	default:
		return levelCritical
	}
}

func logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return Log
}

func printf(level int, format string, a ...interface{}) {
	if LogLevel() <= level {
		logger().Log(context.Background(), slogLevel(level), fmt.Sprintf(format, a...))
	}
}

func obj(level int, name string, v interface{}) {
	if LogLevel() <= level {
		data, _ := json.Marshal(v)
		logger().Log(context.Background(), slogLevel(level), name, "object", string(data))
	}
}

// Event logs msg with structured key/value pairs at level.
func Event(level int, msg string, args ...interface{}) {
	if LogLevel() <= level {
		logger().Log(context.Background(), slogLevel(level), msg, args...)
	}
}

func DebugObj(name string, v interface{}) {
	obj(HPC_DEBUG_LOGGING, name, v)
}

func DebugPrintf(format string, a ...interface{}) {
	printf(HPC_DEBUG_LOGGING, format, a...)
}

func InfoObj(name string, v interface{}) {
	obj(HPC_INFO_LOGGING, name, v)
}

func InfoPrintf(format string, a ...interface{}) {
	printf(HPC_INFO_LOGGING, format, a...)
}

func WarningObj(name string, v interface{}) {
	obj(HPC_WARNING_LOGGING, name, v)
}

func WarningPrintf(format string, a ...interface{}) {
	printf(HPC_WARNING_LOGGING, format, a...)
}

func ErrorObj(name string, v interface{}) {
	obj(HPC_ERROR_LOGGING, name, v)
}

func ErrorPrintf(format string, a ...interface{}) {
	printf(HPC_ERROR_LOGGING, format, a...)
}

func CriticalObj(name string, v interface{}) {
	obj(HPC_CRITICAL_LOGGING, name, v)
}

func CriticalPrintf(format string, a ...interface{}) {
	printf(HPC_CRITICAL_LOGGING, format, a...)
}
