// Package logger is the process-wide leveled logger. It deliberately stays on
// the standard library: the output is a line-oriented diagnostic stream for a
// client tool, configured once at startup from the logging section of the
// configuration file.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format selects the output encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var (
	currentLevel  = LevelInfo
	currentFormat = FormatText
	logger        = stdlog.New(os.Stdout, "", 0)
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SetLevel sets the minimum level that will be emitted. Unknown names leave
// the level unchanged.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	}
}

// SetFormat switches between "text" and "json" output.
func SetFormat(format string) {
	switch strings.ToLower(format) {
	case "json":
		currentFormat = FormatJSON
	default:
		currentFormat = FormatText
	}
}

// SetOutput redirects log output. "stdout" and "stderr" select the standard
// streams; any other value is opened as an append-only file.
func SetOutput(output string) error {
	var w io.Writer
	switch output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log output %q: %w", output, err)
		}
		w = f
	}
	logger = stdlog.New(w, "", 0)
	return nil
}

func log(level Level, format string, v ...any) {
	if level < currentLevel {
		return
	}

	message := fmt.Sprintf(format, v...)
	now := time.Now()

	if currentFormat == FormatJSON {
		line, err := json.Marshal(map[string]string{
			"time":    now.Format(time.RFC3339),
			"level":   level.String(),
			"message": message,
		})
		if err != nil {
			// Fall back to text rather than lose the record.
			logger.Printf("[%s] [%s] %s", now.Format("2006-01-02 15:04:05"), level, message)
			return
		}
		logger.Println(string(line))
		return
	}

	logger.Printf("[%s] [%s] %s", now.Format("2006-01-02 15:04:05"), level, message)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
