// Package stdout implements the observability ports over standard output.
// Useful for local runs and as the default when nothing else is wired.
package stdout

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"blobstore/domain/observability"
)

// Logger writes one line per entry, either as formatted text or as a JSON
// object when constructed with NewJSONLogger.
type Logger struct {
	fields map[string]interface{}
	logger *log.Logger
	json   bool
}

// NewLogger creates a text-format stdout logger.
func NewLogger() observability.Logger {
	return &Logger{
		fields: make(map[string]interface{}),
		logger: log.New(os.Stdout, "", 0),
	}
}

// NewJSONLogger creates a stdout logger emitting one JSON object per line.
func NewJSONLogger() observability.Logger {
	return &Logger{
		fields: make(map[string]interface{}),
		logger: log.New(os.Stdout, "", 0),
		json:   true,
	}
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log("DEBUG", msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log("INFO", msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log("WARN", msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log("ERROR", msg, fields...) }

// WithFields returns a new Logger carrying the combined field set.
func (l *Logger) WithFields(fields map[string]interface{}) observability.Logger {
	combined := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		combined[k] = v
	}
	for k, v := range fields {
		combined[k] = v
	}
	return &Logger{fields: combined, logger: l.logger, json: l.json}
}

func (l *Logger) log(level, msg string, fields ...interface{}) {
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level,
		"message":   msg,
	}
	for k, v := range l.fields {
		entry[k] = v
	}
	// variadic fields come as key1, value1, key2, value2, ...
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if err, isErr := fields[i+1].(error); isErr && err != nil {
			entry[key] = err.Error()
			continue
		}
		entry[key] = fields[i+1]
	}

	if l.json {
		if data, err := json.Marshal(entry); err == nil {
			l.logger.Println(string(data))
		}
		return
	}

	var parts []string
	for k, v := range entry {
		switch k {
		case "timestamp", "level", "message":
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	sort.Strings(parts)
	line := fmt.Sprintf("%s [%s] %s", entry["timestamp"], level, msg)
	if len(parts) > 0 {
		line += " | " + strings.Join(parts, " ")
	}
	l.logger.Println(line)
}
