package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// logLineFormatter renders every entry as:
//
//	YYYY-MM-DD HH:MM:SS <pid> <engine-id> <prefix> <utf8-text>
//
// per spec.md section 6, matching the original implementation's log
// file layout closely enough that existing log-scraping tooling keeps
// working. It implements logrus.Formatter directly rather than using
// one of logrus's bundled formatters, since neither the text nor JSON
// formatter can produce this exact column layout.
type logLineFormatter struct {
	pid int
}

func newLogLineFormatter() *logLineFormatter {
	return &logLineFormatter{pid: os.Getpid()}
}

func (f *logLineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	engineID, _ := e.Data["engine_id"].(string)
	if engineID == "" {
		engineID = "-"
	}
	prefix, _ := e.Data["prefix"].(string)
	if prefix == "" {
		prefix = e.Level.String()
	}
	line := fmt.Sprintf("%s %d %s %s %s%s",
		e.Time.Format("2006-01-02 15:04:05"), f.pid, engineID, prefix, e.Message, lineEnding())
	return []byte(line), nil
}

func lineEnding() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// rotatingHook renames the log file to ".1" once it exceeds the
// configured size cap, then lets the next write start a fresh file, per
// spec.md section 6's size-capped rotation. It wraps an *os.File behind
// a mutex since logrus may call Fire from multiple goroutines.
type rotatingHook struct {
	mu       sync.Mutex
	path     string
	limit    int64
	file     *os.File
	written  int64
}

func newRotatingHook(path string, limitBytes int64) (*rotatingHook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &rotatingHook{path: path, limit: limitBytes, file: f, written: info.Size()}, nil
}

func (h *rotatingHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *rotatingHook) Fire(e *logrus.Entry) error {
	line, err := newLogLineFormatter().Format(e)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.limit > 0 && h.written+int64(len(line)) > h.limit {
		if err := h.rotateLocked(); err != nil {
			return err
		}
	}
	n, err := h.file.Write(line)
	h.written += int64(n)
	return err
}

func (h *rotatingHook) rotateLocked() error {
	h.file.Close()
	rotated := h.path + ".1"
	_ = os.Remove(rotated)
	if err := os.Rename(h.path, rotated); err != nil && !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	h.file = f
	h.written = 0
	return nil
}

func (h *rotatingHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.file.Close()
}

// Logger wraps a *logrus.Logger configured per spec.md section 6: a
// custom formatter, size-capped rotation to LogPath, and debug-level
// gating against cfg.DebugLevel.
type Logger struct {
	*logrus.Logger
	hook *rotatingHook
}

// NewLogger builds a Logger from cfg. If cfg.LogPath is empty, logging
// goes to stderr with the same line format but no rotation.
func NewLogger(cfg Configuration) (*Logger, error) {
	base := logrus.New()
	base.SetLevel(levelFor(cfg.DebugLevel))

	if cfg.LogPath == "" {
		base.SetFormatter(newLogLineFormatter())
		return &Logger{Logger: base}, nil
	}

	hook, err := newRotatingHook(cfg.LogPath, cfg.LogSizeLimitBytes)
	if err != nil {
		return nil, fmt.Errorf("config: opening log file: %w", err)
	}
	base.SetOutput(os.Stderr)
	base.SetFormatter(newLogLineFormatter())
	base.AddHook(hook)
	return &Logger{Logger: base, hook: hook}, nil
}

func levelFor(debugLevel int) logrus.Level {
	switch {
	case debugLevel <= 0:
		return logrus.InfoLevel
	case debugLevel == 1:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// WithEngine returns an entry pre-tagged with the owning engine's id,
// so every line it logs carries the <engine-id> column spec.md names.
func (l *Logger) WithEngine(engineID string) *logrus.Entry {
	return l.WithField("engine_id", engineID)
}

// Close releases the rotating log file, if one is open.
func (l *Logger) Close() error {
	if l.hook == nil {
		return nil
	}
	return l.hook.Close()
}
