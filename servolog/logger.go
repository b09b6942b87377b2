package servolog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whjrobotics/canfd/servo"
)

var (
	// ErrAlreadyLogging indicates Start was called with a scope still open.
	ErrAlreadyLogging = errors.New("servolog: already logging")

	// ErrNotLogging indicates Stop was called with no open scope.
	ErrNotLogging = errors.New("servolog: not logging")
)

// header is the first row of every session file.
var header = []string{"timestamp", "session", "motor", "command", "parameter", "raw", "value", "outcome"}

// Logger writes one CSV row per completed command, in completion order,
// between Start and Stop. Outside a scope completions are dropped. It
// implements servo.Recorder and is safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	active  bool
	session string
	w       *csv.Writer
	closer  io.Closer
}

// New creates an idle logger.
func New() *Logger {
	return &Logger{}
}

// Active reports whether a logging scope is open.
func (l *Logger) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Session returns the id of the open scope, or "" when idle.
func (l *Logger) Session() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return ""
	}
	return l.session
}

// Start opens a logging scope on the given writer and emits the header row.
func (l *Logger) Start(w io.Writer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startLocked(w, nil)
}

// StartFile opens a logging scope on a new CSV file under dir, creating the
// directory if needed. It returns the file path.
func (l *Logger) StartFile(dir string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return "", ErrAlreadyLogging
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("servolog: create log dir: %w", err)
	}
	id := uuid.New()
	name := fmt.Sprintf("%s_session_%s.csv", time.Now().Format("20060102_150405"), id.String()[:8])
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("servolog: create log file: %w", err)
	}
	if err := l.startLocked(f, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	l.session = id.String()
	return path, nil
}

func (l *Logger) startLocked(w io.Writer, closer io.Closer) error {
	if l.active {
		return ErrAlreadyLogging
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("servolog: write header: %w", err)
	}
	l.active = true
	l.session = uuid.NewString()
	l.w = cw
	l.closer = closer
	return nil
}

// Stop closes the scope, flushing buffered rows and closing the file when
// the scope was opened with StartFile.
func (l *Logger) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return ErrNotLogging
	}
	l.active = false
	l.w.Flush()
	err := l.w.Error()
	if l.closer != nil {
		if cerr := l.closer.Close(); err == nil {
			err = cerr
		}
	}
	l.w = nil
	l.closer = nil
	l.session = ""
	return err
}

// RecordCompletion writes one row for a completed command. Completions
// arriving outside a scope are dropped.
func (l *Logger) RecordCompletion(c servo.Completion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return
	}
	_ = l.w.Write([]string{
		c.Time.Format(time.RFC3339Nano),
		l.session,
		strconv.Itoa(int(c.Motor)),
		c.Kind.String(),
		c.Parameter,
		strconv.FormatInt(int64(c.Raw), 10),
		strconv.FormatFloat(c.Value, 'g', -1, 64),
		c.Outcome,
	})
}
