// Package logging writes the bot's log to the console and to a per-start log
// file, stamping every line in a fixed time zone.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
	_ "time/tzdata"
)

const stampLayout = "01-02-2006-15-04-05"

// Sink is an io.Writer that prefixes each line with a timestamp and fans it
// out to the console and the log file.
type Sink struct {
	mu   sync.Mutex
	out  io.Writer
	file *os.File
	loc  *time.Location
	now  func() time.Time
}

// Open creates dir if needed and starts bot-<timestamp>.log inside it. An
// empty dir logs to the console only.
func Open(dir, timezone string, console io.Writer) (*Sink, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	s := &Sink{out: console, loc: loc, now: time.Now}
	if dir == "" {
		return s, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := filepath.Join(dir, fmt.Sprintf("bot-%s.log", s.stamp()))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	s.file = f
	s.out = io.MultiWriter(console, f)
	return s, nil
}

func (s *Sink) stamp() string {
	t := s.now().In(s.loc)
	return fmt.Sprintf("%s-%03d", t.Format(stampLayout), t.Nanosecond()/int(time.Millisecond))
}

// Write stamps every line of p.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := []byte("[" + s.stamp() + "] ")
	var buf bytes.Buffer
	for _, line := range bytes.SplitAfter(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		buf.Write(prefix)
		buf.Write(line)
	}
	if _, err := s.out.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Logger returns a logger writing "LEVEL: message" lines through the sink.
func (s *Sink) Logger(level string) *log.Logger {
	return log.New(s, level+": ", log.Lmsgprefix)
}

// Close closes the log file.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
