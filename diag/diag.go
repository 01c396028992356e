// Package diag is the side channel for non-fatal diagnostics: validator
// findings, ignored X chromosomes and non-convergence warnings. None of these
// are errors; callers decide what to do with them.
package diag

import (
	"fmt"
	"sync"

	"go.dedis.ch/onet/v3/log"
)

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Message(msg string)
	Warning(msg string)
}

// LogSink forwards diagnostics to the onet logger.
type LogSink struct{}

func (LogSink) Message(msg string) { log.Lvl2(msg) }
func (LogSink) Warning(msg string) { log.Warn(msg) }

// Default is used wherever no sink is configured.
var Default Sink = LogSink{}

// Discard drops everything.
type Discard struct{}

func (Discard) Message(string) {}
func (Discard) Warning(string) {}

// Recorder keeps every diagnostic in memory, mostly for tests.
type Recorder struct {
	mu       sync.Mutex
	messages []string
	warnings []string
}

func (r *Recorder) Message(msg string) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
}

func (r *Recorder) Warning(msg string) {
	r.mu.Lock()
	r.warnings = append(r.warnings, msg)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Warnings returns a copy of the recorded warnings.
func (r *Recorder) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

// Messagef formats and sends a message to s, falling back to Default.
func Messagef(s Sink, format string, args ...interface{}) {
	if s == nil {
		s = Default
	}
	s.Message(fmt.Sprintf(format, args...))
}

// Warningf formats and sends a warning to s, falling back to Default.
func Warningf(s Sink, format string, args ...interface{}) {
	if s == nil {
		s = Default
	}
	s.Warning(fmt.Sprintf(format, args...))
}
