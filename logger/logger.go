// This file is part of mb50dev.
//
// mb50dev is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// mb50dev is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with mb50dev.  If not, see <https://www.gnu.org/licenses/>.

// Package logger is a low-volume trace log, not a user-facing output path.
// Entries are tag/detail pairs kept in a bounded ring and rendered on
// request; nothing is printed unless something calls Write or Tail.
package logger

import (
	"fmt"
	"io"
	"sync"
)

// Permission gates whether a Log/Logf call is recorded at all. Callers that
// always want to log use Allow.
type Permission interface {
	AllowLogging() bool
}

type allowAll struct{}

func (allowAll) AllowLogging() bool { return true }

// Allow is a Permission that always allows logging.
var Allow Permission = allowAll{}

type entry struct {
	tag    string
	detail string
}

// Logger is a bounded ring of tag/detail entries. The zero value is not
// usable; construct with NewLogger.
type Logger struct {
	mu       sync.Mutex
	entries  []entry
	capacity int
}

// NewLogger creates a Logger that retains at most capacity entries, the
// oldest being dropped once that's exceeded. capacity <= 0 means unbounded.
func NewLogger(capacity int) *Logger {
	return &Logger{capacity: capacity}
}

// Clear discards all entries.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func formatDetail(detail any) string {
	switch v := detail.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (l *Logger) add(tag, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{tag: tag, detail: detail})
	if l.capacity > 0 && len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// Log records tag/detail if perm allows logging. detail is rendered via its
// error or Stringer interface if it implements one, else via %v.
func (l *Logger) Log(perm Permission, tag string, detail any) {
	if perm != nil && !perm.AllowLogging() {
		return
	}
	l.add(tag, formatDetail(detail))
}

// Logf is Log with a format string for the detail.
func (l *Logger) Logf(perm Permission, tag string, pattern string, args ...any) {
	if perm != nil && !perm.AllowLogging() {
		return
	}
	l.add(tag, fmt.Sprintf(pattern, args...))
}

// Write renders every retained entry, one "tag: detail" line each, oldest
// first.
func (l *Logger) Write(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		fmt.Fprintf(w, "%s: %s\n", e.tag, e.detail)
	}
}

// Tail renders the most recent n entries, or fewer if n exceeds the number
// retained.
func (l *Logger) Tail(w io.Writer, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	for _, e := range l.entries[len(l.entries)-n:] {
		fmt.Fprintf(w, "%s: %s\n", e.tag, e.detail)
	}
}

// central is the package-level logger used by the convenience functions
// below, which always log (Permission Allow) and take no permission
// argument; callers that need permission gating construct their own Logger.
var central = NewLogger(1000)

// Log records tag/detail on the central logger.
func Log(tag string, detail any) { central.Log(Allow, tag, detail) }

// Logf records a formatted detail on the central logger.
func Logf(tag string, pattern string, args ...any) { central.Logf(Allow, tag, pattern, args...) }

// Write renders the central logger's entries.
func Write(w io.Writer) { central.Write(w) }

// Tail renders the central logger's most recent n entries.
func Tail(w io.Writer, n int) { central.Tail(w, n) }

// Clear discards the central logger's entries.
func Clear() { central.Clear() }
