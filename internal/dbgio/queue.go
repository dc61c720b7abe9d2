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

package dbgio

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Line is a single normalised command line queued for execution.
type Line struct {
	Entry string
	Batch bool // true if the line came from a DO-file rather than the REPL
}

// Queue normalises raw input into individual commands. Commands in a single
// line of input may be separated with ';'. internal/dbg uses it to load
// DO-files; lines typed at the REPL are dispatched as typed, without
// splitting on ';'.
type Queue struct {
	lines []Line
}

// More returns true if there are more commands in the queue.
func (q *Queue) More() bool {
	return len(q.lines) > 0
}

// Next returns (and removes) the next command in the queue.
func (q *Queue) Next() (Line, bool) {
	if len(q.lines) > 0 {
		ln := q.lines[0]
		q.lines = q.lines[1:]
		return ln, true
	}
	return Line{}, false
}

// Push splits input into one or more commands and appends them to the
// queue, returning the first.
func (q *Queue) Push(input string) (Line, error) {
	q.push(input, false)
	if ln, ok := q.Next(); ok {
		return ln, nil
	}
	return Line{}, io.EOF
}

func (q *Queue) push(input string, batch bool) {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")

	// commands within a line can be separated by semi-colons as well as by
	// newlines; normalise both to the same separator
	input = strings.ReplaceAll(input, ";", "\n")

	for _, s := range strings.Split(input, "\n") {
		s = strings.TrimSpace(s)
		if len(s) > 0 && !strings.HasPrefix(s, "#") {
			q.lines = append(q.lines, Line{Entry: s, Batch: batch})
		}
	}
}

// Load reads a DO-file and appends its commands to the queue.
func (q *Queue) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("dbgio: no such file: %s", filename)
		}
		return fmt.Errorf("dbgio: %w", err)
	}
	defer f.Close()

	s, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("dbgio: %w", err)
	}

	q.push(string(s), true)

	return nil
}
