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
	"os"

	"github.com/martin-beran/mb50dev/curated"
)

// Tee is an append-mode mirror of REPL input and/or command output to a
// file. The debugger keeps two independent Tee instances: "script" records
// the full transcript (input lines prefixed "> ", output lines prefixed
// "< "), "history" records only input lines, unprefixed, so it can be
// replayed directly with DO. See the SCRIPT and HISTORY commands.
type Tee struct {
	file *os.File
	path string
}

// IsActive reports whether the tee currently has an open file.
func (t *Tee) IsActive() bool {
	return t.file != nil
}

// Path returns the path of the currently open tee file, or "" if inactive.
func (t *Tee) Path() string {
	return t.path
}

// Start opens path for appending, creating it if necessary.
func (t *Tee) Start(path string) error {
	if t.IsActive() {
		return curated.Errorf("tee: already active (%s)", t.path)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return curated.Errorf("tee: %v", err)
	}

	t.file = f
	t.path = path
	return nil
}

// Stop closes the tee file, if one is open.
func (t *Tee) Stop() error {
	if !t.IsActive() {
		return nil
	}

	err := t.file.Close()
	t.file = nil
	t.path = ""
	if err != nil {
		return curated.Errorf("tee: %v", err)
	}
	return nil
}

// WriteLine appends a single line to the tee file. It is a silent no-op
// when the tee is inactive.
func (t *Tee) WriteLine(s string) {
	if !t.IsActive() {
		return
	}
	fmt.Fprintln(t.file, s)
}
