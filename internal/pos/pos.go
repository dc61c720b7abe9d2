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

// Package pos carries the (file, line) pair threaded through the assembler
// for diagnostics, and formats it the way reported errors are prefixed
// ("file:line: ").
package pos

import (
	"fmt"

	"github.com/martin-beran/mb50dev/curated"
)

// Position is a source location, a canonical file path paired with a
// 1-indexed line number.
type Position struct {
	File string
	Line int
}

// String renders "file:line", the prefix convention used by every reported
// error.
func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Errorf builds a reported (curated) error whose message is prefixed by p's
// position.
func (p Position) Errorf(pattern string, values ...interface{}) error {
	return curated.Errorf("%s: "+pattern, append([]interface{}{p}, values...)...)
}
