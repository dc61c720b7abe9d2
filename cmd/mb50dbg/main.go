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

// Command mb50dbg is the MB50 debugger: mb50dbg tty [init_file] or
// mb50dbg {-h|--help} (spec §6).
package main

import (
	"fmt"
	"os"

	"github.com/martin-beran/mb50dev/internal/cdi"
	"github.com/martin-beran/mb50dev/internal/dbg"
)

const usage = `usage: mb50dbg tty [init_file]
       mb50dbg {-h|--help}

tty       ... serial port device for communication with the target computer
init_file ... optional file containing initial commands executed before
              entering the interactive mode
-h|--help ... print this help message and exit
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}
	if args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(os.Stderr, usage)
		return 0
	}

	var initFile string
	if len(args) == 2 {
		initFile = args[1]
	}

	t, err := cdi.Open(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	e := dbg.New(t, os.Stdout)
	defer e.Close()

	if err := e.RunREPL(os.Stdin, initFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
