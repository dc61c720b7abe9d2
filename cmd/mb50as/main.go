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

// Command mb50as is the MB50 assembler: mb50as [-v] input_file.s (spec §6).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/martin-beran/mb50dev/internal/asm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flgs := flag.NewFlagSet("mb50as", flag.ContinueOnError)
	verbose := flgs.Bool("v", false, "print each source file's path to stderr as it is loaded")
	flgs.Usage = func() {
		fmt.Fprintln(flgs.Output(), "usage: mb50as [-v] input_file.s")
		flgs.PrintDefaults()
	}

	if err := flgs.Parse(args); err != nil {
		return 1
	}
	if flgs.NArg() != 1 {
		flgs.Usage()
		return 1
	}

	img, err := asm.Assemble(flgs.Arg(0), *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := img.Write(baseName(flgs.Arg(0))); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// baseName strips a trailing ".s" from path, the way the assembler derives
// its X.bin/X.mif/X.out output names from input X.s (spec §6).
func baseName(path string) string {
	if len(path) > 2 && path[len(path)-2:] == ".s" {
		return path[:len(path)-2]
	}
	return path
}
