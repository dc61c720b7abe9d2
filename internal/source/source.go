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

// Package source builds the assembler's file graph (spec §4.1): given a
// root file path, it loads every file reachable through $use directives
// exactly once, keyed by canonical path, keeping a comment-stripped twin of
// every line alongside the raw one.
package source

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/martin-beran/mb50dev/curated"
	"github.com/martin-beran/mb50dev/internal/lex"
	"github.com/martin-beran/mb50dev/logger"
)

// File is one node of the file graph: a canonical path, its lines in both
// raw and comment-stripped form, and the namespace bindings it has
// established via $use. Pointers into the Graph's Files map are stable for
// the life of the program; internal/asm holds onto them.
type File struct {
	Path string

	Full     []string
	Stripped []string

	Namespaces map[string]*File

	processed bool
}

// Graph is the complete set of files reachable from a root file.
type Graph struct {
	Files map[string]*File
	Root  *File
}

// IoError identifies an unreadable input file.
const IoError = "cannot read %s: %s"

// DuplicateNamespace identifies a second $use of the same namespace name by
// the same importing file that binds it to a different file (a repeat $use
// to the same file is accepted and ignored).
const DuplicateNamespace = "%s: duplicate namespace %q"

// UseSyntax identifies a malformed $use directive: wrong argument count, an
// empty or unreadable file path, or a malformed or qualified namespace
// identifier.
const UseSyntax = "%s:%d: malformed $use directive"

// Load reads rootPath and every file it reaches through $use, returning the
// resulting Graph. When verbose is true, each file load is mirrored through
// logger.Log (tag "source") and echoed to stderr prefixed "- ".
func Load(rootPath string, verbose bool) (*Graph, error) {
	rootCanon, err := canonicalPath(rootPath, "")
	if err != nil {
		return nil, err
	}

	g := &Graph{Files: make(map[string]*File)}
	root := g.getOrCreate(rootCanon)
	g.Root = root

	stack := []*File{root}
	for len(stack) > 0 {
		n := len(stack) - 1
		f := stack[n]
		stack = stack[:n]

		if f.processed {
			continue
		}
		f.processed = true

		if verbose {
			logger.Log("source", fmt.Sprintf("loading %s", f.Path))
			fmt.Fprintf(os.Stderr, "- %s\n", f.Path)
		}

		newFiles, err := g.loadFile(f)
		if err != nil {
			return nil, err
		}
		// Reverse-order push preserves source order when popped LIFO.
		for i := len(newFiles) - 1; i >= 0; i-- {
			stack = append(stack, newFiles[i])
		}
	}

	return g, nil
}

func (g *Graph) getOrCreate(canon string) *File {
	if f, ok := g.Files[canon]; ok {
		return f
	}
	f := &File{Path: canon, Namespaces: make(map[string]*File)}
	g.Files[canon] = f
	return f
}

// loadFile reads f's lines and processes $use directives, returning the
// files newly discovered (in source order) so the caller can push them onto
// the work stack.
func (g *Graph) loadFile(f *File) ([]*File, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, curated.Errorf(IoError, f.Path, err.Error())
	}
	defer fh.Close()

	var newFiles []*File

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		full := strings.TrimRight(scanner.Text(), " \t\r")
		stripped := lex.StripComment(full)

		f.Full = append(f.Full, full)
		f.Stripped = append(f.Stripped, stripped)

		if stripped == "" {
			continue
		}
		split := lex.SplitLine(stripped)
		if split.Cmd != "$use" {
			continue
		}

		used, err := parseUse(f, lineNo, split.Args)
		if err != nil {
			return nil, err
		}
		if existing, dup := f.Namespaces[used.ns]; dup {
			// Re-$use of the same namespace name to the same file is the
			// no-op the assembler driver relies on (spec §4.5); rebinding
			// it to a different file is the conflict §4.1 rejects.
			if existing.Path != used.path {
				return nil, curated.Errorf(DuplicateNamespace, f.Path, used.ns)
			}
			continue
		}

		target := g.getOrCreate(used.path)
		f.Namespaces[used.ns] = target
		if !target.processed {
			newFiles = append(newFiles, target)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, curated.Errorf(IoError, f.Path, err.Error())
	}

	return newFiles, nil
}

type useDirective struct {
	ns   string
	path string
}

func parseUse(f *File, lineNo int, args []string) (useDirective, error) {
	if len(args) != 2 {
		return useDirective{}, curated.Errorf(UseSyntax, f.Path, lineNo)
	}
	ns := args[0]
	if !lex.IsIdentifier(ns) {
		return useDirective{}, curated.Errorf(UseSyntax, f.Path, lineNo)
	}

	pathTok := args[1]
	raw, err := lex.ParseString(pathTok)
	if err != nil || len(raw) == 0 {
		return useDirective{}, curated.Errorf(UseSyntax, f.Path, lineNo)
	}

	canon, err := canonicalPath(string(raw), filepath.Dir(f.Path))
	if err != nil {
		return useDirective{}, curated.Errorf(UseSyntax, f.Path, lineNo)
	}

	return useDirective{ns: ns, path: canon}, nil
}

// canonicalPath resolves path against dir (if path is relative and dir is
// non-empty) and cleans the result to a canonical absolute form.
func canonicalPath(path string, dir string) (string, error) {
	if path == "" {
		return "", curated.Errorf("empty file path")
	}
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", curated.Errorf("cannot resolve path %q: %s", path, err.Error())
	}
	return filepath.Clean(abs), nil
}
