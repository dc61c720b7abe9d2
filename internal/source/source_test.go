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

package source_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/martin-beran/mb50dev/internal/source"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "main.s", "label: add r1, r2 # comment\n\n")

	g, err := source.Load(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if g.Root == nil || len(g.Files) != 1 {
		t.Fatalf("expected a single-file graph, got %d files", len(g.Files))
	}
	if len(g.Root.Full) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(g.Root.Full))
	}
	if g.Root.Full[0] != "label: add r1, r2 # comment" {
		t.Errorf("full[0] = %q", g.Root.Full[0])
	}
	if g.Root.Stripped[0] != "label: add r1, r2" {
		t.Errorf("stripped[0] = %q", g.Root.Stripped[0])
	}
	if g.Root.Full[1] != "" || g.Root.Stripped[1] != "" {
		t.Errorf("expected blank second line, got %q / %q", g.Root.Full[1], g.Root.Stripped[1])
	}
}

func TestLoadUseGraph(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.s", "K: $const K, 1\n")
	root := writeFile(t, dir, "main.s", `$use lib, "lib.s"
add r1, r2
`)

	g, err := source.Load(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(g.Files))
	}
	lib, ok := g.Root.Namespaces["lib"]
	if !ok {
		t.Fatal("expected namespace \"lib\" bound in root file")
	}
	if len(lib.Full) != 1 {
		t.Fatalf("expected 1 line in lib.s, got %d", len(lib.Full))
	}
}

func TestLoadUseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.s", "# empty\n")
	root := writeFile(t, dir, "main.s", `$use lib, "lib.s"
$use lib, "lib.s"
`)

	g, err := source.Load(root, false)
	if err != nil {
		t.Fatalf("repeated $use of the same namespace to the same file should be a no-op: %v", err)
	}
	if len(g.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(g.Files))
	}
}

func TestLoadUseConflictingNamespace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.s", "# a\n")
	writeFile(t, dir, "b.s", "# b\n")
	root := writeFile(t, dir, "main.s", `$use lib, "a.s"
$use lib, "b.s"
`)

	_, err := source.Load(root, false)
	if err == nil {
		t.Fatal("expected DuplicateNamespace error when the same name is rebound to a different file")
	}
}

func TestLoadSharedFileNotReprocessed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.s", "$const Z, 1\n")
	writeFile(t, dir, "a.s", `$use common, "common.s"
`)
	root := writeFile(t, dir, "main.s", `$use a, "a.s"
$use c, "common.s"
`)

	g, err := source.Load(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Files) != 3 {
		t.Fatalf("expected 3 distinct files, got %d", len(g.Files))
	}
	a := g.Root.Namespaces["a"]
	common := g.Root.Namespaces["c"]
	if a.Namespaces["common"] != common {
		t.Error("expected a.s's \"common\" namespace to be the same *File as main.s's \"c\"")
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := source.Load(filepath.Join(dir, "nope.s"), false)
	if err == nil {
		t.Fatal("expected an IoError for a missing root file")
	}
}

func TestLoadMalformedUse(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "main.s", "$use only_one_arg\n")
	_, err := source.Load(root, false)
	if err == nil {
		t.Fatal("expected a UseSyntax error for a $use with the wrong argument count")
	}
}
