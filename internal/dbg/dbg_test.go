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

package dbg

import (
	"bytes"
	"strings"
	"testing"

	"github.com/martin-beran/mb50dev/internal/commandline"
)

func TestResolveReg(t *testing.T) {
	cases := map[string]int{"r0": 0, "R15": 15, "sp": 11, "PC": 15, "f": 14}
	for tok, want := range cases {
		got, ok := resolveReg(tok)
		if !ok || got != want {
			t.Errorf("resolveReg(%q) = %d,%v want %d", tok, got, ok, want)
		}
	}
	if _, ok := resolveReg("r16"); ok {
		t.Error("resolveReg(r16) should fail")
	}
}

func TestResolveCsr(t *testing.T) {
	if got, ok := resolveCsr("csr3"); !ok || got != 3 {
		t.Errorf("resolveCsr(csr3) = %d,%v", got, ok)
	}
	if _, ok := resolveCsr("r3"); ok {
		t.Error("resolveCsr(r3) should fail")
	}
}

func TestAsciiOf(t *testing.T) {
	got := asciiOf([]byte{0x41, 0x00, 0x7e, 0x7f})
	if got != "A.~." {
		t.Errorf("asciiOf = %q", got)
	}
}

func TestParseBinImage(t *testing.T) {
	addr, data, err := parseBinImage([]byte("0100\nAB"))
	if err != nil {
		t.Fatal(err)
	}
	if addr != 0x0100 || string(data) != "AB" {
		t.Errorf("parseBinImage = %#04x, %q", addr, data)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	e := New(nil, &bytes.Buffer{})
	if err := e.Dispatch(nil, "bogus"); err != nil {
		t.Fatal(err)
	}
	out := e.out.(*bytes.Buffer).String()
	if !strings.Contains(out, "Unknown command") {
		t.Errorf("output = %q", out)
	}
}

func TestDispatchBreakAlias(t *testing.T) {
	e := New(nil, &bytes.Buffer{})
	if err := e.Dispatch(nil, "b 0x10"); err != nil {
		t.Fatal(err)
	}
	if !e.breakpoints[0x10] {
		t.Error("expected breakpoint at 0x10")
	}
	if err := e.Dispatch(nil, "b - 0x10"); err != nil {
		t.Fatal(err)
	}
	if e.breakpoints[0x10] {
		t.Error("expected breakpoint at 0x10 to be cleared")
	}
}

func TestDispatchQuit(t *testing.T) {
	e := New(nil, &bytes.Buffer{})
	if err := e.Dispatch(nil, "q"); err != nil {
		t.Fatal(err)
	}
	if !e.quit {
		t.Error("expected quit to be set")
	}
}

func TestDebuggerCommandsIndexed(t *testing.T) {
	for _, name := range []string{cmdBreak, cmdCsr, cmdDump, cmdExecute, cmdHelp, cmdQuestion, cmdRegister, cmdQuit, cmdStep} {
		if _, ok := debuggerCommands.Index[name]; !ok {
			t.Errorf("command %s missing from index", name)
		}
	}
}

func TestCommandlineNormalisesHexPrefix(t *testing.T) {
	tokens := commandline.TokeniseInput("BREAK $10")
	if err := debuggerCommands.ValidateTokens(tokens); err != nil {
		t.Fatal(err)
	}
}
