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

package expr_test

import (
	"testing"

	"github.com/martin-beran/mb50dev/internal/expr"
	"github.com/martin-beran/mb50dev/internal/value"
)

// stubCtx is a minimal value.Context for testing arithmetic and precedence
// without symtab/asm wiring.
type stubCtx struct {
	addr uint16
}

func (c stubCtx) Addr() uint16                          { return c.addr }
func (c stubCtx) MacroArg(string) (value.Expr, bool)     { return nil, false }
func (c stubCtx) ResolveRegister(string) (value.RegisterRef, bool) {
	return value.RegisterRef{}, false
}
func (c stubCtx) ResolveVar(string, bool, string) (value.Expr, bool, error) {
	return nil, false, nil
}
func (c stubCtx) ResolveLabel(string, bool, string) (uint16, bool, bool, error) {
	return 0, false, false, nil
}

func eval(t *testing.T, s string, ctx value.Context) value.Value {
	t.Helper()
	n, err := expr.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	v, ok, err := n.Eval(ctx)
	if err != nil {
		t.Fatalf("Eval(%q): %v", s, err)
	}
	if !ok {
		t.Fatalf("Eval(%q): indefinite", s)
	}
	return v
}

func TestArithmetic(t *testing.T) {
	cases := []struct {
		in   string
		want uint16
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 3 - 2", 5},
		{"0xff & 0x0f", 0x0f},
		{"1 << 4", 16},
		{"1 << 17", 0},
		{"0xffff >> 17", 0},
		{"~0", 0xffff},
		{"-1", 0xffff},
		{"10 % 3", 1},
	}
	for _, c := range cases {
		got := eval(t, c.in, stubCtx{})
		if got.Kind != value.Number || got.Number != c.want {
			t.Errorf("%s = %+v, want %d", c.in, got, c.want)
		}
	}
}

func TestPrecedence(t *testing.T) {
	// 1 | 2 ^ 3 & 4 << 1 + 2 * 3  ==  1 | (2 ^ (3 & (4 << (1 + (2 * 3)))))
	got := eval(t, "1 | 2 ^ 3 & 4 << 1 + 2 * 3", stubCtx{})
	want := eval(t, "1 | (2 ^ (3 & (4 << (1 + (2 * 3)))))", stubCtx{})
	if got.Kind != want.Kind || got.Number != want.Number {
		t.Errorf("precedence mismatch: %+v != %+v", got, want)
	}
}

func TestDivModByZero(t *testing.T) {
	for _, s := range []string{"1 / 0", "1 % 0"} {
		n, err := expr.Parse(s)
		if err != nil {
			t.Fatal(err)
		}
		_, ok, err := n.Eval(stubCtx{})
		if err != nil {
			t.Fatalf("%s: unexpected error %v", s, err)
		}
		if ok {
			t.Errorf("%s: expected indefinite result", s)
		}
	}
}

func TestAddr(t *testing.T) {
	got := eval(t, "__addr + 1", stubCtx{addr: 0x100})
	if got.Number != 0x101 {
		t.Errorf("got %x, want 0x101", got.Number)
	}
}

func TestStringLiteralAtom(t *testing.T) {
	n, err := expr.Parse(`"ab"`)
	if err != nil {
		t.Fatal(err)
	}
	v, ok, err := n.Eval(stubCtx{})
	if err != nil || !ok {
		t.Fatalf("eval error: %v ok=%v", err, ok)
	}
	if v.Kind != value.Bytes || string(v.Bytes) != "ab" {
		t.Errorf("got %+v", v)
	}
}

func TestUnaryOnNonNumericIsError(t *testing.T) {
	n, err := expr.Parse(`-"a"`)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = n.Eval(stubCtx{})
	if err == nil {
		t.Error("expected error applying unary - to a byte sequence")
	}
}
