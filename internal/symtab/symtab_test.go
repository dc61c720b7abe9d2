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

package symtab_test

import (
	"testing"

	"github.com/martin-beran/mb50dev/internal/symtab"
)

func TestPredefinedRegisters(t *testing.T) {
	tb := symtab.New()

	idx, csr, ok := tb.Register("r3")
	if !ok || idx != 3 || csr {
		t.Errorf("r3: got (%d, %v, %v)", idx, csr, ok)
	}

	idx, csr, ok = tb.Register("csr5")
	if !ok || idx != 5 || !csr {
		t.Errorf("csr5: got (%d, %v, %v)", idx, csr, ok)
	}

	idx, _, ok = tb.Register("pc")
	if !ok || idx != 15 {
		t.Errorf("pc: got (%d, %v)", idx, ok)
	}

	if !tb.IsPredefined("sp") {
		t.Error("sp should be predefined")
	}
}

func TestDefineConstRejectsPredefined(t *testing.T) {
	tb := symtab.New()
	if _, err := tb.DefineConst("a.s", "r1", nil); err == nil {
		t.Error("expected error redefining predefined name")
	}
}

func TestDefineConstAmbiguity(t *testing.T) {
	tb := symtab.New()

	if _, err := tb.DefineConst("a.s", "K", nil); err != nil {
		t.Fatal(err)
	}
	if tb.Ambiguous("K") {
		t.Error("K should not be ambiguous yet")
	}

	if _, err := tb.DefineConst("b.s", "K", nil); err != nil {
		t.Fatal(err)
	}
	if !tb.Ambiguous("K") {
		t.Error("K should be ambiguous after a second file defines it")
	}
}

func TestDefineConstSameFileRedefinitionFails(t *testing.T) {
	tb := symtab.New()
	if _, err := tb.DefineConst("a.s", "K", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := tb.DefineConst("a.s", "K", nil); err == nil {
		t.Error("expected error on same-file redefinition")
	}
}

func TestDefineLabelIdempotent(t *testing.T) {
	tb := symtab.New()
	addr := uint16(0x100)

	if _, err := tb.DefineLabel("a.s", "L", &addr, false); err != nil {
		t.Fatal(err)
	}
	if _, err := tb.DefineLabel("a.s", "L", &addr, false); err != nil {
		t.Errorf("idempotent redefinition should succeed: %v", err)
	}

	other := uint16(0x200)
	if _, err := tb.DefineLabel("a.s", "L", &other, false); err != nil {
		t.Errorf("redefinition to a different address, not yet fixed, should succeed: %v", err)
	}
}

func TestDefineLabelFixedRejectsRedefinition(t *testing.T) {
	tb := symtab.New()
	addr := uint16(0x100)

	if _, err := tb.DefineLabel("a.s", "L", &addr, true); err != nil {
		t.Fatal(err)
	}
	if _, _, err := tb.FindLabel("a.s", "L", true, false); err != nil {
		t.Fatal(err)
	}

	other := uint16(0x200)
	if _, err := tb.DefineLabel("a.s", "L", &other, true); err == nil {
		t.Error("expected error redefining a fixed label")
	}
}

func TestFindLabelCreatesForwardDeclaration(t *testing.T) {
	tb := symtab.New()

	lbl, ambiguous, err := tb.FindLabel("a.s", "Fwd", true, true)
	if err != nil {
		t.Fatal(err)
	}
	if ambiguous {
		t.Error("should not be ambiguous")
	}
	if lbl == nil || lbl.Defined {
		t.Errorf("expected an undefined forward declaration, got %+v", lbl)
	}

	addr := uint16(0x42)
	if _, err := tb.DefineLabel("a.s", "Fwd", &addr, true); err != nil {
		t.Fatal(err)
	}
	if !lbl.Defined || lbl.Addr != addr {
		t.Errorf("forward declaration should have converged to the later definition, got %+v", lbl)
	}
}

func TestUndefinedLabels(t *testing.T) {
	tb := symtab.New()
	tb.FindLabel("a.s", "Pending", true, true)

	names := tb.UndefinedLabels()
	if len(names) != 1 || names[0] != "Pending" {
		t.Errorf("got %v", names)
	}
}
