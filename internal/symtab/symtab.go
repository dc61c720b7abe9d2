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

// Package symtab holds the assembler's symbol tables: one table per source
// file, a global table derived from cross-file publication (tracking which
// names have become ambiguous), and a predefined table for registers and
// __addr. Symbols are stored as plain pointers into per-file maps; Go's
// garbage collector makes that the natural equivalent of an arena handle,
// so there is no back-reference bookkeeping to get wrong.
package symtab

import (
	"fmt"

	"github.com/martin-beran/mb50dev/curated"
	"github.com/martin-beran/mb50dev/internal/value"
)

// Label is a named address. Fixed is set once the label has been observed
// as a global reference, after which its address may no longer change.
type Label struct {
	Addr    uint16
	Defined bool
	Fixed   bool
}

// Var is a named constant. Its expression is re-evaluated on every use
// because it may reference __addr.
type Var struct {
	Expr value.Expr
}

// Span is a half-open [Start, End) range of line indices into a source
// file's parallel line vectors (owned by internal/source).
type Span struct {
	Start, End int
}

// Macro is a named, parameterised span of source lines captured for
// repeated expansion.
type Macro struct {
	Params  []string
	DefFile string // canonical path of the defining file
	Full    Span
	Stripped Span
	Order   int // definition order, used to reject forward macro references
}

type kind int

const (
	kindLabel kind = iota
	kindVar
	kindMacro
)

// entry is the tagged-union storage cell behind every table slot.
type entry struct {
	kind  kind
	label *Label
	v     *Var
	macro *Macro
}

func (e *entry) describe() string {
	switch e.kind {
	case kindLabel:
		return "label"
	case kindVar:
		return "constant"
	case kindMacro:
		return "macro"
	default:
		return "symbol"
	}
}

// fileTable is the set of names defined directly in one source file.
type fileTable struct {
	names map[string]*entry
}

// globalSlot is one name's cross-file publication state. Once ambiguous is
// true the name is permanently unresolvable as a global reference; file
// records which file first published it, to distinguish "two files define
// this name" from "the same file republished it".
type globalSlot struct {
	entry     *entry
	file      string
	ambiguous bool
	// declared is true when this slot was created by a bare forward
	// reference (".name" with no definition yet) rather than by a real
	// definition; a subsequent real definition converges onto it instead
	// of being treated as a second, conflicting file.
	declared bool
}

// Tables is the complete symbol universe for one assembler run: per-file
// local tables, the derived global table, and the predefined table.
type Tables struct {
	files      map[string]*fileTable
	global     map[string]*globalSlot
	predefined map[string]*entry
	macroOrder int
}

// New creates an empty symbol universe with the predefined table populated:
// r0..r15, csr0..csr15, the aliases sp=r11, ca=r12, ia=r13, f=r14, pc=r15,
// and __addr.
func New() *Tables {
	t := &Tables{
		files:      make(map[string]*fileTable),
		global:     make(map[string]*globalSlot),
		predefined: make(map[string]*entry),
	}
	for i := 0; i < 16; i++ {
		t.predefined[fmt.Sprintf("r%d", i)] = &entry{kind: kindLabel, label: &Label{Addr: uint16(i), Defined: true}}
		t.predefined[fmt.Sprintf("csr%d", i)] = &entry{kind: kindLabel, label: &Label{Addr: uint16(i), Defined: true}}
	}
	alias := map[string]string{"sp": "r11", "ca": "r12", "ia": "r13", "f": "r14", "pc": "r15"}
	for a, r := range alias {
		t.predefined[a] = t.predefined[r]
	}
	// __addr has no fixed address; it is handled specially by the
	// expression engine's identifier resolver, but it still occupies the
	// predefined namespace so it cannot be redefined.
	t.predefined["__addr"] = &entry{kind: kindVar}
	return t
}

// IsPredefined reports whether name is reserved by the predefined table.
func (t *Tables) IsPredefined(name string) bool {
	_, ok := t.predefined[name]
	return ok
}

// Register looks up a predefined register name, returning its index and
// whether it names a CSR. "__addr" and plain registers are not CSRs.
func (t *Tables) Register(name string) (index int, csr bool, ok bool) {
	if len(name) >= 4 && name[:3] == "csr" {
		if e, ok := t.predefined[name]; ok && e.kind == kindLabel {
			return int(e.label.Addr), true, true
		}
	}
	if e, ok := t.predefined[name]; ok && e.kind == kindLabel {
		return int(e.label.Addr), false, true
	}
	return 0, false, false
}

func (t *Tables) file(path string) *fileTable {
	f, ok := t.files[path]
	if !ok {
		f = &fileTable{names: make(map[string]*entry)}
		t.files[path] = f
	}
	return f
}

// publishGlobal records name as globally visible from file, producing or
// preserving ambiguity per spec §3/§4.4: a global entry becomes ambiguous
// when two distinct files define the same name and at least one definition
// is not a label, or when both are labels defined to different addresses.
func (t *Tables) publishGlobal(file, name string, e *entry) {
	slot, ok := t.global[name]
	if !ok {
		t.global[name] = &globalSlot{entry: e, file: file}
		return
	}
	if slot.ambiguous {
		return
	}
	if slot.file == file && slot.entry == e {
		return
	}
	if slot.file != file {
		if e.kind == kindLabel && slot.entry.kind == kindLabel &&
			e.label.Defined && slot.entry.label.Defined && e.label.Addr == slot.entry.label.Addr {
			return
		}
		slot.ambiguous = true
		slot.entry = nil
		return
	}
	// Same file republishing: only labels may converge (handled by
	// DefineLabel before publishGlobal is reached); anything else reaching
	// here is a same-file redefinition, already rejected by the caller.
	slot.entry = e
}

// DefineConst implements define_const: fails if name is predefined or
// already locally defined in file, else inserts a Var and publishes it
// globally.
func (t *Tables) DefineConst(file, name string, expr value.Expr) (*Var, error) {
	if t.IsPredefined(name) {
		return nil, curated.Errorf("%s: redefinition of predefined name", name)
	}
	ft := t.file(file)
	if _, exists := ft.names[name]; exists {
		return nil, curated.Errorf("%s: already defined", name)
	}
	v := &Var{Expr: expr}
	e := &entry{kind: kindVar, v: v}
	ft.names[name] = e
	t.publishGlobal(file, name, e)
	return v, nil
}

// DefineLabel implements define_label. addr == nil is a declaration: it
// registers name globally as a forward reference without touching the
// local table. addr != nil is a definition at that address; redefining the
// same name to the same address is idempotent, redefining to a different
// address after the label has been fixed (globally referenced) fails,
// otherwise the global entry (if any) is demoted to ambiguous.
func (t *Tables) DefineLabel(file, name string, addr *uint16, global bool) (*Label, error) {
	if t.IsPredefined(name) {
		return nil, curated.Errorf("%s: redefinition of predefined name", name)
	}

	if addr == nil {
		e, ok := t.global[name]
		if !ok {
			lbl := &Label{}
			t.global[name] = &globalSlot{entry: &entry{kind: kindLabel, label: lbl}, file: file, declared: true}
			return lbl, nil
		}
		if e.ambiguous || e.entry == nil {
			return nil, nil
		}
		if e.entry.kind != kindLabel {
			e.ambiguous = true
			e.entry = nil
			return nil, nil
		}
		return e.entry.label, nil
	}

	ft := t.file(file)
	existing, hasLocal := ft.names[name]

	// A prior forward declaration (FindLabel's ".name" path) publishes only
	// to the global table; converge onto that same Label object instead of
	// minting a second one.
	var fromDeclaration bool
	if !hasLocal {
		if slot, ok := t.global[name]; ok && slot.declared && !slot.ambiguous && slot.entry.kind == kindLabel {
			existing = slot.entry
			hasLocal = true
			fromDeclaration = true
		}
	}

	if hasLocal {
		if existing.kind != kindLabel {
			return nil, curated.Errorf("%s: already defined as a %s", name, existing.describe())
		}
		lbl := existing.label
		if lbl.Defined && lbl.Addr == *addr {
			ft.names[name] = existing
			return lbl, nil
		}
		if lbl.Fixed {
			return nil, curated.Errorf("%s: redefinition of fixed label", name)
		}
		lbl.Addr = *addr
		lbl.Defined = true
		ft.names[name] = existing
		if slot, ok := t.global[name]; ok && !slot.ambiguous && !fromDeclaration && slot.file != file {
			slot.ambiguous = true
			slot.entry = nil
		}
		if slot, ok := t.global[name]; ok && fromDeclaration {
			slot.declared = false
			slot.file = file
		}
		if global {
			t.publishGlobal(file, name, existing)
		}
		return lbl, nil
	}

	lbl := &Label{Addr: *addr, Defined: true}
	e := &entry{kind: kindLabel, label: lbl}
	ft.names[name] = e
	if global {
		t.publishGlobal(file, name, e)
	}
	return lbl, nil
}

// DefineMacro implements define_macro: fails on predefined or local
// redefinition, else inserts and publishes globally as for constants.
func (t *Tables) DefineMacro(file, name string, m Macro) (*Macro, error) {
	if t.IsPredefined(name) {
		return nil, curated.Errorf("%s: redefinition of predefined name", name)
	}
	ft := t.file(file)
	if _, exists := ft.names[name]; exists {
		return nil, curated.Errorf("%s: already defined", name)
	}
	t.macroOrder++
	m.Order = t.macroOrder
	e := &entry{kind: kindMacro, macro: &m}
	ft.names[name] = e
	t.publishGlobal(file, name, e)
	return e.macro, nil
}

// Ambiguous reports whether name is known globally but unresolvable due to
// conflicting publication.
func (t *Tables) Ambiguous(name string) bool {
	slot, ok := t.global[name]
	return ok && slot.ambiguous
}

// FindLabel implements the "name" and ".name" branches of find_symbol for
// labels. defAsLabel, when true and the name is wholly absent, creates a
// forward-declared label: in the global table for the ".name"/global
// reference path, or in file's local table for a same-file forward
// reference (e.g. a branch to a label defined later in the same file).
// The returned bool reports whether the label exists but is ambiguous.
func (t *Tables) FindLabel(file, name string, global bool, defAsLabel bool) (lbl *Label, ambiguous bool, err error) {
	if global {
		slot, ok := t.global[name]
		if !ok {
			if !defAsLabel {
				return nil, false, nil
			}
			l, err := t.DefineLabel(file, name, nil, true)
			return l, false, err
		}
		if slot.ambiguous {
			return nil, true, nil
		}
		if slot.entry.kind != kindLabel {
			return nil, false, curated.Errorf("%s: not a label", name)
		}
		slot.entry.label.Fixed = true
		return slot.entry.label, false, nil
	}

	ft := t.file(file)
	if e, ok := ft.names[name]; ok {
		if e.kind != kindLabel {
			return nil, false, curated.Errorf("%s: not a label", name)
		}
		return e.label, false, nil
	}
	if defAsLabel {
		lbl := &Label{}
		ft.names[name] = &entry{kind: kindLabel, label: lbl}
		return lbl, false, nil
	}
	return nil, false, nil
}

// FindVar looks up a constant/predefined identifier, resolving "name"
// against the predefined table first, then file's local table, or, for a
// global/namespaced reference, the global table / another file's table
// (the namespace -> file indirection itself is internal/asm's job, since
// it depends on internal/source's per-file namespace map). A name that
// resolves to a label rather than a constant is reported as not-found, so
// a caller trying both kinds of lookup for a bareword can fall through to
// FindLabel; a name that resolves to a macro is always an error, per
// spec's "a macro name used in an expression is an error".
func (t *Tables) FindVar(file, name string) (*Var, bool, error) {
	if e, ok := t.predefined[name]; ok {
		if e.kind != kindVar {
			return nil, false, nil
		}
		return e.v, true, nil
	}
	ft := t.file(file)
	if e, ok := ft.names[name]; ok {
		if e.kind == kindMacro {
			return nil, false, curated.Errorf("%s: macro name used as a value", name)
		}
		if e.kind != kindVar {
			return nil, false, nil
		}
		return e.v, true, nil
	}
	return nil, false, nil
}

// FindGlobalVar resolves a ".name" reference to a constant via the global
// table, with the same label-falls-through/macro-errors rules
// as FindVar.
func (t *Tables) FindGlobalVar(name string) (*Var, bool, error) {
	slot, ok := t.global[name]
	if !ok {
		return nil, false, nil
	}
	if slot.ambiguous {
		return nil, true, nil
	}
	if slot.entry.kind == kindMacro {
		return nil, false, curated.Errorf("%s: macro name used as a value", name)
	}
	if slot.entry.kind != kindVar {
		return nil, false, nil
	}
	return slot.entry.v, true, nil
}

// FindMacro looks up a bareword macro name in file's local table.
func (t *Tables) FindMacro(file, name string) (*Macro, bool) {
	ft := t.file(file)
	if e, ok := ft.names[name]; ok && e.kind == kindMacro {
		return e.macro, true
	}
	return nil, false
}

// UndefinedLabels returns the names of every label, local or global, that
// has no address yet. Called at the end of phase 1.
func (t *Tables) UndefinedLabels() []string {
	var names []string
	seen := make(map[string]bool)
	for name, slot := range t.global {
		if !slot.ambiguous && slot.entry.kind == kindLabel && !slot.entry.label.Defined {
			names = append(names, name)
			seen[name] = true
		}
	}
	for _, ft := range t.files {
		for name, e := range ft.names {
			if e.kind == kindLabel && !e.label.Defined && !seen[name] {
				names = append(names, name)
				seen[name] = true
			}
		}
	}
	return names
}
