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

// Package asm is the two-phase assembler driver (spec §4.5): it walks the
// file graph built by internal/source, maintains the symbol tables and
// output image, and implements value.Context so internal/expr can resolve
// identifiers against whichever file and address are current.
package asm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/martin-beran/mb50dev/curated"
	"github.com/martin-beran/mb50dev/internal/expr"
	"github.com/martin-beran/mb50dev/internal/image"
	"github.com/martin-beran/mb50dev/internal/lex"
	"github.com/martin-beran/mb50dev/internal/pos"
	"github.com/martin-beran/mb50dev/internal/source"
	"github.com/martin-beran/mb50dev/internal/symtab"
	"github.com/martin-beran/mb50dev/internal/value"
)

type patchKind int

const (
	patchByte patchKind = iota
	patchWord
)

// patch is a phase-2 record: an expression that was indefinite during
// phase 1, to be re-evaluated and written once the whole file graph has
// been walked.
type patch struct {
	addr uint16
	kind patchKind
	expr value.Expr
	file string
	line int
}

// macroFrame is one active macro expansion: its bound argument expressions
// (in the caller's evaluation context) and the expansion-unique counters
// that resolve "$"/"$$" suffixes inside its body.
type macroFrame struct {
	macro     *symtab.Macro
	args      map[string]value.Expr
	curMacro  int
	lastMacro int
}

// Assembler is the phase-1/phase-2 driver. It implements value.Context.
type Assembler struct {
	graph *source.Graph
	syms  *symtab.Tables
	img   *image.Image

	curFile string
	curAddr uint16

	macroStack []*macroFrame
	maxMacro   int

	runOnce map[string]bool
	patches []patch

	lastFile string
	lastLine int
}

// Assemble loads rootPath's file graph, runs both phases, and returns the
// resulting output image.
func Assemble(rootPath string, verbose bool) (*image.Image, error) {
	g, err := source.Load(rootPath, verbose)
	if err != nil {
		return nil, err
	}
	a := &Assembler{
		graph:   g,
		syms:    symtab.New(),
		img:     image.New(),
		runOnce: make(map[string]bool),
	}
	a.runOnce[g.Root.Path] = true
	if err := a.runLines(g.Root, 0, len(g.Root.Full)); err != nil {
		return nil, err
	}
	if err := a.phase2(); err != nil {
		return nil, err
	}
	return a.img, nil
}

// --- value.Context ---

func (a *Assembler) Addr() uint16 { return a.curAddr }

func (a *Assembler) MacroArg(name string) (value.Expr, bool) {
	if len(a.macroStack) == 0 {
		return nil, false
	}
	top := a.macroStack[len(a.macroStack)-1]
	e, ok := top.args[name]
	return e, ok
}

func (a *Assembler) ResolveRegister(name string) (value.RegisterRef, bool) {
	idx, csr, ok := a.syms.Register(name)
	if !ok {
		return value.RegisterRef{}, false
	}
	return value.RegisterRef{Index: idx, CSR: csr}, true
}

func (a *Assembler) ResolveVar(namespace string, global bool, name string) (value.Expr, bool, error) {
	if namespace != "" {
		target, ok := a.namespaceFile(namespace)
		if !ok {
			return nil, false, curated.Errorf("%s: unknown namespace", namespace)
		}
		v, found, err := a.syms.FindVar(target.Path, name)
		if err != nil || !found {
			return nil, false, err
		}
		return v.Expr, true, nil
	}
	if global {
		v, found, err := a.syms.FindGlobalVar(name)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return nil, false, nil
		}
		if v == nil {
			return nil, false, curated.Errorf("%s: ambiguous global name", name)
		}
		return v.Expr, true, nil
	}
	v, found, err := a.syms.FindVar(a.curFile, name)
	if err != nil || !found {
		return nil, false, err
	}
	return v.Expr, true, nil
}

func (a *Assembler) ResolveLabel(namespace string, global bool, name string) (uint16, bool, bool, error) {
	if namespace != "" {
		target, ok := a.namespaceFile(namespace)
		if !ok {
			return 0, false, false, curated.Errorf("%s: unknown namespace", namespace)
		}
		lbl, ambiguous, err := a.syms.FindLabel(target.Path, name, false, false)
		if err != nil || ambiguous || lbl == nil {
			return 0, false, ambiguous, err
		}
		return lbl.Addr, lbl.Defined, false, nil
	}
	lbl, ambiguous, err := a.syms.FindLabel(a.curFile, name, global, true)
	if err != nil || ambiguous || lbl == nil {
		return 0, false, ambiguous, err
	}
	return lbl.Addr, lbl.Defined, false, nil
}

func (a *Assembler) namespaceFile(ns string) (*source.File, bool) {
	f, ok := a.graph.Files[a.curFile]
	if !ok {
		return nil, false
	}
	target, ok := f.Namespaces[ns]
	return target, ok
}

// --- expression parsing helper ---

// parseExpr parses s, freezing __addr to the current address (spec §9's
// reference-site capture) and baking in the active macro frame's "$"/"$$"
// expansion numbers, both snapshotted now because a deferred (phase-2)
// re-evaluation happens long after this context has moved on.
func (a *Assembler) parseExpr(s string) (*expr.Node, error) {
	n, err := expr.Parse(s)
	if err != nil {
		return nil, err
	}
	expr.CaptureAddr(n, a.curAddr)
	cur, last := a.macroNumbers()
	expr.ExpandMacroSuffix(n, cur, last)
	return n, nil
}

// expandName resolves a bareword token's own "$"/"$$" suffix (used for a
// $const name, not inside an expression) against the active macro frame.
func (a *Assembler) expandName(tok string) (string, error) {
	id, err := lex.ParseIdentifier(tok)
	if err != nil {
		return "", err
	}
	if id.Namespace != "" || id.Global {
		return "", fmt.Errorf("%q: namespace-qualified name not allowed here", tok)
	}
	cur, last := a.macroNumbers()
	return lex.ExpandSuffix(id, cur, last), nil
}

// expandLabelName is expandName's label-definition counterpart: a label
// name may carry a leading "." to publish it globally (spec §4.4).
func (a *Assembler) expandLabelName(tok string) (name string, global bool, err error) {
	id, err := lex.ParseIdentifier(tok)
	if err != nil {
		return "", false, err
	}
	if id.Namespace != "" {
		return "", false, fmt.Errorf("%q: namespace-qualified name not allowed in a label definition", tok)
	}
	cur, last := a.macroNumbers()
	return lex.ExpandSuffix(id, cur, last), id.Global, nil
}

// macroNumbers returns the active macro frame's expansion counters, or
// 0, 0 when no macro is being expanded.
func (a *Assembler) macroNumbers() (cur, last int) {
	if len(a.macroStack) == 0 {
		return 0, 0
	}
	top := a.macroStack[len(a.macroStack)-1]
	return top.curMacro, top.lastMacro
}

// --- listing / discontinuity tracking ---

func (a *Assembler) checkDiscontinuity(f *source.File, line int) {
	if a.lastFile != f.Path || a.lastLine != line {
		a.img.AddTxtLine(fmt.Sprintf("; ---- %s:%d ----", baseName(f.Path), line))
	}
	a.lastFile = f.Path
	a.lastLine = line + 1
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// --- phase 1 line processing ---

func (a *Assembler) runLines(f *source.File, start, end int) error {
	i := start
	for i < end {
		if f.Stripped[i] != "" {
			a.checkDiscontinuity(f, i+1)
			level := len(a.macroStack)
			a.img.AddSrcLine(fmt.Sprintf("; %s%s", strings.Repeat(" ", 4*level), f.Full[i]))
		}

		split := lex.SplitLine(f.Stripped[i])
		a.curFile = f.Path
		p := pos.Position{File: f.Path, Line: i + 1}

		if split.Label != "" {
			name, global, err := a.expandLabelName(split.Label)
			if err != nil {
				return p.Errorf("invalid label %q", split.Label)
			}
			addr := a.curAddr
			if _, err := a.syms.DefineLabel(f.Path, name, &addr, global); err != nil {
				return p.Errorf("%s", err.Error())
			}
		}

		if split.Cmd == "" {
			i++
			continue
		}

		if split.Cmd == "$macro" {
			bodyStart := i + 1
			j := bodyStart
			for j < end && lex.SplitLine(f.Stripped[j]).Cmd != "$end_macro" {
				j++
			}
			if j >= end {
				return p.Errorf("unterminated macro")
			}
			if err := a.defineMacro(f, p, split.Args, bodyStart, j); err != nil {
				return err
			}
			i = j + 1
			continue
		}

		if err := a.dispatch(f, p, split); err != nil {
			return err
		}
		i++
	}
	return nil
}

func (a *Assembler) dispatch(f *source.File, p pos.Position, split lex.Split) error {
	if strings.HasPrefix(split.Cmd, "$") {
		switch split.Cmd {
		case "$addr":
			return a.doAddr(p, split.Args)
		case "$const":
			return a.doConst(f, p, split.Args)
		case "$data_b":
			return a.doData(f, p, split.Args, 1)
		case "$data_w":
			return a.doData(f, p, split.Args, 2)
		case "$use":
			return a.doUse(f, p, split.Args)
		case "$end_macro":
			return p.Errorf("$end_macro without matching $macro")
		default:
			return p.Errorf("unknown directive %q", split.Cmd)
		}
	}
	return a.dispatchIdent(f, p, split)
}

func (a *Assembler) doAddr(p pos.Position, args []string) error {
	if len(args) != 1 {
		return p.Errorf("$addr requires exactly one expression")
	}
	n, err := a.parseExpr(args[0])
	if err != nil {
		return p.Errorf("%s", err.Error())
	}
	v, ok, err := n.Eval(a)
	if err != nil {
		return p.Errorf("%s", err.Error())
	}
	if !ok || v.Kind != value.Number {
		return p.Errorf("$addr requires a definite numeric expression")
	}
	a.curAddr = v.Number
	return nil
}

func (a *Assembler) doConst(f *source.File, p pos.Position, args []string) error {
	if len(args) != 2 {
		return p.Errorf("$const requires name, expr")
	}
	name, err := a.expandName(args[0])
	if err != nil {
		return p.Errorf("malformed constant name %q", args[0])
	}
	n, err := a.parseExpr(args[1])
	if err != nil {
		return p.Errorf("%s", err.Error())
	}
	if _, err := a.syms.DefineConst(f.Path, name, n); err != nil {
		return p.Errorf("%s", err.Error())
	}
	return nil
}

func (a *Assembler) doData(f *source.File, p pos.Position, args []string, width int) error {
	prefix := "$data_b"
	if width == 2 {
		prefix = "$data_w"
	}
	if len(args) == 0 {
		return p.Errorf("%s requires at least one argument", prefix)
	}

	startAddr := a.curAddr
	var buf []byte
	for _, arg := range args {
		n, err := a.parseExpr(arg)
		if err != nil {
			return p.Errorf("%s", err.Error())
		}
		v, ok, err := n.Eval(a)
		if err != nil {
			return p.Errorf("%s", err.Error())
		}

		if width == 1 {
			if !ok {
				buf = append(buf, 0)
				a.patches = append(a.patches, patch{addr: a.curAddr, kind: patchByte, expr: n, file: f.Path, line: p.Line})
				a.curAddr++
				continue
			}
			switch v.Kind {
			case value.Number:
				buf = append(buf, byte(v.Number))
				a.curAddr++
			case value.Bytes:
				buf = append(buf, v.Bytes...)
				a.curAddr += uint16(len(v.Bytes))
			default:
				return p.Errorf("%s: operand is not bytes-producing", prefix)
			}
			continue
		}

		if !ok {
			buf = append(buf, 0, 0)
			a.patches = append(a.patches, patch{addr: a.curAddr, kind: patchWord, expr: n, file: f.Path, line: p.Line})
			a.curAddr += 2
			continue
		}
		if v.Kind != value.Number {
			return p.Errorf("%s: operand is not a numeric expression", prefix)
		}
		buf = append(buf, byte(v.Number), byte(v.Number>>8))
		a.curAddr += 2
	}

	instr := fmt.Sprintf("%s %s", prefix, strings.Join(args, ", "))
	a.img.AddBytes(startAddr, buf, instr, prefix)
	return nil
}

func (a *Assembler) defineMacro(f *source.File, p pos.Position, args []string, bodyStart, bodyEnd int) error {
	if len(args) < 1 {
		return p.Errorf("$macro requires a name")
	}
	name := args[0]
	params := args[1:]
	for _, prm := range params {
		if !lex.IsIdentifier(prm) {
			return p.Errorf("malformed macro parameter %q", prm)
		}
	}
	m := symtab.Macro{
		Params:   params,
		DefFile:  f.Path,
		Full:     symtab.Span{Start: bodyStart, End: bodyEnd},
		Stripped: symtab.Span{Start: bodyStart, End: bodyEnd},
	}
	if _, err := a.syms.DefineMacro(f.Path, name, m); err != nil {
		return p.Errorf("%s", err.Error())
	}
	return nil
}

func (a *Assembler) doUse(f *source.File, p pos.Position, args []string) error {
	if len(args) != 2 {
		return p.Errorf("$use requires namespace, path")
	}
	ns := args[0]
	target, ok := f.Namespaces[ns]
	if !ok {
		return p.Errorf("%s: unresolved $use namespace", ns)
	}
	if a.runOnce[target.Path] {
		return nil
	}
	a.runOnce[target.Path] = true

	savedFile := a.curFile
	err := a.runLines(target, 0, len(target.Full))
	a.curFile = savedFile
	return err
}

func (a *Assembler) dispatchIdent(f *source.File, p pos.Position, split lex.Split) error {
	name := split.Cmd

	if m, ok := a.syms.FindMacro(f.Path, name); ok {
		return a.expandMacro(p, name, m, split.Args)
	}
	if opc, ok := opcodeTable[name]; ok {
		return a.emitOpcode(p, name, opc, split.Args)
	}
	return p.Errorf("%s: not an instruction, macro, or known name", name)
}

func (a *Assembler) expandMacro(p pos.Position, name string, m *symtab.Macro, args []string) error {
	if len(a.macroStack) > 0 {
		caller := a.macroStack[len(a.macroStack)-1].macro
		if m.Order > caller.Order {
			return p.Errorf("%s: forward macro reference", name)
		}
	}
	if len(args) != len(m.Params) {
		return p.Errorf("%s: expected %d arguments, got %d", name, len(m.Params), len(args))
	}

	callerFile, callerAddr := a.curFile, a.curAddr
	argExprs := make(map[string]value.Expr, len(args))
	for idx, argSrc := range args {
		n, err := a.parseExpr(argSrc)
		if err != nil {
			return p.Errorf("%s", err.Error())
		}
		v, ok, err := n.Eval(a)
		if err != nil {
			return p.Errorf("%s", err.Error())
		}
		if ok {
			switch v.Kind {
			case value.Number:
				argExprs[m.Params[idx]] = expr.NumberLiteral(v.Number)
			case value.Bytes:
				argExprs[m.Params[idx]] = expr.BytesLiteral(v.Bytes)
			case value.Register:
				argExprs[m.Params[idx]] = expr.RegisterLiteral(v.Reg)
			}
		} else {
			argExprs[m.Params[idx]] = &macroArgExpr{asm: a, file: callerFile, addr: callerAddr, expr: n}
		}
	}

	a.maxMacro++
	frame := &macroFrame{macro: m, args: argExprs, curMacro: a.maxMacro}
	if len(a.macroStack) > 0 {
		frame.lastMacro = a.macroStack[len(a.macroStack)-1].curMacro
	}
	a.macroStack = append(a.macroStack, frame)

	defFile, ok := a.graph.Files[m.DefFile]
	if !ok {
		a.macroStack = a.macroStack[:len(a.macroStack)-1]
		return p.Errorf("%s: macro's defining file is no longer in the file graph", name)
	}

	savedFile := a.curFile
	err := a.runLines(defFile, m.Stripped.Start, m.Stripped.End)
	a.curFile = savedFile
	a.macroStack = a.macroStack[:len(a.macroStack)-1]
	return err
}

// macroArgExpr re-evaluates a macro argument's expression in the context
// the argument was written in (the call site's file and address), not
// whatever file/address happens to be current when the bound parameter is
// referenced inside the macro body (spec §4.3's "var expression cloned so
// __addr captures the reference site" rule, applied the same way to macro
// arguments). It is stable across phase-1/phase-2 retries because it holds
// its own snapshot rather than relying on the macro frame, which is long
// gone by phase 2.
type macroArgExpr struct {
	asm  *Assembler
	file string
	addr uint16
	expr value.Expr
}

func (m *macroArgExpr) Eval(_ value.Context) (value.Value, bool, error) {
	savedFile, savedAddr := m.asm.curFile, m.asm.curAddr
	m.asm.curFile, m.asm.curAddr = m.file, m.addr
	defer func() { m.asm.curFile, m.asm.curAddr = savedFile, savedAddr }()
	return m.expr.Eval(m.asm)
}

func (a *Assembler) emitOpcode(p pos.Position, name string, opc opcodeInfo, args []string) error {
	if len(args) != 2 {
		return p.Errorf("%s: requires two register operands", name)
	}
	dst, err := a.evalRegisterOperand(args[0])
	if err != nil {
		return p.Errorf("%s", err.Error())
	}
	src, err := a.evalRegisterOperand(args[1])
	if err != nil {
		return p.Errorf("%s", err.Error())
	}
	if dst.CSR != opc.dstCSR {
		return p.Errorf("%s: destination register csr flag mismatch", name)
	}
	if src.CSR != opc.srcCSR {
		return p.Errorf("%s: source register csr flag mismatch", name)
	}

	addr := a.curAddr
	encoded := []byte{opc.code, byte(dst.Index<<4) | byte(src.Index)}
	instr := fmt.Sprintf("%s %s, %s", name, args[0], args[1])
	a.img.AddBytes(addr, encoded, instr, "$data_b")
	a.curAddr += 2
	return nil
}

func (a *Assembler) evalRegisterOperand(s string) (value.RegisterRef, error) {
	n, err := a.parseExpr(s)
	if err != nil {
		return value.RegisterRef{}, err
	}
	v, ok, err := n.Eval(a)
	if err != nil {
		return value.RegisterRef{}, err
	}
	if !ok {
		return value.RegisterRef{}, fmt.Errorf("register operand must be definite")
	}
	if v.Kind != value.Register {
		return value.RegisterRef{}, fmt.Errorf("operand is not a register")
	}
	return v.Reg, nil
}

// --- phase 2 ---

func (a *Assembler) phase2() error {
	undefined := a.syms.UndefinedLabels()
	if len(undefined) > 0 {
		sort.Strings(undefined)
		return curated.Errorf("undefined labels: %s", strings.Join(undefined, ", "))
	}

	for _, pt := range a.patches {
		a.curFile = pt.file
		p := pos.Position{File: pt.file, Line: pt.line}

		v, ok, err := pt.expr.Eval(a)
		if err != nil {
			return p.Errorf("%s", err.Error())
		}
		if !ok {
			return p.Errorf("expression did not resolve to a definite value")
		}

		switch pt.kind {
		case patchByte:
			switch v.Kind {
			case value.Number:
				a.img.SetByte(pt.addr, byte(v.Number))
			case value.Bytes:
				if len(v.Bytes) > 0 {
					a.img.SetByte(pt.addr, v.Bytes[0])
				}
			default:
				return p.Errorf("patch operand is not bytes-producing")
			}
		case patchWord:
			if v.Kind != value.Number {
				return p.Errorf("patch operand is not a numeric expression")
			}
			a.img.SetWord(pt.addr, v.Number)
		}
	}
	return nil
}
