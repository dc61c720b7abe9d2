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

// Package value holds the result type shared by the expression engine and
// the symbol table, and the narrow interfaces (Expr, Context) that let
// those two packages refer to each other's concepts without importing one
// another. internal/symtab stores a value.Expr inside each Var symbol;
// internal/expr's node type implements value.Expr and resolves identifiers
// through a value.Context supplied by internal/asm.
package value

// Kind discriminates the three shapes an expression can evaluate to.
type Kind int

const (
	Number Kind = iota
	Bytes
	Register
)

// RegisterRef names one of the 16 general-purpose or 16 control/status
// registers.
type RegisterRef struct {
	Index int
	CSR   bool
}

// Value is the tagged result of evaluating an expression node.
type Value struct {
	Kind   Kind
	Number uint16
	Bytes  []byte
	Reg    RegisterRef
}

// Expr is an evaluable expression tree node. Eval returns (value, true, nil)
// when the node has a definite result now; (zero value, false, nil) when
// the result depends on a forward-declared label and must be deferred to
// phase 2; and a non-nil error for outright invalid expressions.
type Expr interface {
	Eval(ctx Context) (Value, bool, error)
}

// Context is the evaluation environment an Expr is evaluated against:
// access to the current output address, the enclosing macro's argument
// bindings, and identifier resolution. internal/asm implements Context by
// combining the current file's position in the file graph with the symbol
// tables.
type Context interface {
	// Addr returns the current output address, the value __addr resolves to.
	Addr() uint16

	// MacroArg returns the expression bound to a bareword macro parameter
	// name in the innermost enclosing macro expansion, if any.
	MacroArg(name string) (Expr, bool)

	// ResolveLabel looks up a label identifier, returning its address and
	// whether it is defined yet. ambiguous is true when the name exists
	// globally but is ambiguous (ns == "" && global == true path only).
	ResolveLabel(namespace string, global bool, name string) (addr uint16, defined bool, ambiguous bool, err error)

	// ResolveVar looks up a constant/predefined identifier's expression, to
	// be evaluated in the resolving context (not the defining one); __addr
	// inside it takes the reference site's address, not the definition's.
	ResolveVar(namespace string, global bool, name string) (Expr, bool, error)

	// ResolveRegister looks up a bareword name in the predefined register
	// table.
	ResolveRegister(name string) (RegisterRef, bool)
}
