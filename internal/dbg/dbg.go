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

// Package dbg is the debugger's command engine (spec §4.8): a dispatch
// table built on internal/commandline's grammar templates, the remembered
// dump window, the breakpoint set and its step-loop execute, and the
// script/history tee routing.
package dbg

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/martin-beran/mb50dev/curated"
	"github.com/martin-beran/mb50dev/internal/cdi"
	"github.com/martin-beran/mb50dev/internal/commandline"
	"github.com/martin-beran/mb50dev/internal/dbgio"
	"github.com/martin-beran/mb50dev/internal/rawterm"
)

// Canonical command names (spec §6).
const (
	cmdBreak    = "BREAK"
	cmdCsr      = "CSR"
	cmdDo       = "DO"
	cmdDump     = "DUMP"
	cmdDumpD    = "DUMPD"
	cmdDumpW    = "DUMPW"
	cmdDumpWD   = "DUMPWD"
	cmdExecute  = "EXECUTE"
	cmdHelp     = "HELP"
	cmdQuestion = "?"
	cmdHistory  = "HISTORY"
	cmdLoad     = "LOAD"
	cmdMemset   = "MEMSET"
	cmdQuit     = "QUIT"
	cmdRegister = "REGISTER"
	cmdSave     = "SAVE"
	cmdScript   = "SCRIPT"
	cmdStep     = "STEP"
)

var commandTemplate = []string{
	cmdBreak + " (%<addr>N|- (%<addr>N))",
	cmdCsr + " (%<reg>S) (%<value>N)",
	cmdDo + " %<file>F",
	cmdDump + " (%<addr>N) (%<size>N)",
	cmdDumpD + " (%<addr>N) (%<size>N)",
	cmdDumpW + " (%<addr>N) (%<size>N)",
	cmdDumpWD + " (%<addr>N) (%<size>N)",
	cmdExecute,
	cmdHelp + " (%<command>S)",
	cmdQuestion,
	cmdHistory + " (START %<file>F|STOP)",
	cmdLoad + " %<file>F",
	cmdMemset + " %<addr>N %<val>S {%<vals>S}",
	cmdQuit,
	cmdRegister + " (%<reg>S) (%<value>N)",
	cmdSave + " %<file>F (%<addr>N) (%<size>N)",
	cmdScript + " (START %<file>F|STOP)",
	cmdStep,
}

// aliases maps every short form (spec §6) onto its canonical command name.
// The teacher's commandline templates carry no alias concept of their own,
// so aliases are resolved here, against the uppercased leading token, before
// the line ever reaches debuggerCommands.
var aliases = map[string]string{
	"B":   cmdBreak,
	"D":   cmdDump,
	"DD":  cmdDumpD,
	"DW":  cmdDumpW,
	"DWD": cmdDumpWD,
	"EXE": cmdExecute,
	"X":   cmdExecute,
	"H":   cmdHelp,
	"M":   cmdMemset,
	"Q":   cmdQuit,
	"REG": cmdRegister,
	"R":   cmdRegister,
	"S":   cmdStep,
}

var synopsis = map[string]string{
	cmdBreak:    "set, clear, or list breakpoints",
	cmdCsr:      "show or set a control/status register",
	cmdDo:       "run commands from a file",
	cmdDump:     "dump memory as hex bytes with ASCII",
	cmdDumpD:    "dump memory as decimal bytes",
	cmdDumpW:    "dump memory as hex words",
	cmdDumpWD:   "dump memory as decimal words",
	cmdExecute:  "run the target until it halts or a breakpoint is hit",
	cmdHelp:     "show command help",
	cmdQuestion: "list commands",
	cmdHistory:  "start or stop recording command history",
	cmdLoad:     "load a memory image from a file",
	cmdMemset:   "write a sequence of bytes into memory",
	cmdQuit:     "quit the debugger",
	cmdRegister: "show or set a general-purpose register",
	cmdSave:     "save a memory image to a file",
	cmdScript:   "start or stop recording a session transcript",
	cmdStep:     "single-step the target one instruction",
}

var debuggerCommands *commandline.Commands

func init() {
	var err error
	debuggerCommands, err = commandline.ParseCommandTemplate(commandTemplate)
	if err != nil {
		panic(err)
	}
	sort.Stable(debuggerCommands)
}

// Engine holds the debugger's REPL-visible state: the CDI transport, the
// two logging tees, the breakpoint set, and the dump family's remembered
// (addr, size) window.
type Engine struct {
	cdi *cdi.Transport
	out io.Writer

	scriptTee  dbgio.Tee
	historyTee dbgio.Tee

	breakpoints map[uint16]bool
	dumpAddr    uint16
	dumpSize    uint16

	quit bool
}

// New creates an Engine bound to an already-open transport. out is usually
// os.Stdout.
func New(t *cdi.Transport, out io.Writer) *Engine {
	return &Engine{
		cdi:         t,
		out:         out,
		breakpoints: make(map[uint16]bool),
	}
}

// Close stops any active tees and closes the transport. It is safe to call
// even if RunREPL was never entered.
func (e *Engine) Close() error {
	_ = e.scriptTee.Stop()
	_ = e.historyTee.Stop()
	return e.cdi.Close()
}

// printLine writes one line to out and, if the script tee is active,
// mirrors it there prefixed "< " (spec §6 supplement: script records the
// full transcript, history records input only).
func (e *Engine) printLine(s string) {
	fmt.Fprintln(e.out, s)
	if e.scriptTee.IsActive() {
		e.scriptTee.WriteLine("< " + s)
	}
}

// logInput mirrors one REPL-typed input line to both tees, per their
// asymmetric routing.
func (e *Engine) logInput(line string) {
	if e.scriptTee.IsActive() {
		e.scriptTee.WriteLine("> " + line)
	}
	if e.historyTee.IsActive() {
		e.historyTee.WriteLine(line)
	}
}

func (e *Engine) printStatus(st cdi.Status, userBreak bool) {
	suffix := ""
	if userBreak {
		suffix = " (user break)"
	}
	e.printLine(fmt.Sprintf("Ready r15(pc)=0x%04x halted=%t%s", st.PC, st.Halted, suffix))
}

// RunREPL sends the initial status request, optionally runs initFile, then
// loops reading commands from stdin with prompt "> " until QUIT or EOF.
func (e *Engine) RunREPL(stdin *os.File, initFile string) error {
	st, err := e.cdi.Status()
	if err != nil {
		return err
	}
	e.printStatus(st, false)

	if initFile != "" {
		e.doFile(stdin, initFile)
		if e.quit {
			return nil
		}
	}

	reader := bufio.NewReader(stdin)
	for !e.quit {
		fmt.Fprint(e.out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(e.out)
				return nil
			}
			return curated.Errorf("dbg: %s", err.Error())
		}
		line = strings.TrimRight(line, "\r\n")
		e.logInput(line)
		if derr := e.Dispatch(stdin, line); derr != nil {
			e.printLine(derr.Error())
		}
	}
	return nil
}

// Dispatch resolves aliases, validates, and runs one command line. Unknown
// commands print "Unknown command" and return a nil error (spec §6); a
// recognised command's own failure is returned to the caller.
func (e *Engine) Dispatch(stdin *os.File, line string) error {
	tokens := commandline.TokeniseInput(line)
	if tokens.Remaining() == 0 {
		return nil
	}

	first, _ := tokens.Peek()
	canon := strings.ToUpper(first)
	if target, ok := aliases[canon]; ok {
		tokens.Update(target)
		canon = target
	}

	if _, ok := debuggerCommands.Index[canon]; !ok {
		e.printLine("Unknown command")
		return nil
	}

	if err := debuggerCommands.ValidateTokens(tokens); err != nil {
		return err
	}
	tokens.Reset()
	cmd, _ := tokens.Get()

	switch cmd {
	case cmdBreak:
		return e.handleBreak(tokens)
	case cmdCsr:
		return e.handleReg(tokens, true)
	case cmdDo:
		file, _ := tokens.Get()
		e.doFile(stdin, file)
		return nil
	case cmdDump:
		return e.handleDump(tokens, "hex")
	case cmdDumpD:
		return e.handleDump(tokens, "dec")
	case cmdDumpW:
		return e.handleDump(tokens, "hexw")
	case cmdDumpWD:
		return e.handleDump(tokens, "decw")
	case cmdExecute:
		return e.handleExecute(stdin)
	case cmdHelp:
		return e.handleHelp(tokens)
	case cmdQuestion:
		return e.handleQuestion()
	case cmdHistory:
		return e.handleTeeCommand(tokens, &e.historyTee, "history")
	case cmdLoad:
		return e.handleLoad(tokens)
	case cmdMemset:
		return e.handleMemset(tokens)
	case cmdQuit:
		e.quit = true
		return nil
	case cmdRegister:
		return e.handleReg(tokens, false)
	case cmdSave:
		return e.handleSave(tokens)
	case cmdScript:
		return e.handleTeeCommand(tokens, &e.scriptTee, "script")
	case cmdStep:
		st, err := e.cdi.Step()
		if err != nil {
			return err
		}
		e.printStatus(st, false)
		return nil
	}
	return nil
}

// doFile runs a DO-file, recursing naturally through Dispatch for any
// nested DO command. A failing command aborts the file; the failure is
// reported, not propagated as fatal, mirroring original_source's do_file().
func (e *Engine) doFile(stdin *os.File, filename string) {
	var q dbgio.Queue
	if err := q.Load(filename); err != nil {
		e.printLine(fmt.Sprintf("Cannot open DO file \"%s\"", filename))
		return
	}
	e.printLine("BEGIN " + filename)
	for {
		ln, ok := q.Next()
		if !ok {
			break
		}
		if err := e.Dispatch(stdin, ln.Entry); err != nil {
			e.printLine(err.Error())
			break
		}
		if e.quit {
			break
		}
	}
	e.printLine("END " + filename)
}

func (e *Engine) handleBreak(tokens *commandline.Tokens) error {
	tok, ok := tokens.Get()
	if !ok {
		if len(e.breakpoints) == 0 {
			e.printLine("no breakpoints")
			return nil
		}
		addrs := make([]int, 0, len(e.breakpoints))
		for a := range e.breakpoints {
			addrs = append(addrs, int(a))
		}
		sort.Ints(addrs)
		for _, a := range addrs {
			e.printLine(fmt.Sprintf("%#04x", a))
		}
		return nil
	}
	if tok == "-" {
		tok2, ok2 := tokens.Get()
		if !ok2 {
			e.breakpoints = make(map[uint16]bool)
			e.printLine("breakpoints cleared")
			return nil
		}
		addr, err := parseUint16(tok2)
		if err != nil {
			return err
		}
		delete(e.breakpoints, addr)
		e.printLine(fmt.Sprintf("breakpoint %#04x cleared", addr))
		return nil
	}
	addr, err := parseUint16(tok)
	if err != nil {
		return err
	}
	e.breakpoints[addr] = true
	e.printLine(fmt.Sprintf("breakpoint %#04x set", addr))
	return nil
}

func (e *Engine) handleExecute(stdin *os.File) error {
	if len(e.breakpoints) == 0 {
		st, userBreak, err := e.cdi.Execute(stdin)
		if err != nil {
			return err
		}
		e.printStatus(st, userBreak)
		return nil
	}

	zero := time.Duration(0)
	for {
		st, err := e.cdi.Step()
		if err != nil {
			return err
		}
		if st.Halted || e.breakpoints[st.PC] {
			e.printStatus(st, false)
			return nil
		}
		ready, err := rawterm.WaitReadable([]uintptr{stdin.Fd()}, &zero)
		if err != nil {
			return err
		}
		if len(ready) > 0 {
			st2, err := e.cdi.Status()
			if err != nil {
				return err
			}
			e.printStatus(st2, true)
			return nil
		}
	}
}

func (e *Engine) handleHelp(tokens *commandline.Tokens) error {
	kw, ok := tokens.Get()
	if !ok {
		for _, name := range helpOrder() {
			e.printLine(fmt.Sprintf("%-10s %s", name, synopsis[name]))
		}
		return nil
	}
	kw = strings.ToUpper(kw)
	syn, ok := synopsis[kw]
	if !ok {
		return curated.Errorf("no help for %s", kw)
	}
	e.printLine(fmt.Sprintf("%-10s %s", kw, syn))
	return nil
}

func (e *Engine) handleQuestion() error {
	e.printLine(strings.Join(helpOrder(), " "))
	return nil
}

func helpOrder() []string {
	names := make([]string, 0, len(synopsis))
	for n := range synopsis {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) handleTeeCommand(tokens *commandline.Tokens, tee *dbgio.Tee, label string) error {
	opt, ok := tokens.Get()
	if !ok {
		if tee.IsActive() {
			e.printLine(fmt.Sprintf("%s recording to %s", label, tee.Path()))
		} else {
			e.printLine(fmt.Sprintf("%s not recording", label))
		}
		return nil
	}
	switch strings.ToUpper(opt) {
	case "START":
		file, ok := tokens.Get()
		if !ok {
			return curated.Errorf("%s: file name required", label)
		}
		return tee.Start(file)
	case "STOP":
		return tee.Stop()
	}
	return curated.Errorf("unrecognised argument (%s)", opt)
}

func (e *Engine) handleLoad(tokens *commandline.Tokens) error {
	file, _ := tokens.Get()
	content, err := os.ReadFile(file)
	if err != nil {
		return curated.Errorf("dbg: load: %s", err.Error())
	}
	addr, data, err := parseBinImage(content)
	if err != nil {
		return err
	}
	return e.cdi.MemWrite(addr, data)
}

func (e *Engine) handleSave(tokens *commandline.Tokens) error {
	file, _ := tokens.Get()
	addr := e.dumpAddr
	size := uint16(0)
	if tok, ok := tokens.Get(); ok {
		a, err := parseUint16(tok)
		if err != nil {
			return err
		}
		addr = a
	}
	if tok, ok := tokens.Get(); ok {
		s, err := parseUint16(tok)
		if err != nil {
			return err
		}
		size = s
	}
	data, err := e.cdi.MemRead(addr, size)
	if err != nil {
		return err
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "%04x\n", addr)
	buf.Write(data)
	return os.WriteFile(file, []byte(buf.String()), 0o644)
}

// parseBinImage parses the assembler's .bin format (spec §6): a four
// hex-digit start address on its own line followed by the raw bytes.
func parseBinImage(content []byte) (uint16, []byte, error) {
	nl := strings.IndexByte(string(content), '\n')
	if nl < 0 {
		return 0, nil, curated.Errorf("dbg: malformed binary image (no header line)")
	}
	addr, err := strconv.ParseUint(string(content[:nl]), 16, 16)
	if err != nil {
		return 0, nil, curated.Errorf("dbg: malformed binary image header (%s)", err.Error())
	}
	return uint16(addr), content[nl+1:], nil
}

func (e *Engine) handleMemset(tokens *commandline.Tokens) error {
	addrTok, _ := tokens.Get()
	addr, err := parseUint16(addrTok)
	if err != nil {
		return err
	}
	var buf []byte
	for {
		tok, ok := tokens.Get()
		if !ok {
			break
		}
		if n, perr := strconv.ParseUint(tok, 0, 8); perr == nil {
			buf = append(buf, byte(n))
		} else {
			buf = append(buf, []byte(tok)...)
		}
	}
	if len(buf) == 0 {
		return curated.Errorf("memset: at least one value required")
	}
	return e.cdi.MemWrite(addr, buf)
}

func (e *Engine) handleDump(tokens *commandline.Tokens, mode string) error {
	addr := e.dumpAddr
	size := e.dumpSize
	if size == 0 {
		size = 128
	}
	if tok, ok := tokens.Get(); ok {
		a, err := parseUint16(tok)
		if err != nil {
			return err
		}
		addr = a
		size = 128
	}
	if tok, ok := tokens.Get(); ok {
		s, err := parseUint16(tok)
		if err != nil {
			return err
		}
		size = s
	}

	data, err := e.cdi.MemRead(addr, size)
	if err != nil {
		return err
	}
	e.printDump(addr, data, mode)
	e.dumpAddr = addr + uint16(len(data))
	e.dumpSize = uint16(len(data))
	return nil
}

func (e *Engine) printDump(addr uint16, data []byte, mode string) {
	switch mode {
	case "hex":
		for i := 0; i < len(data); i += 16 {
			end := i + 16
			if end > len(data) {
				end = len(data)
			}
			row := data[i:end]
			parts := make([]string, len(row))
			for j, b := range row {
				parts[j] = fmt.Sprintf("%02x", b)
			}
			e.printLine(fmt.Sprintf("%04x: %-47s %s", int(addr)+i, strings.Join(parts, " "), asciiOf(row)))
		}
	case "dec":
		for i := 0; i < len(data); i += 16 {
			end := i + 16
			if end > len(data) {
				end = len(data)
			}
			row := data[i:end]
			parts := make([]string, len(row))
			for j, b := range row {
				parts[j] = fmt.Sprintf("%3d", b)
			}
			e.printLine(fmt.Sprintf("%04x: %s", int(addr)+i, strings.Join(parts, " ")))
		}
	case "hexw":
		for i := 0; i < len(data); i += 16 {
			end := i + 16
			if end > len(data) {
				end = len(data)
			}
			row := data[i:end]
			var parts []string
			for j := 0; j+1 < len(row); j += 2 {
				parts = append(parts, fmt.Sprintf("%04x", binary.LittleEndian.Uint16(row[j:j+2])))
			}
			e.printLine(fmt.Sprintf("%04x: %s", int(addr)+i, strings.Join(parts, " ")))
		}
	case "decw":
		for i := 0; i < len(data); i += 16 {
			end := i + 16
			if end > len(data) {
				end = len(data)
			}
			row := data[i:end]
			var parts []string
			for j := 0; j+1 < len(row); j += 2 {
				parts = append(parts, fmt.Sprintf("%5d", binary.LittleEndian.Uint16(row[j:j+2])))
			}
			e.printLine(fmt.Sprintf("%04x: %s", int(addr)+i, strings.Join(parts, " ")))
		}
	}
}

func asciiOf(row []byte) string {
	b := make([]byte, len(row))
	for i, c := range row {
		if c >= 32 && c < 127 {
			b[i] = c
		} else {
			b[i] = '.'
		}
	}
	return string(b)
}

func (e *Engine) handleReg(tokens *commandline.Tokens, csr bool) error {
	regTok, ok := tokens.Get()
	if !ok {
		return e.printRegisters(csr)
	}
	var index int
	if csr {
		index, ok = resolveCsr(regTok)
	} else {
		index, ok = resolveReg(regTok)
	}
	if !ok {
		return curated.Errorf("unknown register (%s)", regTok)
	}
	valTok, ok := tokens.Get()
	if !ok {
		v, err := e.cdi.RegRead(index, csr)
		if err != nil {
			return err
		}
		e.printLine(fmt.Sprintf("%s=%#06x", regDisplayName(index, csr), v))
		return nil
	}
	v, err := strconv.ParseUint(valTok, 0, 16)
	if err != nil {
		return curated.Errorf("invalid register value (%s)", valTok)
	}
	return e.cdi.RegWrite(index, csr, uint16(v))
}

func (e *Engine) printRegisters(csr bool) error {
	var sb strings.Builder
	for i := 0; i < 16; i++ {
		v, err := e.cdi.RegRead(i, csr)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, "%-5s=%#06x  ", regDisplayName(i, csr), v)
		if i%4 == 3 {
			e.printLine(strings.TrimRight(sb.String(), " "))
			sb.Reset()
		}
	}
	return nil
}

func regDisplayName(index int, csr bool) string {
	if csr {
		return fmt.Sprintf("csr%d", index)
	}
	switch index {
	case 11:
		return "sp"
	case 12:
		return "ca"
	case 13:
		return "ia"
	case 14:
		return "f"
	case 15:
		return "pc"
	}
	return fmt.Sprintf("r%d", index)
}

func resolveReg(tok string) (int, bool) {
	tok = strings.ToLower(tok)
	switch tok {
	case "sp":
		return 11, true
	case "ca":
		return 12, true
	case "ia":
		return 13, true
	case "f":
		return 14, true
	case "pc":
		return 15, true
	}
	if len(tok) >= 2 && tok[0] == 'r' {
		if n, err := strconv.Atoi(tok[1:]); err == nil && n >= 0 && n < 16 {
			return n, true
		}
	}
	return 0, false
}

func resolveCsr(tok string) (int, bool) {
	tok = strings.ToLower(tok)
	if len(tok) >= 4 && strings.HasPrefix(tok, "csr") {
		if n, err := strconv.Atoi(tok[3:]); err == nil && n >= 0 && n < 16 {
			return n, true
		}
	}
	return 0, false
}

func parseUint16(tok string) (uint16, error) {
	n, err := strconv.ParseUint(tok, 0, 16)
	if err != nil {
		return 0, curated.Errorf("dbg: invalid number (%s)", tok)
	}
	return uint16(n), nil
}
