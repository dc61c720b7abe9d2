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

package asm

// opcodeInfo is one mnemonic's encoding: its opcode byte and whether its
// destination/source operand must be a CSR register (spec §4.5's dd/ss
// flags).
type opcodeInfo struct {
	code   byte
	dstCSR bool
	srcCSR bool
}

// opcodeTable maps every mnemonic (direct opcodes plus the generated
// conditional-move family) to its encoding.
var opcodeTable = buildOpcodeTable()

func buildOpcodeTable() map[string]opcodeInfo {
	t := map[string]opcodeInfo{
		"add":   {0x01, false, false},
		"and":   {0x02, false, false},
		"csrr":  {0x03, false, true},
		"csrw":  {0x04, true, false},
		"dec1":  {0x05, false, false},
		"dec2":  {0x06, false, false},
		"exch":  {0x07, false, false},
		"inc1":  {0x08, false, false},
		"inc2":  {0x09, false, false},
		"ill":   {0x00, false, false},
		"ld":    {0x0a, false, false},
		"ldb":   {0x0b, false, false},
		"ldis":  {0x0c, false, false},
		"mv":    {0x0e, false, false},
		"neg":   {0x0f, false, false},
		"not":   {0x10, false, false},
		"or":    {0x11, false, false},
		"shl":   {0x12, false, false},
		"shr":   {0x13, false, false},
		"shra":  {0x14, false, false},
		"sto":   {0x15, false, false},
		"stob":  {0x16, false, false},
		"ddsto": {0x17, false, false},
		"sub":   {0x18, false, false},
		"cmpu":  {0x19, false, false},
		"xor":   {0x1a, false, false},
		"cmps":  {0x1b, false, false},
		"reti":  {0x1c, false, false},
		"rev":   {0x1d, false, false},
		"mulss": {0x1e, false, false},
		"mulsu": {0x1f, false, false},
		"mulus": {0x20, false, false},
		"muluu": {0x21, false, false},
	}

	prefixes := map[string]byte{"ld": 0x90, "ldis": 0xa0, "mv": 0xc0}
	flags := map[string]byte{"f0": 0, "f1": 1, "f2": 2, "f3": 3, "z": 4, "c": 5, "s": 6, "o": 7}
	negations := map[string]byte{"n": 0x00, "": 0x08}
	for pname, pcode := range prefixes {
		for fname, fcode := range flags {
			for nname, ncode := range negations {
				t[pname+nname+fname] = opcodeInfo{code: pcode | ncode | fcode}
			}
		}
	}
	return t
}
