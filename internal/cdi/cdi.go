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

// Package cdi implements the debugger's wire protocol to the target (spec
// §4.7/§6): little-endian, single-byte-opcode request/response frames over a
// raw serial TTY, plus the readiness-multiplexed execute() used to let the
// user break out of a running target from the keyboard.
package cdi

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/martin-beran/mb50dev/curated"
	"github.com/martin-beran/mb50dev/internal/rawterm"
)

// Request opcodes (spec §6).
const (
	reqStatus = 0x01
	reqStep   = 0x02
	reqExec   = 0x03
	reqRegRd  = 0x04
	reqRegWr  = 0x05
	reqCsrRd  = 0x06
	reqCsrWr  = 0x07
	reqMemRd  = 0x08
	reqMemWr  = 0x09
)

// Response opcodes.
const (
	respUnknown = 0x01
	respStatus  = 0x02
	respRegRd   = 0x03
	respRegWr   = 0x04
	respMemRd   = 0x05
	respMemWr   = 0x06
)

// baud115200 is the termios speed constant for the fixed 115200 8N1 link.
const baud115200 = 0010002 // B115200, octal per asm-generic/termbits.h

// Status is the target's halted/exec/pc tuple carried by every status
// response.
type Status struct {
	Halted   bool
	ExecResp bool
	PC       uint16
}

// Transport owns the serial device and speaks the CDI frame protocol over
// it. All methods are blocking; the caller (internal/dbg) serializes access,
// there being no pipelining (spec §5).
type Transport struct {
	dev *rawterm.Device
}

// Open opens path as a raw 115200 8N1 serial device.
func Open(path string) (*Transport, error) {
	dev, err := rawterm.Open(path, baud115200)
	if err != nil {
		return nil, curated.Errorf("cdi: %s", err.Error())
	}
	return &Transport{dev: dev}, nil
}

// Close releases the underlying device.
func (t *Transport) Close() error {
	return t.dev.Close()
}

func (t *Transport) write(b []byte) error {
	if _, err := t.dev.File().Write(b); err != nil {
		return curated.Errorf("cdi: write: %s", err.Error())
	}
	return nil
}

func (t *Transport) readByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(t.dev.File(), b[:]); err != nil {
		return 0, curated.Errorf("cdi: read: %s", err.Error())
	}
	return b[0], nil
}

func (t *Transport) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.dev.File(), buf); err != nil {
		return nil, curated.Errorf("cdi: read: %s", err.Error())
	}
	return buf, nil
}

// decodeStatus parses a status response's 3-byte body (the bitfield byte
// plus the little-endian pc) into a Status.
func decodeStatus(body []byte) Status {
	return Status{
		Halted:   body[0]&0x01 != 0,
		ExecResp: body[0]&0x02 != 0,
		PC:       binary.LittleEndian.Uint16(body[1:3]),
	}
}

func (t *Transport) readStatus() (Status, error) {
	op, err := t.readByte()
	if err != nil {
		return Status{}, err
	}
	switch op {
	case respStatus:
		body, err := t.readN(3)
		if err != nil {
			return Status{}, err
		}
		return decodeStatus(body), nil
	case respUnknown:
		return Status{}, curated.Errorf("cdi: target rejected request as unknown")
	default:
		return Status{}, curated.Errorf("cdi: unexpected response opcode 0x%02x", op)
	}
}

// Status issues a status request.
func (t *Transport) Status() (Status, error) {
	if err := t.write([]byte{reqStatus}); err != nil {
		return Status{}, err
	}
	return t.readStatus()
}

// Step single-steps the target one instruction.
func (t *Transport) Step() (Status, error) {
	if err := t.write([]byte{reqStep}); err != nil {
		return Status{}, err
	}
	return t.readStatus()
}

// Execute runs the target until it halts, hits a breakpoint the target
// itself knows about, or the user types anything at stdin before the device
// responds (spec §5's cancellation rule). userBreak is true if cancellation
// fired; in that case a status request has already been issued and its
// response is the returned Status.
func (t *Transport) Execute(stdin *os.File) (status Status, userBreak bool, err error) {
	if err := t.write([]byte{reqExec}); err != nil {
		return Status{}, false, err
	}

	fds := []uintptr{stdin.Fd(), t.dev.Fd()}
	for {
		ready, werr := rawterm.WaitReadable(fds, nil)
		if werr != nil {
			return Status{}, false, curated.Errorf("cdi: %s", werr.Error())
		}
		deviceReady, stdinReady := false, false
		for _, fd := range ready {
			switch fd {
			case t.dev.Fd():
				deviceReady = true
			case stdin.Fd():
				stdinReady = true
			}
		}
		if deviceReady {
			s, rerr := t.readStatus()
			if rerr != nil {
				return Status{}, false, rerr
			}
			if s.ExecResp {
				return s, false, nil
			}
			continue
		}
		if stdinReady {
			s, serr := t.Status()
			return s, true, serr
		}
	}
}

// RegRead reads one of the 16 general-purpose or 16 control/status
// registers.
func (t *Transport) RegRead(index int, csr bool) (uint16, error) {
	op := byte(reqRegRd)
	resp := byte(respRegRd)
	if csr {
		op = reqCsrRd
	}
	if err := t.write([]byte{op, byte(index)}); err != nil {
		return 0, err
	}
	gotOp, err := t.readByte()
	if err != nil {
		return 0, err
	}
	if gotOp != resp {
		return 0, curated.Errorf("cdi: unexpected response opcode 0x%02x", gotOp)
	}
	body, err := t.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(body), nil
}

// RegWrite writes one of the 16 general-purpose or 16 control/status
// registers.
func (t *Transport) RegWrite(index int, csr bool, v uint16) error {
	op := byte(reqRegWr)
	if csr {
		op = reqCsrWr
	}
	buf := make([]byte, 4)
	buf[0] = op
	buf[1] = byte(index)
	binary.LittleEndian.PutUint16(buf[2:], v)
	if err := t.write(buf); err != nil {
		return err
	}
	gotOp, err := t.readByte()
	if err != nil {
		return err
	}
	if gotOp != respRegWr {
		return curated.Errorf("cdi: unexpected response opcode 0x%02x", gotOp)
	}
	return nil
}

// MemRead reads size bytes from addr; size == 0 means 65536 bytes.
func (t *Transport) MemRead(addr, size uint16) ([]byte, error) {
	buf := make([]byte, 5)
	buf[0] = reqMemRd
	binary.LittleEndian.PutUint16(buf[1:3], addr)
	binary.LittleEndian.PutUint16(buf[3:5], size)
	if err := t.write(buf); err != nil {
		return nil, err
	}
	gotOp, err := t.readByte()
	if err != nil {
		return nil, err
	}
	if gotOp != respMemRd {
		return nil, curated.Errorf("cdi: unexpected response opcode 0x%02x", gotOp)
	}
	return t.readN(memReadSize(size))
}

// memReadSize applies the wire protocol's "size == 0 means 65536 bytes" rule
// (spec §6).
func memReadSize(size uint16) int {
	if size == 0 {
		return 65536
	}
	return int(size)
}

// MemWrite writes bytes starting at addr. A zero-length data is a no-op: the
// wire protocol has no way to encode a zero-byte payload, since size == 0
// means 65536 bytes (spec §6), so there is nothing safe to send.
func (t *Transport) MemWrite(addr uint16, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	size := uint16(len(data))
	buf := make([]byte, 5+len(data))
	buf[0] = reqMemWr
	binary.LittleEndian.PutUint16(buf[1:3], addr)
	binary.LittleEndian.PutUint16(buf[3:5], size)
	copy(buf[5:], data)
	if err := t.write(buf); err != nil {
		return err
	}
	gotOp, err := t.readByte()
	if err != nil {
		return err
	}
	if gotOp != respMemWr {
		return curated.Errorf("cdi: unexpected response opcode 0x%02x", gotOp)
	}
	return nil
}
