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

// Package rawterm is a thin wrapper around "github.com/pkg/term/termios"
// for POSIX character devices. It configures a file descriptor into raw
// mode (no line discipline, no echo) and offers a readiness-wait primitive
// built on select(2) so callers can multiplex several descriptors without
// spinning.
package rawterm

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/term/termios"
)

// Device is a POSIX character device put into raw mode. It is used for the
// CDI serial line.
type Device struct {
	file *os.File

	origAttr syscall.Termios
	rawAttr  syscall.Termios

	mu sync.Mutex
}

// Open opens path, captures its current termios attributes and switches it
// to raw mode. baud is a termios speed constant (such as B115200); pass 0 to
// leave the baud rate untouched.
func Open(path string, baud uintptr) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("rawterm: %w", err)
	}

	d := &Device{file: f}

	if err := termios.Tcgetattr(d.file.Fd(), &d.origAttr); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rawterm: %w", err)
	}
	d.rawAttr = d.origAttr
	termios.Cfmakeraw(&d.rawAttr)
	if baud != 0 {
		_ = termios.Cfsetspeed(&d.rawAttr, baud)
	}

	if err := termios.Tcsetattr(d.file.Fd(), termios.TCSANOW, &d.rawAttr); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rawterm: %w", err)
	}

	return d, nil
}

// File returns the underlying file, usable as an io.Reader/io.Writer.
func (d *Device) File() *os.File {
	return d.file
}

// Fd returns the raw file descriptor, for use with WaitReadable.
func (d *Device) Fd() uintptr {
	return d.file.Fd()
}

// Close restores the original terminal attributes and closes the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_ = termios.Tcsetattr(d.file.Fd(), termios.TCSANOW, &d.origAttr)
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("rawterm: %w", err)
	}
	return nil
}

// WaitReadable blocks until at least one of fds is ready for reading, or
// timeout elapses. A nil timeout blocks indefinitely; a zero timeout
// performs a single non-blocking peek. It is the multiplexing primitive
// used for both the debugger's stdin-vs-device select during execute() and
// the non-blocking stdin peek used by the breakpoint step-loop.
func WaitReadable(fds []uintptr, timeout *time.Duration) (ready []uintptr, err error) {
	var set syscall.FdSet
	var maxFd uintptr
	for _, fd := range fds {
		set.Bits[fd/64] |= 1 << (uint(fd) % 64)
		if fd > maxFd {
			maxFd = fd
		}
	}

	var tv *syscall.Timeval
	if timeout != nil {
		t := syscall.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}

	for {
		n, serr := syscall.Select(int(maxFd)+1, &set, nil, nil, tv)
		if serr == syscall.EINTR {
			continue
		}
		if serr != nil {
			return nil, fmt.Errorf("rawterm: select: %w", serr)
		}
		if n == 0 {
			return nil, nil
		}
		break
	}

	for _, fd := range fds {
		if set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0 {
			ready = append(ready, fd)
		}
	}
	return ready, nil
}
