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

package cdi

import "testing"

func TestDecodeStatus(t *testing.T) {
	s := decodeStatus([]byte{0x03, 0x34, 0x12})
	if !s.Halted || !s.ExecResp || s.PC != 0x1234 {
		t.Fatalf("decodeStatus = %+v", s)
	}
}

func TestDecodeStatusRunning(t *testing.T) {
	s := decodeStatus([]byte{0x00, 0x00, 0x00})
	if s.Halted || s.ExecResp || s.PC != 0 {
		t.Fatalf("decodeStatus = %+v", s)
	}
}

func TestMemReadSizeZeroMeansFullImage(t *testing.T) {
	if got := memReadSize(0); got != 65536 {
		t.Errorf("memReadSize(0) = %d, want 65536", got)
	}
	if got := memReadSize(16); got != 16 {
		t.Errorf("memReadSize(16) = %d, want 16", got)
	}
}
