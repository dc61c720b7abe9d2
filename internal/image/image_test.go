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

package image_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/martin-beran/mb50dev/internal/image"
)

func TestWindowWidensBothDirections(t *testing.T) {
	im := image.New()
	im.SetByte(0x100, 1)
	im.SetByte(0x50, 2)
	im.SetByte(0x200, 3)

	start, end, ok := im.Window()
	if !ok || start != 0x50 || end != 0x201 {
		t.Errorf("got (%x, %x, %v)", start, end, ok)
	}
}

func TestAddBytesWidensWindow(t *testing.T) {
	im := image.New()
	im.AddBytes(0x10, []byte{0x01, 0x23}, "add r2, r3", "$data_b")

	start, end, ok := im.Window()
	if !ok || start != 0x10 || end != 0x12 {
		t.Errorf("window = (%x, %x, %v)", start, end, ok)
	}
}

func TestWriteEmptyImage(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "x")
	im := image.New()
	if err := im.Write(base); err != nil {
		t.Fatal(err)
	}

	bin, err := os.ReadFile(base + ".bin")
	if err != nil {
		t.Fatal(err)
	}
	if string(bin) != "0000\n" {
		t.Errorf("empty .bin = %q", bin)
	}

	mif, err := os.ReadFile(base + ".mif")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(mif), "WIDTH=8;") || !strings.HasSuffix(string(mif), "END;\n") {
		t.Errorf(".mif missing header or terminator: %q", mif)
	}
}

func TestWriteNonEmptyImage(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "y")
	im := image.New()
	im.SetWord(0x10, 0xbeef)
	if err := im.Write(base); err != nil {
		t.Fatal(err)
	}

	bin, err := os.ReadFile(base + ".bin")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(bin), "0010\n") {
		t.Fatalf(".bin header = %q", bin)
	}
	payload := []byte(bin)[len("0010\n"):]
	if len(payload) != 2 || payload[0] != 0xef || payload[1] != 0xbe {
		t.Errorf("payload = %x", payload)
	}
}
