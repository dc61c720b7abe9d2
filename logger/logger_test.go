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

package logger_test

import (
	"strings"
	"testing"

	"github.com/martin-beran/mb50dev/logger"
)

func TestCentralLog(t *testing.T) {
	logger.Clear()
	w := &strings.Builder{}

	logger.Write(w)
	if w.String() != "" {
		t.Errorf("expected empty, got %q", w.String())
	}

	logger.Log("test", "this is a test")
	logger.Write(w)
	if w.String() != "test: this is a test\n" {
		t.Errorf("unexpected: %q", w.String())
	}

	w.Reset()

	logger.Log("test2", "this is another test")
	logger.Write(w)
	want := "test: this is a test\ntest2: this is another test\n"
	if w.String() != want {
		t.Errorf("got %q, want %q", w.String(), want)
	}

	w.Reset()
	logger.Tail(w, 100)
	if w.String() != want {
		t.Errorf("got %q, want %q", w.String(), want)
	}

	w.Reset()
	logger.Tail(w, 2)
	if w.String() != want {
		t.Errorf("got %q, want %q", w.String(), want)
	}

	w.Reset()
	logger.Tail(w, 1)
	if w.String() != "test2: this is another test\n" {
		t.Errorf("unexpected tail: %q", w.String())
	}

	w.Reset()
	logger.Tail(w, 0)
	if w.String() != "" {
		t.Errorf("expected empty tail, got %q", w.String())
	}
}
