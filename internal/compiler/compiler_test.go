package compiler

import (
	"strings"
	"testing"

	"adv2.dev/adv2/internal/isa"
	"adv2.dev/adv2/internal/vm"
)

// fakeHost captures TRAP I/O so end-to-end tests can assert on a compiled
// program's observable output when the vm package runs it (vm imports isa
// but not compiler, so this test can import vm without a cycle).
type fakeHost struct {
	out strings.Builder
}

func (h *fakeHost) ReadChar() (int32, error) { return -1, nil }
func (h *fakeHost) WriteChar(c byte)         { h.out.WriteByte(c) }
func (h *fakeHost) WriteString(s string)     { h.out.WriteString(s) }

func compileSrc(t *testing.T, src string) *isa.Image {
	t.Helper()
	c := NewCompiler([]byte(src), "test.adv", ".")
	img, errs := c.Compile()
	if len(errs) > 0 {
		for _, e := range errs {
			t.Logf("compile error: %s", e.Error())
		}
		t.Fatalf("Compile returned %d error(s)", len(errs))
	}
	return img
}

func expectErrors(t *testing.T, src string) []*CompileError {
	t.Helper()
	c := NewCompiler([]byte(src), "test.adv", ".")
	_, errs := c.Compile()
	if len(errs) == 0 {
		t.Fatal("expected compile errors, got none")
	}
	return errs
}

// runImageForTest executes img to completion through the real interpreter
// and returns whatever it wrote, so compiler tests double as an end-to-end
// check that the code a given construct generates is actually runnable.
func runImageForTest(t *testing.T, img *isa.Image) string {
	t.Helper()
	host := &fakeHost{}
	interp := vm.New(img, vm.DefaultStackSize, host)
	if err := interp.Run(img.Hdr.MainFunction); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return host.out.String()
}

func TestCompileHelloWorld(t *testing.T) {
	img := compileSrc(t, `def main() { println "hello, world"; }`)
	if img.Hdr.MainFunction == 0 {
		t.Fatal("main function offset should not be the sentinel entry 0")
	}
	if img.Hdr.StringOffset != 0 || img.Hdr.StringSize != 0 {
		t.Fatalf("string segment should stay empty, got offset=%d size=%d",
			img.Hdr.StringOffset, img.Hdr.StringSize)
	}
	if out := runImageForTest(t, img); out != "hello, world\n" {
		t.Fatalf("output = %q, want %q", out, "hello, world\n")
	}
}

func TestCompileAndRunArithmetic(t *testing.T) {
	src := `
	def main() {
		var x = 2, y = 3;
		println x + y * 4;
	}`
	img := compileSrc(t, src)
	out := runImageForTest(t, img)
	if out != "14\n" {
		t.Fatalf("output = %q, want %q", out, "14\n")
	}
}

func TestCompileUndefinedSymbol(t *testing.T) {
	errs := expectErrors(t, `def main() { println missingGlobal; }`)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "undefined") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an 'undefined' diagnostic, got: %v", errs)
	}
}

func TestCompileDuplicateFunction(t *testing.T) {
	errs := expectErrors(t, `
	def main() { return; }
	def main() { return; }
	`)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "redefined") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a 'redefined' diagnostic, got: %v", errs)
	}
}

func TestCompileStorageClassMismatch(t *testing.T) {
	errs := expectErrors(t, `
	var thing;
	def thing() { return; }
	def main() { return; }
	`)
	if len(errs) == 0 {
		t.Fatal("expected a storage-class mismatch diagnostic")
	}
}

func TestCompileObjectAndClassInheritance(t *testing.T) {
	src := `
	property value;
	object Base {
		shared value: 10;
	}
	class Base Widget {
	}
	def main() {
		println Widget.value;
	}`
	img := compileSrc(t, src)
	out := runImageForTest(t, img)
	if out != "10\n" {
		t.Fatalf("output = %q, want %q", out, "10\n")
	}
}

func TestCompileIfWhileControlFlow(t *testing.T) {
	src := `
	def main() {
		var i = 0, sum = 0;
		while (i < 5) {
			if (i != 2) {
				sum = sum + i;
			}
			i = i + 1;
		}
		println sum;
	}`
	img := compileSrc(t, src)
	out := runImageForTest(t, img)
	if out != "8\n" {
		t.Fatalf("output = %q, want %q", out, "8\n")
	}
}

func TestCompileFunctionCallAndReturn(t *testing.T) {
	src := `
	def square(n) {
		return n * n;
	}
	def main() {
		println square(6);
	}`
	img := compileSrc(t, src)
	out := runImageForTest(t, img)
	if out != "36\n" {
		t.Fatalf("output = %q, want %q", out, "36\n")
	}
}

func TestCompileTryCatchThrow(t *testing.T) {
	src := `
	def main() {
		try {
			throw 7;
			println "unreachable";
		} catch (e) {
			println e;
		}
	}`
	img := compileSrc(t, src)
	out := runImageForTest(t, img)
	if out != "7\n" {
		t.Fatalf("output = %q, want %q", out, "7\n")
	}
}

func TestCompileByteArray(t *testing.T) {
	src := `
	var buf[8];
	def main() {
		buf[0] = 65;
		buf[1] = 66;
		println buf[0] + buf[1];
	}`
	img := compileSrc(t, src)
	out := runImageForTest(t, img)
	if out != "131\n" {
		t.Fatalf("output = %q, want %q", out, "131\n")
	}
}
