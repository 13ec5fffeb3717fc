package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestGoldenPrograms compiles and runs every testdata/*.adv fixture and
// compares its output against the matching *.out file, one sub-test per
// fixture — the package's equivalent of the teacher's whole-sample-program
// test directory, minus the manual driver.
func TestGoldenPrograms(t *testing.T) {
	fixtures, err := filepath.Glob("testdata/*.adv")
	if err != nil {
		t.Fatal(err)
	}
	if len(fixtures) == 0 {
		t.Fatal("no testdata/*.adv fixtures found")
	}

	for _, srcPath := range fixtures {
		srcPath := srcPath
		name := strings.TrimSuffix(filepath.Base(srcPath), ".adv")
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(srcPath)
			if err != nil {
				t.Fatal(err)
			}
			wantPath := strings.TrimSuffix(srcPath, ".adv") + ".out"
			want, err := os.ReadFile(wantPath)
			if err != nil {
				t.Fatalf("missing expected-output fixture %s: %v", wantPath, err)
			}

			c := NewCompiler(src, srcPath, filepath.Dir(srcPath))
			img, errs := c.Compile()
			if len(errs) > 0 {
				for _, e := range errs {
					t.Logf("compile error: %s", e.Error())
				}
				t.Fatalf("%s: Compile returned %d error(s)", srcPath, len(errs))
			}

			got := runImageForTest(t, img)
			if got != string(want) {
				t.Errorf("%s output mismatch\n got: %q\nwant: %q", srcPath, got, string(want))
			}
		})
	}
}
