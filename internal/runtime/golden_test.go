package runtime

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestGolden runs every testdata/*.xpp as one block and compares its output with the
// matching .expected file. A .input file, when present, is fed to input().
func TestGolden(t *testing.T) {
	sources, err := filepath.Glob(filepath.Join("..", "..", "testdata", "*.xpp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) == 0 {
		t.Fatal("no golden sources found")
	}

	for _, src := range sources {
		name := strings.TrimSuffix(filepath.Base(src), ".xpp")
		t.Run(name, func(t *testing.T) {
			base := strings.TrimSuffix(src, ".xpp")
			source := readGolden(t, src)
			expected := readGolden(t, base+".expected")

			input, err := os.ReadFile(base + ".input")
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				t.Fatal(err)
			}

			got, _, err := runSource(source, string(input))
			if err != nil {
				t.Fatalf("run error: %v", err)
			}
			compareLines(t, strings.TrimRight(expected, "\n"), strings.TrimRight(got, "\n"))
		})
	}
}

func readGolden(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// compareLines reports a line-by-line diff when want and got differ.
func compareLines(t *testing.T, want, got string) {
	t.Helper()
	if want == got {
		return
	}
	wantLines, gotLines := strings.Split(want, "\n"), strings.Split(got, "\n")
	t.Error("output mismatch")
	for i := 0; i < len(wantLines) || i < len(gotLines); i++ {
		w, g := "<missing>", "<missing>"
		if i < len(wantLines) {
			w = wantLines[i]
		}
		if i < len(gotLines) {
			g = gotLines[i]
		}
		mark := "  "
		if w != g {
			mark = "! "
		}
		t.Logf("%sline %d: want=%q got=%q", mark, i+1, w, g)
	}
}
