package internal

import (
	"bytes"
	"go/format"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestGofmtCompliance fails if any source file under internal/ or cmd/
// differs from its gofmt rendering. Fix with: gofmt -w ./internal/ ./cmd/
func TestGofmtCompliance(t *testing.T) {
	root := projectRoot(t)

	var dirty []string
	for _, dir := range []string{"internal", "cmd"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") {
				return nil
			}

			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			formatted, err := format.Source(src)
			if err != nil {
				// Unparseable files are someone else's problem.
				return nil
			}
			if !bytes.Equal(src, formatted) {
				rel, _ := filepath.Rel(root, path)
				dirty = append(dirty, rel)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Failed to walk %s: %v", dir, err)
		}
	}

	for _, f := range dirty {
		t.Errorf("Not gofmt-formatted: %s", f)
	}
}

// projectRoot resolves the repository root whether the test runs from
// internal/ or from the repository itself.
func projectRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if filepath.Base(wd) == "internal" {
		return filepath.Dir(wd)
	}
	return wd
}
