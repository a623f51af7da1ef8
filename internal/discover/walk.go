// Package discover finds candidate documents under a root directory and
// evaluates the ignore files that exclude or unmanage them.
package discover

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/speclint/internal/parser"
)

var skipDirs = map[string]bool{".git": true, "node_modules": true, "vendor": true}

// Walk returns the slash-separated, root-relative paths of candidate
// documents under root, sorted. Hidden directories and the usual
// dependency directories are skipped.
func Walk(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			base := d.Name()
			if skipDirs[base] || strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !parser.IsSupportedExtension(p) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Reader returns a function reading root-relative slash paths.
func Reader(root string) func(string) ([]byte, error) {
	return func(rel string) ([]byte, error) {
		return os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	}
}

// FileExists reports whether a root-relative path names an existing file
// or directory.
func FileExists(root string) func(string) bool {
	return func(rel string) bool {
		if strings.HasPrefix(rel, "../") || rel == ".." {
			return false
		}
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		return err == nil
	}
}
