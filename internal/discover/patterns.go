package discover

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type rule struct {
	glob   string
	negate bool
}

// Patterns is a gitignore-style pattern list. Later rules win, and a rule
// starting with "!" re-includes what earlier rules matched.
type Patterns struct {
	rules []rule
}

// ParsePatterns reads one pattern per line. Blank lines and lines starting
// with "#" are skipped.
func ParsePatterns(data []byte) (*Patterns, error) {
	p := &Patterns{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r := rule{}
		if strings.HasPrefix(line, "!") {
			r.negate = true
			line = strings.TrimPrefix(line, "!")
		}
		r.glob = normalize(line)
		if !doublestar.ValidatePattern(r.glob) {
			return nil, fmt.Errorf("line %d: invalid pattern %q", n, line)
		}
		p.rules = append(p.rules, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadPatterns reads an ignore file. A missing file yields an empty list.
func LoadPatterns(file string) (*Patterns, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return &Patterns{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	p, err := ParsePatterns(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return p, nil
}

// NewPatterns builds a list from globs given on the command line or in a request.
func NewPatterns(globs []string) (*Patterns, error) {
	return ParsePatterns([]byte(strings.Join(globs, "\n")))
}

// normalize turns a gitignore-style line into a doublestar glob over
// root-relative paths.
func normalize(line string) string {
	dir := strings.HasSuffix(line, "/")
	line = strings.TrimSuffix(line, "/")
	switch {
	case strings.HasPrefix(line, "/"):
		line = strings.TrimPrefix(line, "/")
	case !strings.Contains(line, "/"):
		line = "**/" + line
	}
	if dir {
		line += "/**"
	}
	return line
}

// Match reports whether relPath, or one of its parent directories, is matched.
func (p *Patterns) Match(relPath string) bool {
	if p == nil || len(p.rules) == 0 {
		return false
	}
	relPath = strings.TrimPrefix(path.Clean(relPath), "./")
	matched := false
	for _, r := range p.rules {
		if r.negate == matched && matchesSelfOrParent(r.glob, relPath) {
			matched = !r.negate
		}
	}
	return matched
}

func matchesSelfOrParent(glob, relPath string) bool {
	for p := relPath; p != "." && p != "/" && p != ""; p = path.Dir(p) {
		if ok, _ := doublestar.Match(glob, p); ok {
			return true
		}
	}
	return false
}

// Len returns the number of rules.
func (p *Patterns) Len() int {
	if p == nil {
		return 0
	}
	return len(p.rules)
}

// Predicate adapts p to a path predicate.
func (p *Patterns) Predicate() func(string) bool {
	return p.Match
}
