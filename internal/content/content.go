// Package content checks prose blocks against structured grammars such as
// EARS requirement syntax and Given/When/Then scenarios.
package content

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/speclint/internal/report"
	"github.com/dgallion1/speclint/internal/schema"
)

// Block is one prose block with its starting position.
type Block struct {
	Text   string
	Line   int
	Column int
}

// Target is the content a validator checks: the blocks of one section or
// class instance, plus the position used when there are none.
type Target struct {
	File   string
	Line   int
	Column int
	Label  string // e.g. "REQ-001" or "Requirements", for messages
	Blocks []Block
}

// Validator is implemented by each grammar.
type Validator interface {
	Name() string
	Validate(t Target) []report.ValidationError
}

// Set holds one Validator per name. It is immutable after construction.
type Set struct {
	byName map[string]Validator
}

// NewSet builds a validator for every definition in reg, plus the bare
// grammar names.
func NewSet(reg *schema.Registry) (*Set, error) {
	s := &Set{byName: make(map[string]Validator)}
	defs := reg.Validators()
	for _, g := range []schema.Grammar{schema.GrammarEARS, schema.GrammarGherkin} {
		if reg.Validator(string(g)) != nil {
			defs = append(defs, reg.Validator(string(g)))
		}
	}
	for _, def := range defs {
		if _, ok := s.byName[def.Name]; ok {
			continue
		}
		v, err := New(def)
		if err != nil {
			return nil, err
		}
		s.byName[def.Name] = v
	}
	return s, nil
}

// New builds the validator for a definition.
func New(def *schema.ContentValidatorDef) (Validator, error) {
	switch def.Grammar {
	case schema.GrammarEARS:
		return &EARS{name: def.Name, modal: def.Modal}, nil
	case schema.GrammarGherkin:
		return &Gherkin{name: def.Name}, nil
	}
	return nil, fmt.Errorf("validator %q: unknown grammar %q", def.Name, def.Grammar)
}

// Get returns the named validator, or nil.
func (s *Set) Get(name string) Validator {
	return s.byName[name]
}

// Names lists the available validators.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var (
	listMarker = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+`)
	boldLabel  = regexp.MustCompile(`^\*\*([^*]+)\*\*\s*(?::|-)?\s*`)
)

// stripLead removes a list marker and a leading bold label such as
// "**REQ-001**:".
func stripLead(s string) string {
	s = listMarker.ReplaceAllString(s, "")
	s = boldLabel.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.TrimSpace(s)
}

func contentError(t Target, line, col int, format string, args ...any) report.ValidationError {
	msg := fmt.Sprintf(format, args...)
	if t.Label != "" {
		msg = t.Label + ": " + msg
	}
	return report.Errorf(report.CategoryContent, t.File, line, col, "%s", msg)
}
