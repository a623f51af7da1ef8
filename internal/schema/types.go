// Package schema holds the declarative type definitions documents are
// validated against, loads them from YAML, and answers which module type
// matches a file and which class type matches a heading.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind tags the closed set of definition shapes a schema document may hold.
type Kind string

const (
	KindModule    Kind = "module"
	KindClass     Kind = "class"
	KindValidator Kind = "validator"
)

// Definition is implemented by *ModuleTypeDef, *ClassTypeDef and
// *ContentValidatorDef only.
type Definition interface {
	DefName() string
	DefKind() Kind
	Source() string
	sealed()
}

// Scope is the boundary within which an identifier must be unique.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeDirectory Scope = "directory"
	ScopeModule    Scope = "module"
	ScopeSection   Scope = "section"
)

func (s Scope) valid() bool {
	switch s {
	case ScopeGlobal, ScopeDirectory, ScopeModule, ScopeSection:
		return true
	}
	return false
}

// Location says where an identifier is read from.
type Location string

const (
	LocationTitle    Location = "title"
	LocationHeading  Location = "heading"
	LocationMetadata Location = "metadata"
	LocationInline   Location = "inline"
)

// LinkKind is the syntactic shape of a reference.
type LinkKind string

const (
	LinkModule   LinkKind = "module"
	LinkClass    LinkKind = "class"
	LinkExternal LinkKind = "external"
)

// Grammar names a built-in content grammar.
type Grammar string

const (
	GrammarEARS    Grammar = "ears"
	GrammarGherkin Grammar = "gherkin"
)

// Cardinality bounds a count. A nil Max is unbounded.
type Cardinality struct {
	Min int  `yaml:"min"`
	Max *int `yaml:"max"`
}

// Allows reports whether n is within bounds.
func (c Cardinality) Allows(n int) bool {
	if n < c.Min {
		return false
	}
	return c.Max == nil || n <= *c.Max
}

func (c Cardinality) String() string {
	if c.Max == nil {
		return fmt.Sprintf("at least %d", c.Min)
	}
	return fmt.Sprintf("%d-%d", c.Min, *c.Max)
}

// IdentifierSpec describes how an identifier is found and how unique it must be.
type IdentifierSpec struct {
	Pattern  string   `yaml:"pattern"`
	Location Location `yaml:"location"`
	Field    string   `yaml:"field"` // metadata field for LocationMetadata
	Scope    Scope    `yaml:"scope"`
	Optional bool     `yaml:"optional"`

	re   *regexp.Regexp
	full *regexp.Regexp
}

// Find returns the first substring of text matching the pattern, or "".
func (s *IdentifierSpec) Find(text string) string {
	if s == nil || s.re == nil {
		return ""
	}
	return s.re.FindString(text)
}

// Matches reports whether id matches the pattern in full.
func (s *IdentifierSpec) Matches(id string) bool {
	if s == nil || s.full == nil {
		return false
	}
	return s.full.MatchString(id)
}

func (s *IdentifierSpec) compile() error {
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return err
	}
	full, err := regexp.Compile(`^(?:` + strings.TrimSuffix(strings.TrimPrefix(s.Pattern, "^"), "$") + `)$`)
	if err != nil {
		return err
	}
	s.re, s.full = re, full
	return nil
}

// FieldSpec is a named metadata or class field.
type FieldSpec struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
	Pattern  string `yaml:"pattern"`

	re *regexp.Regexp
}

// Accepts reports whether value satisfies the field pattern, if any.
func (f *FieldSpec) Accepts(value string) bool {
	return f.re == nil || f.re.MatchString(value)
}

// SectionSpec describes one expected section of a module.
type SectionSpec struct {
	Heading          string       `yaml:"heading"`
	Pattern          string       `yaml:"pattern"`
	Level            int          `yaml:"level"` // 0 matches any level
	Required         bool         `yaml:"required"`
	AllowedClasses   []string     `yaml:"allowed_classes"`
	RequireClasses   bool         `yaml:"require_classes"`
	ClassCardinality *Cardinality `yaml:"class_cardinality"`
	Validator        string       `yaml:"validator"`

	re *regexp.Regexp
}

// Name is the human-readable name used in messages.
func (s *SectionSpec) Name() string {
	if s.Heading != "" {
		return s.Heading
	}
	return s.Pattern
}

// Matches reports whether a heading matches this section.
func (s *SectionSpec) Matches(title string, level int) bool {
	if s.Level != 0 && s.Level != level {
		return false
	}
	if s.re != nil {
		return s.re.MatchString(strings.TrimSpace(title))
	}
	return strings.EqualFold(strings.TrimSpace(title), strings.TrimSpace(s.Heading))
}

// Allows reports whether class may appear under this section.
func (s *SectionSpec) Allows(class string) bool {
	if len(s.AllowedClasses) == 0 {
		return true
	}
	for _, c := range s.AllowedClasses {
		if c == class {
			return true
		}
	}
	return false
}

// ReferenceSpec is a named, typed relationship a module may express via links.
type ReferenceSpec struct {
	Name         string      `yaml:"name"`
	Kind         LinkKind    `yaml:"kind"`
	TargetModule string      `yaml:"target_module"`
	TargetClass  string      `yaml:"target_class"`
	Cardinality  Cardinality `yaml:"cardinality"`
	MustExist    *bool       `yaml:"must_exist"`
	Sections     []string    `yaml:"sections"`
}

// RequiresExistence reports whether unresolved targets are errors. Defaults to true.
func (r *ReferenceSpec) RequiresExistence() bool {
	return r.MustExist == nil || *r.MustExist
}

// AppliesTo reports whether a link under the given section path can express
// this relationship.
func (r *ReferenceSpec) AppliesTo(sectionPath []string) bool {
	if len(r.Sections) == 0 {
		return true
	}
	for _, want := range r.Sections {
		for _, title := range sectionPath {
			if strings.EqualFold(strings.TrimSpace(title), want) {
				return true
			}
		}
	}
	return false
}

// Target returns the expected target type name, or "".
func (r *ReferenceSpec) Target() string {
	if r.TargetClass != "" {
		return r.TargetClass
	}
	return r.TargetModule
}

// ModuleTypeDef is the schema for a whole document.
type ModuleTypeDef struct {
	Name            string          `yaml:"name"`
	Description     string          `yaml:"description"`
	FilePattern     string          `yaml:"file_pattern"`
	LocationPattern string          `yaml:"location_pattern"`
	ID              *IdentifierSpec `yaml:"id"`
	Metadata        []FieldSpec     `yaml:"metadata"`
	Sections        []SectionSpec   `yaml:"sections"`
	StrictSections  bool            `yaml:"strict_sections"`
	References      []ReferenceSpec `yaml:"references"`
	Classes         []*ClassTypeDef `yaml:"classes"`

	source string
}

func (m *ModuleTypeDef) DefName() string { return m.Name }
func (m *ModuleTypeDef) DefKind() Kind   { return KindModule }
func (m *ModuleTypeDef) Source() string  { return m.source }
func (m *ModuleTypeDef) sealed()         {}

// Reference returns the named reference spec, or nil.
func (m *ModuleTypeDef) Reference(name string) *ReferenceSpec {
	for i := range m.References {
		if m.References[i].Name == name {
			return &m.References[i]
		}
	}
	return nil
}

// ClassTypeDef is the schema for a repeatable component inside a section.
// Heading classes are declared by a matching heading; inline classes by a
// block that opens with a bold identifier label.
type ClassTypeDef struct {
	Name           string          `yaml:"name"`
	Description    string          `yaml:"description"`
	HeadingPattern string          `yaml:"heading_pattern"`
	Levels         []int           `yaml:"levels"`
	Inline         bool            `yaml:"inline"`
	ID             *IdentifierSpec `yaml:"id"`
	Validator      string          `yaml:"validator"`
	Fields         []FieldSpec     `yaml:"fields"`

	re     *regexp.Regexp
	source string
}

func (c *ClassTypeDef) DefName() string { return c.Name }
func (c *ClassTypeDef) DefKind() Kind   { return KindClass }
func (c *ClassTypeDef) Source() string  { return c.source }
func (c *ClassTypeDef) sealed()         {}

// MatchesHeading reports whether a heading declares an instance of c.
func (c *ClassTypeDef) MatchesHeading(title string) bool {
	return !c.Inline && c.re != nil && c.re.MatchString(strings.TrimSpace(title))
}

// AllowsLevel reports whether a heading level is allowed for c.
func (c *ClassTypeDef) AllowsLevel(level int) bool {
	if len(c.Levels) == 0 {
		return true
	}
	for _, l := range c.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// ContentValidatorDef configures a content grammar.
type ContentValidatorDef struct {
	Name    string  `yaml:"name"`
	Grammar Grammar `yaml:"grammar"`
	Modal   string  `yaml:"modal"` // ears only, defaults to "shall"

	source string
}

func (v *ContentValidatorDef) DefName() string { return v.Name }
func (v *ContentValidatorDef) DefKind() Kind   { return KindValidator }
func (v *ContentValidatorDef) Source() string  { return v.source }
func (v *ContentValidatorDef) sealed()         {}
