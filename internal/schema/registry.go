package schema

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Registry is the immutable set of loaded definitions.
type Registry struct {
	modules    []*ModuleTypeDef // sorted by name
	shared     []*ClassTypeDef  // sorted by name
	validators map[string]*ContentValidatorDef
}

// AmbiguousTypeError reports a file matched by more than one module type.
type AmbiguousTypeError struct {
	Path    string
	Matches []string
}

func (e *AmbiguousTypeError) Error() string {
	return fmt.Sprintf("%s matches %d module types: %s", e.Path, len(e.Matches), strings.Join(e.Matches, ", "))
}

// NewRegistry validates and compiles defs. Every problem found is returned,
// joined, as *LoadError values.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{validators: make(map[string]*ContentValidatorDef)}
	var errs []error
	fail := func(src, field, format string, args ...any) {
		errs = append(errs, &LoadError{File: src, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	moduleNames := make(map[string]bool)
	classNames := make(map[string]bool)
	for _, def := range defs {
		name := strings.TrimSpace(def.DefName())
		if name == "" {
			fail(def.Source(), "name", "%s definition has no name", def.DefKind())
			continue
		}
		switch d := def.(type) {
		case *ModuleTypeDef:
			if moduleNames[name] {
				fail(d.source, "name", "duplicate module type %q", name)
				continue
			}
			moduleNames[name] = true
			r.modules = append(r.modules, d)
		case *ClassTypeDef:
			if classNames[name] {
				fail(d.source, "name", "duplicate class type %q", name)
				continue
			}
			classNames[name] = true
			r.shared = append(r.shared, d)
		case *ContentValidatorDef:
			if _, dup := r.validators[name]; dup {
				fail(d.source, "name", "duplicate validator %q", name)
				continue
			}
			r.validators[name] = d
		}
	}
	sort.Slice(r.modules, func(i, j int) bool { return r.modules[i].Name < r.modules[j].Name })
	sort.Slice(r.shared, func(i, j int) bool { return r.shared[i].Name < r.shared[j].Name })

	for _, name := range sortedKeys(r.validators) {
		v := r.validators[name]
		field := "validators." + name
		switch v.Grammar {
		case GrammarEARS:
			if v.Modal == "" {
				v.Modal = "shall"
			}
			v.Modal = strings.ToLower(v.Modal)
		case GrammarGherkin:
		default:
			fail(v.source, field+".grammar", "unknown grammar %q (want ears or gherkin)", v.Grammar)
		}
	}

	for _, c := range r.shared {
		errs = append(errs, r.checkClass(c, "classes."+c.Name)...)
	}
	for _, m := range r.modules {
		errs = append(errs, r.checkModule(m, classNames)...)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

func (r *Registry) checkClass(c *ClassTypeDef, field string) []error {
	var errs []error
	fail := func(f, format string, args ...any) {
		errs = append(errs, &LoadError{File: c.source, Field: field + f, Message: fmt.Sprintf(format, args...)})
	}

	if c.Inline {
		if c.HeadingPattern != "" {
			fail(".heading_pattern", "inline classes are declared by identifier, not heading")
		}
		if c.ID == nil || c.ID.Pattern == "" {
			fail(".id.pattern", "inline classes require an identifier pattern")
		}
	} else {
		if c.HeadingPattern == "" {
			fail(".heading_pattern", "required for heading classes")
		} else if re, err := regexp.Compile(c.HeadingPattern); err != nil {
			fail(".heading_pattern", "invalid regex: %v", err)
		} else {
			c.re = re
		}
	}
	for _, l := range c.Levels {
		if l < 1 || l > 6 {
			fail(".levels", "heading level %d out of range 1-6", l)
		}
	}
	if c.ID != nil {
		def := LocationHeading
		if c.Inline {
			def = LocationInline
		}
		errs = append(errs, checkIdentifier(c.ID, c.source, field+".id", def, LocationHeading, LocationInline)...)
		if c.Inline && c.ID.Location != LocationInline {
			fail(".id.location", "inline classes read identifiers inline")
		}
	}
	if c.Validator != "" && r.Validator(c.Validator) == nil {
		fail(".validator", "unknown validator %q", c.Validator)
	}
	errs = append(errs, checkFields(c.Fields, c.source, field+".fields")...)
	return errs
}

func (r *Registry) checkModule(m *ModuleTypeDef, shared map[string]bool) []error {
	var errs []error
	field := "modules." + m.Name
	fail := func(f, format string, args ...any) {
		errs = append(errs, &LoadError{File: m.source, Field: field + f, Message: fmt.Sprintf(format, args...)})
	}

	if m.FilePattern == "" && m.LocationPattern == "" {
		fail("", "file_pattern or location_pattern is required")
	}
	if m.FilePattern != "" && !doublestar.ValidatePattern(m.FilePattern) {
		fail(".file_pattern", "invalid pattern %q", m.FilePattern)
	}
	if m.LocationPattern != "" && !doublestar.ValidatePattern(m.LocationPattern) {
		fail(".location_pattern", "invalid pattern %q", m.LocationPattern)
	}
	if m.ID != nil {
		errs = append(errs, checkIdentifier(m.ID, m.source, field+".id", LocationTitle, LocationTitle, LocationMetadata)...)
	}
	errs = append(errs, checkFields(m.Metadata, m.source, field+".metadata")...)

	private := make(map[string]bool)
	for i, c := range m.Classes {
		c.source = m.source
		if strings.TrimSpace(c.Name) == "" {
			fail(fmt.Sprintf(".classes[%d].name", i), "class has no name")
			continue
		}
		if private[c.Name] {
			fail(fmt.Sprintf(".classes[%d].name", i), "duplicate class %q", c.Name)
			continue
		}
		private[c.Name] = true
		errs = append(errs, r.checkClass(c, field+".classes."+c.Name)...)
	}

	for i := range m.Sections {
		s := &m.Sections[i]
		sf := fmt.Sprintf(".sections[%d]", i)
		switch {
		case s.Heading == "" && s.Pattern == "":
			fail(sf, "heading or pattern is required")
		case s.Pattern != "":
			re, err := regexp.Compile(s.Pattern)
			if err != nil {
				fail(sf+".pattern", "invalid regex: %v", err)
			} else {
				s.re = re
			}
		}
		if s.Level < 0 || s.Level > 6 {
			fail(sf+".level", "heading level %d out of range 0-6", s.Level)
		}
		for _, name := range s.AllowedClasses {
			if !private[name] && !shared[name] {
				fail(sf+".allowed_classes", "unknown class %q", name)
			}
		}
		if s.RequireClasses && len(s.AllowedClasses) == 0 {
			fail(sf+".require_classes", "requires allowed_classes")
		}
		if s.ClassCardinality != nil {
			if err := checkCardinality(*s.ClassCardinality); err != "" {
				fail(sf+".class_cardinality", "%s", err)
			}
		}
		if s.Validator != "" && r.Validator(s.Validator) == nil {
			fail(sf+".validator", "unknown validator %q", s.Validator)
		}
	}

	refNames := make(map[string]bool)
	for i := range m.References {
		ref := &m.References[i]
		rf := fmt.Sprintf(".references[%d]", i)
		if ref.Name == "" {
			fail(rf+".name", "reference has no name")
		} else if refNames[ref.Name] {
			fail(rf+".name", "duplicate reference %q", ref.Name)
		}
		refNames[ref.Name] = true

		if ref.Kind == "" {
			switch {
			case ref.TargetClass != "":
				ref.Kind = LinkClass
			default:
				ref.Kind = LinkModule
			}
		}
		switch ref.Kind {
		case LinkModule, LinkClass, LinkExternal:
		default:
			fail(rf+".kind", "unknown link kind %q", ref.Kind)
		}
		if ref.Kind == LinkExternal && (ref.TargetModule != "" || ref.TargetClass != "") {
			fail(rf+".kind", "external references cannot name a target type")
		}
		if ref.TargetModule != "" && r.Module(ref.TargetModule) == nil {
			fail(rf+".target_module", "unknown module type %q", ref.TargetModule)
		}
		if ref.TargetClass != "" && !r.classExists(ref.TargetClass) {
			fail(rf+".target_class", "unknown class type %q", ref.TargetClass)
		}
		if err := checkCardinality(ref.Cardinality); err != "" {
			fail(rf+".cardinality", "%s", err)
		}
	}
	return errs
}

func checkIdentifier(id *IdentifierSpec, src, field string, def Location, allowed ...Location) []error {
	var errs []error
	fail := func(f, format string, args ...any) {
		errs = append(errs, &LoadError{File: src, Field: field + f, Message: fmt.Sprintf(format, args...)})
	}
	if id.Pattern == "" {
		fail(".pattern", "identifier pattern is required")
	} else if err := id.compile(); err != nil {
		fail(".pattern", "invalid regex: %v", err)
	}
	if id.Location == "" {
		id.Location = def
	}
	ok := false
	for _, l := range allowed {
		ok = ok || id.Location == l
	}
	if !ok {
		fail(".location", "location %q not allowed here", id.Location)
	}
	if id.Location == LocationMetadata && id.Field == "" {
		fail(".field", "metadata identifiers need a field name")
	}
	if id.Scope == "" {
		id.Scope = ScopeGlobal
	}
	if !id.Scope.valid() {
		fail(".scope", "unknown scope %q", id.Scope)
	}
	return errs
}

func checkFields(fields []FieldSpec, src, field string) []error {
	var errs []error
	for i := range fields {
		f := &fields[i]
		if f.Name == "" {
			errs = append(errs, &LoadError{File: src, Field: fmt.Sprintf("%s[%d].name", field, i), Message: "field has no name"})
			continue
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				errs = append(errs, &LoadError{File: src, Field: fmt.Sprintf("%s.%s.pattern", field, f.Name), Message: "invalid regex: " + err.Error()})
				continue
			}
			f.re = re
		}
	}
	return errs
}

func checkCardinality(c Cardinality) string {
	if c.Min < 0 {
		return fmt.Sprintf("min %d is negative", c.Min)
	}
	if c.Max != nil && *c.Max < c.Min {
		return fmt.Sprintf("max %d is less than min %d", *c.Max, c.Min)
	}
	return ""
}

// Modules returns every module type, sorted by name.
func (r *Registry) Modules() []*ModuleTypeDef {
	return r.modules
}

// SharedClasses returns the classes available to every module, sorted by name.
func (r *Registry) SharedClasses() []*ClassTypeDef {
	return r.shared
}

// Validators returns the declared content validators, sorted by name.
func (r *Registry) Validators() []*ContentValidatorDef {
	out := make([]*ContentValidatorDef, 0, len(r.validators))
	for _, name := range sortedKeys(r.validators) {
		out = append(out, r.validators[name])
	}
	return out
}

// Module returns the module type with the given name, or nil.
func (r *Registry) Module(name string) *ModuleTypeDef {
	for _, m := range r.modules {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Validator returns the named validator. A bare grammar name resolves to
// that grammar with default settings.
func (r *Registry) Validator(name string) *ContentValidatorDef {
	if v, ok := r.validators[name]; ok {
		return v
	}
	switch Grammar(name) {
	case GrammarEARS:
		return &ContentValidatorDef{Name: name, Grammar: GrammarEARS, Modal: "shall"}
	case GrammarGherkin:
		return &ContentValidatorDef{Name: name, Grammar: GrammarGherkin}
	}
	return nil
}

// MatchingModules returns every module type whose patterns match the
// slash-separated relative path.
func (r *Registry) MatchingModules(relPath string) []*ModuleTypeDef {
	relPath = strings.TrimPrefix(path.Clean(relPath), "./")
	var out []*ModuleTypeDef
	for _, m := range r.modules {
		if m.FilePattern != "" {
			if ok, _ := doublestar.Match(m.FilePattern, path.Base(relPath)); !ok {
				continue
			}
		}
		if m.LocationPattern != "" {
			if ok, _ := doublestar.Match(m.LocationPattern, relPath); !ok {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// MatchModule returns the single module type matching relPath, nil when
// none does, or an *AmbiguousTypeError when several do.
func (r *Registry) MatchModule(relPath string) (*ModuleTypeDef, error) {
	matches := r.MatchingModules(relPath)
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Name
	}
	return nil, &AmbiguousTypeError{Path: relPath, Matches: names}
}

// Classes returns the classes visible to m: its private classes in
// declaration order, then shared classes not shadowed by a private one.
func (r *Registry) Classes(m *ModuleTypeDef) []*ClassTypeDef {
	out := make([]*ClassTypeDef, 0, len(m.Classes)+len(r.shared))
	private := make(map[string]bool, len(m.Classes))
	for _, c := range m.Classes {
		private[c.Name] = true
		out = append(out, c)
	}
	for _, c := range r.shared {
		if !private[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// Class resolves a class name in m's scope, private classes first.
func (r *Registry) Class(m *ModuleTypeDef, name string) *ClassTypeDef {
	for _, c := range r.Classes(m) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// MatchClass returns the first heading class visible to m whose heading
// pattern matches title, or nil.
func (r *Registry) MatchClass(m *ModuleTypeDef, title string) *ClassTypeDef {
	for _, c := range r.Classes(m) {
		if c.MatchesHeading(title) {
			return c
		}
	}
	return nil
}

// MatchInline returns the first inline class visible to m whose identifier
// pattern fully matches id, or nil.
func (r *Registry) MatchInline(m *ModuleTypeDef, id string) *ClassTypeDef {
	for _, c := range r.Classes(m) {
		if c.Inline && c.ID.Matches(id) {
			return c
		}
	}
	return nil
}

// LooksLikeModuleID reports whether s fully matches any module identifier pattern.
func (r *Registry) LooksLikeModuleID(s string) bool {
	for _, m := range r.modules {
		if m.ID != nil && m.ID.Matches(s) {
			return true
		}
	}
	return false
}

func (r *Registry) classExists(name string) bool {
	for _, c := range r.shared {
		if c.Name == name {
			return true
		}
	}
	for _, m := range r.modules {
		for _, c := range m.Classes {
			if c.Name == name {
				return true
			}
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
