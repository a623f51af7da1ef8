package refs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/dgallion1/speclint/internal/ids"
	"github.com/dgallion1/speclint/internal/report"
	"github.com/dgallion1/speclint/internal/schema"
)

const (
	maxSuggestions  = 5
	maxPathDistance = 3
)

// Target describes a document that links may point at.
type Target struct {
	// Module is the assigned module type name; empty for Unmanaged files,
	// which resolve on existence only.
	Module string
	// Anchors are the heading anchors of the document.
	Anchors map[string]bool
	// Ambiguous documents matched several module types. Links to them
	// resolve on existence but never count toward a typed relationship.
	Ambiguous bool
}

// Resolver resolves references. It only reads shared state, so one
// Resolver serves every document concurrently.
type Resolver struct {
	ids    *ids.Registry
	docs   map[string]Target
	paths  []string
	exists func(string) bool
	links  map[string]error
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFileExists resolves links to non-document files through fn.
func WithFileExists(fn func(path string) bool) ResolverOption {
	return func(r *Resolver) { r.exists = fn }
}

// WithLinkResults supplies reachability results for external URLs. A nil
// error means reachable; URLs absent from the map are not judged.
func WithLinkResults(results map[string]error) ResolverOption {
	return func(r *Resolver) { r.links = results }
}

// NewResolver builds a resolver over a frozen identifier registry and the
// documents known to the run.
func NewResolver(reg *ids.Registry, docs map[string]Target, opts ...ResolverOption) *Resolver {
	r := &Resolver{ids: reg, docs: docs}
	for _, o := range opts {
		o(r)
	}
	r.paths = make([]string, 0, len(docs))
	for p := range docs {
		r.paths = append(r.paths, p)
	}
	sort.Strings(r.paths)
	return r
}

// Resolve resolves the references of one document and, when module is
// set, checks the cardinality of each of its relationships. titleLine
// positions the cardinality findings.
func (r *Resolver) Resolve(file string, refs []Reference, module *schema.ModuleTypeDef, titleLine int) ([]Reference, []report.ValidationError) {
	var out []report.ValidationError
	resolved := make([]Reference, len(refs))
	counts := make(map[string]int)

	for i, ref := range refs {
		out = append(out, r.resolveOne(&ref, module)...)
		if ref.Relationship != "" {
			counts[ref.Relationship]++
		}
		resolved[i] = ref
	}
	if module == nil {
		return resolved, out
	}

	for i := range module.References {
		spec := &module.References[i]
		if n := counts[spec.Name]; !spec.Cardinality.Allows(n) {
			out = append(out, report.Errorf(report.CategoryStructure, file, titleLine, 1,
				"relationship %q: found %d references, expected %s", spec.Name, n, spec.Cardinality))
		}
	}
	return resolved, out
}

func (r *Resolver) resolveOne(ref *Reference, module *schema.ModuleTypeDef) []report.ValidationError {
	var notFound string
	var suggestions []string

	switch {
	case ref.Kind == schema.LinkExternal:
		if err, checked := r.links[ref.Raw]; checked && err != nil {
			ref.Outcome = Unreachable
			return r.missing(ref, module, fmt.Sprintf("external link unreachable: %s (%v)", ref.Raw, err))
		}
		ref.Outcome = Resolved

	case ref.Kind == schema.LinkClass:
		file, ok := r.fragmentScope(ref)
		if !ok {
			notFound, suggestions = r.scopeTarget(ref), r.suggest(ref)
			break
		}
		ref.TargetFile = file
		if ref.Fragment == "" {
			ref.Outcome = Resolved
			ref.TargetType = r.docs[file].Module
			break
		}
		if e, ok := r.ids.LookupIn(file, ref.Fragment); ok && e.Kind == ids.EntityClass {
			ref.Outcome = Resolved
			ref.TargetType = e.TypeName
			break
		}
		doc, isDoc := r.docs[file]
		if !isDoc || doc.Anchors[strings.ToLower(ref.Fragment)] {
			// Anchors of non-document files cannot be checked.
			ref.Outcome = Resolved
			break
		}
		notFound = ref.Raw
		suggestions = r.ids.Similar(ref.Fragment, maxSuggestions)

	case ref.ModuleID != "":
		if e, ok := r.moduleEntry(ref.ModuleID); ok {
			ref.Outcome = Resolved
			ref.TargetFile = e.File
			ref.TargetType = e.TypeName
			break
		}
		notFound, suggestions = ref.ModuleID, r.ids.Similar(ref.ModuleID, maxSuggestions)

	default:
		if doc, ok := r.docs[ref.Path]; ok {
			ref.Outcome = Resolved
			ref.TargetFile = ref.Path
			ref.TargetType = doc.Module
			break
		}
		if r.exists != nil && r.exists(ref.Path) {
			ref.Outcome = Resolved
			ref.TargetFile = ref.Path
			break
		}
		notFound, suggestions = ref.Raw, r.nearPaths(ref.Path)
	}

	if notFound != "" {
		ref.Outcome = Unresolved
		msg := "target not found: " + notFound
		if len(suggestions) > 0 {
			msg += " (did you mean " + strings.Join(suggestions, ", ") + "?)"
		}
		return r.missing(ref, module, msg)
	}
	return r.assign(ref, module)
}

// assign picks the relationship a resolved reference expresses. Untyped
// targets satisfy any candidate, except ambiguous documents, which only
// satisfy untyped ones.
func (r *Resolver) assign(ref *Reference, module *schema.ModuleTypeDef) []report.ValidationError {
	if len(ref.Candidates) == 0 || module == nil {
		return nil
	}
	ambiguous := ref.TargetType == "" && r.docs[ref.TargetFile].Ambiguous
	var expected []string
	for _, name := range ref.Candidates {
		spec := module.Reference(name)
		want := spec.Target()
		if want == "" || want == ref.TargetType || (ref.TargetType == "" && !ambiguous) {
			ref.Relationship = name
			return nil
		}
		expected = append(expected, fmt.Sprintf("%s expects %s", name, want))
	}
	if ambiguous {
		return nil
	}
	ref.Outcome = TypeMismatch
	return []report.ValidationError{report.Errorf(report.CategoryReference, ref.Source, ref.Line, ref.Column,
		"type mismatch: %s is %s (%s)", ref.Raw, ref.TargetType, strings.Join(expected, "; "))}
}

// missing reports an unresolved reference. Links that express a
// relationship follow its must_exist setting; other links are warnings.
func (r *Resolver) missing(ref *Reference, module *schema.ModuleTypeDef, msg string) []report.ValidationError {
	if module != nil && len(ref.Candidates) > 0 {
		spec := module.Reference(ref.Candidates[0])
		if spec.RequiresExistence() {
			return []report.ValidationError{report.Errorf(report.CategoryReference, ref.Source, ref.Line, ref.Column,
				"relationship %q: %s", spec.Name, msg)}
		}
		return []report.ValidationError{report.Warnf(report.CategoryReference, ref.Source, ref.Line, ref.Column,
			"relationship %q: %s", spec.Name, msg)}
	}
	return []report.ValidationError{report.Warnf(report.CategoryReference, ref.Source, ref.Line, ref.Column,
		"broken link: %s", msg)}
}

// fragmentScope returns the file a fragment is looked up in.
func (r *Resolver) fragmentScope(ref *Reference) (string, bool) {
	switch {
	case ref.ModuleID != "":
		e, ok := r.moduleEntry(ref.ModuleID)
		return e.File, ok
	case ref.Path != "":
		if _, ok := r.docs[ref.Path]; ok {
			return ref.Path, true
		}
		return ref.Path, r.exists != nil && r.exists(ref.Path)
	}
	return ref.Source, true
}

func (r *Resolver) scopeTarget(ref *Reference) string {
	if ref.ModuleID != "" {
		return ref.ModuleID
	}
	return ref.Raw
}

func (r *Resolver) suggest(ref *Reference) []string {
	if ref.ModuleID != "" {
		return r.ids.Similar(ref.ModuleID, maxSuggestions)
	}
	return r.nearPaths(ref.Path)
}

func (r *Resolver) moduleEntry(id string) (ids.Entry, bool) {
	for _, e := range r.ids.Lookup(id) {
		if e.Kind == ids.EntityModule {
			return e, true
		}
	}
	return ids.Entry{}, false
}

// nearPaths returns known document paths within a small edit distance of p.
func (r *Resolver) nearPaths(p string) []string {
	type scored struct {
		path string
		dist int
	}
	var near []scored
	for _, candidate := range r.paths {
		if d := levenshtein.Distance(p, candidate, nil); d <= maxPathDistance {
			near = append(near, scored{candidate, d})
		}
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].dist < near[j].dist })
	if len(near) > maxSuggestions {
		near = near[:maxSuggestions]
	}
	out := make([]string, len(near))
	for i, s := range near {
		out[i] = s.path
	}
	return out
}
