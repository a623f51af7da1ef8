// Package refs extracts typed references from section trees and resolves
// them against the identifier registry and the known document set.
package refs

import (
	"net/url"
	"path"
	"strings"

	"github.com/dgallion1/speclint/internal/doctree"
	"github.com/dgallion1/speclint/internal/schema"
)

// Outcome is the resolution state of a reference.
type Outcome string

const (
	Pending      Outcome = "pending"
	Resolved     Outcome = "resolved"
	Unresolved   Outcome = "unresolved"
	TypeMismatch Outcome = "type_mismatch"
	Unreachable  Outcome = "unreachable"
)

// Reference is one link found in a document.
type Reference struct {
	Source      string          `json:"source"`
	Section     int             `json:"section"`
	SectionPath []string        `json:"section_path,omitempty"`
	Text        string          `json:"text"`
	Raw         string          `json:"raw"`
	Kind        schema.LinkKind `json:"kind"`
	Line        int             `json:"line"`
	Column      int             `json:"column"`

	// Parsed target. ModuleID is set for identifier links, Path for
	// file links (relative to the document root), Fragment after '#'.
	ModuleID string `json:"module_id,omitempty"`
	Path     string `json:"path,omitempty"`
	Fragment string `json:"fragment,omitempty"`

	// Candidates are the relationships of the source module this link may
	// express, in declaration order.
	Candidates []string `json:"candidates,omitempty"`

	Relationship string  `json:"relationship,omitempty"`
	Outcome      Outcome `json:"outcome"`
	TargetFile   string  `json:"target_file,omitempty"`
	TargetType   string  `json:"target_type,omitempty"`
}

// Extractor turns link nodes into references.
type Extractor struct {
	reg *schema.Registry
}

func NewExtractor(reg *schema.Registry) *Extractor {
	return &Extractor{reg: reg}
}

// Extract returns every reference in tree, in document order. module may be
// nil, in which case no candidates are attached.
func (x *Extractor) Extract(file string, tree *doctree.Tree, module *schema.ModuleTypeDef) []Reference {
	var out []Reference
	for i := range tree.Sections {
		sec := &tree.Sections[i]
		var secPath []string
		if i != doctree.RootIndex {
			secPath = tree.Path(i)
		}
		for _, n := range sec.Content {
			if n.Kind != doctree.KindLink || n.IsCode() || strings.TrimSpace(n.Dest) == "" {
				continue
			}
			ref := x.parse(file, n.Dest)
			ref.Section = i
			ref.SectionPath = secPath
			ref.Text = n.Text
			ref.Line = n.Line
			ref.Column = n.Column
			if module != nil {
				ref.Candidates = candidates(module, ref.Kind, secPath)
			}
			out = append(out, ref)
		}
	}
	return out
}

// parse classifies a raw link target by its shape.
func (x *Extractor) parse(source, raw string) Reference {
	raw = strings.TrimSpace(raw)
	ref := Reference{Source: source, Raw: raw, Outcome: Pending}

	if strings.Contains(raw, "://") || strings.HasPrefix(strings.ToLower(raw), "mailto:") {
		ref.Kind = schema.LinkExternal
		return ref
	}

	target := raw
	if i := strings.IndexByte(target, '#'); i >= 0 {
		ref.Kind = schema.LinkClass
		ref.Fragment = target[i+1:]
		target = target[:i]
	} else {
		ref.Kind = schema.LinkModule
	}
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return ref
	}
	if x.reg.LooksLikeModuleID(target) {
		ref.ModuleID = target
		return ref
	}
	ref.Path = ResolvePath(source, target)
	return ref
}

// ResolvePath resolves a link target against the source document's
// directory. A leading slash is relative to the document root.
func ResolvePath(source, target string) string {
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	p := path.Clean(path.Join(path.Dir(source), target))
	return strings.TrimPrefix(p, "./")
}

// candidates lists the module's relationships a link of this kind, found
// under secPath, could express.
func candidates(m *schema.ModuleTypeDef, kind schema.LinkKind, secPath []string) []string {
	var out []string
	for i := range m.References {
		spec := &m.References[i]
		if spec.Kind != kind || !spec.AppliesTo(secPath) {
			continue
		}
		out = append(out, spec.Name)
	}
	return out
}
