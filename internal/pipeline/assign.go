package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/speclint/internal/doctree"
	"github.com/dgallion1/speclint/internal/ids"
	"github.com/dgallion1/speclint/internal/report"
	"github.com/dgallion1/speclint/internal/schema"
)

// inlineLabel matches a line that opens with a bold label, optionally
// behind a list marker: "**REQ-001**: ...".
var inlineLabel = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+][ \t]+|\d+[.)][ \t]+)?\*\*([^*\n]+)\*\*`)

// assignTypes is pass 3. Documents register in path order so the registry
// contents do not depend on scheduling; the registry is frozen afterwards.
func (r *run) assignTypes(ctx context.Context) error {
	byPath := make(map[string]*Document, len(r.docs))
	for _, d := range r.docs {
		byPath[d.Path] = d
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Typed() || d.tree == nil {
			continue
		}
		if r.stopped() {
			break
		}
		r.assignDocument(d)
		_ = d.Advance(StateTypeAssigned)
	}
	r.ids.Freeze()

	for _, dup := range r.ids.Duplicates() {
		first := dup.Occurrences[0]
		locs := make([]string, len(dup.Occurrences))
		for i, o := range dup.Occurrences {
			locs[i] = o.Location()
		}
		f := report.Errorf(report.CategoryIdentifier, first.File, first.Line, first.Column,
			"duplicate identifier %q in %s scope: %s", dup.ID, dup.Scope, strings.Join(locs, ", "))
		if d, ok := byPath[first.File]; ok {
			d.AddError(f)
		} else {
			r.collector.Add(f)
		}
	}
	r.log.Debug("identifiers registered", "entries", r.ids.Len())
	return nil
}

func (r *run) assignDocument(d *Document) {
	m := d.Class.Module
	if m.ID != nil {
		r.assignModuleID(d, m)
	}

	d.tree.Walk(func(i int, s *doctree.Section) {
		if i == d.title {
			return
		}
		c := r.reg.MatchClass(m, s.Title)
		if c == nil {
			return
		}
		inst := Instance{Class: c.Name, Section: i, Block: -1, Line: s.Line, Column: s.Column}
		if c.ID != nil {
			inst.ID = c.ID.Find(s.Title)
			if inst.ID == "" && !c.ID.Optional {
				d.AddError(report.Errorf(report.CategoryIdentifier, d.Path, s.Line, s.Column,
					"%s heading %q has no identifier matching %s", c.Name, s.Title, c.ID.Pattern))
			}
			if inst.ID != "" {
				s.ID = inst.ID
				r.register(d, c.ID.Scope, inst, s.Parent, ids.EntityClass, c.Name)
			}
		}
		d.instances = append(d.instances, inst)
	})

	for i := range d.tree.Sections {
		s := &d.tree.Sections[i]
		for j, n := range s.Content {
			if !n.IsProse() {
				continue
			}
			for _, seg := range r.inlineSegments(m, n) {
				inst := Instance{
					Class: seg.class.Name, Section: i, Block: j, Start: seg.start, End: seg.end,
					ID: seg.label, Line: seg.line, Column: seg.column,
				}
				r.register(d, seg.class.ID.Scope, inst, i, ids.EntityClass, seg.class.Name)
				d.instances = append(d.instances, inst)
			}
		}
	}
}

type labelSegment struct {
	class        *schema.ClassTypeDef
	label        string
	start, end   int
	line, column int
}

// inlineSegments splits a prose block at every line opening with an
// inline class label. Adjacent lines share one paragraph, so a block can
// declare several instances; each owns the text up to the next label.
func (r *run) inlineSegments(m *schema.ModuleTypeDef, n doctree.Node) []labelSegment {
	var segs []labelSegment
	for _, loc := range inlineLabel.FindAllStringSubmatchIndex(n.Text, -1) {
		label := strings.TrimSpace(n.Text[loc[2]:loc[3]])
		c := r.reg.MatchInline(m, label)
		if c == nil {
			continue
		}
		if k := len(segs); k > 0 {
			segs[k-1].end = loc[0]
		}
		line, col := n.Line, n.Column
		if nl := strings.Count(n.Text[:loc[0]], "\n"); nl > 0 {
			rest := n.Text[loc[0]:]
			line += nl
			col = 1 + len(rest) - len(strings.TrimLeft(rest, " \t"))
		}
		segs = append(segs, labelSegment{
			class: c, label: label, start: loc[0], end: len(n.Text), line: line, column: col,
		})
	}
	return segs
}

func (r *run) assignModuleID(d *Document, m *schema.ModuleTypeDef) {
	spec := m.ID
	line, col := 1, 1
	var id string
	switch spec.Location {
	case schema.LocationMetadata:
		if d.parsed.MetaLine > 0 {
			line = d.parsed.MetaLine
		}
		raw, ok := d.parsed.Meta[spec.Field]
		if ok && raw != nil {
			value := strings.TrimSpace(fmt.Sprint(raw))
			if spec.Matches(value) {
				id = value
			} else {
				d.AddError(report.Errorf(report.CategoryIdentifier, d.Path, line, col,
					"metadata field %q value %q does not match %s", spec.Field, value, spec.Pattern))
				return
			}
		}
	default:
		if d.title < 0 {
			if !spec.Optional {
				d.AddError(report.Errorf(report.CategoryIdentifier, d.Path, line, col,
					"document has no title to read the %s identifier from", m.Name))
			}
			return
		}
		t := d.tree.At(d.title)
		line, col = t.Line, t.Column
		id = spec.Find(t.Title)
	}

	if id == "" {
		if !spec.Optional {
			d.AddError(report.Errorf(report.CategoryIdentifier, d.Path, line, col,
				"missing %s identifier matching %s", m.Name, spec.Pattern))
		}
		return
	}
	d.moduleID = id
	if d.title >= 0 {
		d.tree.At(d.title).ID = id
	}
	inst := Instance{Section: max(d.title, doctree.RootIndex), Line: line, Column: col, ID: id}
	r.register(d, spec.Scope, inst, doctree.RootIndex, ids.EntityModule, m.Name)
}

// register adds an identifier; section is the uniqueness bucket for
// section-scoped identifiers. Duplicates are reported after Freeze.
func (r *run) register(d *Document, scope schema.Scope, inst Instance, section int, kind ids.EntityKind, typeName string) {
	var path []string
	if inst.Section > doctree.RootIndex {
		path = d.tree.Path(inst.Section)
	}
	_ = r.ids.Register(ids.Entry{
		ID:          inst.ID,
		Scope:       scope,
		File:        d.Path,
		Section:     section,
		SectionPath: path,
		Line:        inst.Line,
		Column:      inst.Column,
		Kind:        kind,
		TypeName:    typeName,
	})
}
