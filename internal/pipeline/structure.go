package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/speclint/internal/content"
	"github.com/dgallion1/speclint/internal/doctree"
	"github.com/dgallion1/speclint/internal/report"
	"github.com/dgallion1/speclint/internal/schema"
)

// fieldLine matches "Name: value" at the start of a line once bold markers
// are removed.
var fieldLine = regexp.MustCompile(`^\s*(?:[-*+]\s+)?([A-Za-z][\w -]*?)\s*:\s*(.*)$`)

// checkStructure is pass 4: metadata, expected sections, class placement
// and class fields.
func (r *run) checkStructure(d *Document) {
	if !d.Typed() || d.CurrentState() < StateTypeAssigned {
		return
	}
	m := d.Class.Module
	r.checkMetadata(d, m)
	r.matchSections(d, m)
	r.checkClasses(d, m)
	_ = d.Advance(StateStructurallyValidated)
}

func (r *run) checkMetadata(d *Document, m *schema.ModuleTypeDef) {
	if d.parsed.MetaErr != nil {
		d.AddError(report.Errorf(report.CategoryStructure, d.Path, d.parsed.MetaLine, 1, "invalid frontmatter: %v", d.parsed.MetaErr))
		return
	}
	line := max(d.parsed.MetaLine, 1)
	for i := range m.Metadata {
		f := &m.Metadata[i]
		raw, ok := d.parsed.Meta[f.Name]
		if !ok || raw == nil {
			if f.Required {
				d.AddError(report.Errorf(report.CategoryStructure, d.Path, line, 1, "missing metadata field %q", f.Name))
			}
			continue
		}
		if value := strings.TrimSpace(fmt.Sprint(raw)); !f.Accepts(value) {
			d.AddError(report.Errorf(report.CategoryStructure, d.Path, line, 1,
				"metadata field %q value %q does not match %s", f.Name, value, f.Pattern))
		}
	}
}

// matchSections pairs each SectionSpec with the first unclaimed section
// that matches it, then reports missing, misordered and unexpected sections.
func (r *run) matchSections(d *Document, m *schema.ModuleTypeDef) {
	tree := d.tree
	d.matched = make([]int, len(m.Sections))
	claimed := make(map[int]bool)
	for si := range m.Sections {
		spec := &m.Sections[si]
		d.matched[si] = -1
		tree.Walk(func(i int, s *doctree.Section) {
			if d.matched[si] >= 0 || claimed[i] || i == d.title {
				return
			}
			if spec.Matches(s.Title, s.Level) {
				d.matched[si] = i
				claimed[i] = true
			}
		})
	}

	at := d.titlePos()
	prev := -1
	for si, idx := range d.matched {
		spec := &m.Sections[si]
		if idx < 0 {
			if spec.Required {
				d.AddError(report.Errorf(report.CategoryStructure, d.Path, at.Line, at.Column,
					"missing required section %q", spec.Name()))
			}
			continue
		}
		if prev >= 0 && idx < d.matched[prev] {
			s := tree.At(idx)
			d.AddError(report.Errorf(report.CategoryStructure, d.Path, s.Line, s.Column,
				"section %q is out of order: expected after %q", s.Title, tree.At(d.matched[prev]).Title))
			continue
		}
		prev = si
	}

	if !m.StrictSections {
		return
	}
	instance := make(map[int]bool)
	for _, inst := range d.instances {
		if inst.Block < 0 {
			instance[inst.Section] = true
		}
	}
	parent := d.title
	if parent < 0 {
		parent = doctree.RootIndex
	}
	for _, child := range tree.At(parent).Children {
		if claimed[child] || instance[child] {
			continue
		}
		s := tree.At(child)
		d.AddError(report.Errorf(report.CategoryStructure, d.Path, s.Line, s.Column, "unexpected section %q", s.Title))
	}
}

// specFor returns the SectionSpec index whose matched section contains
// section i, or -1.
func (d *Document) specFor(i int) int {
	best, bestLevel := -1, -1
	for si, idx := range d.matched {
		if idx < 0 || !d.tree.IsWithin(i, idx) {
			continue
		}
		if l := d.tree.At(idx).Level; l > bestLevel {
			best, bestLevel = si, l
		}
	}
	return best
}

func (r *run) checkClasses(d *Document, m *schema.ModuleTypeDef) {
	counts := make([]int, len(m.Sections))
	for _, inst := range d.instances {
		c := r.reg.Class(m, inst.Class)
		if c == nil {
			continue
		}
		label := inst.ID
		if label == "" {
			label = c.Name
		}
		if inst.Block < 0 {
			if s := d.tree.At(inst.Section); !c.AllowsLevel(s.Level) {
				d.AddError(report.Errorf(report.CategoryStructure, d.Path, inst.Line, inst.Column,
					"%s: heading level %d not allowed for %s (allowed %v)", label, s.Level, c.Name, c.Levels))
			}
		}

		container := inst.Section
		if inst.Block < 0 {
			container = d.tree.At(inst.Section).Parent
		}
		if si := d.specFor(container); si >= 0 {
			spec := &m.Sections[si]
			if spec.Allows(c.Name) {
				counts[si]++
			} else {
				d.AddError(report.Errorf(report.CategoryStructure, d.Path, inst.Line, inst.Column,
					"%s: class %s not allowed in section %q", label, c.Name, spec.Name()))
			}
		}
		r.checkFields(d, c, inst, label)
	}

	for si, idx := range d.matched {
		spec := &m.Sections[si]
		if idx < 0 {
			continue
		}
		s := d.tree.At(idx)
		if spec.RequireClasses && counts[si] == 0 {
			d.AddError(report.Errorf(report.CategoryStructure, d.Path, s.Line, s.Column,
				"section %q: at least one %s required", s.Title, strings.Join(spec.AllowedClasses, " or ")))
		}
		if spec.ClassCardinality != nil && !spec.ClassCardinality.Allows(counts[si]) {
			d.AddError(report.Errorf(report.CategoryStructure, d.Path, s.Line, s.Column,
				"section %q: found %d class instances, expected %s", s.Title, counts[si], spec.ClassCardinality))
		}
	}
}

// checkFields looks for "Name: value" lines in the instance's own content.
func (r *run) checkFields(d *Document, c *schema.ClassTypeDef, inst Instance, label string) {
	if len(c.Fields) == 0 {
		return
	}
	values := make(map[string]string)
	for _, b := range d.instanceBlocks(inst) {
		for _, line := range strings.Split(b.Text, "\n") {
			m := fieldLine.FindStringSubmatch(strings.ReplaceAll(line, "**", ""))
			if m == nil {
				continue
			}
			name := strings.ToLower(strings.TrimSpace(m[1]))
			if _, seen := values[name]; !seen {
				values[name] = strings.TrimSpace(m[2])
			}
		}
	}
	for i := range c.Fields {
		f := &c.Fields[i]
		value, ok := values[strings.ToLower(f.Name)]
		switch {
		case !ok && f.Required:
			d.AddError(report.Errorf(report.CategoryStructure, d.Path, inst.Line, inst.Column,
				"%s: missing field %q", label, f.Name))
		case ok && !f.Accepts(value):
			d.AddError(report.Errorf(report.CategoryStructure, d.Path, inst.Line, inst.Column,
				"%s: field %q value %q does not match %s", label, f.Name, value, f.Pattern))
		}
	}
}

// instanceBlocks returns the prose an instance owns: the declaring block
// for inline classes, the section's direct prose for heading classes.
func (d *Document) instanceBlocks(inst Instance) []content.Block {
	s := d.tree.At(inst.Section)
	if inst.Block >= 0 {
		n := s.Content[inst.Block]
		text := n.Text
		if inst.End > inst.Start && inst.End <= len(text) {
			text = text[inst.Start:inst.End]
		}
		return []content.Block{{Text: strings.TrimSpace(text), Line: inst.Line, Column: inst.Column}}
	}
	return proseBlocks(s, nil)
}

// proseBlocks returns the section's paragraphs and list items, minus the
// indices in skip.
func proseBlocks(s *doctree.Section, skip map[int]bool) []content.Block {
	var out []content.Block
	for j, n := range s.Content {
		if !n.IsProse() || skip[j] {
			continue
		}
		out = append(out, content.Block{Text: n.Text, Line: n.Line, Column: n.Column})
	}
	return out
}

type position struct{ Line, Column int }

// titlePos is where document-level findings are reported.
func (d *Document) titlePos() position {
	if d.title >= 0 {
		t := d.tree.At(d.title)
		return position{t.Line, t.Column}
	}
	return position{1, 1}
}

// checkContent is pass 5: class validators on their instances, section
// validators on the remaining prose of their sections.
func (r *run) checkContent(d *Document) {
	if !d.Typed() || d.CurrentState() < StateStructurallyValidated {
		return
	}
	m := d.Class.Module

	validated := make(map[int]map[int]bool)
	for _, inst := range d.instances {
		c := r.reg.Class(m, inst.Class)
		if c == nil || c.Validator == "" {
			continue
		}
		if inst.Block >= 0 {
			if validated[inst.Section] == nil {
				validated[inst.Section] = make(map[int]bool)
			}
			validated[inst.Section][inst.Block] = true
		}
		v := r.validators.Get(c.Validator)
		if v == nil {
			continue
		}
		label := inst.ID
		if label == "" {
			label = c.Name
		}
		d.AddError(v.Validate(content.Target{
			File:   d.Path,
			Line:   inst.Line,
			Column: inst.Column,
			Label:  label,
			Blocks: d.instanceBlocks(inst),
		})...)
	}

	for si, idx := range d.matched {
		spec := &m.Sections[si]
		if idx < 0 || spec.Validator == "" {
			continue
		}
		v := r.validators.Get(spec.Validator)
		if v == nil {
			continue
		}
		s := d.tree.At(idx)
		blocks := proseBlocks(s, validated[idx])
		if len(blocks) == 0 {
			continue
		}
		d.AddError(v.Validate(content.Target{
			File:   d.Path,
			Line:   s.Line,
			Column: s.Column,
			Label:  s.Title,
			Blocks: blocks,
		})...)
	}
	_ = d.Advance(StateContentValidated)
}
