package schema

import "strings"

// Description is a one-line listing of a loaded definition.
type Description struct {
	Kind    Kind   `json:"kind"`
	Name    string `json:"name"`
	Module  string `json:"module,omitempty"` // owning module of a private class
	Source  string `json:"source"`
	Summary string `json:"summary"`
}

// Describe lists every definition: modules with their private classes,
// then shared classes, then validators.
func (r *Registry) Describe() []Description {
	var out []Description
	for _, m := range r.Modules() {
		var where []string
		if m.FilePattern != "" {
			where = append(where, "file "+m.FilePattern)
		}
		if m.LocationPattern != "" {
			where = append(where, "location "+m.LocationPattern)
		}
		summary := strings.Join(where, ", ")
		if m.Description != "" {
			summary = m.Description + " (" + summary + ")"
		}
		out = append(out, Description{Kind: KindModule, Name: m.Name, Source: m.Source(), Summary: summary})
		for _, c := range m.Classes {
			out = append(out, describeClass(c, m.Name, m.Source()))
		}
	}
	for _, c := range r.SharedClasses() {
		out = append(out, describeClass(c, "", c.Source()))
	}
	for _, v := range r.Validators() {
		summary := "grammar " + string(v.Grammar)
		if v.Grammar == GrammarEARS {
			summary += ", modal " + v.Modal
		}
		out = append(out, Description{Kind: KindValidator, Name: v.Name, Source: v.Source(), Summary: summary})
	}
	return out
}

func describeClass(c *ClassTypeDef, module, source string) Description {
	summary := "heading " + c.HeadingPattern
	if c.Inline {
		summary = "inline " + c.ID.Pattern
	}
	if c.Description != "" {
		summary = c.Description + " (" + summary + ")"
	}
	return Description{Kind: KindClass, Name: c.Name, Module: module, Source: source, Summary: summary}
}
