package schema

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	reg, err := Defaults()
	require.NoError(t, err)

	names := make([]string, 0, len(reg.Modules()))
	for _, m := range reg.Modules() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"ADR", "Feature"}, names)
	assert.Len(t, reg.SharedClasses(), 1)
	assert.Len(t, reg.Validators(), 2)
}

func TestMatchModule(t *testing.T) {
	reg, err := Defaults()
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{"features/login.md", "Feature"},
		{"features/auth/sso.md", "Feature"},
		{"adr/0001-use-go.md", "ADR"},
		{"docs/readme.md", ""},
		{"features/diagram.png", ""},
	}
	for _, tt := range tests {
		m, err := reg.MatchModule(tt.path)
		require.NoError(t, err, tt.path)
		if tt.want == "" {
			assert.Nil(t, m, tt.path)
			continue
		}
		require.NotNil(t, m, tt.path)
		assert.Equal(t, tt.want, m.Name, tt.path)
	}
}

func TestMatchModule_Ambiguous(t *testing.T) {
	src := `
kind: module
name: Alpha
file_pattern: '*.md'
---
kind: module
name: Beta
location_pattern: 'docs/**'
`
	reg := mustLoad(t, src)

	_, err := reg.MatchModule("docs/a.md")
	var amb *AmbiguousTypeError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, []string{"Alpha", "Beta"}, amb.Matches)
	assert.Contains(t, err.Error(), "docs/a.md matches 2 module types")

	m, err := reg.MatchModule("notes.md")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", m.Name)
}

func TestMatchClass_PrivateShadowsShared(t *testing.T) {
	src := `
kind: class
name: Step
heading_pattern: '^Step'
---
kind: class
name: Note
heading_pattern: '^Note'
---
kind: module
name: Guide
file_pattern: '*.md'
classes:
  - name: Step
    heading_pattern: '^Step \d+'
    levels: [3]
`
	reg := mustLoad(t, src)
	guide := reg.Module("Guide")
	require.NotNil(t, guide)

	c := reg.MatchClass(guide, "Step 1: install")
	require.NotNil(t, c)
	assert.Equal(t, []int{3}, c.Levels, "expected the module-private Step")

	assert.Nil(t, reg.MatchClass(guide, "Step one"), "shared Step is shadowed")
	require.NotNil(t, reg.MatchClass(guide, "Note on caching"))
	assert.Nil(t, reg.MatchClass(guide, "Overview"))
}

func TestMatchInline(t *testing.T) {
	reg, err := Defaults()
	require.NoError(t, err)
	feature := reg.Module("Feature")

	c := reg.MatchInline(feature, "REQ-001")
	require.NotNil(t, c)
	assert.Equal(t, "Requirement", c.Name)
	assert.Nil(t, reg.MatchInline(feature, "REQ-001a"))
	assert.Nil(t, reg.MatchInline(reg.Module("ADR"), "REQ-001"))
}

func TestLooksLikeModuleID(t *testing.T) {
	reg, err := Defaults()
	require.NoError(t, err)

	assert.True(t, reg.LooksLikeModuleID("FEAT-012"))
	assert.True(t, reg.LooksLikeModuleID("ADR-3"))
	assert.False(t, reg.LooksLikeModuleID("REQ-001"))
	assert.False(t, reg.LooksLikeModuleID("./FEAT-012.md"))
}

func TestValidator_GrammarFallback(t *testing.T) {
	reg := mustLoad(t, "kind: module\nname: M\nfile_pattern: '*.md'\n")

	v := reg.Validator("ears")
	require.NotNil(t, v)
	assert.Equal(t, GrammarEARS, v.Grammar)
	assert.Equal(t, "shall", v.Modal)
	assert.Nil(t, reg.Validator("haiku"))
}

func TestNewRegistry_Defaults(t *testing.T) {
	src := `
kind: module
name: M
file_pattern: '*.md'
id:
  pattern: 'M-\d+'
classes:
  - name: Item
    inline: true
    id:
      pattern: 'IT-\d+'
`
	reg := mustLoad(t, src)
	m := reg.Module("M")
	assert.Equal(t, LocationTitle, m.ID.Location)
	assert.Equal(t, ScopeGlobal, m.ID.Scope)
	assert.Equal(t, LocationInline, m.Classes[0].ID.Location)
}

func TestNewRegistry_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "no patterns",
			src:  "kind: module\nname: M\n",
			want: "file_pattern or location_pattern is required",
		},
		{
			name: "bad glob",
			src:  "kind: module\nname: M\nfile_pattern: '[a-'\n",
			want: "invalid pattern",
		},
		{
			name: "bad regex",
			src:  "kind: module\nname: M\nfile_pattern: '*.md'\nid:\n  pattern: '('\n",
			want: "invalid regex",
		},
		{
			name: "unknown scope",
			src:  "kind: module\nname: M\nfile_pattern: '*.md'\nid:\n  pattern: 'M-1'\n  scope: galaxy\n",
			want: `unknown scope "galaxy"`,
		},
		{
			name: "metadata id without field",
			src:  "kind: module\nname: M\nfile_pattern: '*.md'\nid:\n  pattern: 'M-1'\n  location: metadata\n",
			want: "metadata identifiers need a field name",
		},
		{
			name: "section without matcher",
			src:  "kind: module\nname: M\nfile_pattern: '*.md'\nsections:\n  - required: true\n",
			want: "heading or pattern is required",
		},
		{
			name: "unknown allowed class",
			src:  "kind: module\nname: M\nfile_pattern: '*.md'\nsections:\n  - heading: A\n    allowed_classes: [Ghost]\n",
			want: `unknown class "Ghost"`,
		},
		{
			name: "unknown validator",
			src:  "kind: module\nname: M\nfile_pattern: '*.md'\nsections:\n  - heading: A\n    validator: haiku\n",
			want: `unknown validator "haiku"`,
		},
		{
			name: "min above max",
			src:  "kind: module\nname: M\nfile_pattern: '*.md'\nreferences:\n  - name: r\n    cardinality: {min: 2, max: 1}\n",
			want: "max 1 is less than min 2",
		},
		{
			name: "unknown target",
			src:  "kind: module\nname: M\nfile_pattern: '*.md'\nreferences:\n  - name: r\n    target_module: Nope\n",
			want: `unknown module type "Nope"`,
		},
		{
			name: "class level out of range",
			src:  "kind: class\nname: C\nheading_pattern: x\nlevels: [7]\n",
			want: "heading level 7 out of range 1-6",
		},
		{
			name: "inline class without id",
			src:  "kind: class\nname: C\ninline: true\n",
			want: "inline classes require an identifier pattern",
		},
		{
			name: "duplicate module",
			src:  "kind: module\nname: M\nfile_pattern: '*.md'\n---\nkind: module\nname: M\nfile_pattern: '*.txt'\n",
			want: `duplicate module type "M"`,
		},
		{
			name: "unknown grammar",
			src:  "kind: validator\nname: v\ngrammar: haiku\n",
			want: `unknown grammar "haiku"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFS(fstest.MapFS{"s.yaml": {Data: []byte(tt.src)}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var le *LoadError
			assert.True(t, errors.As(err, &le), "expected a *LoadError in %v", err)
		})
	}
}

func TestNewRegistry_CollectsAllErrors(t *testing.T) {
	src := "kind: module\nname: M\nsections:\n  - level: 9\n"
	_, err := LoadFS(fstest.MapFS{"s.yaml": {Data: []byte(src)}})
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "file_pattern or location_pattern is required"))
	assert.True(t, strings.Contains(msg, "heading or pattern is required"))
	assert.True(t, strings.Contains(msg, "out of range 0-6"))
}

func mustLoad(t *testing.T, src string) *Registry {
	t.Helper()
	reg, err := LoadFS(fstest.MapFS{"schema.yaml": {Data: []byte(src)}})
	require.NoError(t, err)
	return reg
}

func TestDescribe(t *testing.T) {
	reg, err := Defaults()
	require.NoError(t, err)

	var names []string
	for _, d := range reg.Describe() {
		names = append(names, string(d.Kind)+":"+d.Name)
	}
	assert.Equal(t, []string{
		"module:ADR",
		"module:Feature",
		"class:Requirement",
		"class:AcceptanceCriterion",
		"validator:ears",
		"validator:given-when-then",
	}, names)

	for _, d := range reg.Describe() {
		if d.Name == "Requirement" {
			assert.Equal(t, "Feature", d.Module)
			assert.Contains(t, d.Summary, `inline REQ-\d+`)
		}
		if d.Name == "ears" {
			assert.Equal(t, "grammar ears, modal shall", d.Summary)
		}
	}
}
