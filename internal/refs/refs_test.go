package refs

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/speclint/internal/doctree"
	"github.com/dgallion1/speclint/internal/ids"
	"github.com/dgallion1/speclint/internal/parser"
	"github.com/dgallion1/speclint/internal/report"
	"github.com/dgallion1/speclint/internal/schema"
)

const testSchema = `
kind: module
name: Feature
location_pattern: 'features/**'
id:
  pattern: 'FEAT-\d+'
references:
  - name: depends_on
    target_module: Feature
    cardinality: {min: 1, max: 1}
    sections: [Dependencies]
  - name: decided_by
    target_module: ADR
    sections: [Dependencies]
  - name: parent
    target_module: Feature
    sections: [Parent]
  - name: criteria
    kind: class
    target_class: AC
    must_exist: false
classes:
  - name: AC
    heading_pattern: '^AC-\d+'
    id:
      pattern: 'AC-\d+'
      scope: module
---
kind: module
name: ADR
location_pattern: 'adr/**'
id:
  pattern: 'ADR-\d+'
`

type fixture struct {
	reg      *schema.Registry
	feature  *schema.ModuleTypeDef
	ids      *ids.Registry
	docs     map[string]Target
	resolver *Resolver
}

func newFixture(t *testing.T, opts ...ResolverOption) *fixture {
	t.Helper()
	reg, err := schema.LoadFS(fstest.MapFS{"s.yaml": {Data: []byte(testSchema)}})
	require.NoError(t, err)

	idr := ids.NewRegistry()
	for _, e := range []ids.Entry{
		{ID: "FEAT-001", File: "features/a.md", Line: 1, Kind: ids.EntityModule, TypeName: "Feature"},
		{ID: "FEAT-002", File: "features/b.md", Line: 1, Kind: ids.EntityModule, TypeName: "Feature"},
		{ID: "ADR-001", File: "adr/one.md", Line: 1, Kind: ids.EntityModule, TypeName: "ADR"},
		{ID: "AC-1", Scope: schema.ScopeModule, File: "features/b.md", Line: 9, Kind: ids.EntityClass, TypeName: "AC"},
	} {
		require.NoError(t, idr.Register(e))
	}
	idr.Freeze()

	docs := map[string]Target{
		"features/a.md": {Module: "Feature", Anchors: map[string]bool{"feat-001-login": true, "dependencies": true}},
		"features/b.md": {Module: "Feature", Anchors: map[string]bool{}},
		"adr/one.md":    {Module: "ADR", Anchors: map[string]bool{}},
		"docs/guide.md": {Anchors: map[string]bool{"setup": true}},
	}
	return &fixture{
		reg:      reg,
		feature:  reg.Module("Feature"),
		ids:      idr,
		docs:     docs,
		resolver: NewResolver(idr, docs, opts...),
	}
}

func (f *fixture) extract(t *testing.T, file, src string) []Reference {
	t.Helper()
	res, err := parser.NewMarkdownParser().Parse([]byte(src), file)
	require.NoError(t, err)
	return NewExtractor(f.reg).Extract(file, doctree.Build(res.Nodes), f.feature)
}

func messages(errs []report.ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, string(e.Severity)+": "+e.Message)
	}
	return out
}

const featureDoc = `# FEAT-001: Login

See [guide](../docs/guide.md) and [site](https://example.com).

## Dependencies

- [b](FEAT-002)
- [adr](../adr/one.md)
- [crit](FEAT-002#AC-1)
- [local](#dependencies)
`

func TestExtract_Kinds(t *testing.T) {
	f := newFixture(t)
	refs := f.extract(t, "features/a.md", featureDoc)
	require.Len(t, refs, 6)

	tests := []struct {
		kind       schema.LinkKind
		moduleID   string
		path       string
		fragment   string
		candidates []string
	}{
		{schema.LinkModule, "", "docs/guide.md", "", nil},
		{schema.LinkExternal, "", "", "", nil},
		{schema.LinkModule, "FEAT-002", "", "", []string{"depends_on", "decided_by"}},
		{schema.LinkModule, "", "adr/one.md", "", []string{"depends_on", "decided_by"}},
		{schema.LinkClass, "FEAT-002", "", "AC-1", []string{"criteria"}},
		{schema.LinkClass, "", "", "dependencies", []string{"criteria"}},
	}
	for i, tt := range tests {
		r := refs[i]
		assert.Equal(t, tt.kind, r.Kind, "ref %d", i)
		assert.Equal(t, tt.moduleID, r.ModuleID, "ref %d", i)
		assert.Equal(t, tt.path, r.Path, "ref %d", i)
		assert.Equal(t, tt.fragment, r.Fragment, "ref %d", i)
		assert.Equal(t, tt.candidates, r.Candidates, "ref %d", i)
		assert.Equal(t, Pending, r.Outcome, "ref %d", i)
	}
	assert.Equal(t, []string{"FEAT-001: Login", "Dependencies"}, refs[2].SectionPath)
	assert.Equal(t, 7, refs[2].Line)
}

func TestResolve_AllResolved(t *testing.T) {
	f := newFixture(t)
	refs := f.extract(t, "features/a.md", featureDoc)

	resolved, errs := f.resolver.Resolve("features/a.md", refs, f.feature, 1)
	assert.Empty(t, messages(errs))

	want := []struct {
		relationship string
		targetFile   string
		targetType   string
	}{
		{"", "docs/guide.md", ""},
		{"", "", ""},
		{"depends_on", "features/b.md", "Feature"},
		{"decided_by", "adr/one.md", "ADR"},
		{"criteria", "features/b.md", "AC"},
		{"criteria", "features/a.md", ""},
	}
	for i, w := range want {
		r := resolved[i]
		assert.Equal(t, Resolved, r.Outcome, "ref %d", i)
		assert.Equal(t, w.relationship, r.Relationship, "ref %d", i)
		assert.Equal(t, w.targetFile, r.TargetFile, "ref %d", i)
		assert.Equal(t, w.targetType, r.TargetType, "ref %d", i)
	}
}

func TestResolve_MissingFileUnderRelationship(t *testing.T) {
	f := newFixture(t)
	refs := f.extract(t, "features/a.md", "# FEAT-001\n\n## Dependencies\n\n[text](./missing-file.md)\n")

	resolved, errs := f.resolver.Resolve("features/a.md", refs, f.feature, 1)
	assert.Equal(t, []string{
		`error: relationship "depends_on": target not found: ./missing-file.md`,
		`error: relationship "depends_on": found 0 references, expected 1-1`,
	}, messages(errs))
	assert.Equal(t, report.CategoryReference, errs[0].Category)
	assert.Equal(t, 5, errs[0].Line)
	assert.Equal(t, report.CategoryStructure, errs[1].Category)
	assert.Equal(t, Unresolved, resolved[0].Outcome)
}

func TestResolve_CardinalityWithoutReferences(t *testing.T) {
	f := newFixture(t)
	_, errs := f.resolver.Resolve("features/a.md", nil, f.feature, 1)
	require.Len(t, errs, 1)
	assert.Equal(t, report.CategoryStructure, errs[0].Category)
	assert.Equal(t, `relationship "depends_on": found 0 references, expected 1-1`, errs[0].Message)
}

func TestResolve_TooMany(t *testing.T) {
	f := newFixture(t)
	refs := f.extract(t, "features/a.md", "# FEAT-001\n\n## Dependencies\n\n- [b](FEAT-002)\n- [b again](./b.md)\n")
	_, errs := f.resolver.Resolve("features/a.md", refs, f.feature, 1)
	assert.Equal(t, []string{`error: relationship "depends_on": found 2 references, expected 1-1`}, messages(errs))
}

func TestResolve_TypeMismatch(t *testing.T) {
	f := newFixture(t)
	refs := f.extract(t, "features/a.md", "# FEAT-001\n\n## Dependencies\n\n[b](FEAT-002)\n\n## Parent\n\n[p](ADR-001)\n")
	resolved, errs := f.resolver.Resolve("features/a.md", refs, f.feature, 1)
	assert.Equal(t, []string{"error: type mismatch: ADR-001 is ADR (parent expects Feature)"}, messages(errs))
	assert.Equal(t, TypeMismatch, resolved[1].Outcome)
}

func TestResolve_AmbiguousTargetExistsOnly(t *testing.T) {
	f := newFixture(t)
	f.docs["docs/both.md"] = Target{Ambiguous: true, Anchors: map[string]bool{}}
	resolver := NewResolver(f.ids, f.docs)

	refs := f.extract(t, "features/a.md", "# FEAT-001\n\n## Dependencies\n\n[both](../docs/both.md)\n")
	resolved, errs := resolver.Resolve("features/a.md", refs, f.feature, 1)

	require.Len(t, resolved, 1)
	assert.Equal(t, Resolved, resolved[0].Outcome)
	assert.Equal(t, "docs/both.md", resolved[0].TargetFile)
	assert.Empty(t, resolved[0].Relationship)
	assert.Equal(t, []string{`error: relationship "depends_on": found 0 references, expected 1-1`}, messages(errs))
}

func TestResolve_Suggestions(t *testing.T) {
	f := newFixture(t)
	refs := f.extract(t, "features/a.md",
		"# FEAT-001\n\nRead [g](../docs/gide.md).\n\n## Dependencies\n\n[b](FEAT-002)\n[c](FEAT-003)\n")
	_, errs := f.resolver.Resolve("features/a.md", refs, f.feature, 1)
	assert.Equal(t, []string{
		"warning: broken link: target not found: ../docs/gide.md (did you mean docs/guide.md?)",
		`error: relationship "depends_on": target not found: FEAT-003 (did you mean FEAT-001, FEAT-002?)`,
	}, messages(errs))
}

func TestResolve_ClassFragments(t *testing.T) {
	f := newFixture(t)
	src := "# FEAT-001\n\n## Dependencies\n\n[b](FEAT-002)\n\n" +
		"- [ok](./b.md#AC-1)\n- [gone](FEAT-002#AC-7)\n- [anchor](../docs/guide.md#setup)\n- [nowhere](FEAT-404#AC-1)\n"
	refs := f.extract(t, "features/a.md", src)
	resolved, errs := f.resolver.Resolve("features/a.md", refs, f.feature, 1)

	assert.Equal(t, Resolved, resolved[1].Outcome)
	assert.Equal(t, "AC", resolved[1].TargetType)
	assert.Equal(t, Unresolved, resolved[2].Outcome)
	assert.Equal(t, Resolved, resolved[3].Outcome)
	assert.Equal(t, Unresolved, resolved[4].Outcome)
	// criteria has must_exist: false, so misses are warnings.
	assert.Equal(t, []string{
		`warning: relationship "criteria": target not found: FEAT-002#AC-7 (did you mean AC-1?)`,
		`warning: relationship "criteria": target not found: FEAT-404 (did you mean FEAT-001, FEAT-002?)`,
	}, messages(errs))
}

func TestResolve_ExternalAndFiles(t *testing.T) {
	f := newFixture(t,
		WithLinkResults(map[string]error{
			"https://ok.example":   nil,
			"https://dead.example": errors.New("status 404"),
		}),
		WithFileExists(func(p string) bool { return p == "features/diagram.png" }),
	)
	refs := f.extract(t, "features/a.md",
		"# FEAT-001\n\n[a](https://ok.example) [b](https://dead.example) [c](https://unknown.example) ![x](./diagram.png) [d](./diagram.png)\n\n## Dependencies\n\n[b](FEAT-002)\n")
	resolved, errs := f.resolver.Resolve("features/a.md", refs, f.feature, 1)

	assert.Equal(t, []string{"warning: broken link: external link unreachable: https://dead.example (status 404)"}, messages(errs))
	var outcomes []string
	for _, r := range resolved {
		outcomes = append(outcomes, string(r.Outcome))
	}
	assert.Equal(t, "resolved,unreachable,resolved,resolved,resolved", strings.Join(outcomes, ","))
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		source, target, want string
	}{
		{"features/a.md", "./b.md", "features/b.md"},
		{"features/a.md", "../adr/one.md", "adr/one.md"},
		{"features/a.md", "/docs/guide.md", "docs/guide.md"},
		{"readme.md", "docs/My%20Guide.md", "docs/My Guide.md"},
		{"features/sub/a.md", "../../x.md", "x.md"},
	}
	for _, tt := range tests {
		if got := ResolvePath(tt.source, tt.target); got != tt.want {
			t.Errorf("ResolvePath(%q, %q): expected %q, got %q", tt.source, tt.target, tt.want, got)
		}
	}
}
