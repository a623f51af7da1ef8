package schema

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MultiDocument(t *testing.T) {
	src := `
kind: validator
name: strict-ears
grammar: ears
modal: SHALL
---
---
kind: class
name: Note
heading_pattern: '^Note'
`
	defs, err := Parse("multi.yaml", []byte(src))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, KindValidator, defs[0].DefKind())
	assert.Equal(t, "strict-ears", defs[0].DefName())
	assert.Equal(t, "multi.yaml", defs[0].Source())
	assert.Equal(t, KindClass, defs[1].DefKind())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing kind", "name: x\n", "missing kind"},
		{"unknown kind", "kind: widget\nname: x\n", `unknown kind "widget"`},
		{"unknown field", "kind: class\nname: x\nheading: y\n", "field heading not found"},
		{"not a mapping", "- a\n- b\n", "definition must be a mapping"},
		{"bad yaml", "kind: [\n", "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "bad.yaml")
		})
	}
}

func TestLoadFS_ModalNormalized(t *testing.T) {
	reg, err := LoadFS(fstest.MapFS{
		"v.yml":         {Data: []byte("kind: validator\nname: loud\ngrammar: ears\nmodal: SHALL\n")},
		"m.yaml":        {Data: []byte("kind: module\nname: M\nfile_pattern: '*.md'\n")},
		"README.md":     {Data: []byte("ignored")},
		"sub/c.yaml":    {Data: []byte("kind: class\nname: C\nheading_pattern: '^C'\n")},
		"sub/empty.yml": {Data: []byte("")},
	})
	require.NoError(t, err)
	assert.Equal(t, "shall", reg.Validator("loud").Modal)
	assert.Len(t, reg.SharedClasses(), 1)
}

func TestLoadFS_Empty(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"README.md": {Data: []byte("x")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema definitions found")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.yaml"),
		[]byte("kind: module\nname: Note\nlocation_pattern: 'notes/**'\n"), 0o644))

	reg, err := LoadDir(dir)
	require.NoError(t, err)
	require.NotNil(t, reg.Module("Note"))

	_, err = LoadDir(filepath.Join(dir, "missing"))
	require.Error(t, err)

	_, err = LoadDir(filepath.Join(dir, "m.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
