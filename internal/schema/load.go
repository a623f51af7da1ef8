package schema

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultFS embed.FS

// LoadError is a malformed schema definition. Any LoadError is fatal for
// the run: no document is processed against a partially loaded schema.
type LoadError struct {
	File    string
	Field   string
	Message string
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString(e.File)
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Defaults loads the schema definitions bundled with the binary.
func Defaults() (*Registry, error) {
	sub, err := fs.Sub(defaultFS, "defaults")
	if err != nil {
		return nil, fmt.Errorf("open bundled schemas: %w", err)
	}
	return LoadFS(sub)
}

// LoadDir loads every *.yaml and *.yml file under dir.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{File: dir, Message: err.Error()}
	}
	if !info.IsDir() {
		return nil, &LoadError{File: dir, Message: "not a directory"}
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS loads every schema file in fsys, in lexical path order.
func LoadFS(fsys fs.FS) (*Registry, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(path.Ext(p)) {
		case ".yaml", ".yml":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list schema files: %w", err)
	}
	sort.Strings(files)

	var defs []Definition
	var errs []error
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			errs = append(errs, &LoadError{File: name, Message: err.Error()})
			continue
		}
		parsed, err := Parse(name, data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, parsed...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(defs) == 0 {
		return nil, &LoadError{File: ".", Message: "no schema definitions found"}
	}
	return NewRegistry(defs)
}

// Parse decodes every YAML document in data into a Definition. Each document
// must carry a kind of module, class or validator. Unknown fields are errors.
func Parse(name string, data []byte) ([]Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var defs []Definition
	var errs []error
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &LoadError{File: name, Message: err.Error()}
		}
		if len(doc.Content) == 0 || doc.Content[0].Tag == "!!null" {
			continue
		}
		def, err := decodeDefinition(name, doc.Content[0])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return defs, nil
}

func decodeDefinition(file string, node *yaml.Node) (Definition, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &LoadError{File: file, Message: fmt.Sprintf("line %d: definition must be a mapping", node.Line)}
	}

	var kind string
	body := &yaml.Node{Kind: yaml.MappingNode, Tag: node.Tag}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "kind" {
			kind = node.Content[i+1].Value
			continue
		}
		body.Content = append(body.Content, node.Content[i], node.Content[i+1])
	}

	var def Definition
	switch Kind(kind) {
	case KindModule:
		def = &ModuleTypeDef{source: file}
	case KindClass:
		def = &ClassTypeDef{source: file}
	case KindValidator:
		def = &ContentValidatorDef{source: file}
	case "":
		return nil, &LoadError{File: file, Field: "kind", Message: fmt.Sprintf("line %d: missing kind", node.Line)}
	default:
		return nil, &LoadError{File: file, Field: "kind", Message: fmt.Sprintf("line %d: unknown kind %q", node.Line, kind)}
	}

	// Re-encode without the kind key so unknown fields can be rejected.
	raw, err := yaml.Marshal(body)
	if err != nil {
		return nil, &LoadError{File: file, Message: err.Error()}
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(def); err != nil {
		return nil, &LoadError{File: file, Message: fmt.Sprintf("%s definition at line %d: %v", kind, node.Line, err)}
	}
	return def, nil
}
