package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/speclint/internal/doctree"
)

// Result is the parsed form of one document: its positioned node stream
// plus any frontmatter metadata.
type Result struct {
	Nodes []doctree.Node
	Meta  map[string]any

	// MetaErr is set when a frontmatter block exists but is not valid YAML.
	MetaErr error
	// MetaLine is the line of the opening frontmatter delimiter, 0 if absent.
	MetaLine int
}

// Parser converts raw document bytes into positioned syntax nodes.
type Parser interface {
	Parse(src []byte, filename string) (*Result, error)
}

// SupportedExtensions lists file extensions this tool can validate.
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return NewMarkdownParser(), nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}
