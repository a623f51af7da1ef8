package doctree

import (
	"strconv"
	"strings"
)

// NodeKind identifies the shape of a positioned syntax node.
type NodeKind string

const (
	KindHeading    NodeKind = "heading"
	KindParagraph  NodeKind = "paragraph"
	KindListItem   NodeKind = "list_item"
	KindCodeBlock  NodeKind = "code_block"
	KindTable      NodeKind = "table"
	KindBlockquote NodeKind = "blockquote"
	KindHTML       NodeKind = "html"
	KindLink       NodeKind = "link"
)

// Node is one positioned syntax node produced by the Markdown adapter.
// Lines and columns are 1-based.
type Node struct {
	Kind      NodeKind
	Level     int    // Heading level (1-6), 0 otherwise.
	Text      string // Plain text for headings and links, raw Markdown for blocks.
	Dest      string // Link destination.
	Line      int
	Column    int
	EndLine   int
	EndColumn int
	CodeDepth int // > 0 for fenced or indented code.
}

// IsCode reports whether the node is opaque code content.
func (n Node) IsCode() bool {
	return n.CodeDepth > 0 || n.Kind == KindCodeBlock
}

// IsProse reports whether the node is a paragraph or list item outside code.
func (n Node) IsProse() bool {
	return !n.IsCode() && (n.Kind == KindParagraph || n.Kind == KindListItem)
}

// RootIndex is the arena index of the implicit level-0 document root.
const RootIndex = 0

// Section is one heading-delimited section stored in a Tree arena.
type Section struct {
	Level    int
	Title    string
	ID       string // Identifier assigned during type assignment, if any.
	Line     int
	Column   int
	Content  []Node
	Children []int
	Parent   int // -1 for the root.
}

// Tree is the section arena for one document. Sections[RootIndex] is the root.
type Tree struct {
	Sections []Section
}

// Root returns the document root section.
func (t *Tree) Root() *Section {
	return &t.Sections[RootIndex]
}

// At returns the section at index i.
func (t *Tree) At(i int) *Section {
	return &t.Sections[i]
}

// Len returns the number of sections including the root.
func (t *Tree) Len() int {
	return len(t.Sections)
}

// Title returns the text and index of the first level-1 heading, or ("", -1).
func (t *Tree) Title() (string, int) {
	for i := 1; i < len(t.Sections); i++ {
		if t.Sections[i].Level == 1 {
			return t.Sections[i].Title, i
		}
	}
	return "", -1
}

// Path returns the heading titles from the top-level section down to i.
func (t *Tree) Path(i int) []string {
	var path []string
	for i > RootIndex {
		s := t.Sections[i]
		path = append(path, s.Title)
		i = s.Parent
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// IsWithin reports whether section i is ancestor or one of its descendants.
func (t *Tree) IsWithin(i, ancestor int) bool {
	for i >= 0 {
		if i == ancestor {
			return true
		}
		i = t.Sections[i].Parent
	}
	return false
}

// Walk visits sections in document order, skipping the root.
func (t *Tree) Walk(fn func(i int, s *Section)) {
	for i := 1; i < len(t.Sections); i++ {
		fn(i, &t.Sections[i])
	}
}

// Anchors returns the GitHub-style heading anchors present in the tree.
func (t *Tree) Anchors() map[string]bool {
	anchors := make(map[string]bool)
	seen := make(map[string]int)
	t.Walk(func(_ int, s *Section) {
		slug := Slug(s.Title)
		if n := seen[slug]; n > 0 {
			anchors[slug+"-"+strconv.Itoa(n)] = true
		} else {
			anchors[slug] = true
		}
		seen[slug]++
	})
	return anchors
}

// Slug converts heading text to its anchor form: lower case, punctuation
// dropped, spaces replaced with hyphens.
func Slug(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r == ' ':
			b.WriteByte('-')
		case r == '-' || r == '_':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			b.WriteRune(r)
		}
	}
	return b.String()
}
