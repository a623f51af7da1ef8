package parser

import (
	"bytes"
	"sort"
	"strings"

	"github.com/dgallion1/speclint/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct {
	md goldmark.Markdown
}

// NewMarkdownParser returns a parser with GFM tables and autolinks enabled.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (p *MarkdownParser) Parse(src []byte, filename string) (*Result, error) {
	res := &Result{}
	body := src
	if fm, ok := splitFrontmatter(src); ok {
		res.MetaLine = 1
		res.Meta, res.MetaErr = fm.decode()
		body = fm.masked
	}

	doc := p.md.Parser().Parse(text.NewReader(body))
	w := &walker{src: body, lines: lineStarts(body)}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n)
	}
	res.Nodes = w.nodes
	return res, nil
}

type walker struct {
	src   []byte
	lines []int
	nodes []doctree.Node
	last  int // offset of the most recent positioned node
}

func (w *walker) block(n ast.Node) {
	switch node := n.(type) {
	case *ast.Heading:
		start, end := w.span(node)
		line, _ := w.position(start)
		endLine, endCol := w.position(end)
		w.emit(doctree.Node{
			Kind:      doctree.KindHeading,
			Level:     node.Level,
			Text:      strings.TrimSpace(inlineText(node, w.src)),
			Line:      line,
			Column:    1,
			EndLine:   endLine,
			EndColumn: endCol,
		})
		w.links(node, start)

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		start, end := w.span(node)
		line, col := w.position(start)
		if _, fenced := node.(*ast.FencedCodeBlock); fenced && line > 1 {
			line, col = line-1, 1
		}
		endLine, endCol := w.position(end)
		w.emit(doctree.Node{
			Kind:      doctree.KindCodeBlock,
			Text:      string(node.Lines().Value(w.src)),
			Line:      line,
			Column:    col,
			EndLine:   endLine,
			EndColumn: endCol,
			CodeDepth: 1,
		})

	case *ast.List:
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			w.prose(item, doctree.KindListItem)
		}

	case *ast.Paragraph, *ast.TextBlock:
		w.prose(node, doctree.KindParagraph)

	case *ast.Blockquote:
		w.prose(node, doctree.KindBlockquote)

	case *extast.Table:
		start, end := w.span(node)
		line, col := w.position(start)
		endLine, endCol := w.position(end)
		w.emit(doctree.Node{
			Kind:      doctree.KindTable,
			Text:      tableText(node, w.src),
			Line:      line,
			Column:    col,
			EndLine:   endLine,
			EndColumn: endCol,
		})
		w.links(node, start)

	case *ast.HTMLBlock:
		start, end := w.span(node)
		line, col := w.position(start)
		endLine, endCol := w.position(end)
		raw := string(node.Lines().Value(w.src))
		w.emit(doctree.Node{
			Kind:      doctree.KindHTML,
			Text:      raw,
			Line:      line,
			Column:    col,
			EndLine:   endLine,
			EndColumn: endCol,
		})
		for _, l := range htmlLinks(raw) {
			w.emit(doctree.Node{Kind: doctree.KindLink, Text: l.text, Dest: l.href, Line: line, Column: col})
		}

	case *ast.ThematicBreak:
		// No content.

	default:
		w.prose(node, doctree.KindParagraph)
	}
}

// prose emits a text block with its raw Markdown, then the links inside it.
func (w *walker) prose(n ast.Node, kind doctree.NodeKind) {
	start, end := w.span(n)
	line, col := w.position(start)
	endLine, endCol := w.position(end)
	w.emit(doctree.Node{
		Kind:      kind,
		Text:      strings.TrimSpace(rawText(n, w.src)),
		Line:      line,
		Column:    col,
		EndLine:   endLine,
		EndColumn: endCol,
	})
	w.links(n, start)
}

// links emits a link node for every link in n's subtree. Code blocks nested
// inside n are skipped.
func (w *walker) links(n ast.Node, fallback int) {
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch l := c.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.CodeSpan:
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			off := fallback
			if seg, ok := firstSegment(l); ok {
				off = seg.Start - 1
			}
			line, col := w.position(off)
			w.emit(doctree.Node{
				Kind:   doctree.KindLink,
				Text:   strings.TrimSpace(inlineText(l, w.src)),
				Dest:   string(l.Destination),
				Line:   line,
				Column: col,
			})
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			line, col := w.position(fallback)
			w.emit(doctree.Node{
				Kind:   doctree.KindLink,
				Text:   string(l.Label(w.src)),
				Dest:   string(l.URL(w.src)),
				Line:   line,
				Column: col,
			})
		case *ast.RawHTML:
			off := fallback
			if l.Segments.Len() > 0 {
				off = l.Segments.At(0).Start
			}
			line, col := w.position(off)
			for _, hl := range htmlLinks(string(l.Segments.Value(w.src))) {
				w.emit(doctree.Node{Kind: doctree.KindLink, Text: hl.text, Dest: hl.href, Line: line, Column: col})
			}
		}
		return ast.WalkContinue, nil
	})
}

func (w *walker) emit(n doctree.Node) {
	w.nodes = append(w.nodes, n)
}

// span returns the offsets of the first and last byte covered by n, falling
// back to the last known position for nodes without segments.
func (w *walker) span(n ast.Node) (int, int) {
	start, ok := firstSegment(n)
	if !ok {
		return w.last, w.last
	}
	end, _ := lastSegment(n)
	w.last = start.Start
	stop := end.Stop - 1
	if stop < start.Start {
		stop = start.Start
	}
	return start.Start, stop
}

// position converts a byte offset to a 1-based line and column.
func (w *walker) position(off int) (int, int) {
	if off < 0 {
		off = 0
	}
	i := sort.Search(len(w.lines), func(i int) bool { return w.lines[i] > off }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, off - w.lines[i] + 1
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func firstSegment(n ast.Node) (text.Segment, bool) {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(0), true
	}
	switch t := n.(type) {
	case *ast.Text:
		return t.Segment, true
	case *ast.RawHTML:
		if t.Segments.Len() > 0 {
			return t.Segments.At(0), true
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if seg, ok := firstSegment(c); ok {
			return seg, true
		}
	}
	return text.Segment{}, false
}

func lastSegment(n ast.Node) (text.Segment, bool) {
	for c := n.LastChild(); c != nil; c = c.PreviousSibling() {
		if seg, ok := lastSegment(c); ok {
			return seg, true
		}
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(n.Lines().Len() - 1), true
	}
	if t, ok := n.(*ast.Text); ok {
		return t.Segment, true
	}
	return text.Segment{}, false
}

// rawText returns the source lines of every non-code block under n.
func rawText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			return ast.WalkSkipChildren, nil
		}
		if c.Type() == ast.TypeBlock && c.Lines().Len() > 0 {
			if _, isHTML := c.(*ast.HTMLBlock); !isHTML && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			lines := c.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(bytes.TrimRight(seg.Value(src), "\r\n"))
				if i < lines.Len()-1 {
					buf.WriteByte('\n')
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// tableText renders a table as one line per row with cells joined by " | ".
func tableText(n ast.Node, src []byte) string {
	var rows []string
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(inlineText(cell, src)))
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return strings.Join(rows, "\n")
}

// inlineText gets the plain text of a node's inline children.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			// Recurse for nested inlines.
			buf.WriteString(inlineText(c, src))
		}
	}
	return buf.String()
}
