package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/speclint/internal/doctree"
)

func parse(t *testing.T, input string) *Result {
	t.Helper()
	res, err := NewMarkdownParser().Parse([]byte(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res
}

func kinds(nodes []doctree.Node) []doctree.NodeKind {
	out := make([]doctree.NodeKind, len(nodes))
	for i, n := range nodes {
		out[i] = n.Kind
	}
	return out
}

func TestMarkdownParser_HeadingPositions(t *testing.T) {
	input := `# Title

Intro text.

## Section A

### Subsection A1
`
	res := parse(t, input)

	var headings []doctree.Node
	for _, n := range res.Nodes {
		if n.Kind == doctree.KindHeading {
			headings = append(headings, n)
		}
	}
	if len(headings) != 3 {
		t.Fatalf("expected 3 headings, got %d", len(headings))
	}

	want := []struct {
		level int
		text  string
		line  int
	}{
		{1, "Title", 1},
		{2, "Section A", 5},
		{3, "Subsection A1", 7},
	}
	for i, w := range want {
		h := headings[i]
		if h.Level != w.level || h.Text != w.text || h.Line != w.line {
			t.Errorf("heading %d: expected (%d, %q, line %d), got (%d, %q, line %d)",
				i, w.level, w.text, w.line, h.Level, h.Text, h.Line)
		}
	}
}

func TestMarkdownParser_ParagraphRawText(t *testing.T) {
	res := parse(t, "# Doc\n\n**REQ-001**: The system shall log in.\n")

	var para *doctree.Node
	for i := range res.Nodes {
		if res.Nodes[i].Kind == doctree.KindParagraph {
			para = &res.Nodes[i]
		}
	}
	if para == nil {
		t.Fatal("expected a paragraph node")
	}
	if para.Text != "**REQ-001**: The system shall log in." {
		t.Errorf("expected raw markdown text, got %q", para.Text)
	}
	if para.Line != 3 || para.Column != 1 {
		t.Errorf("expected position 3:1, got %d:%d", para.Line, para.Column)
	}
}

func TestMarkdownParser_ListItems(t *testing.T) {
	res := parse(t, "- first item\n- second [link](./other.md)\n")

	got := kinds(res.Nodes)
	want := []doctree.NodeKind{doctree.KindListItem, doctree.KindListItem, doctree.KindLink}
	if len(got) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("node %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if res.Nodes[1].Text != "second [link](./other.md)" {
		t.Errorf("expected raw list item text, got %q", res.Nodes[1].Text)
	}
	link := res.Nodes[2]
	if link.Dest != "./other.md" || link.Text != "link" {
		t.Errorf("expected link to ./other.md with text link, got %q -> %q", link.Text, link.Dest)
	}
	if link.Line != 2 {
		t.Errorf("expected link on line 2, got %d", link.Line)
	}
}

func TestMarkdownParser_CodeFenceIsOpaque(t *testing.T) {
	input := "# Doc\n\n```markdown\n## Not a heading\n**REQ-999**: fake\n[x](./nowhere.md)\n```\n\nAfter.\n"
	res := parse(t, input)

	for _, n := range res.Nodes {
		if n.Kind == doctree.KindHeading && n.Text != "Doc" {
			t.Errorf("heading inside fence leaked: %q", n.Text)
		}
		if n.Kind == doctree.KindLink {
			t.Errorf("link inside fence leaked: %q", n.Dest)
		}
	}

	var code *doctree.Node
	for i := range res.Nodes {
		if res.Nodes[i].Kind == doctree.KindCodeBlock {
			code = &res.Nodes[i]
		}
	}
	if code == nil {
		t.Fatal("expected a code block node")
	}
	if !code.IsCode() || code.CodeDepth != 1 {
		t.Errorf("expected code depth 1, got %d", code.CodeDepth)
	}
	if code.Line != 3 {
		t.Errorf("expected code block to start at the fence on line 3, got %d", code.Line)
	}
	if !strings.Contains(code.Text, "**REQ-999**") {
		t.Errorf("expected fence content preserved, got %q", code.Text)
	}
}

func TestMarkdownParser_InlineCodeLinkIgnored(t *testing.T) {
	res := parse(t, "Use `[x](./a.md)` literally, or see [real](./b.md).\n")
	var dests []string
	for _, n := range res.Nodes {
		if n.Kind == doctree.KindLink {
			dests = append(dests, n.Dest)
		}
	}
	if len(dests) != 1 || dests[0] != "./b.md" {
		t.Errorf("expected only ./b.md, got %v", dests)
	}
}

func TestMarkdownParser_AutolinkAndHTML(t *testing.T) {
	input := "See https://example.com/docs for details.\n\n<div><a href=\"./raw.md\">raw</a></div>\n"
	res := parse(t, input)

	var dests []string
	for _, n := range res.Nodes {
		if n.Kind == doctree.KindLink {
			dests = append(dests, n.Dest)
		}
	}
	if len(dests) != 2 {
		t.Fatalf("expected 2 links, got %v", dests)
	}
	if dests[0] != "https://example.com/docs" {
		t.Errorf("expected autolink first, got %q", dests[0])
	}
	if dests[1] != "./raw.md" {
		t.Errorf("expected html anchor second, got %q", dests[1])
	}
}

func TestMarkdownParser_Frontmatter(t *testing.T) {
	input := "---\nid: FEAT-001\nstatus: draft\n---\n# Title\n\nBody.\n"
	res := parse(t, input)

	if res.MetaErr != nil {
		t.Fatalf("unexpected frontmatter error: %v", res.MetaErr)
	}
	if res.Meta["id"] != "FEAT-001" || res.Meta["status"] != "draft" {
		t.Errorf("unexpected metadata: %v", res.Meta)
	}
	if len(res.Nodes) == 0 || res.Nodes[0].Kind != doctree.KindHeading {
		t.Fatalf("expected heading first, got %v", kinds(res.Nodes))
	}
	if res.Nodes[0].Line != 5 {
		t.Errorf("expected heading to keep line 5, got %d", res.Nodes[0].Line)
	}
}

func TestMarkdownParser_BadFrontmatter(t *testing.T) {
	res := parse(t, "---\nid: [unclosed\n---\n# Title\n")
	if res.MetaErr == nil {
		t.Error("expected frontmatter error")
	}
	if res.MetaLine != 1 {
		t.Errorf("expected frontmatter line 1, got %d", res.MetaLine)
	}
}

func TestMarkdownParser_Table(t *testing.T) {
	input := "| ID | Link |\n|----|------|\n| A | [b](./b.md) |\n"
	res := parse(t, input)
	if len(res.Nodes) != 2 {
		t.Fatalf("expected table and link, got %v", kinds(res.Nodes))
	}
	if res.Nodes[0].Kind != doctree.KindTable {
		t.Errorf("expected table node, got %q", res.Nodes[0].Kind)
	}
	if !strings.Contains(res.Nodes[0].Text, "A | b") {
		t.Errorf("expected flattened row text, got %q", res.Nodes[0].Text)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	res := parse(t, "")
	if len(res.Nodes) != 0 {
		t.Errorf("expected 0 nodes for empty input, got %d", len(res.Nodes))
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"readme.md", false},
		{"notes.markdown", false},
		{"NOTES.MD", false},
		{"report.pdf", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.filename)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q): expected error=%v, got %v", tt.filename, tt.wantErr, err)
		}
		if IsSupportedExtension(tt.filename) == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q): expected %v", tt.filename, !tt.wantErr)
		}
	}
}
