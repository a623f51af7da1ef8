package doctree

import "testing"

func heading(level int, text string, line int) Node {
	return Node{Kind: KindHeading, Level: level, Text: text, Line: line, Column: 1}
}

func para(text string, line int) Node {
	return Node{Kind: KindParagraph, Text: text, Line: line, Column: 1}
}

func TestBuild_HeadingHierarchy(t *testing.T) {
	tree := Build([]Node{
		heading(1, "Title", 1),
		para("Intro text.", 3),
		heading(2, "Section A", 5),
		para("Section A content.", 7),
		heading(3, "Subsection A1", 9),
		heading(2, "Section B", 11),
	})

	if tree.Len() != 5 {
		t.Fatalf("expected 5 sections including root, got %d", tree.Len())
	}
	root := tree.Root()
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 top-level child, got %d", len(root.Children))
	}

	h1 := tree.At(root.Children[0])
	if h1.Title != "Title" {
		t.Errorf("expected h1 title %q, got %q", "Title", h1.Title)
	}
	if len(h1.Content) != 1 || h1.Content[0].Text != "Intro text." {
		t.Errorf("expected h1 content to be the intro paragraph, got %+v", h1.Content)
	}
	if len(h1.Children) != 2 {
		t.Fatalf("expected 2 h2 children, got %d", len(h1.Children))
	}

	secA := tree.At(h1.Children[0])
	if secA.Title != "Section A" || len(secA.Children) != 1 {
		t.Errorf("expected Section A with one child, got %q with %d", secA.Title, len(secA.Children))
	}
	sub := tree.At(secA.Children[0])
	if sub.Parent != h1.Children[0] {
		t.Errorf("expected subsection parent %d, got %d", h1.Children[0], sub.Parent)
	}

	secB := tree.At(h1.Children[1])
	if secB.Title != "Section B" {
		t.Errorf("expected %q, got %q", "Section B", secB.Title)
	}
}

func TestBuild_ChildLevelsStrictlyGreater(t *testing.T) {
	tree := Build([]Node{
		heading(2, "A", 1),
		heading(4, "A.deep", 2),
		heading(3, "A.mid", 3),
		heading(1, "Top", 4),
		heading(2, "Top.A", 5),
		heading(2, "Top.B", 6),
	})

	for i := 0; i < tree.Len(); i++ {
		s := tree.At(i)
		for _, c := range s.Children {
			if tree.At(c).Level <= s.Level {
				t.Errorf("section %q (level %d) has child %q at level %d",
					s.Title, s.Level, tree.At(c).Title, tree.At(c).Level)
			}
		}
	}

	// A.mid closes A.deep and is a sibling under A.
	a := tree.At(tree.Root().Children[0])
	if len(a.Children) != 2 {
		t.Fatalf("expected A to have 2 children, got %d", len(a.Children))
	}
	if len(tree.Root().Children) != 2 {
		t.Errorf("expected 2 root children (A and Top), got %d", len(tree.Root().Children))
	}
}

func TestBuild_CodeNodesAreOpaque(t *testing.T) {
	tree := Build([]Node{
		heading(1, "Doc", 1),
		{Kind: KindHeading, Level: 2, Text: "Fake", Line: 3, CodeDepth: 1},
		{Kind: KindCodeBlock, Text: "## Not a heading\n**REQ-999**: nope", Line: 4, CodeDepth: 1},
	})

	if tree.Len() != 2 {
		t.Fatalf("expected only root and h1, got %d sections", tree.Len())
	}
	doc := tree.At(1)
	if len(doc.Content) != 2 {
		t.Errorf("expected code nodes kept as content, got %d", len(doc.Content))
	}
}

func TestBuild_ContentBeforeFirstHeading(t *testing.T) {
	tree := Build([]Node{
		para("Preamble.", 1),
		heading(1, "Doc", 3),
	})
	if len(tree.Root().Content) != 1 {
		t.Errorf("expected preamble on root, got %d nodes", len(tree.Root().Content))
	}
}

func TestBuild_Empty(t *testing.T) {
	tree := Build(nil)
	if tree.Len() != 1 {
		t.Errorf("expected only the root section, got %d", tree.Len())
	}
	if title, idx := tree.Title(); title != "" || idx != -1 {
		t.Errorf("expected no title, got %q at %d", title, idx)
	}
}

func TestTree_PathAndWithin(t *testing.T) {
	tree := Build([]Node{
		heading(1, "Doc", 1),
		heading(2, "Requirements", 2),
		heading(3, "REQ-1", 3),
		heading(2, "Other", 4),
	})

	path := tree.Path(3)
	want := []string{"Doc", "Requirements", "REQ-1"}
	if len(path) != len(want) {
		t.Fatalf("expected path %v, got %v", want, path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("path[%d]: expected %q, got %q", i, want[i], path[i])
		}
	}
	if !tree.IsWithin(3, 2) {
		t.Error("expected REQ-1 to be within Requirements")
	}
	if tree.IsWithin(4, 2) {
		t.Error("expected Other not to be within Requirements")
	}
}

func TestSlugAndAnchors(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Overview", "overview"},
		{"What Changes?", "what-changes"},
		{"AC-001: Login works", "ac-001-login-works"},
		{"  snake_case Title ", "snake_case-title"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}

	tree := Build([]Node{heading(2, "Notes", 1), heading(2, "Notes", 2)})
	anchors := tree.Anchors()
	if !anchors["notes"] || !anchors["notes-1"] {
		t.Errorf("expected notes and notes-1 anchors, got %v", anchors)
	}
}
