package doctree

// Build converts a flat node sequence into a section arena rooted at an
// implicit level-0 section. Headings open sections; every other node is
// appended to the section on top of the stack. Code nodes never open a
// section, whatever their text looks like.
func Build(nodes []Node) *Tree {
	tree := &Tree{
		Sections: []Section{{Level: 0, Parent: -1, Line: 1, Column: 1}},
	}

	type stackEntry struct {
		index int
		level int
	}
	stack := []stackEntry{{index: RootIndex, level: 0}}

	for _, n := range nodes {
		if n.Kind != KindHeading || n.IsCode() || n.Level < 1 || n.Level > 6 {
			top := stack[len(stack)-1].index
			tree.Sections[top].Content = append(tree.Sections[top].Content, n)
			continue
		}

		// Pop until the top has a strictly lower level.
		for len(stack) > 1 && stack[len(stack)-1].level >= n.Level {
			stack = stack[:len(stack)-1]
		}

		parent := stack[len(stack)-1].index
		idx := len(tree.Sections)
		tree.Sections = append(tree.Sections, Section{
			Level:  n.Level,
			Title:  n.Text,
			Line:   n.Line,
			Column: n.Column,
			Parent: parent,
		})
		tree.Sections[parent].Children = append(tree.Sections[parent].Children, idx)
		stack = append(stack, stackEntry{index: idx, level: n.Level})
	}

	return tree
}
