package parser

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

type frontmatter struct {
	raw    []byte // YAML between the delimiters
	masked []byte // source with the frontmatter replaced by blank lines
}

// splitFrontmatter detects a leading "---" YAML block. The returned masked
// source keeps every newline so body line numbers stay unchanged.
func splitFrontmatter(src []byte) (frontmatter, bool) {
	var open int
	switch {
	case bytes.HasPrefix(src, []byte("---\n")):
		open = 4
	case bytes.HasPrefix(src, []byte("---\r\n")):
		open = 5
	default:
		return frontmatter{}, false
	}

	rest := src[open:]
	pos := 0
	for pos <= len(rest) {
		end := bytes.IndexByte(rest[pos:], '\n')
		line := rest[pos:]
		if end >= 0 {
			line = rest[pos : pos+end]
		}
		if string(bytes.TrimRight(line, "\r \t")) == "---" {
			stop := open + pos + len(line)
			masked := make([]byte, len(src))
			copy(masked, src)
			for i := 0; i < stop; i++ {
				if masked[i] != '\n' {
					masked[i] = ' '
				}
			}
			return frontmatter{raw: rest[:pos], masked: masked}, true
		}
		if end < 0 {
			break
		}
		pos += end + 1
	}
	return frontmatter{}, false
}

func (f frontmatter) decode() (map[string]any, error) {
	meta := make(map[string]any)
	if len(bytes.TrimSpace(f.raw)) == 0 {
		return meta, nil
	}
	if err := yaml.Unmarshal(f.raw, &meta); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	return meta, nil
}
