package parser

import (
	"strings"

	"golang.org/x/net/html"
)

type htmlLink struct {
	href string
	text string
}

// htmlLinks returns the anchors with an href found in a raw HTML fragment.
func htmlLinks(fragment string) []htmlLink {
	if !strings.Contains(strings.ToLower(fragment), "<a") {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var links []htmlLink
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && strings.TrimSpace(attr.Val) != "" {
					links = append(links, htmlLink{href: strings.TrimSpace(attr.Val), text: textContent(n)})
					break
				}
			}
		}
		// Skip non-content elements.
		switch n.Data {
		case "script", "style", "code", "pre":
			if n.Type == html.ElementNode {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}
