package parser

import (
	"bytes"
	"fmt"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/dshills/docfind-mcp/pkg/types"
)

// ParseHTML extracts the main article from an HTML page via readability,
// then sections the cleaned content on its heading elements.
func (p *Parser) ParseHTML(sourcePath string, raw []byte) (*types.ParsedDocument, error) {
	article, err := readability.FromReader(bytes.NewReader(raw), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to extract article content: %w", err)
	}

	doc := &types.ParsedDocument{
		SourcePath: sourcePath,
		Title:      article.Title,
	}
	if doc.Title == "" {
		doc.Title = titleFromPath(sourcePath)
	}

	root, err := html.Parse(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse extracted content: %w", err)
	}

	sections := sectionNodes(root, doc.Title)
	for _, s := range sections {
		s.Content = strings.TrimSpace(s.Content)
		if s.Content == "" && s.Heading == doc.Title {
			continue
		}
		doc.Sections = append(doc.Sections, *s)
	}

	return doc, nil
}

// sectionNodes walks the cleaned DOM collecting text between heading
// elements into sections.
func sectionNodes(root *html.Node, fallbackHeading string) []*types.Section {
	var sections []*types.Section
	current := &types.Section{Heading: fallbackHeading}

	var sb strings.Builder
	flush := func() {
		current.Content = sb.String()
		sb.Reset()
		sections = append(sections, current)
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if lvl := headingLevel(n.Data); lvl > 0 {
				flush()
				current = &types.Section{
					Heading: strings.TrimSpace(textContent(n)),
					Level:   lvl,
				}
				return // heading text captured, skip children
			}
		}

		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		// Block elements separate text runs.
		if n.Type == html.ElementNode && isBlockElement(n.Data) {
			sb.WriteByte('\n')
		}
	}
	walk(root)
	flush()

	return sections
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "ol", "pre", "blockquote", "table", "tr", "section", "article", "br":
		return true
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
