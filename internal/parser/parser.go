package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/docfind-mcp/pkg/types"
)

// Parser turns raw documentation files into section-structured documents.
type Parser struct{}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

var atxHeading = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)

// ParseFile reads and parses a documentation file, dispatching on
// extension. HTML goes through readability extraction first; everything
// else is treated as markdown.
func (p *Parser) ParseFile(path string) (*types.ParsedDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return p.ParseHTML(path, raw)
	default:
		return p.ParseMarkdown(path, string(raw)), nil
	}
}

// ParseMarkdown splits markdown into heading-delimited sections. Content
// before the first heading becomes a section headed by the document title.
// ATX markers inside fenced code blocks do not start sections.
func (p *Parser) ParseMarkdown(sourcePath, content string) *types.ParsedDocument {
	doc := &types.ParsedDocument{
		SourcePath: sourcePath,
		Title:      titleFromPath(sourcePath),
	}

	lines := strings.Split(content, "\n")

	var (
		current  strings.Builder
		heading  string
		level    int
		inFence  bool
		fenceTag string
	)

	flush := func() {
		text := strings.TrimSpace(current.String())
		current.Reset()
		if text == "" && heading == "" {
			return
		}
		h := heading
		if h == "" {
			h = doc.Title
		}
		doc.Sections = append(doc.Sections, types.Section{
			Heading: h,
			Content: text,
			Level:   level,
		})
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// Track fenced code blocks so a leading # inside a fence is not
		// mistaken for a heading.
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			marker := trimmed[:3]
			if !inFence {
				inFence = true
				fenceTag = marker
			} else if strings.HasPrefix(trimmed, fenceTag) {
				inFence = false
			}
			current.WriteString(line)
			current.WriteByte('\n')
			continue
		}

		if !inFence {
			if m := atxHeading.FindStringSubmatch(line); m != nil {
				flush()
				heading = m[2]
				level = len(m[1])
				// First heading at level 1 doubles as the document title.
				if doc.Title == titleFromPath(sourcePath) && level == 1 {
					doc.Title = heading
				}
				continue
			}
		}

		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()

	return doc
}

// titleFromPath derives a fallback title from the file name.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	if base == "" {
		return "Untitled"
	}
	return strings.ToUpper(base[:1]) + base[1:]
}
