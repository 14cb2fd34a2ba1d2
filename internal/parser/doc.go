// Package parser turns raw documentation files into section-structured
// documents for chunking.
//
// Markdown files split on ATX headings; content before the first heading
// becomes a section headed by the document title. Heading markers inside
// fenced code blocks are ignored. HTML pages run through readability
// extraction first, then section on the heading elements of the cleaned
// article.
//
//	p := parser.New()
//	doc, err := p.ParseFile("docs/install.md")
//	for _, sec := range doc.Sections {
//	    fmt.Printf("%s (level %d)\n", sec.Heading, sec.Level)
//	}
package parser
