package types

// Section is a heading-delimited region of a parsed document.
type Section struct {
	Heading string
	Content string
	Level   int
}

// ParsedDocument is the parser output handed to the chunker.
type ParsedDocument struct {
	SourcePath string
	Title      string
	Sections   []Section
}

// Empty reports whether the document carries no section content.
func (d *ParsedDocument) Empty() bool {
	for _, s := range d.Sections {
		if s.Content != "" {
			return false
		}
	}
	return true
}
