package chunker

import (
	"fmt"
	"strings"

	"github.com/dshills/docfind-mcp/internal/tokenizer"
	"github.com/dshills/docfind-mcp/pkg/types"
)

const (
	// DefaultMaxTokens is the target maximum token count per chunk
	DefaultMaxTokens = 512

	// DefaultMinTokens is the smallest chunk emitted on its own
	DefaultMinTokens = 100

	// DefaultOverlapTokens is carried between windows when a section splits
	DefaultOverlapTokens = 100

	// MaxTokens must stay within these bounds
	minAllowedMaxTokens = 256
	maxAllowedMaxTokens = 1024

	// A buffer may exceed MaxTokens by this factor when that lets a whole
	// section join instead of being split mid-section.
	overshootTolerance = 1.2
)

// Config holds the token budgets for chunking.
type Config struct {
	MaxTokens     int
	MinTokens     int
	OverlapTokens int
}

// DefaultConfig returns the standard budgets.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     DefaultMaxTokens,
		MinTokens:     DefaultMinTokens,
		OverlapTokens: DefaultOverlapTokens,
	}
}

func (c *Config) validate() error {
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MinTokens == 0 {
		c.MinTokens = DefaultMinTokens
	}
	if c.OverlapTokens == 0 {
		c.OverlapTokens = DefaultOverlapTokens
	}

	if c.MaxTokens < minAllowedMaxTokens || c.MaxTokens > maxAllowedMaxTokens {
		return fmt.Errorf("max tokens must be between %d and %d, got %d",
			minAllowedMaxTokens, maxAllowedMaxTokens, c.MaxTokens)
	}
	if c.MinTokens >= c.MaxTokens {
		return fmt.Errorf("min tokens (%d) must be less than max tokens (%d)",
			c.MinTokens, c.MaxTokens)
	}
	if c.OverlapTokens >= c.MaxTokens {
		return fmt.Errorf("overlap tokens (%d) must be less than max tokens (%d)",
			c.OverlapTokens, c.MaxTokens)
	}
	return nil
}

// Chunker turns parsed documents into token-budgeted chunks.
type Chunker struct {
	counter *tokenizer.TokenCounter
	cfg     Config
}

// New creates a Chunker with validated budgets.
func New(counter *tokenizer.TokenCounter, cfg Config) (*Chunker, error) {
	if counter == nil {
		return nil, fmt.Errorf("token counter is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Chunker{counter: counter, cfg: cfg}, nil
}

// pending accumulates sections destined for a single chunk.
type pending struct {
	headings []string
	parts    []string
	tokens   int
}

func (p *pending) empty() bool { return len(p.parts) == 0 }

func (p *pending) add(heading, content string, tokens int) {
	p.headings = append(p.headings, heading)
	p.parts = append(p.parts, content)
	p.tokens += tokens
}

func (p *pending) heading() string {
	h := p.headings[0]
	if extra := len(p.headings) - 1; extra > 0 {
		h = fmt.Sprintf("%s (+%d more)", h, extra)
	}
	return h
}

func (p *pending) content() string {
	return strings.Join(p.parts, "\n\n")
}

// ChunkDocument chunks a parsed document. Sections smaller than the budget
// aggregate into shared chunks; sections larger than the budget (plus
// tolerance) split into overlapping token windows. Positions are assigned
// densely from 0 in emission order.
func (c *Chunker) ChunkDocument(doc *types.ParsedDocument) ([]*types.Chunk, error) {
	if doc == nil || doc.Empty() {
		return nil, nil
	}

	tolerance := int(float64(c.cfg.MaxTokens) * overshootTolerance)

	var pendings []*pending
	buf := &pending{}

	flush := func() {
		if !buf.empty() {
			pendings = append(pendings, buf)
			buf = &pending{}
		}
	}

	for i, sec := range doc.Sections {
		content := strings.TrimSpace(sec.Content)
		if content == "" {
			continue
		}

		secTokens := c.counter.Count(content)

		// Oversized sections split on their own; they never share a chunk.
		if secTokens > tolerance {
			flush()
			pendings = append(pendings, c.splitSection(sec.Heading, content)...)
			continue
		}

		if !buf.empty() && buf.tokens+secTokens > c.cfg.MaxTokens {
			// A buffer that reached the minimum flushes at the budget. An
			// under-minimum buffer may overshoot within the tolerance to
			// absorb one more whole section, except on the final section.
			overshoot := buf.tokens < c.cfg.MinTokens &&
				i < len(doc.Sections)-1 &&
				buf.tokens+secTokens <= tolerance
			if !overshoot {
				flush()
			}
		}

		buf.add(sec.Heading, content, secTokens)

		if buf.tokens >= c.cfg.MaxTokens {
			flush()
		}
	}

	// An undersized trailing buffer merges into the previous chunk when
	// the merged size stays within the tolerance; otherwise it stands
	// alone as the final chunk.
	if !buf.empty() {
		merged := false
		if buf.tokens < c.cfg.MinTokens && len(pendings) > 0 {
			last := pendings[len(pendings)-1]
			if last.tokens+buf.tokens <= tolerance {
				for i := range buf.parts {
					last.add(buf.headings[i], buf.parts[i], 0)
				}
				last.tokens = c.counter.Count(last.content())
				merged = true
			}
		}
		if !merged {
			pendings = append(pendings, buf)
		}
	}

	chunks := make([]*types.Chunk, 0, len(pendings))
	for pos, p := range pendings {
		content := p.content()
		tokens := p.tokens
		if tokens == 0 {
			tokens = c.counter.Count(content)
		}
		chunks = append(chunks, types.NewChunk(content, doc.SourcePath, p.heading(), pos, tokens))
	}

	return chunks, nil
}

// splitSection divides one oversized section into token windows of
// MaxTokens, carrying OverlapTokens of trailing context into each
// following window. Every part keeps the section heading.
func (c *Chunker) splitSection(heading, content string) []*pending {
	tokens := c.counter.Encode(content)
	step := c.cfg.MaxTokens - c.cfg.OverlapTokens

	var parts []*pending
	for start := 0; start < len(tokens); start += step {
		end := start + c.cfg.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		p := &pending{}
		p.add(heading, c.counter.Decode(window), len(window))
		parts = append(parts, p)

		if end == len(tokens) {
			break
		}
	}
	return parts
}
