// Package chunker splits documents into bounded, index-tagged chunks ready
// for embedding. Two interchangeable strategies are provided: a character
// window with overlap, and a semantic strategy that groups sentences by
// embedding similarity.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/embeddings"
)

// Strategy selects how a document is split.
type Strategy string

const (
	// StrategyCharacter slides a fixed-size character window with overlap.
	StrategyCharacter Strategy = "character"

	// StrategySemantic groups sentences by cosine similarity of their
	// embeddings, falling back to StrategyCharacter when over budget.
	StrategySemantic Strategy = "semantic"
)

// Heading is one level of a document's heading hierarchy.
type Heading struct {
	Level int
	Text  string

	// Offset is the heading's character position in the document content.
	// Used to attribute chunks to their nearest section.
	Offset int
}

// Document is the unit of ingestion. It is immutable once passed to the
// chunker; raw content ownership stays with the caller.
type Document struct {
	ID         string
	Title      string
	Content    string
	URL        string
	Collection string
	Headings   []Heading
}

// Chunk is a bounded slice of a document's text, the unit actually embedded
// and searched.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Index      int
	Title      string
	URL        string
	Section    string
}

// Options holds per-call chunking knobs.
type Options struct {
	Strategy Strategy

	// ChunkSize is the window size in characters. Invariant: 0 <= Overlap < ChunkSize.
	ChunkSize int
	Overlap   int

	// SimilarityThreshold gates sentence grouping for the semantic strategy.
	SimilarityThreshold float64

	// MaxChunkSize caps a semantic chunk's content length.
	MaxChunkSize int

	// ContextualHeader prepends a "[Document: ... | Section: ...]" header to
	// each chunk's content.
	ContextualHeader bool

	// SemanticBudget bounds the semantic strategy per document before it
	// falls back to the character strategy. Defaults to DefaultSemanticBudget.
	SemanticBudget time.Duration
}

const (
	// DefaultSimilarityThreshold gates sentence grouping.
	DefaultSimilarityThreshold = 0.75

	// DefaultSemanticBudget bounds semantic chunking per document.
	DefaultSemanticBudget = 5 * time.Second

	// whitespaceBackoff is how far a character cut point may move backwards
	// to land on whitespace.
	whitespaceBackoff = 100
)

// Chunker is the chunking service. The embedder is only used by the
// semantic strategy.
type Chunker struct {
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// New creates a chunking service.
func New(embedder embeddings.Embedder, logger *zap.Logger) *Chunker {
	return &Chunker{
		embedder: embedder,
		logger:   logger,
	}
}

// Chunk splits the document using the selected strategy. The returned chunks
// have the same shape regardless of strategy, so callers cannot observe a
// semantic-to-character fallback.
func (c *Chunker) Chunk(ctx context.Context, doc Document, opts Options) ([]Chunk, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	switch opts.Strategy {
	case StrategySemantic:
		return c.chunkSemantic(ctx, doc, opts)
	case StrategyCharacter, "":
		return chunkCharacter(doc, opts), nil
	default:
		return nil, fmt.Errorf("unsupported chunk strategy: %s", opts.Strategy)
	}
}

func validate(opts Options) error {
	if opts.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkSize {
		return fmt.Errorf("overlap must satisfy 0 <= overlap < chunk_size, got overlap=%d chunk_size=%d",
			opts.Overlap, opts.ChunkSize)
	}
	return nil
}

// newChunk builds a chunk for the content starting at offset, attaching the
// contextual header when requested.
func newChunk(doc Document, content string, index, offset int, opts Options) Chunk {
	section := nearestSection(doc, offset)

	if opts.ContextualHeader {
		content = Header(doc.Title, section) + "\n" + content
	}

	return Chunk{
		ID:         uuid.New().String(),
		DocumentID: doc.ID,
		Content:    content,
		Index:      index,
		Title:      doc.Title,
		URL:        doc.URL,
		Section:    section,
	}
}

// Header renders the contextual header for a chunk.
func Header(title, section string) string {
	if section == "" {
		return fmt.Sprintf("[Document: %s]", title)
	}
	return fmt.Sprintf("[Document: %s | Section: %s]", title, section)
}

// nearestSection returns the text of the last heading at or before offset.
func nearestSection(doc Document, offset int) string {
	section := ""
	for _, h := range doc.Headings {
		if h.Offset > offset {
			break
		}
		section = h.Text
	}
	return section
}

// chunkCharacter slides a window of ChunkSize characters, retaining Overlap
// characters from the previous window. When a cut point falls mid-word, it
// backs off up to whitespaceBackoff characters to the nearest whitespace.
func chunkCharacter(doc Document, opts Options) []Chunk {
	content := doc.Content
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var chunks []Chunk
	start := 0

	for start < len(content) {
		end := start + opts.ChunkSize
		if end >= len(content) {
			end = len(content)
		} else if backed := backOffToWhitespace(content, end); backed > start+opts.Overlap {
			// Only take the whitespace cut when the next window still
			// advances; otherwise the mid-word cut stands.
			end = backed
		}

		piece := content[start:end]
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, newChunk(doc, piece, len(chunks), start, opts))
		}

		if end == len(content) {
			break
		}
		start = end - opts.Overlap
	}

	return chunks
}

// backOffToWhitespace moves the cut point backwards to the nearest
// whitespace within the backoff window. If none is found, the original cut
// point stands.
func backOffToWhitespace(content string, cut int) int {
	if cut >= len(content) || isSpace(content[cut]) || isSpace(content[cut-1]) {
		return cut
	}

	low := max(cut-whitespaceBackoff, 1)
	for i := cut - 1; i >= low; i-- {
		if isSpace(content[i]) {
			return i + 1
		}
	}
	return cut
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
