package chunker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/embeddings"
)

// sentence is a sentence with its character offset in the document.
type sentence struct {
	text   string
	offset int
}

// chunkSemantic embeds consecutive sentences and groups a sentence into the
// current chunk while cosine similarity to the chunk's running embedding
// stays at or above the threshold and adding it would not exceed
// MaxChunkSize. If the strategy exceeds its budget, the character strategy's
// result is returned instead; callers cannot observe the difference.
func (c *Chunker) chunkSemantic(ctx context.Context, doc Document, opts Options) ([]Chunk, error) {
	threshold := opts.SimilarityThreshold
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}

	budget := opts.SemanticBudget
	if budget == 0 {
		budget = DefaultSemanticBudget
	}

	maxSize := opts.MaxChunkSize
	if maxSize == 0 {
		maxSize = opts.ChunkSize * 2
	}

	sentences := splitSentences(doc.Content)
	if len(sentences) == 0 {
		return nil, nil
	}

	budgetCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.text
	}

	vectors, err := c.embedder.EmbedBatch(budgetCtx, texts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, embeddings.ErrProviderTimeout) {
			c.logger.Warn("semantic chunking over budget, falling back to character strategy",
				zap.String("document_id", doc.ID),
				zap.Duration("budget", budget),
			)
			return chunkCharacter(doc, opts), nil
		}
		return nil, fmt.Errorf("embedding sentences: %w", err)
	}

	var chunks []Chunk
	var current []sentence
	var running []float64

	flush := func() {
		if len(current) == 0 {
			return
		}
		var b strings.Builder
		for i, s := range current {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(s.text)
		}
		chunks = append(chunks, newChunk(doc, b.String(), len(chunks), current[0].offset, opts))
		current = nil
		running = nil
	}

	for i, s := range sentences {
		if len(current) == 0 {
			current = append(current, s)
			running = accumulate(nil, vectors[i], 1)
			continue
		}

		sim := cosineWithRunning(running, vectors[i])
		fits := chunkLen(current)+1+len(s.text) <= maxSize

		if sim >= threshold && fits {
			current = append(current, s)
			running = accumulate(running, vectors[i], len(current))
			continue
		}

		flush()
		current = append(current, s)
		running = accumulate(nil, vectors[i], 1)
	}
	flush()

	c.logger.Debug("semantic chunking complete",
		zap.String("document_id", doc.ID),
		zap.Int("sentences", len(sentences)),
		zap.Int("chunks", len(chunks)),
	)

	return chunks, nil
}

func chunkLen(sentences []sentence) int {
	n := 0
	for i, s := range sentences {
		if i > 0 {
			n++
		}
		n += len(s.text)
	}
	return n
}

// accumulate maintains the running mean embedding of the current chunk.
// count is the number of members including the newly added vector.
func accumulate(running []float64, vec []float32, count int) []float64 {
	if running == nil {
		running = make([]float64, len(vec))
		for i, v := range vec {
			running[i] = float64(v)
		}
		return running
	}

	// Incremental mean: mean' = mean + (x - mean)/n
	for i := range running {
		running[i] += (float64(vec[i]) - running[i]) / float64(count)
	}
	return running
}

func cosineWithRunning(running []float64, vec []float32) float64 {
	asFloat32 := make([]float32, len(running))
	for i, v := range running {
		asFloat32[i] = float32(v)
	}
	return embeddings.Cosine(asFloat32, vec)
}

// splitSentences breaks content into sentences on terminal punctuation and
// blank lines, preserving each sentence's character offset.
func splitSentences(content string) []sentence {
	var sentences []sentence
	start := 0

	flushAt := func(end int) {
		text := strings.TrimSpace(content[start:end])
		if text != "" {
			// Offset of the first non-space character.
			offset := start + strings.Index(content[start:end], text[:1])
			sentences = append(sentences, sentence{text: text, offset: offset})
		}
		start = end
	}

	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '.', '!', '?':
			if i+1 == len(content) || isSpace(content[i+1]) {
				flushAt(i + 1)
			}
		case '\n':
			flushAt(i + 1)
		}
	}
	if start < len(content) {
		flushAt(len(content))
	}

	return sentences
}
