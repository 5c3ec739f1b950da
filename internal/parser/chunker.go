package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/textsplitter"

	"tax-rag/internal/config"
	"tax-rag/internal/models"
)

// CharacterSplitter cuts text into windows of at most ChunkSize runes.
// Neighbouring chunks share exactly ChunkOverlap runes.
type CharacterSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

var _ textsplitter.TextSplitter = CharacterSplitter{}

func (s CharacterSplitter) SplitText(content string) ([]string, error) {
	if s.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", s.ChunkOverlap, s.ChunkSize)
	}

	runes := []rune(strings.TrimSpace(content))
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= s.ChunkSize {
		return []string{string(runes)}, nil
	}

	var chunks []string
	start := 0
	for {
		end := min(start+s.ChunkSize, len(runes))

		// prefer a clean break within the last tenth of the window
		if end < len(runes) {
			lookBack := s.ChunkSize / 10
			for i := end - 1; i >= end-lookBack && i > start+s.ChunkOverlap; i-- {
				if unicode.IsSpace(runes[i]) || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		if chunk := string(runes[start:end]); strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}
		start = end - s.ChunkOverlap
	}
	return chunks, nil
}

// NewSplitter builds the splitter selected by rag.chunker
func NewSplitter(cfg config.RAGConfig) (textsplitter.TextSplitter, error) {
	switch cfg.Chunker {
	case config.ChunkerCharacter, "":
		return CharacterSplitter{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}, nil
	case config.ChunkerRecursive:
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		), nil
	default:
		return nil, fmt.Errorf("unknown chunker %q", cfg.Chunker)
	}
}

// Chunks splits text and tags every piece with its source and position
func Chunks(splitter textsplitter.TextSplitter, content, source string) ([]models.Chunk, error) {
	parts, err := splitter.SplitText(content)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, models.Chunk{Content: part, Index: i, Source: source})
	}
	return chunks, nil
}
