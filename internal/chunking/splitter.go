// Package chunking splits extracted document text into overlapping chunks for embedding.
package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 975
	DefaultChunkOverlap = 100
)

// DefaultSeparators goes from coarse to fine: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter recursively splits text on the coarsest separator that still yields
// pieces shorter than the chunk size, then merges pieces back into chunks with
// overlap. Separators stay attached to the piece that follows them, so every
// chunk is a substring of the input. Lengths are counted in runes.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates a Splitter with DefaultSeparators.
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", chunkOverlap, chunkSize)
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

// NewDefaultSplitter returns a 975/100 splitter.
func NewDefaultSplitter() *Splitter {
	s, _ := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	return s
}

// Split returns the chunks of text in order. Whitespace-only chunks are dropped,
// so empty input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	for _, c := range s.split(text, s.separators) {
		if strings.TrimSpace(c) != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var final, small []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.chunkSize {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			final = append(final, s.merge(small)...)
			small = nil
		}
		if len(finer) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, finer)...)
		}
	}
	if len(small) > 0 {
		final = append(final, s.merge(small)...)
	}
	return final
}

// merge packs consecutive pieces into chunks of at most chunkSize runes. When a
// chunk is emitted, trailing pieces totalling at most chunkOverlap runes are
// carried into the next one.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ""))
			for total > s.chunkOverlap || (total+n > s.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// splitKeepingSeparator cuts text before every non-overlapping occurrence of sep.
// An empty sep splits into single runes. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for len(text) > 0 {
			_, size := utf8.DecodeRuneInString(text)
			pieces = append(pieces, text[:size])
			text = text[size:]
		}
		return pieces
	}

	var pieces []string
	start := 0
	from := 0
	for {
		idx := strings.Index(text[from:], sep)
		if idx < 0 {
			break
		}
		cut := from + idx
		if cut > start {
			pieces = append(pieces, text[start:cut])
		}
		start = cut
		from = cut + len(sep)
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
