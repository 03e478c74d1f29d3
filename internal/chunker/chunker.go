// Package chunker cuts document trees into overlapping character windows
// for embedding.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/hntbot/biddocs/internal/doctree"
)

// Config controls chunking. Sizes are in characters.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	// MinChunk drops chunks shorter than this many characters.
	MinChunk int
	// Separators are tried in order; "" splits between characters.
	Separators []string
}

// DefaultSeparators prefer paragraph, then line, then word boundaries.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

func DefaultConfig() Config {
	return Config{
		ChunkSize:    4000,
		ChunkOverlap: 200,
		MinChunk:     1,
		Separators:   DefaultSeparators,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = min(d.ChunkOverlap, c.ChunkSize/2)
	}
	if c.MinChunk <= 0 {
		c.MinChunk = d.MinChunk
	}
	if len(c.Separators) == 0 {
		c.Separators = d.Separators
	}
	return c
}

// ChunkTree walks a DocTree and splits every node's text, keeping the
// node's page and the titles of the sections above it.
func ChunkTree(tree *doctree.DocTree, cfg Config) []doctree.Chunk {
	cfg = cfg.withDefaults()

	var chunks []doctree.Chunk
	tree.Walk(func(n *doctree.DocNode, crumbs []string) {
		if strings.TrimSpace(n.Text) == "" {
			return
		}
		bc := crumbs
		if n.Title != "" {
			bc = append(crumbs[:len(crumbs):len(crumbs)], n.Title)
		}
		for _, part := range SplitText(n.Text, cfg) {
			chunks = append(chunks, doctree.Chunk{
				Text:       part,
				Index:      len(chunks),
				Breadcrumb: copyBreadcrumb(bc),
				Page:       n.Page,
				Source:     tree.Source,
			})
		}
	})
	return chunks
}

// SplitText splits text recursively: by the first separator that occurs in
// it, re-splitting any piece still longer than ChunkSize with the next
// separator, then merging neighbouring pieces back up to ChunkSize with
// ChunkOverlap characters carried between consecutive chunks.
func SplitText(text string, cfg Config) []string {
	cfg = cfg.withDefaults()
	var out []string
	for _, s := range splitRecursive(text, cfg.Separators, cfg.ChunkSize, cfg.ChunkOverlap) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) >= cfg.MinChunk {
			out = append(out, s)
		}
	}
	return out
}

func splitRecursive(text string, separators []string, size, overlap int) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var (
		out  []string
		good []string
	)
	for _, piece := range splitOn(text, sep) {
		if runeLen(piece) < size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, merge(good, sep, size, overlap)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, splitRecursive(piece, rest, size, overlap)...)
		}
	}
	if len(good) > 0 {
		out = append(out, merge(good, sep, size, overlap)...)
	}
	return out
}

func splitOn(text, sep string) []string {
	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	for _, p := range strings.Split(text, sep) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// merge packs pieces into windows of at most size characters. When a window
// closes, pieces are dropped from its front until at most overlap characters
// remain; those seed the next window.
func merge(pieces []string, sep string, size, overlap int) []string {
	sepLen := runeLen(sep)
	var (
		docs    []string
		current []string
		total   int
	)
	joinedLen := func(extra int) int {
		if len(current) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, p := range pieces {
		l := runeLen(p)
		if joinedLen(l) > size && len(current) > 0 {
			docs = append(docs, strings.Join(current, sep))
			for total > overlap || (joinedLen(l) > size && total > 0) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		total = joinedLen(l)
		current = append(current, p)
	}
	if len(current) > 0 {
		docs = append(docs, strings.Join(current, sep))
	}
	return docs
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func copyBreadcrumb(bc []string) []string {
	if len(bc) == 0 {
		return nil
	}
	out := make([]string, len(bc))
	copy(out, bc)
	return out
}
