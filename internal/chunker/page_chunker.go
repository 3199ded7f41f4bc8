package chunker

import (
	"regexp"
	"strconv"

	"pdfqa/internal/domain"
)

// ID schemes understood by PageChunker.
const (
	SchemeDocument   = "document"
	SchemePositional = "positional"
)

// space matches Unicode whitespace, not just the ASCII set of RE2's \s.
const space = `[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]`

var (
	multiSpaceRe    = regexp.MustCompile(space + `{2,}`)
	leadingSpaceRe  = regexp.MustCompile(`\n` + space + `+`)
	trailingSpaceRe = regexp.MustCompile(space + `+\n`)
)

// Normalize collapses whitespace runs and strips spaces around newlines.
func Normalize(text string) string {
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = leadingSpaceRe.ReplaceAllString(text, "\n")
	return trailingSpaceRe.ReplaceAllString(text, "\n")
}

// NormalizePages returns one normalized string per page, order preserved.
func NormalizePages(pages []domain.PageRecord) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = Normalize(p.Content)
	}
	return out
}

// PageChunker makes one chunk per page. No further splitting is done.
type PageChunker struct {
	scheme string
}

// NewPageChunker returns a chunker using scheme; anything but SchemePositional means SchemeDocument.
func NewPageChunker(scheme string) *PageChunker {
	if scheme != SchemePositional {
		scheme = SchemeDocument
	}
	return &PageChunker{scheme: scheme}
}

// Chunk returns one chunk per page, in page order.
func (c *PageChunker) Chunk(document *domain.Document) []domain.Chunk {
	texts := NormalizePages(document.Pages)
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:         c.entryID(document.ID, i),
			DocumentID: document.ID,
			Source:     document.Name,
			Page:       document.Pages[i].Index,
			Text:       text,
		}
	}
	return chunks
}

func (c *PageChunker) entryID(documentID string, i int) string {
	if c.scheme == SchemePositional || documentID == "" {
		return "id-" + strconv.Itoa(i)
	}
	return documentID + "-" + strconv.Itoa(i)
}
