package text

import (
	"strings"
	"time"

	"finqa/backend/internal/index"
)

// Separator ladder, coarsest to finest: paragraph break, line break, sentence
// terminators, comma, space. A segment that still exceeds the limit after the
// last separator (one enormous word) is kept whole rather than cut mid-rune.
var defaultSeparators = []string{"\n\n", "\n", ".", "!", "?", ",", " "}

// Page is one page of extracted document text plus its provenance. Extraction
// happens upstream; the splitter only segments what it is given.
type Page struct {
	Text       string
	Page       int
	Filename   string
	UserID     string
	UploadDate time.Time
}

// Splitter cuts raw text into segments bounded by Size characters, with
// adjacent segments sharing Overlap characters of context.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

func NewSplitter(size, overlap int) *Splitter {
	return &Splitter{size: size, overlap: overlap, separators: defaultSeparators}
}

// SplitPages chunks every page and stamps each draft with the page's metadata.
// Empty pages contribute zero chunks.
func (s *Splitter) SplitPages(pages []Page) []index.Draft {
	var drafts []index.Draft
	for _, p := range pages {
		for _, content := range s.Split(p.Text) {
			drafts = append(drafts, index.Draft{
				Content: content,
				Metadata: index.Metadata{
					UserID:     p.UserID,
					Filename:   p.Filename,
					Page:       p.Page,
					UploadDate: p.UploadDate,
					Status:     index.StatusProcessing,
				},
			})
		}
	}
	return drafts
}

// Split chunks a single text. Empty or whitespace-only input yields no chunks.
// Every chunk after the first begins with the last overlap characters of its
// predecessor.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	segments := s.segment(text, 0)

	var chunks []string
	var current strings.Builder

	for _, seg := range segments {
		if current.Len() > 0 && current.Len()+len(seg) > s.size {
			chunk := current.String()
			chunks = append(chunks, chunk)
			current.Reset()

			// Seed the next chunk with the tail of the previous one so
			// sentences spanning a boundary stay retrievable.
			if s.overlap > 0 {
				tail := chunk
				if len(tail) > s.overlap {
					tail = tail[len(tail)-s.overlap:]
				}
				current.WriteString(tail)
			}
		}
		current.WriteString(seg)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// segment recursively splits text on the separator ladder until every piece
// fits within the size limit. Separators stay attached to the preceding piece,
// so concatenating the segments reconstructs the input exactly.
func (s *Splitter) segment(text string, depth int) []string {
	if len(text) <= s.size {
		return []string{text}
	}
	if depth >= len(s.separators) {
		// Indivisible unit larger than the limit; keep it whole.
		return []string{text}
	}

	parts := strings.SplitAfter(text, s.separators[depth])
	if len(parts) == 1 {
		return s.segment(text, depth+1)
	}

	var out []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, s.segment(p, depth+1)...)
	}
	return out
}
