package text

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyInput(t *testing.T) {
	s := NewSplitter(1000, 200)
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("  \n\t "))
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("Revenue grew 12% in Q3.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Revenue grew 12% in Q3.", chunks[0])
}

func TestSplit_RespectsMaxLength(t *testing.T) {
	s := NewSplitter(100, 20)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "Sentence number %02d pads out this line. ", i)
	}

	chunks := s.Split(b.String())
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 100, "chunk %d exceeds max length", i)
	}
}

func TestSplit_AdjacentChunksOverlap(t *testing.T) {
	overlap := 20
	s := NewSplitter(100, overlap)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "Sentence number %02d pads out this line. ", i)
	}

	chunks := s.Split(b.String())
	require.Greater(t, len(chunks), 1)

	for i := 0; i < len(chunks)-1; i++ {
		require.Greater(t, len(chunks[i]), overlap)
		tail := chunks[i][len(chunks[i])-overlap:]
		assert.True(t, strings.HasPrefix(chunks[i+1], tail),
			"chunk %d does not start with the tail of chunk %d", i+1, i)
	}
}

func TestSplit_IndivisibleUnitKeptWhole(t *testing.T) {
	s := NewSplitter(100, 20)
	long := strings.Repeat("x", 150) // no separators at all

	chunks := s.Split(long)
	require.Len(t, chunks, 1)
	assert.Equal(t, long, chunks[0])
}

func TestSplit_PageShorterThanOverlap(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("Tiny page.")
	assert.Len(t, chunks, 1)
}

func TestSplit_ParagraphBoundariesPreferred(t *testing.T) {
	s := NewSplitter(50, 0)
	text := strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 30)

	chunks := s.Split(text)
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[1], "b"))
}

func TestSplitPages_InheritsMetadata(t *testing.T) {
	s := NewSplitter(1000, 200)
	uploaded := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	drafts := s.SplitPages([]Page{
		{Text: "Revenue grew 12% in Q3.", Page: 0, Filename: "q3.pdf", UserID: "u1", UploadDate: uploaded},
		{Text: "", Page: 1, Filename: "q3.pdf", UserID: "u1", UploadDate: uploaded},
	})

	require.Len(t, drafts, 1)
	d := drafts[0]
	assert.Equal(t, "u1", d.Metadata.UserID)
	assert.Equal(t, "q3.pdf", d.Metadata.Filename)
	assert.Equal(t, 0, d.Metadata.Page)
	assert.Equal(t, uploaded, d.Metadata.UploadDate)
	assert.Equal(t, "processing", d.Metadata.Status)
}

func TestSplitPages_EmptyInput(t *testing.T) {
	s := NewSplitter(1000, 200)
	assert.Empty(t, s.SplitPages(nil))
}
