package importer

import (
	"github.com/samber/lo"

	"notioncal/internal/notion"
)

// MaxBlockChars is the Notion limit for the content of one rich text run.
const MaxBlockChars = 2000

// ChunkDescription splits s into consecutive pieces of at most size
// characters (runes). An empty s yields no pieces.
func ChunkDescription(s string, size int) []string {
	if s == "" {
		return nil
	}
	return lo.ChunkString(s, size)
}

// descriptionBlocks renders a description as paragraph blocks, one per chunk.
func descriptionBlocks(description string) []notion.Block {
	chunks := ChunkDescription(description, MaxBlockChars)
	return lo.Map(chunks, func(c string, _ int) notion.Block {
		return notion.Paragraph(c)
	})
}
