package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/jinhwalab/chartline/internal/anchor"
)

// Block is one segment of a larger document, with its byte offset in the
// original text so anchor spans can be mapped back.
type Block struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// SplitBlocks breaks a document into paragraph blocks on blank lines,
// preserving byte offsets. Whitespace-only blocks are dropped.
func SplitBlocks(text string) []Block {
	var blocks []Block
	offset := 0
	for _, part := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(part) != "" {
			blocks = append(blocks, Block{Text: part, Offset: offset})
		}
		offset += len(part) + 2
	}
	return blocks
}

// ScanBlocks extracts anchors from each block and remaps their spans into
// whole-document coordinates, so downstream stages are oblivious to the
// segmentation. Useful when callers pre-split records by section.
func (e *Engine) ScanBlocks(ctx context.Context, blocks []Block, ref time.Time) ([]anchor.DateAnchor, error) {
	var all []anchor.DateAnchor
	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, NewError(KindTimeout, "scan", err)
		}
		anchors, err := e.scan(ctx, b.Text, dayOf(ref))
		if err != nil {
			return nil, err
		}
		for i := range anchors {
			anchors[i].Span.Start += b.Offset
			anchors[i].Span.End += b.Offset
		}
		all = append(all, anchors...)
	}
	return all, nil
}
