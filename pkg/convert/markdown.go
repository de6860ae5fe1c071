// Package convert implements the one-way transforms between the block model
// and plain-text interchange formats (Markdown, HTML, JSON import).
// Converters never fail on structurally unexpected blocks; they degrade to
// plain paragraph text or skip.
package convert

import (
	"regexp"
	"strings"

	"github.com/notionmini/gonote/pkg/blocks"
)

var numberedItemRe = regexp.MustCompile(`^\d+\. `)

// BlocksToMarkdown renders blocks as Markdown text.
// Numbered items always use the literal "1." marker; renderers renumber.
func BlocksToMarkdown(bs []blocks.Block) string {
	var md strings.Builder

	for _, b := range bs {
		text := b.Text()

		switch b.Kind() {
		case blocks.KindParagraph:
			if text != "" {
				md.WriteString(text + "\n\n")
			}
		case blocks.KindHeading:
			if text == "" {
				text = "Untitled"
			}
			md.WriteString(strings.Repeat("#", b.HeadingLevel()) + " " + text + "\n\n")
		case blocks.KindBulletItem:
			md.WriteString("- " + text + "\n")
		case blocks.KindNumberedItem:
			md.WriteString("1. " + text + "\n")
		case blocks.KindImage:
			md.WriteString("![" + b.ImageAlt() + "](" + b.ImageURL() + ")\n\n")
		default:
			if text != "" {
				md.WriteString(text + "\n\n")
			}
		}
	}

	return strings.TrimSpace(md.String())
}

// MarkdownToBlocks parses Markdown text line by line into blocks.
// Only the constructs the editor produces are recognized; anything else
// becomes a paragraph.
func MarkdownToBlocks(text string) []blocks.Block {
	lines := strings.Split(text, "\n")
	bs := make([]blocks.Block, 0, len(lines))

	for _, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
			bs = append(bs, blocks.Block{Type: "paragraph", Content: ""})
		case strings.HasPrefix(line, "### "):
			bs = append(bs, heading(3, strings.TrimPrefix(line, "### ")))
		case strings.HasPrefix(line, "## "):
			bs = append(bs, heading(2, strings.TrimPrefix(line, "## ")))
		case strings.HasPrefix(line, "# "):
			bs = append(bs, heading(1, strings.TrimPrefix(line, "# ")))
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			bs = append(bs, blocks.Block{Type: "bulletListItem", Content: line[2:]})
		case numberedItemRe.MatchString(line):
			bs = append(bs, blocks.Block{
				Type:    "numberedListItem",
				Content: numberedItemRe.ReplaceAllString(line, ""),
			})
		default:
			bs = append(bs, blocks.Block{Type: "paragraph", Content: line})
		}
	}

	return dropEmptyParagraphs(bs)
}

func heading(level int, text string) blocks.Block {
	return blocks.Block{
		Type:    "heading",
		Props:   map[string]any{"level": level},
		Content: text,
	}
}

// dropEmptyParagraphs removes the empty paragraphs produced by blank lines
// once real content exists. A wholly empty input keeps a single empty
// paragraph so the editor always has a block to mount.
func dropEmptyParagraphs(bs []blocks.Block) []blocks.Block {
	kept := make([]blocks.Block, 0, len(bs))
	for _, b := range bs {
		if isEmptyParagraph(b) {
			continue
		}
		kept = append(kept, b)
	}
	if len(kept) == 0 {
		return []blocks.Block{{Type: "paragraph", Content: ""}}
	}
	return kept
}

func isEmptyParagraph(b blocks.Block) bool {
	if b.Kind() != blocks.KindParagraph {
		return false
	}
	s, ok := b.Content.(string)
	return (b.Content == nil || ok) && strings.TrimSpace(s) == ""
}
