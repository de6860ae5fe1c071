package convert

import (
	stdhtml "html"
	"strings"

	"golang.org/x/net/html"

	"github.com/notionmini/gonote/pkg/blocks"
)

const (
	htmlHeader = `<!DOCTYPE html><html><head><meta charset="UTF-8"><title>Document</title><style>body{font-family:sans-serif;max-width:800px;margin:40px auto;padding:20px;line-height:1.6}</style></head><body>`
	htmlFooter = `</body></html>`
)

// BlocksToHTML renders blocks as a standalone HTML document.
// Consecutive list items of the same kind share one <ul>/<ol>; the list is
// closed whenever the kind changes or a non-list block intervenes.
func BlocksToHTML(bs []blocks.Block) string {
	var out strings.Builder
	out.WriteString(htmlHeader)

	inList := false
	listTag := ""

	closeList := func() {
		if inList {
			out.WriteString("</" + listTag + ">")
			inList = false
		}
	}
	openList := func(tag string) {
		if !inList || listTag != tag {
			closeList()
			out.WriteString("<" + tag + ">")
			inList = true
			listTag = tag
		}
	}

	for _, b := range bs {
		text := b.Text()

		switch b.Kind() {
		case blocks.KindParagraph:
			closeList()
			out.WriteString("<p>" + stdhtml.EscapeString(text) + "</p>")
		case blocks.KindHeading:
			closeList()
			tag := [...]string{"h1", "h2", "h3", "h4", "h5", "h6"}[b.HeadingLevel()-1]
			out.WriteString("<" + tag + ">" + stdhtml.EscapeString(text) + "</" + tag + ">")
		case blocks.KindBulletItem:
			openList("ul")
			out.WriteString("<li>" + stdhtml.EscapeString(text) + "</li>")
		case blocks.KindNumberedItem:
			openList("ol")
			out.WriteString("<li>" + stdhtml.EscapeString(text) + "</li>")
		case blocks.KindImage:
			closeList()
			alt, _ := b.Props["altText"].(string)
			out.WriteString(`<img src="` + stdhtml.EscapeString(b.ImageURL()) +
				`" alt="` + stdhtml.EscapeString(alt) +
				`" style="max-width:100%;height:auto;" />`)
		default:
			if text != "" {
				closeList()
				out.WriteString("<p>" + stdhtml.EscapeString(text) + "</p>")
			}
		}
	}

	closeList()
	out.WriteString(htmlFooter)
	return out.String()
}

// HTMLToBlocks parses an HTML document into blocks via a DOM-tree walk.
// Headings without text are skipped; unrecognized elements are descended
// into, or flattened to one paragraph when they carry only text.
func HTMLToBlocks(src string) ([]blocks.Block, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, &FormatError{Format: "HTML", Err: err}
	}

	body := findElement(doc, "body")
	if body == nil {
		return nil, &FormatError{Format: "HTML"}
	}

	var bs []blocks.Block
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		bs = append(bs, processNode(child)...)
	}

	if len(bs) == 0 {
		if text := strings.TrimSpace(nodeText(body)); text != "" {
			bs = append(bs, blocks.Block{Type: "paragraph", Content: text})
		}
	}
	return bs, nil
}

func processNode(n *html.Node) []blocks.Block {
	if n.Type != html.ElementNode {
		return nil
	}

	var result []blocks.Block
	switch n.Data {
	case "h1", "h2", "h3":
		level := int(n.Data[1] - '0')
		if text := strings.TrimSpace(nodeText(n)); text != "" {
			result = append(result, heading(level, text))
		}
	case "ul", "ol":
		itemType := "bulletListItem"
		if n.Data == "ol" {
			itemType = "numberedListItem"
		}
		for li := n.FirstChild; li != nil; li = li.NextSibling {
			if li.Type != html.ElementNode {
				continue
			}
			if text := strings.TrimSpace(nodeText(li)); text != "" {
				result = append(result, blocks.Block{Type: itemType, Content: text})
			}
		}
	case "p":
		if text := strings.TrimSpace(nodeText(n)); text != "" {
			result = append(result, blocks.Block{Type: "paragraph", Content: text})
		}
	case "img":
		if src := attr(n, "src"); src != "" {
			result = append(result, blocks.Block{
				Type:  "image",
				Props: map[string]any{"url": src, "altText": attr(n, "alt")},
			})
		}
	default:
		if hasElementChild(n) {
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				result = append(result, processNode(child)...)
			}
		} else if text := strings.TrimSpace(nodeText(n)); text != "" {
			result = append(result, blocks.Block{Type: "paragraph", Content: text})
		}
	}
	return result
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

func hasElementChild(n *html.Node) bool {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
