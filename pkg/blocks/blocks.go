// Package blocks defines the rich-text block model shared by the registry,
// converters and share codec. A block is one unit of editor content with a
// type tag; unknown tags degrade to plain-text extraction rather than
// failing.
package blocks

import (
	"sort"
	"strings"
)

// Kind is the tagged variant a block's Type string resolves to.
// Converters dispatch exhaustively over Kind instead of probing fields.
type Kind int

const (
	KindParagraph Kind = iota
	KindHeading
	KindBulletItem
	KindNumberedItem
	KindImage
	KindUnknown
)

// Block is one unit of editor content. Content is either a plain string or
// an array of inline fragments (objects with a "text" field, possibly
// nested), matching what the editor collaborator serializes.
type Block struct {
	Type     string         `json:"type"`
	Props    map[string]any `json:"props,omitempty"`
	Content  any            `json:"content,omitempty"`
	Children []Block        `json:"children,omitempty"`
}

// Kind resolves the block's type tag to a variant.
func (b Block) Kind() Kind {
	switch b.Type {
	case "paragraph":
		return KindParagraph
	case "heading":
		return KindHeading
	case "bulletListItem":
		return KindBulletItem
	case "numberedListItem":
		return KindNumberedItem
	case "image":
		return KindImage
	default:
		return KindUnknown
	}
}

// HeadingLevel returns the heading level from props, defaulting to 1.
func (b Block) HeadingLevel() int {
	if lv, ok := b.Props["level"]; ok {
		switch v := lv.(type) {
		case float64:
			if v >= 1 && v <= 6 {
				return int(v)
			}
		case int:
			if v >= 1 && v <= 6 {
				return v
			}
		}
	}
	return 1
}

// ImageURL returns the image source from props.
func (b Block) ImageURL() string {
	s, _ := b.Props["url"].(string)
	return s
}

// ImageAlt returns the image alt text from props, defaulting to "image".
func (b Block) ImageAlt() string {
	if s, ok := b.Props["altText"].(string); ok && s != "" {
		return s
	}
	return "image"
}

// Text flattens the block's textual content in document order.
// Falls back to children, then to a direct props.text value.
func (b Block) Text() string {
	text := extract(b.Content)
	if text == "" && len(b.Children) > 0 {
		var sb strings.Builder
		for _, child := range b.Children {
			sb.WriteString(child.Text())
		}
		text = sb.String()
	}
	if text == "" {
		if s, ok := b.Props["text"].(string); ok {
			text = s
		}
	}
	return text
}

// extract walks a content value and concatenates string fragments in order.
// Sibling fragments within a block are joined with no separator.
func extract(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, item := range v {
			sb.WriteString(extract(item))
		}
		return sb.String()
	case map[string]any:
		if s, ok := v["text"].(string); ok {
			return s
		}
		if inner, ok := v["content"]; ok {
			if s := extract(inner); s != "" {
				return s
			}
		}
		return scavenge(v)
	default:
		return ""
	}
}

// scavenge is the degraded-extraction branch for fragment shapes we do not
// recognize: collect every string-valued field, in stable key order, joined
// by spaces. Used only when the typed paths above found nothing.
func scavenge(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if _, ok := m[k].(string); ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, m[k].(string))
	}
	return strings.Join(parts, " ")
}
