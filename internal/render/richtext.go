package render

import (
	"fmt"
	"html"
	"strings"

	"launchkit/api/internal/blocks"
)

// RichText converts a rich text document into HTML. Unknown nodes render
// their children; text is always escaped and links are kept only when safe.
func RichText(doc any) string {
	root, ok := doc.(map[string]any)
	if !ok {
		return ""
	}
	return renderNode(root)
}

func renderNode(node map[string]any) string {
	nodeType, _ := node["type"].(string)
	switch nodeType {
	case "":
		return ""
	case "doc":
		return renderContent(node["content"])
	case "paragraph":
		return fmt.Sprintf("<p>%s</p>\n", renderContent(node["content"]))
	case "heading":
		level := 2
		if attrs, ok := node["attrs"].(map[string]any); ok {
			if lvl, ok := attrs["level"].(float64); ok && lvl >= 1 && lvl <= 6 {
				level = int(lvl)
			}
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, renderContent(node["content"]), level)
	case "bulletList":
		return fmt.Sprintf("<ul>\n%s</ul>\n", renderContent(node["content"]))
	case "orderedList":
		return fmt.Sprintf("<ol>\n%s</ol>\n", renderContent(node["content"]))
	case "listItem":
		return fmt.Sprintf("<li>%s</li>\n", renderContent(node["content"]))
	case "blockquote":
		return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", renderContent(node["content"]))
	case "hardBreak":
		return "<br>"
	case "text":
		text, _ := node["text"].(string)
		marks, _ := node["marks"].([]any)
		return renderTextWithMarks(text, marks)
	default:
		return renderContent(node["content"])
	}
}

func renderContent(content any) string {
	items, ok := content.([]any)
	if !ok {
		return ""
	}
	var out strings.Builder
	for _, item := range items {
		if node, ok := item.(map[string]any); ok {
			out.WriteString(renderNode(node))
		}
	}
	return out.String()
}

func renderTextWithMarks(text string, marks []any) string {
	if text == "" {
		return ""
	}
	out := html.EscapeString(text)
	for i := len(marks) - 1; i >= 0; i-- {
		mark, ok := marks[i].(map[string]any)
		if !ok {
			continue
		}
		markType, _ := mark["type"].(string)
		switch markType {
		case "bold":
			out = "<strong>" + out + "</strong>"
		case "italic":
			out = "<em>" + out + "</em>"
		case "strike":
			out = "<s>" + out + "</s>"
		case "underline":
			out = "<u>" + out + "</u>"
		case "link":
			attrs, _ := mark["attrs"].(map[string]any)
			href, _ := attrs["href"].(string)
			if !blocks.SafeURL(href) {
				continue
			}
			out = fmt.Sprintf(`<a href="%s" rel="noopener">%s</a>`, html.EscapeString(href), out)
		}
	}
	return out
}
