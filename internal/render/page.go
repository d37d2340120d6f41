// Package render turns campaign block trees into standalone HTML pages.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"launchkit/api/internal/blocks"
)

// Page holds what a public page needs besides the block tree.
type Page struct {
	Lang        string
	SiteName    string
	Title       string
	Description string
	// TrackerURL receives form submissions and page views when set.
	TrackerURL string
	Now        time.Time
}

type pageData struct {
	Page
	Blocks []blocks.Block
}

var pageTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"blockData": func(b blocks.Block, p Page) blockData { return blockData{Block: b, Page: p} },
		"richText":  func(v any) template.HTML { return template.HTML(RichText(v)) },
		"str":       str,
		"items":     items,
		"countdownOver": func(now time.Time, deadline any) bool {
			t, err := time.Parse(time.RFC3339, str(deadline))
			return err == nil && !now.Before(t)
		},
		"formatDeadline": func(deadline any) string {
			t, err := time.Parse(time.RFC3339, str(deadline))
			if err != nil {
				return ""
			}
			return t.UTC().Format("2006-01-02 15:04 MST")
		},
	}
	pageTemplate = template.Must(template.New("page").Funcs(funcMap).Parse(pageHTML))
	template.Must(pageTemplate.Parse(blockHTML))
}

// Render produces the HTML of a campaign page.
func Render(doc blocks.Document, page Page) (string, error) {
	if page.Lang == "" {
		page.Lang = "es"
	}
	if page.Title == "" {
		page.Title = firstNonBlank(doc.Meta.Title, page.SiteName)
	}
	if page.Description == "" {
		page.Description = doc.Meta.Description
	}
	if page.Now.IsZero() {
		page.Now = time.Now()
	}

	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "page", pageData{Page: page, Blocks: doc.Blocks}); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}

type blockData struct {
	Block blocks.Block
	Page  Page
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "true"
		}
		return ""
	default:
		return ""
	}
}

func items(v any) []map[string]any {
	list, _ := v.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
