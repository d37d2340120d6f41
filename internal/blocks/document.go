package blocks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"launchkit/api/internal/util"
)

const (
	MaxBlocks        = 100
	maxRichTextDepth = 8
)

var ErrInvalidDocument = errors.New("invalid campaign content")

// Document is the content tree of a campaign.
type Document struct {
	Meta   Meta    `json:"meta"`
	Blocks []Block `json:"blocks"`
}

type Meta struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type Block struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props"`
}

type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a document. It matches
// ErrInvalidDocument under errors.Is.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return ErrInvalidDocument.Error()
	}
	return fmt.Sprintf("%s: %s %s", ErrInvalidDocument, e.Problems[0].Path, e.Problems[0].Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDocument
}

// NewBlock creates a block of the given type populated with defaults.
func NewBlock(blockType string) (Block, error) {
	props, err := Defaults(blockType)
	if err != nil {
		return Block{}, err
	}
	return Block{ID: util.NewID("blk"), Type: blockType, Props: props}, nil
}

// Parse decodes raw campaign content and normalizes it.
func Parse(raw json.RawMessage) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{Blocks: []Block{}}, nil
	}
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, &ValidationError{Problems: []Problem{{Path: "$", Message: "malformed content"}}}
	}
	return Normalize(doc)
}

// Normalize fills missing defaults, assigns ids to blocks without one and
// validates the result. The input document is not modified.
func Normalize(doc Document) (Document, error) {
	var problems []Problem
	report := func(path, format string, args ...any) {
		problems = append(problems, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if len(doc.Blocks) > MaxBlocks {
		report("blocks", "at most %d blocks", MaxBlocks)
	}
	if utf8.RuneCountInString(doc.Meta.Title) > 120 {
		report("meta.title", "at most 120 characters")
	}
	if utf8.RuneCountInString(doc.Meta.Description) > 300 {
		report("meta.description", "at most 300 characters")
	}

	out := Document{Meta: doc.Meta, Blocks: make([]Block, 0, len(doc.Blocks))}
	seen := make(map[string]struct{}, len(doc.Blocks))
	for i, block := range doc.Blocks {
		path := fmt.Sprintf("blocks[%d]", i)
		def, ok := byType[block.Type]
		if !ok {
			report(path+".type", "unknown block type %q", block.Type)
			continue
		}
		id := strings.TrimSpace(block.ID)
		if id == "" {
			id = util.NewID("blk")
		}
		if _, dup := seen[id]; dup {
			report(path+".id", "duplicate block id %q", id)
		}
		seen[id] = struct{}{}

		props := checkFields(def.Fields, block.Props, path+".props", report)
		out.Blocks = append(out.Blocks, Block{ID: id, Type: block.Type, Props: props})
	}

	if len(problems) > 0 {
		return Document{}, &ValidationError{Problems: problems}
	}
	return out, nil
}

// Validate reports whether raw content is a valid document.
func Validate(raw json.RawMessage) error {
	_, err := Parse(raw)
	return err
}

type reporter func(path, format string, args ...any)

func checkFields(fields []Field, in map[string]any, path string, report reporter) map[string]any {
	known := make(map[string]struct{}, len(fields))
	out := defaultsFor(fields)
	for _, field := range fields {
		known[field.Name] = struct{}{}
		value, present := in[field.Name]
		if present && value != nil {
			out[field.Name] = copyValue(value)
		}
		fieldPath := path + "." + field.Name
		value, present = out[field.Name]
		if !present || isBlank(value) {
			if field.Required {
				report(fieldPath, "is required")
			}
			continue
		}
		if normalized := checkValue(field, value, fieldPath, report); normalized != nil {
			out[field.Name] = normalized
		}
	}
	for name := range in {
		if _, ok := known[name]; !ok {
			report(path+"."+name, "unknown field")
		}
	}
	return out
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// checkValue validates one present value. It returns a replacement for list
// values whose items were normalized, nil otherwise.
func checkValue(field Field, value any, path string, report reporter) any {
	switch field.Kind {
	case KindText:
		s, ok := value.(string)
		if !ok {
			report(path, "must be text")
			return nil
		}
		if field.MaxLength > 0 && utf8.RuneCountInString(s) > field.MaxLength {
			report(path, "at most %d characters", field.MaxLength)
		}
	case KindURL, KindImage:
		s, ok := value.(string)
		if !ok || !SafeURL(s) {
			report(path, "must be a valid link")
		}
	case KindNumber:
		n, ok := value.(float64)
		if !ok {
			report(path, "must be a number")
			return nil
		}
		if field.Min != nil && n < *field.Min {
			report(path, "must be at least %v", *field.Min)
		}
		if field.Max != nil && n > *field.Max {
			report(path, "must be at most %v", *field.Max)
		}
	case KindSelect:
		s, ok := value.(string)
		if !ok || !contains(field.Options, s) {
			report(path, "must be one of %s", strings.Join(field.Options, ", "))
		}
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			report(path, "must be true or false")
		}
	case KindDateTime:
		s, ok := value.(string)
		if !ok {
			report(path, "must be a date")
			return nil
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			report(path, "must be an RFC 3339 date")
		}
	case KindRichText:
		checkRichText(value, path, 0, report)
	case KindList:
		items, ok := value.([]any)
		if !ok {
			report(path, "must be a list")
			return nil
		}
		if field.MaxItems > 0 && len(items) > field.MaxItems {
			report(path, "at most %d items", field.MaxItems)
		}
		normalized := make([]any, 0, len(items))
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			props, ok := item.(map[string]any)
			if !ok {
				report(itemPath, "must be an object")
				continue
			}
			normalized = append(normalized, checkFields(field.Item, props, itemPath, report))
		}
		return normalized
	}
	return nil
}

var (
	richTextNodes = map[string]struct{}{
		"doc": {}, "paragraph": {}, "heading": {}, "bulletList": {}, "orderedList": {},
		"listItem": {}, "blockquote": {}, "text": {}, "hardBreak": {},
	}
	richTextMarks = map[string]struct{}{
		"bold": {}, "italic": {}, "underline": {}, "strike": {}, "link": {},
	}
)

func checkRichText(value any, path string, depth int, report reporter) {
	node, ok := value.(map[string]any)
	if !ok {
		report(path, "must be rich text")
		return
	}
	if depth > maxRichTextDepth {
		report(path, "is nested too deeply")
		return
	}
	nodeType, _ := node["type"].(string)
	if depth == 0 && nodeType != "doc" {
		report(path, "must be a rich text document")
		return
	}
	if _, ok := richTextNodes[nodeType]; !ok {
		report(path, "unsupported rich text node %q", nodeType)
		return
	}
	if nodeType == "text" {
		if _, ok := node["text"].(string); !ok {
			report(path, "text node without text")
		}
		marks, _ := node["marks"].([]any)
		for i, raw := range marks {
			mark, _ := raw.(map[string]any)
			markType, _ := mark["type"].(string)
			if _, ok := richTextMarks[markType]; !ok {
				report(fmt.Sprintf("%s.marks[%d]", path, i), "unsupported mark %q", markType)
				continue
			}
			if markType == "link" {
				attrs, _ := mark["attrs"].(map[string]any)
				href, _ := attrs["href"].(string)
				if !SafeURL(href) {
					report(fmt.Sprintf("%s.marks[%d]", path, i), "must be a valid link")
				}
			}
		}
		return
	}
	if content, present := node["content"]; present {
		children, ok := content.([]any)
		if !ok {
			report(path+".content", "must be a list")
			return
		}
		for i, child := range children {
			checkRichText(child, fmt.Sprintf("%s.content[%d]", path, i), depth+1, report)
		}
	}
}

// SafeURL accepts http(s) and mailto links, site-relative paths and
// fragments. Other schemes, javascript: included, are rejected.
func SafeURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if strings.HasPrefix(raw, "#") || (strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//")) {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	case "mailto":
		return u.Opaque != ""
	default:
		return false
	}
}

func contains(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}
