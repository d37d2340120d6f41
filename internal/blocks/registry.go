// Package blocks declares the block types available to the campaign builder
// and validates the block trees it saves.
package blocks

import (
	"errors"
	"sort"
)

type FieldKind string

const (
	KindText     FieldKind = "text"
	KindRichText FieldKind = "richtext"
	KindURL      FieldKind = "url"
	KindImage    FieldKind = "image"
	KindNumber   FieldKind = "number"
	KindSelect   FieldKind = "select"
	KindBoolean  FieldKind = "boolean"
	KindDateTime FieldKind = "datetime"
	KindList     FieldKind = "list"
)

// Field describes one editable property of a block.
type Field struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Kind      FieldKind `json:"kind"`
	Required  bool      `json:"required,omitempty"`
	Default   any       `json:"default,omitempty"`
	MaxLength int       `json:"maxLength,omitempty"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
	Options   []string  `json:"options,omitempty"`
	MaxItems  int       `json:"maxItems,omitempty"`
	Item      []Field   `json:"item,omitempty"`
}

// Definition is the editor configuration of one block type.
type Definition struct {
	Type     string  `json:"type"`
	Label    string  `json:"label"`
	Category string  `json:"category"`
	Fields   []Field `json:"fields"`
}

var ErrUnknownBlock = errors.New("unknown block type")

func num(v float64) *float64 { return &v }

func emptyRichText() map[string]any {
	return map[string]any{
		"type":    "doc",
		"content": []any{map[string]any{"type": "paragraph"}},
	}
}

var definitions = []Definition{
	{
		Type: "hero", Label: "Hero", Category: "layout",
		Fields: []Field{
			{Name: "title", Label: "Title", Kind: KindText, Required: true, MaxLength: 120, Default: "Tu próxima gran campaña"},
			{Name: "subtitle", Label: "Subtitle", Kind: KindText, MaxLength: 280},
			{Name: "backgroundImage", Label: "Background image", Kind: KindImage},
			{Name: "ctaLabel", Label: "Button label", Kind: KindText, MaxLength: 40},
			{Name: "ctaUrl", Label: "Button link", Kind: KindURL},
			{Name: "align", Label: "Alignment", Kind: KindSelect, Options: []string{"left", "center", "right"}, Default: "center"},
		},
	},
	{
		Type: "text", Label: "Text", Category: "content",
		Fields: []Field{
			{Name: "body", Label: "Body", Kind: KindRichText, Required: true, Default: emptyRichText()},
		},
	},
	{
		Type: "image", Label: "Image", Category: "media",
		Fields: []Field{
			{Name: "src", Label: "Image", Kind: KindImage, Required: true},
			{Name: "alt", Label: "Alternative text", Kind: KindText, MaxLength: 200},
			{Name: "caption", Label: "Caption", Kind: KindText, MaxLength: 200},
			{Name: "width", Label: "Width", Kind: KindSelect, Options: []string{"narrow", "wide", "full"}, Default: "wide"},
		},
	},
	{
		Type: "features", Label: "Features", Category: "content",
		Fields: []Field{
			{Name: "heading", Label: "Heading", Kind: KindText, MaxLength: 120},
			{Name: "columns", Label: "Columns", Kind: KindNumber, Min: num(1), Max: num(4), Default: float64(3)},
			{Name: "items", Label: "Items", Kind: KindList, MaxItems: 12, Default: []any{}, Item: []Field{
				{Name: "icon", Label: "Icon", Kind: KindText, MaxLength: 40},
				{Name: "title", Label: "Title", Kind: KindText, Required: true, MaxLength: 80},
				{Name: "description", Label: "Description", Kind: KindText, MaxLength: 300},
			}},
		},
	},
	{
		Type: "cta", Label: "Call to action", Category: "conversion",
		Fields: []Field{
			{Name: "heading", Label: "Heading", Kind: KindText, Required: true, MaxLength: 120, Default: "¿Listo para empezar?"},
			{Name: "body", Label: "Body", Kind: KindText, MaxLength: 300},
			{Name: "buttonLabel", Label: "Button label", Kind: KindText, Required: true, MaxLength: 40, Default: "Empezar"},
			{Name: "buttonUrl", Label: "Button link", Kind: KindURL, Required: true},
			{Name: "style", Label: "Style", Kind: KindSelect, Options: []string{"primary", "secondary"}, Default: "primary"},
		},
	},
	{
		Type: "form", Label: "Lead form", Category: "conversion",
		Fields: []Field{
			{Name: "heading", Label: "Heading", Kind: KindText, MaxLength: 120},
			{Name: "submitLabel", Label: "Submit label", Kind: KindText, Required: true, MaxLength: 40, Default: "Enviar"},
			{Name: "successMessage", Label: "Success message", Kind: KindText, MaxLength: 200, Default: "¡Gracias!"},
			{Name: "fields", Label: "Fields", Kind: KindList, MaxItems: 10, Default: []any{}, Item: []Field{
				{Name: "name", Label: "Name", Kind: KindText, Required: true, MaxLength: 40},
				{Name: "label", Label: "Label", Kind: KindText, Required: true, MaxLength: 80},
				{Name: "kind", Label: "Kind", Kind: KindSelect, Options: []string{"text", "email", "phone", "textarea"}, Default: "text"},
				{Name: "required", Label: "Required", Kind: KindBoolean, Default: false},
			}},
		},
	},
	{
		Type: "testimonial", Label: "Testimonial", Category: "content",
		Fields: []Field{
			{Name: "quote", Label: "Quote", Kind: KindText, Required: true, MaxLength: 500},
			{Name: "author", Label: "Author", Kind: KindText, Required: true, MaxLength: 80},
			{Name: "role", Label: "Role", Kind: KindText, MaxLength: 80},
			{Name: "avatar", Label: "Avatar", Kind: KindImage},
		},
	},
	{
		Type: "countdown", Label: "Countdown", Category: "conversion",
		Fields: []Field{
			{Name: "heading", Label: "Heading", Kind: KindText, MaxLength: 120},
			{Name: "deadline", Label: "Deadline", Kind: KindDateTime, Required: true},
			{Name: "expiredMessage", Label: "Message after the deadline", Kind: KindText, MaxLength: 200},
		},
	},
	{
		Type: "spacer", Label: "Spacer", Category: "layout",
		Fields: []Field{
			{Name: "size", Label: "Size", Kind: KindSelect, Options: []string{"sm", "md", "lg", "xl"}, Default: "md"},
		},
	},
}

var byType = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Type] = def
	}
	return out
}()

// Registry returns every block definition in editor order.
func Registry() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Types returns the registered block type names, sorted.
func Types() []string {
	out := make([]string, 0, len(byType))
	for name := range byType {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func Lookup(blockType string) (Definition, bool) {
	def, ok := byType[blockType]
	return def, ok
}

// Defaults returns a fresh property map holding every field default of the
// block type.
func Defaults(blockType string) (map[string]any, error) {
	def, ok := byType[blockType]
	if !ok {
		return nil, ErrUnknownBlock
	}
	return defaultsFor(def.Fields), nil
}

func defaultsFor(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	for _, field := range fields {
		if field.Default != nil {
			props[field.Name] = copyValue(field.Default)
		}
	}
	return props
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = copyValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = copyValue(inner)
		}
		return out
	default:
		return v
	}
}
