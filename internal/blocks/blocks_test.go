package blocks

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRegistryCoversBuilderBlocks(t *testing.T) {
	want := []string{"countdown", "cta", "features", "form", "hero", "image", "spacer", "testimonial", "text"}
	got := Types()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Types() = %v, want %v", got, want)
	}
	for _, def := range Registry() {
		if def.Label == "" || len(def.Fields) == 0 {
			t.Fatalf("definition %q incomplete", def.Type)
		}
	}
}

func TestDefaultsAreFreshCopies(t *testing.T) {
	first, err := Defaults("features")
	if err != nil {
		t.Fatalf("Defaults() error = %v", err)
	}
	first["items"] = append(first["items"].([]any), "mutated")

	second, _ := Defaults("features")
	if len(second["items"].([]any)) != 0 {
		t.Fatal("defaults share state between calls")
	}
	if second["columns"] != float64(3) {
		t.Fatalf("columns default = %v", second["columns"])
	}
	if _, err := Defaults("carousel"); !errors.Is(err, ErrUnknownBlock) {
		t.Fatalf("expected ErrUnknownBlock, got %v", err)
	}
}

func TestNewBlockIsValid(t *testing.T) {
	for _, blockType := range []string{"hero", "text", "features", "form", "spacer"} {
		block, err := NewBlock(blockType)
		if err != nil {
			t.Fatalf("NewBlock(%q) error = %v", blockType, err)
		}
		if !strings.HasPrefix(block.ID, "blk_") {
			t.Fatalf("block id = %q", block.ID)
		}
		if _, err := Normalize(Document{Blocks: []Block{block}}); err != nil {
			t.Fatalf("default %s block invalid: %v", blockType, err)
		}
	}
}

func TestParseFillsDefaultsAndIDs(t *testing.T) {
	doc, err := Parse(json.RawMessage(`{"blocks":[{"type":"hero","props":{"subtitle":"Ofertas"}},{"type":"spacer"}]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks = %d", len(doc.Blocks))
	}
	hero := doc.Blocks[0]
	if hero.ID == "" || hero.Props["align"] != "center" || hero.Props["title"] == "" {
		t.Fatalf("defaults not applied: %+v", hero)
	}
	if doc.Blocks[1].Props["size"] != "md" {
		t.Fatalf("spacer size = %v", doc.Blocks[1].Props["size"])
	}
}

func TestParseEmptyContent(t *testing.T) {
	doc, err := Parse(nil)
	if err != nil || len(doc.Blocks) != 0 {
		t.Fatalf("Parse(nil) = %+v, %v", doc, err)
	}
}

func TestValidateReportsProblems(t *testing.T) {
	tests := []struct {
		name    string
		content string
		path    string
	}{
		{name: "malformed", content: `{"blocks":`, path: "$"},
		{name: "unknown top-level key", content: `{"blocks":[],"theme":"dark"}`, path: "$"},
		{name: "unknown type", content: `{"blocks":[{"type":"carousel"}]}`, path: "blocks[0].type"},
		{name: "unknown field", content: `{"blocks":[{"type":"spacer","props":{"color":"red"}}]}`, path: "blocks[0].props.color"},
		{name: "missing required", content: `{"blocks":[{"type":"image","props":{}}]}`, path: "blocks[0].props.src"},
		{name: "blank required", content: `{"blocks":[{"type":"hero","props":{"title":"  "}}]}`, path: "blocks[0].props.title"},
		{name: "too long", content: `{"blocks":[{"type":"hero","props":{"title":"` + strings.Repeat("a", 121) + `"}}]}`, path: "blocks[0].props.title"},
		{name: "bad select", content: `{"blocks":[{"type":"spacer","props":{"size":"huge"}}]}`, path: "blocks[0].props.size"},
		{name: "number out of range", content: `{"blocks":[{"type":"features","props":{"columns":9}}]}`, path: "blocks[0].props.columns"},
		{name: "javascript link", content: `{"blocks":[{"type":"cta","props":{"buttonUrl":"javascript:alert(1)"}}]}`, path: "blocks[0].props.buttonUrl"},
		{name: "bad date", content: `{"blocks":[{"type":"countdown","props":{"deadline":"tomorrow"}}]}`, path: "blocks[0].props.deadline"},
		{name: "list item", content: `{"blocks":[{"type":"features","props":{"items":[{"icon":"x"}]}}]}`, path: "blocks[0].props.items[0].title"},
		{name: "duplicate id", content: `{"blocks":[{"id":"a","type":"spacer"},{"id":"a","type":"spacer"}]}`, path: "blocks[1].id"},
		{name: "rich text root", content: `{"blocks":[{"type":"text","props":{"body":{"type":"paragraph"}}}]}`, path: "blocks[0].props.body"},
		{name: "rich text node", content: `{"blocks":[{"type":"text","props":{"body":{"type":"doc","content":[{"type":"iframe"}]}}}]}`, path: "blocks[0].props.body.content[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(json.RawMessage(tt.content))
			if !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("Validate() error = %v, want ErrInvalidDocument", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			for _, p := range verr.Problems {
				if p.Path == tt.path {
					return
				}
			}
			t.Fatalf("problems %+v do not include %s", verr.Problems, tt.path)
		})
	}
}

func TestValidateAcceptsRichText(t *testing.T) {
	content := `{"meta":{"title":"Black Friday"},"blocks":[{"id":"b1","type":"text","props":{"body":{
		"type":"doc","content":[
			{"type":"heading","attrs":{"level":2},"content":[{"type":"text","text":"Hola"}]},
			{"type":"paragraph","content":[{"type":"text","text":"ver","marks":[{"type":"link","attrs":{"href":"https://example.com"}}]}]}
		]}}}]}`
	if err := Validate(json.RawMessage(content)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestSafeURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/a": true,
		"http://example.com":    true,
		"/pricing":              true,
		"#form":                 true,
		"mailto:hi@example.com": true,
		"//evil.example.com":    false,
		"javascript:alert(1)":   false,
		"data:text/html,hi":     false,
		"https://":              false,
		"":                      false,
	}
	for in, want := range tests {
		if got := SafeURL(in); got != want {
			t.Errorf("SafeURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRegistryMarshalsForBuilder(t *testing.T) {
	payload, err := json.Marshal(Registry())
	if err != nil {
		t.Fatalf("marshal registry: %v", err)
	}
	if !strings.Contains(string(payload), `"type":"countdown"`) || !strings.Contains(string(payload), `"kind":"datetime"`) {
		t.Fatalf("unexpected payload: %s", payload)
	}
}
