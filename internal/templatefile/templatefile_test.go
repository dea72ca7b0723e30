package templatefile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stencildev/stencil/pkg/formatter"
	"github.com/stencildev/stencil/pkg/grammargen"
)

// --- Parse Tests ---

func TestParse_YAML(t *testing.T) {
	data := []byte(`
name: extract-city
fragments:
  - name: city
    kind: regex
    pattern: "[A-Z][a-z]+"
template: "City: ${city}"
`)

	d, err := Parse(data, ".yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if d.Name != "extract-city" {
		t.Errorf("expected name 'extract-city', got %q", d.Name)
	}

	if len(d.Fragments) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(d.Fragments))
	}

	if d.Fragments[0].Kind != KindRegex {
		t.Errorf("expected kind regex, got %q", d.Fragments[0].Kind)
	}

	if d.Template != "City: ${city}" {
		t.Errorf("unexpected template %q", d.Template)
	}
}

func TestParse_JSON(t *testing.T) {
	data := []byte(`{
		"fragments": [
			{"name": "mood", "kind": "choice", "options": ["happy", "sad"]}
		],
		"template": "Mood: ${mood}"
	}`)

	d, err := Parse(data, ".json")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(d.Fragments) != 1 || len(d.Fragments[0].Options) != 2 {
		t.Errorf("unexpected fragments: %+v", d.Fragments)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "missing template",
			data: `name: broken`,
		},
		{
			name: "unknown kind",
			data: `
fragments:
  - name: x
    kind: glob
template: "${x}"
`,
		},
		{
			name: "regex without pattern",
			data: `
fragments:
  - name: x
    kind: regex
template: "${x}"
`,
		},
		{
			name: "choice without options",
			data: `
fragments:
  - name: x
    kind: choice
template: "${x}"
`,
		},
		{
			name: "schema without path",
			data: `
fragments:
  - name: x
    kind: schema
template: "${x}"
`,
		},
		{
			name: "fragment without name",
			data: `
fragments:
  - kind: regex
    pattern: "a+"
template: "x"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data), ".yaml"); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	if _, err := Parse([]byte("template: x"), ".toml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

// --- Load Tests ---

func TestLoad_ResolvesSchemaRelativeToFile(t *testing.T) {
	dir := t.TempDir()

	schemaFile := filepath.Join(dir, "person.yaml")
	if err := os.WriteFile(schemaFile, []byte(`
name: Person
fields:
  - name: name
    type: string
    required: true
`), 0o644); err != nil {
		t.Fatal(err)
	}

	tmplFile := filepath.Join(dir, "tmpl.yaml")
	if err := os.WriteFile(tmplFile, []byte(`
fragments:
  - name: person
    kind: schema
    schema: person.yaml
template: "Person: ${person}"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Load(tmplFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	b := formatter.NewBuilder()
	if err := d.Apply(b, grammargen.NewJSONGenerator()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	grammar, err := b.Grammar()
	if err != nil {
		t.Fatalf("Grammar() error = %v", err)
	}

	if !strings.Contains(grammar, `'"name"'`) {
		t.Errorf("expected schema field rule in grammar, got:\n%s", grammar)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

// --- Apply Tests ---

func TestApply_BuildsGrammar(t *testing.T) {
	d := &Definition{
		Fragments: []Fragment{
			{Name: "city", Kind: KindRegex, Pattern: "[A-Z][a-z]+"},
			{Name: "mood", Kind: KindChoice, Options: []string{"happy", "sad"}},
			{Name: "bio", Kind: KindText, Stops: []string{";"}},
		},
		Template: "City: ${city} Mood: ${mood} Bio: ${bio}",
	}

	b := formatter.NewBuilder()
	if err := d.Apply(b, grammargen.NewJSONGenerator()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	grammar, err := b.Grammar()
	if err != nil {
		t.Fatalf("Grammar() error = %v", err)
	}

	for _, want := range []string{
		"__regex_city_",
		"#'[A-Z][a-z]+'",
		"__choice_mood_",
		"'happy' | 'sad'",
		"__str_bio_",
		"'City: '",
		"start :=",
	} {
		if !strings.Contains(grammar, want) {
			t.Errorf("grammar missing %q:\n%s", want, grammar)
		}
	}

	// One extractor per template occurrence plus the interleaved literals.
	exts := b.Extractors()
	if len(exts) != 6 {
		t.Errorf("expected 6 extractors, got %d", len(exts))
	}
}

func TestApply_UnresolvedPlaceholder(t *testing.T) {
	d := &Definition{
		Template: "Value: ${missing}",
	}

	b := formatter.NewBuilder()
	err := d.Apply(b, grammargen.NewJSONGenerator())
	if err == nil {
		t.Fatal("expected error for unresolved placeholder")
	}

	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("expected placeholder name in error, got %v", err)
	}
}
