// Package templatefile loads template definitions from YAML or JSON files
// and applies them to a formatter builder. A definition declares named
// fragments (regex, text, choice, schema) and a template body referencing
// them as ${name} placeholders.
package templatefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/stencildev/stencil/pkg/formatter"
	"github.com/stencildev/stencil/pkg/grammargen"
	"github.com/stencildev/stencil/pkg/schema"
)

// Fragment kinds accepted in a definition file.
const (
	KindRegex  = "regex"
	KindText   = "text"
	KindChoice = "choice"
	KindSchema = "schema"
)

// Fragment declares one named grammar fragment.
type Fragment struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=regex text choice schema"`

	// Pattern is the regular expression for regex fragments.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Options are the literal alternatives for choice fragments.
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`

	// Stops and Excludes bound text fragments. Stops end the text and stay
	// in the captured value; Excludes may never appear at all.
	Stops    []string `json:"stops,omitempty" yaml:"stops,omitempty"`
	Excludes []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`

	// Schema is the path to a schema file for schema fragments, relative to
	// the definition file.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Definition is a parsed template definition file.
type Definition struct {
	Name        string     `json:"name,omitempty" yaml:"name,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Fragments   []Fragment `json:"fragments,omitempty" yaml:"fragments,omitempty"`
	Template    string     `json:"template" yaml:"template" validate:"required"`

	baseDir string
}

var validate = validator.New()

// Load reads and validates a definition from a YAML or JSON file. Schema
// paths inside the definition resolve relative to the file's directory.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	d, err := Parse(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, err
	}
	d.baseDir = filepath.Dir(path)
	return d, nil
}

// Parse parses a definition from raw bytes. The ext selects the format and
// must be ".json", ".yaml" or ".yml".
func Parse(data []byte, ext string) (*Definition, error) {
	var d Definition
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to parse JSON template: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to parse YAML template: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported template file format: %s", ext)
	}

	if err := validate.Struct(&d); err != nil {
		return nil, fmt.Errorf("invalid template definition: %w", err)
	}
	for i, f := range d.Fragments {
		if err := f.check(); err != nil {
			return nil, fmt.Errorf("fragment %d (%s): %w", i, f.Name, err)
		}
	}
	return &d, nil
}

// check verifies kind-specific requirements.
func (f Fragment) check() error {
	switch f.Kind {
	case KindRegex:
		if f.Pattern == "" {
			return fmt.Errorf("regex fragment requires a pattern")
		}
	case KindChoice:
		if len(f.Options) == 0 {
			return fmt.Errorf("choice fragment requires at least one option")
		}
	case KindSchema:
		if f.Schema == "" {
			return fmt.Errorf("schema fragment requires a schema path")
		}
	}
	return nil
}

// Apply declares every fragment on the builder in order, then appends the
// template body. Schema fragments are compiled through gen.
func (d *Definition) Apply(b *formatter.Builder, gen grammargen.Generator) error {
	for _, f := range d.Fragments {
		if err := d.applyFragment(b, gen, f); err != nil {
			return fmt.Errorf("fragment %s: %w", f.Name, err)
		}
	}
	return b.AppendMultiline(d.Template)
}

func (d *Definition) applyFragment(b *formatter.Builder, gen grammargen.Generator, f Fragment) error {
	switch f.Kind {
	case KindRegex:
		_, err := b.Regex(f.Pattern, f.Name)
		return err
	case KindText:
		var opts []formatter.TextOption
		if len(f.Stops) > 0 {
			opts = append(opts, formatter.WithStop(f.Stops...))
		}
		if len(f.Excludes) > 0 {
			opts = append(opts, formatter.WithoutContent(f.Excludes...))
		}
		_, err := b.Text(f.Name, opts...)
		return err
	case KindChoice:
		alts := make([]any, len(f.Options))
		for i, o := range f.Options {
			alts[i] = o
		}
		_, err := b.Choose(f.Name, alts...)
		return err
	case KindSchema:
		path := f.Schema
		if !filepath.IsAbs(path) && d.baseDir != "" {
			path = filepath.Join(d.baseDir, path)
		}
		s, err := schema.FromFile(path)
		if err != nil {
			return err
		}
		_, err = b.Schema(s, gen, f.Name)
		return err
	default:
		return fmt.Errorf("unknown fragment kind %q", f.Kind)
	}
}
