package formatter

import (
	"fmt"
	"slices"

	"github.com/stencildev/stencil/pkg/extractor"
)

// CaptureValue holds one named capture. A name that occurred once holds a
// single value; a name referenced by multiple placeholders in the same
// template holds every occurrence in order.
type CaptureValue struct {
	values   []any
	repeated bool
}

// Repeated reports whether the capture was promoted to a list by a second
// occurrence of the same name.
func (v CaptureValue) Repeated() bool { return v.repeated }

// Value returns the single captured value, or the slice of values if the
// capture was repeated.
func (v CaptureValue) Value() any {
	if v.repeated {
		return slices.Clone(v.values)
	}
	if len(v.values) == 0 {
		return nil
	}
	return v.values[0]
}

// Values returns all captured occurrences in order.
func (v CaptureValue) Values() []any { return slices.Clone(v.values) }

// Captures maps capture names to their extracted values.
type Captures map[string]CaptureValue

// add appends a value under a name, promoting the entry to repeated on the
// second occurrence.
func (c Captures) add(name string, value any) {
	cur, ok := c[name]
	if !ok {
		c[name] = CaptureValue{values: []any{value}}
		return
	}
	cur.values = append(cur.values, value)
	cur.repeated = true
	c[name] = cur
}

// Flatten converts the capture map to plain values: single captures as-is,
// repeated captures as []any. Useful for serialization.
func (c Captures) Flatten() map[string]any {
	out := make(map[string]any, len(c))
	for name, v := range c {
		out[name] = v.Value()
	}
	return out
}

// decompose runs the extractor sequence over the generated output, consuming
// it left to right. Any extractor failure aborts the pass; no partial
// capture map is returned.
func decompose(extractors []extractor.Extractor, output string) (Captures, error) {
	captures := Captures{}
	rest := output
	for i, ext := range extractors {
		var value any
		var err error
		rest, value, err = ext.Extract(rest)
		if err != nil {
			return nil, fmt.Errorf("decompose: extractor %d: %w", i, err)
		}
		if name := ext.CaptureName(); name != "" {
			captures.add(name, value)
		}
	}
	return captures, nil
}
