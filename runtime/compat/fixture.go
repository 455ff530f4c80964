// Package compat generates and judges compatibility test cases: paired
// legacy/converted invocations per fixture, compared on canonicalized value
// envelopes.
package compat

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/scriptshift/scriptshift/core/invariant"
	"github.com/scriptshift/scriptshift/core/value"
)

// Fixture is one set of input bindings for a unit, plus the field paths
// whose sequences compare unordered.
type Fixture struct {
	Name     string         `yaml:"name"`
	Bindings map[string]any `yaml:"bindings"`
	// Unordered names mapping fields (dot-separated from the result root)
	// whose sequence values compare as multisets instead of positionally.
	Unordered []string `yaml:"unordered,omitempty"`
}

// BindingValues converts the fixture's raw bindings into value envelopes.
func (f Fixture) BindingValues() (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(f.Bindings))
	for name, raw := range f.Bindings {
		v, err := value.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("fixture %q binding %q: %w", f.Name, name, err)
		}
		out[name] = v
	}
	return out, nil
}

// fixtureSchema validates developer-supplied fixture files before they are
// decoded, so a malformed file is rejected with the offending location
// instead of producing half-empty fixtures.
const fixtureSchema = `{
  "type": "object",
  "required": ["fixtures"],
  "additionalProperties": false,
  "properties": {
    "fixtures": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "bindings"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "bindings": {"type": "object"},
          "unordered": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

var compiledFixtureSchema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	err := c.AddResource("fixtures.schema.json", strings.NewReader(fixtureSchema))
	invariant.ExpectNoError(err, "register fixture schema")
	schema, err := c.Compile("fixtures.schema.json")
	invariant.ExpectNoError(err, "compile fixture schema")
	return schema
}()

type fixtureFile struct {
	Fixtures []Fixture `yaml:"fixtures"`
}

// ParseFixtures decodes a fixture document, validating it against the
// embedded schema first.
func ParseFixtures(data []byte) ([]Fixture, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fixture file: %w", err)
	}
	normalized, err := jsonNormalize(doc)
	if err != nil {
		return nil, fmt.Errorf("parse fixture file: %w", err)
	}
	if err := compiledFixtureSchema.Validate(normalized); err != nil {
		return nil, fmt.Errorf("invalid fixture file: %w", err)
	}

	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fixture file: %w", err)
	}
	return file.Fixtures, nil
}

// LoadFixtures reads and validates a fixture file.
func LoadFixtures(path string) ([]Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}
	fixtures, err := ParseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fixtures, nil
}

// jsonNormalize round-trips a decoded YAML document through JSON so the
// schema validator sees the value shapes it expects.
func jsonNormalize(doc any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
