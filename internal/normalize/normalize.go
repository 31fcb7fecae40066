// Package normalize maps the loosely shaped payloads the backend returns
// onto fixed record shapes. Each resource has a declarative schema holding
// a jq record filter; alternate field names and wrapper objects are
// resolved there so the rest of the client only sees one shape.
package normalize

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var schemasFS embed.FS

// Schema describes how one resource's payload is normalized.
type Schema struct {
	Resource    string `yaml:"resource"`
	Description string `yaml:"description"`

	// Collection lists object keys that may wrap a list payload.
	Collection []string `yaml:"collection"`
	// Single lists object keys that may wrap a single record.
	Single []string `yaml:"single"`
	// Record is a jq expression mapping one raw object to the fixed shape.
	Record string `yaml:"record"`
}

type compiled struct {
	schema *Schema
	list   *gojq.Code
	one    *gojq.Code
}

type registry struct {
	once    sync.Once
	byName  map[string]*compiled
	loadErr error
}

var reg = &registry{}

func (r *registry) load() {
	r.once.Do(func() {
		r.byName = make(map[string]*compiled)

		entries, err := schemasFS.ReadDir("schemas")
		if err != nil {
			r.loadErr = fmt.Errorf("reading schemas dir: %w", err)
			return
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
				continue
			}
			data, err := schemasFS.ReadFile("schemas/" + entry.Name())
			if err != nil {
				r.loadErr = fmt.Errorf("reading %s: %w", entry.Name(), err)
				return
			}
			c, err := compileSchema(data)
			if err != nil {
				r.loadErr = fmt.Errorf("schema %s: %w", entry.Name(), err)
				return
			}
			r.byName[c.schema.Resource] = c
		}
	})
}

func compileSchema(data []byte) (*compiled, error) {
	s := new(Schema)
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.Resource == "" || strings.TrimSpace(s.Record) == "" {
		return nil, fmt.Errorf("resource and record are required")
	}

	list, err := compile(listProgram(s))
	if err != nil {
		return nil, fmt.Errorf("list filter: %w", err)
	}
	one, err := compile(singleProgram(s))
	if err != nil {
		return nil, fmt.Errorf("single filter: %w", err)
	}
	return &compiled{schema: s, list: list, one: one}, nil
}

func compile(src string) (*gojq.Code, error) {
	q, err := gojq.Parse(src)
	if err != nil {
		return nil, err
	}
	return gojq.Compile(q)
}

// alternatives renders keys as ".a // .b // fallback".
func alternatives(keys []string, fallback string) string {
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(".%q", k))
	}
	parts = append(parts, fallback)
	return strings.Join(parts, " // ")
}

func listProgram(s *Schema) string {
	return fmt.Sprintf(`def record: %s;
(if type == "array" then . elif type == "object" then (%s) else [] end)
| if type == "array" then map(select(type == "object") | record) else [] end`,
		s.Record, alternatives(s.Collection, "[]"))
}

func singleProgram(s *Schema) string {
	return fmt.Sprintf(`def record: %s;
(if type == "object" then (%s) else . end)
| if type == "object" then record else error("expected an object, got \(type)") end`,
		s.Record, alternatives(s.Single, "."))
}

// Lookup returns the schema for resource.
func Lookup(resource string) (*Schema, error) {
	c, err := lookup(resource)
	if err != nil {
		return nil, err
	}
	return c.schema, nil
}

// Resources lists every resource that has a schema.
func Resources() []string {
	reg.load()
	names := make([]string, 0, len(reg.byName))
	for name := range reg.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(resource string) (*compiled, error) {
	reg.load()
	if reg.loadErr != nil {
		return nil, reg.loadErr
	}
	c, ok := reg.byName[resource]
	if !ok {
		return nil, fmt.Errorf("no schema for resource %q", resource)
	}
	return c, nil
}

// List normalizes a collection payload into []T.
func List[T any](resource string, payload json.RawMessage) ([]T, error) {
	c, err := lookup(resource)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := run(c.list, payload, &out); err != nil {
		return nil, fmt.Errorf("normalize %s: %w", resource, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// One normalizes a single-record payload into T.
func One[T any](resource string, payload json.RawMessage) (T, error) {
	var out T
	c, err := lookup(resource)
	if err != nil {
		return out, err
	}
	if err := run(c.one, payload, &out); err != nil {
		return out, fmt.Errorf("normalize %s: %w", resource, err)
	}
	return out, nil
}

// run executes code over payload and decodes its first result into dst.
func run(code *gojq.Code, payload json.RawMessage, dst any) error {
	var input any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &input); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}

	iter := code.Run(input)
	v, ok := iter.Next()
	if !ok {
		return fmt.Errorf("filter produced no output")
	}
	if err, isErr := v.(error); isErr {
		return err
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return json.Unmarshal(b, dst)
}
