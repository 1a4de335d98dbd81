package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func loadSchemas() {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		schemasErr = err
		return
	}
	c := jsonschema.NewCompiler()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			schemasErr = err
			return
		}
		if err := c.AddResource(e.Name(), bytes.NewReader(b)); err != nil {
			schemasErr = fmt.Errorf("%s: %w", e.Name(), err)
			return
		}
		names = append(names, e.Name())
	}
	out := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := c.Compile(name)
		if err != nil {
			schemasErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		msgType := strings.ToUpper(strings.TrimSuffix(name, ".schema.json"))
		out[msgType] = s
	}
	schemas = out
}

// Validate checks a raw JSON message against the embedded schema for its type.
// Message types without a schema are accepted.
func Validate(raw []byte) error {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	base, err := DecodeBase(raw)
	if err != nil {
		return err
	}
	s := schemas[base.Type]
	if s == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s: %w", base.Type, err)
	}
	return nil
}

// Encode marshals v and, when strict is set, validates it before returning.
func Encode(v any, strict bool) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if strict {
		if err := Validate(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}
