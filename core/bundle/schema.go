package bundle

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/FocuswithJustin/kbdgen/core/errors"
)

//go:embed schema/layout.schema.json
var layoutSchemaJSON []byte

const layoutSchemaURL = "layout.schema.json"

var (
	layoutSchemaOnce sync.Once
	layoutSchema     *jsonschema.Schema
	layoutSchemaErr  error
)

func compiledLayoutSchema() (*jsonschema.Schema, error) {
	layoutSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(layoutSchemaURL, bytes.NewReader(layoutSchemaJSON)); err != nil {
			layoutSchemaErr = fmt.Errorf("add layout schema: %w", err)
			return
		}
		layoutSchema, layoutSchemaErr = compiler.Compile(layoutSchemaURL)
	})
	return layoutSchema, layoutSchemaErr
}

// ValidateLayoutDocument checks a generically decoded layout document
// against the embedded layout schema.
func ValidateLayoutDocument(locale string, doc any) error {
	schema, err := compiledLayoutSchema()
	if err != nil {
		return err
	}

	instance, err := jsonInstance(doc)
	if err != nil {
		return &errors.ParseError{Format: "layout", Path: locale, Message: "not representable as JSON", Err: err}
	}

	if err := schema.Validate(instance); err != nil {
		return &errors.ValidationError{
			Field:   "layouts/" + locale,
			Message: fmt.Sprintf("schema: %v", err),
		}
	}
	return nil
}

// jsonInstance converts YAML-decoded data into the shapes encoding/json
// produces, which is what the schema validator expects.
func jsonInstance(doc any) (any, error) {
	data, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = stringKeys(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[fmt.Sprint(k)] = stringKeys(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = stringKeys(v)
		}
		return out
	}
	return v
}
