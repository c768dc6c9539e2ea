package tools

import (
	"context"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Definition describes a tool to a model: its name, what it does, and the
// JSON schema of its single object argument.
type Definition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// Tool is a Definition plus the function that executes it.
type Tool struct {
	Definition
	invoke func(ctx context.Context, args map[string]any) (string, error)
}

// NewToolFromFunc declares a tool whose arguments are the fields of Req. The
// schema is reflected from Req: fields are named by their json tag, and
// jsonschema tags carry "required" and "description=...".
//
// fn returns the payload handed back to the model; tools report their own
// failures inside that payload.
func NewToolFromFunc[Req any](name, description string, fn func(context.Context, Req) string) (*Tool, error) {
	if name == "" {
		return nil, errors.New("tool name must not be empty")
	}
	if fn == nil {
		return nil, errors.Errorf("tool %s: nil function", name)
	}
	var zero Req
	if t := reflect.TypeOf(zero); t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Errorf("tool %s: request type must be a struct", name)
	}

	r := &jsonschema.Reflector{
		DoNotReference:             true,
		ExpandedStruct:             true,
		Anonymous:                  true,
		AllowAdditionalProperties:  false,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&zero)
	schema.Version = ""

	t := &Tool{Definition: Definition{Name: name, Description: description, Parameters: schema}}
	t.invoke = func(ctx context.Context, args map[string]any) (string, error) {
		if err := Validate(schema, args); err != nil {
			return "", err
		}
		var req Req
		if err := decode(args, &req); err != nil {
			return "", err
		}
		return fn(ctx, req), nil
	}
	return t, nil
}

// Invoke validates args against the tool schema, decodes them into the
// request struct, and runs the tool. The error is non-nil only when the
// arguments are rejected; the tool itself is not called in that case.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	return t.invoke(ctx, args)
}

func decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return errors.Wrap(err, "build decoder")
	}
	if err := dec.Decode(args); err != nil {
		return &ArgumentError{Problems: []string{err.Error()}}
	}
	return nil
}
