package tools

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// ErrInvalidArguments matches every *ArgumentError.
var ErrInvalidArguments = errors.New("invalid arguments")

// ArgumentError lists why a tool call's arguments were rejected.
type ArgumentError struct {
	Problems []string
}

func (e *ArgumentError) Error() string {
	return "invalid arguments: " + strings.Join(e.Problems, "; ")
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArguments
}

// Validate checks args against an object schema: required properties must be
// present, unknown properties are rejected, and each value must match its
// declared JSON type.
func Validate(schema *jsonschema.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}
	var problems []string

	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			problems = append(problems, fmt.Sprintf("missing required property %q", name))
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var prop *jsonschema.Schema
		if schema.Properties != nil {
			prop, _ = schema.Properties.Get(name)
		}
		if prop == nil {
			problems = append(problems, fmt.Sprintf("unknown property %q", name))
			continue
		}
		if prop.Type != "" && !matchesType(prop.Type, args[name]) {
			problems = append(problems, fmt.Sprintf("property %q must be of type %s", name, prop.Type))
		}
	}

	if len(problems) > 0 {
		return &ArgumentError{Problems: problems}
	}
	return nil
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number":
		_, ok := toFloat(v)
		return ok
	case "integer":
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "null":
		return v == nil
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
