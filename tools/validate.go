package tools

import (
	"encoding/json"
	"math"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// DecodeArguments parses the JSON argument object of a tool call.
// An empty string is an empty object.
// A numeric literal that does not fit a float64 is reported as out of range.
func DecodeArguments(raw string) (Arguments, error) {
	args := Arguments{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && strings.HasPrefix(te.Value, "number ") {
			return nil, errors.WithStack(&ValidationError{
				Reason: "number out of range: " + strings.TrimPrefix(te.Value, "number "),
			})
		}
		return nil, errors.WithStack(&ValidationError{Reason: "arguments must be a JSON object"})
	}
	if args == nil {
		args = Arguments{}
	}
	return args, nil
}

// ValidateArguments checks the arguments against the parameters schema.
// Properties are checked in declaration order and the first failure is returned.
// Arguments not declared in the schema are ignored.
func ValidateArguments(params *jsonschema.Schema, args Arguments) error {
	if params == nil || params.Properties == nil {
		return nil
	}
	for pair := params.Properties.Oldest(); pair != nil; pair = pair.Next() {
		name, prop := pair.Key, pair.Value
		v, ok := args[name]
		if !ok || v == nil {
			if slices.Contains(params.Required, name) {
				return &ValidationError{Field: name, Reason: "required argument is missing"}
			}
			continue
		}
		if prop == nil || prop.Type == "" {
			continue
		}
		if !matchesType(prop.Type, v) {
			return &ValidationError{Field: name, Reason: "expected " + prop.Type}
		}
	}
	return nil
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "number":
		_, ok := toFloat(v)
		return ok
	case "integer":
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
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
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
