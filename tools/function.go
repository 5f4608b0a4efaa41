package tools

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/CodeSistency/agentTemplate/pkg/schema"
	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// Func is the typed handler of a FunctionTool
type Func[I any] func(ctx context.Context, in *I) (*Result, error)

// FunctionTool exposes a typed Go function as a Tool,
// the parameters schema is reflected from the input struct.
type FunctionTool[I any] struct {
	name        string
	description string
	params      *jsonschema.Schema
	fn          Func[I]
}

var _ Tool = (*FunctionTool[struct{}])(nil)

// NewFunctionTool returns a FunctionTool,
// I must be a struct with json tags.
func NewFunctionTool[I any](name, description string, fn Func[I]) (*FunctionTool[I], error) {
	sc, err := schema.New(reflect.TypeFor[I]())
	if err != nil {
		return nil, err
	}
	return &FunctionTool[I]{
		name:        name,
		description: description,
		params:      sc.Parameters,
		fn:          fn,
	}, nil
}

// MustFunctionTool is like NewFunctionTool but panics on error
func MustFunctionTool[I any](name, description string, fn Func[I]) *FunctionTool[I] {
	t, err := NewFunctionTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *FunctionTool[I]) Name() string {
	return t.name
}

func (t *FunctionTool[I]) Description() string {
	return t.description
}

func (t *FunctionTool[I]) Parameters() *jsonschema.Schema {
	return t.params
}

// Call decodes the arguments into I and runs the handler
func (t *FunctionTool[I]) Call(ctx context.Context, args Arguments) (*Result, error) {
	js, err := json.Marshal(args)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	in := new(I)
	if err = json.Unmarshal(js, in); err != nil {
		return nil, errors.WithStack(&ValidationError{Reason: err.Error()})
	}
	return t.fn(ctx, in)
}
