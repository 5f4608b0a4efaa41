package json

import (
	"encoding/json"

	"github.com/CodeSistency/agentTemplate/pkg/llmutils"
	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

type Encoder struct {
	validate *validator.Validate
}

func NewEncoder() *Encoder {
	return &Encoder{
		validate: validator.New(),
	}
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return bs, nil
}

// Unmarshal leniently decodes JSON, numbers in strings are accepted
func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.CleanJSON(bs)
	if err := ljson.Unmarshal(data, ret); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (e *Encoder) Validate(req any) error {
	return e.validate.Struct(req)
}

func (e *Encoder) ContentType() string {
	return "application/json"
}
