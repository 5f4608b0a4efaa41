package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// Result is the structured response of a tool call
type Result struct {
	Operation  string   `json:"operation"`
	Expression string   `json:"expression,omitempty"`
	Equation   string   `json:"equation,omitempty"`
	Value      *float64 `json:"result,omitempty"`
	// Text is a non-numeric result, such as one returned by a remote tool
	Text  string   `json:"-"`
	Steps []string `json:"steps,omitempty"`
	// Error is set when the call failed, Message is the text shown to the model
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewResult returns a successful Result
func NewResult(operation, expression string, value float64, steps ...string) *Result {
	return &Result{
		Operation:  operation,
		Expression: expression,
		Value:      &value,
		Steps:      steps,
	}
}

// ErrorResult returns a failed Result for the error
func ErrorResult(operation string, err error) *Result {
	msg := err.Error()
	return &Result{
		Operation: operation,
		Error:     msg,
		Message:   msg,
	}
}

// Failed returns true if the Result carries an error
func (r *Result) Failed() bool {
	return r.Error != ""
}

// Number returns the numeric result
func (r *Result) Number() (float64, bool) {
	if r == nil || r.Value == nil {
		return 0, false
	}
	return *r.Value, true
}

// MarshalJSON encodes Value, or Text when there is no Value, as "result"
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	aux := struct {
		plain
		Value any `json:"result,omitempty"`
	}{plain: plain(r)}
	if r.Value != nil {
		aux.Value = *r.Value
	} else if r.Text != "" {
		aux.Value = r.Text
	}
	return json.Marshal(aux)
}

// UnmarshalJSON accepts "result" as a number or a string
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	aux := struct {
		*plain
		Value json.RawMessage `json:"result,omitempty"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Value, r.Text = nil, ""
	if len(aux.Value) == 0 || string(aux.Value) == "null" {
		return nil
	}
	var v float64
	if err := json.Unmarshal(aux.Value, &v); err == nil {
		r.Value = &v
		return nil
	}
	if err := json.Unmarshal(aux.Value, &r.Text); err != nil {
		return errors.Errorf("result must be a number or a string: %s", aux.Value)
	}
	return nil
}

// ParseResult decodes a JSON encoded Result
func ParseResult(raw string) (*Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, errors.WithStack(err)
	}
	return &r, nil
}

// FormatNumber renders a number the shortest way that round trips
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsFinite returns false for NaN and infinities
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FormatResult renders the Result as the markdown content of a tool message.
func FormatResult(toolName string, r *Result) string {
	if r.Failed() {
		msg := r.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return "Error in " + toolName + ": " + msg
	}

	expression := r.Expression
	if expression == "" {
		expression = r.Equation
	}
	operation := r.Operation
	if operation == "" {
		operation = "calculation"
	}

	lines := []string{"## " + capitalize(operation) + ": " + expression}
	if len(r.Steps) > 0 {
		lines = append(lines, "### Steps:")
		for _, step := range r.Steps {
			if step != "" {
				lines = append(lines, "- "+step)
			}
		}
	}
	if v, ok := r.Number(); ok {
		lines = append(lines, "\n**Final Result:** "+FormatNumber(v))
	} else if r.Text != "" {
		lines = append(lines, "\n**Final Result:** "+r.Text)
	}
	return strings.Join(lines, "\n")
}

// capitalize upper-cases the first letter and lower-cases the rest
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
