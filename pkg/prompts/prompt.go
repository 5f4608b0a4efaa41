package prompts

import (
	"bytes"
	"slices"
	"text/template"

	"github.com/CodeSistency/agentTemplate/pkg/llmutils"
	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/nikolalohinski/gonja"
)

// ErrMissingInput is returned when a required input variable is not provided
var ErrMissingInput = errors.New("missing input variable")

// TemplateFormat is the syntax of a prompt template
type TemplateFormat string

const (
	// FormatGoTemplate is text/template with sprig functions
	FormatGoTemplate TemplateFormat = "go-template"
	// FormatJinja2 is jinja2 syntax rendered with gonja
	FormatJinja2 TemplateFormat = "jinja2"
)

// PromptTemplate renders a text prompt from input values
type PromptTemplate struct {
	Template       string
	TemplateFormat TemplateFormat
	// InputVariables must be present when formatting
	InputVariables []string
	// PartialVariables are default values, overridden by inputs
	PartialVariables map[string]any
}

// NewPromptTemplate returns a go-template prompt
func NewPromptTemplate(tmpl string, inputVars []string) PromptTemplate {
	return PromptTemplate{
		Template:       tmpl,
		TemplateFormat: FormatGoTemplate,
		InputVariables: inputVars,
	}
}

// Format renders the template
func (p PromptTemplate) Format(values map[string]any) (string, error) {
	values = llmutils.MergeInputs(p.PartialVariables, values)
	for _, name := range p.InputVariables {
		if _, ok := values[name]; !ok {
			return "", errors.Wrapf(ErrMissingInput, "%s", name)
		}
	}
	return RenderTemplate(p.Template, p.TemplateFormat, values)
}

// GetInputVariables returns the required input names
func (p PromptTemplate) GetInputVariables() []string {
	return slices.Clone(p.InputVariables)
}

// RenderTemplate renders the template in the format
func RenderTemplate(tmpl string, format TemplateFormat, values map[string]any) (string, error) {
	switch format {
	case FormatGoTemplate, "":
		t, err := template.New("prompt").
			Option("missingkey=zero").
			Funcs(sprig.TxtFuncMap()).
			Parse(tmpl)
		if err != nil {
			return "", errors.Wrap(err, "failed to parse template")
		}
		var buf bytes.Buffer
		if err = t.Execute(&buf, values); err != nil {
			return "", errors.Wrap(err, "failed to render template")
		}
		return buf.String(), nil
	case FormatJinja2:
		t, err := gonja.FromString(tmpl)
		if err != nil {
			return "", errors.Wrap(err, "failed to parse template")
		}
		s, err := t.Execute(values)
		if err != nil {
			return "", errors.Wrap(err, "failed to render template")
		}
		return s, nil
	default:
		return "", errors.Newf("unsupported template format: %s", format)
	}
}
