package tools

import (
	"sort"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/cockroachdb/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

// Registry holds the tools by name.
// It is populated once at startup and is read-only afterwards,
// Register must not be called concurrently with other methods.
type Registry struct {
	byName map[string]Tool
	names  []string
}

// NewRegistry returns a registry with the tools registered in order
func NewRegistry(list ...Tool) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Tool, len(list)),
	}
	for _, t := range list {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds the tool,
// it returns *DuplicateToolError if the name exists.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return errors.New("tool name is required")
	}
	if _, ok := r.byName[name]; ok {
		return errors.WithStack(&DuplicateToolError{Name: name})
	}
	r.byName[name] = t
	r.names = append(r.names, name)
	return nil
}

// Lookup returns the tool by name,
// it returns *UnknownToolError if the tool does not exist.
func (r *Registry) Lookup(name string) (Tool, error) {
	if t, ok := r.byName[name]; ok {
		return t, nil
	}
	return nil, &UnknownToolError{
		Name:        name,
		Suggestions: r.Suggest(name),
	}
}

// Names returns the tool names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of tools
func (r *Registry) Len() int {
	return len(r.names)
}

// Definitions returns the model facing tool schemas in registration order
func (r *Registry) Definitions() []llms.Tool {
	return lo.Map(r.names, func(name string, _ int) llms.Tool {
		return Definition(r.byName[name])
	})
}

// Suggest returns registered names that fuzzy match the name, best first
func (r *Registry) Suggest(name string) []string {
	if name == "" {
		return nil
	}
	ranks := fuzzy.RankFindNormalizedFold(name, r.names)
	sort.Sort(ranks)
	res := lo.Map(ranks, func(rank fuzzy.Rank, _ int) string {
		return rank.Target
	})
	// names contained in the requested one, e.g. "add_numbers"
	res = append(res, lo.Filter(r.names, func(target string, _ int) bool {
		return fuzzy.MatchNormalizedFold(target, name)
	})...)
	return lo.Uniq(res)
}

// Definition returns the model facing schema of the tool
func Definition(t Tool) llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
