package yaml

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/CodeSistency/agentTemplate/pkg/llmutils"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type CommentStyle int

const (
	NoComment CommentStyle = iota
	HeadComment
	LineComment
	FootComment
)

type Encoder struct {
	commentStyle CommentStyle
	validate     *validator.Validate
}

func NewEncoder() *Encoder {
	return &Encoder{
		commentStyle: NoComment,
		validate:     validator.New(),
	}
}

// WithCommentStyle annotates the struct fields that have a `comment` tag
func (e *Encoder) WithCommentStyle(style CommentStyle) *Encoder {
	e.commentStyle = style
	return e
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	if e.commentStyle == NoComment {
		bs, err := yaml.Marshal(v)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return bs, nil
	}
	node, err := e.structToYAMLWithComments(v)
	if err != nil {
		return nil, err
	}
	bs, err := yaml.Marshal(node)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return bs, nil
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.BytesTrimBackticks(bs)
	if err := yaml.Unmarshal(data, ret); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (e *Encoder) Validate(req any) error {
	return e.validate.Struct(req)
}

func (e *Encoder) ContentType() string {
	return "application/yaml"
}

// structToYAMLWithComments converts a struct to a YAML node with comments
func (e *Encoder) structToYAMLWithComments(v any) (*yaml.Node, error) {
	val := dereference(reflect.ValueOf(v))
	if !val.IsValid() {
		return nullNode(), nil
	}
	if val.Kind() != reflect.Struct {
		return nil, errors.Newf("expected struct, got %s", val.Kind())
	}

	typ := val.Type()
	root := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		key, opts, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if key == "-" {
			continue
		}
		if key == "" {
			key = strings.ToLower(field.Name)
		}
		fv := val.Field(i)
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}

		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		if comment := field.Tag.Get("comment"); comment != "" {
			switch e.commentStyle {
			case HeadComment:
				keyNode.HeadComment = comment
			case LineComment:
				keyNode.LineComment = comment
			case FootComment:
				keyNode.FootComment = comment
			}
		}

		valueNode, err := e.getValueNode(fv)
		if err != nil {
			return nil, err
		}
		root.Content = append(root.Content, keyNode, valueNode)
	}
	return root, nil
}

// getValueNode recursively converts values, supporting pointers and interfaces
func (e *Encoder) getValueNode(v reflect.Value) (*yaml.Node, error) {
	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nullNode(), nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: v.String(), Tag: "!!str"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatInt(v.Int(), 10)}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatUint(v.Uint(), 10)}, nil
	case reflect.Float32, reflect.Float64:
		// whole numbers are written as ints, they decode into floats
		return &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(v.Float(), 'f', -1, 64)}, nil
	case reflect.Bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatBool(v.Bool())}, nil
	case reflect.Struct:
		return e.structToYAMLWithComments(v.Interface())
	case reflect.Slice, reflect.Array:
		node := &yaml.Node{Kind: yaml.SequenceNode}
		for i := 0; i < v.Len(); i++ {
			item, err := e.getValueNode(v.Index(i))
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, item)
		}
		return node, nil
	case reflect.Map:
		// map keys have no tags, let the library order them
		node := &yaml.Node{}
		if err := node.Encode(v.Interface()); err != nil {
			return nil, errors.WithStack(err)
		}
		return node, nil
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprintf("%v", v.Interface())}, nil
	}
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: "null", Tag: "!!null"}
}

// dereference follows pointers until `v` is not a pointer type
func dereference(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
