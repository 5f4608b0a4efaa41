package encoding

import (
	"strings"

	jsonenc "github.com/CodeSistency/agentTemplate/encoding/json"
	tomlenc "github.com/CodeSistency/agentTemplate/encoding/toml"
	yamlenc "github.com/CodeSistency/agentTemplate/encoding/yaml"
	"github.com/cockroachdb/errors"
)

// Encoder converts transcripts and requests to and from a text format
type Encoder interface {
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes the text, code fences and chatter around it are tolerated
	Unmarshal(bs []byte, v any) error
	// ContentType returns the MIME type of the format
	ContentType() string
}

// Validator checks the `validate` struct tags of a decoded value
type Validator interface {
	Validate(any) error
}

type Mode = string

const (
	ModeJSON Mode = "json"
	ModeYAML Mode = "yaml"
	ModeTOML Mode = "toml"
)

// Modes lists the supported formats
var Modes = []Mode{ModeJSON, ModeYAML, ModeTOML}

// ModeDefault is the default format.
// Allow to override in apps
var ModeDefault = ModeJSON

// ErrUnsupportedMode is returned for an unknown format
var ErrUnsupportedMode = errors.New("unsupported encoding")

// NewEncoder returns the Encoder for the format, the name is case insensitive
func NewEncoder(mode Mode) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeJSON, "":
		return jsonenc.NewEncoder(), nil
	case ModeYAML, "yml":
		return yamlenc.NewEncoder(), nil
	case ModeTOML:
		return tomlenc.NewEncoder(), nil
	default:
		return nil, errors.WithMessagef(ErrUnsupportedMode, "%q", mode)
	}
}

// ModeFromFilename returns the format implied by the file extension,
// ModeDefault when the extension is not known.
func ModeFromFilename(name string) Mode {
	name = strings.ToLower(name)
	switch {
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return ModeYAML
	case strings.HasSuffix(name, ".toml"):
		return ModeTOML
	case strings.HasSuffix(name, ".json"):
		return ModeJSON
	}
	return ModeDefault
}

var (
	_ Encoder   = (*jsonenc.Encoder)(nil)
	_ Encoder   = (*tomlenc.Encoder)(nil)
	_ Encoder   = (*yamlenc.Encoder)(nil)
	_ Validator = (*jsonenc.Encoder)(nil)
	_ Validator = (*tomlenc.Encoder)(nil)
	_ Validator = (*yamlenc.Encoder)(nil)
)
