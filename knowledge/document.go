package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a knowledge base document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the format by file extension; anything that is not
// .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// value is a decoded document fragment that still knows the order of its
// mapping keys. Section and policy order is observable downstream, so plain
// map decoding is not enough.
type value interface {
	decode(v any) error
	fields() ([]field, error)
	items() ([]value, error)
}

type field struct {
	key string
	val value
}

var (
	errNotMapping  = errors.New("not a mapping")
	errNotSequence = errors.New("not a sequence")
)

func parseDocument(data []byte, format Format) (value, error) {
	if format == FormatYAML {
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return yamlValue{node: &node}, nil
	}
	if !json.Valid(data) {
		return nil, errors.New("failed to parse JSON: invalid document")
	}
	return jsonValue(bytes.TrimSpace(data)), nil
}

// lookup returns the value stored under key in a mapping.
func lookup(v value, key string) (value, bool, error) {
	fs, err := v.fields()
	if err != nil {
		return nil, false, err
	}
	for _, f := range fs {
		if f.key == key {
			return f.val, true, nil
		}
	}
	return nil, false, nil
}

type jsonValue json.RawMessage

func (j jsonValue) decode(v any) error {
	return json.Unmarshal(j, v)
}

func (j jsonValue) fields() ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(j))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotMapping
	}
	var out []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		out = append(out, field{key: key, val: jsonValue(raw)})
	}
	return out, nil
}

func (j jsonValue) items() ([]value, error) {
	if len(j) == 0 || j[0] != '[' {
		return nil, errNotSequence
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(j, &raws); err != nil {
		return nil, err
	}
	out := make([]value, len(raws))
	for i, r := range raws {
		out[i] = jsonValue(r)
	}
	return out, nil
}

type yamlValue struct {
	node *yaml.Node
}

func (y yamlValue) resolved() *yaml.Node {
	n := y.node
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

func (y yamlValue) decode(v any) error {
	n := y.resolved()
	if n == nil {
		return errors.New("empty document")
	}
	return n.Decode(v)
}

func (y yamlValue) fields() ([]field, error) {
	n := y.resolved()
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, errNotMapping
	}
	out := make([]field, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, field{key: n.Content[i].Value, val: yamlValue{node: n.Content[i+1]}})
	}
	return out, nil
}

func (y yamlValue) items() ([]value, error) {
	n := y.resolved()
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil, errNotSequence
	}
	out := make([]value, len(n.Content))
	for i, c := range n.Content {
		out[i] = yamlValue{node: c}
	}
	return out, nil
}
