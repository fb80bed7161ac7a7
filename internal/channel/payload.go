package channel

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// RawPayload is a narrow capability over one inbound event payload.
// The correlation core only needs path based field reads and the set of
// top level keys, so any concrete data tree can satisfy it.
type RawPayload interface {
	// Lookup reads the value at a slash separated path.  Path steps
	// traverse object fields; a numeric step indexes into an array.
	Lookup(path string) (interface{}, bool)
	Keys() []string
}

var ErrMalformedPayload = errors.New("unable to parse event payload")

type jsonPayload struct {
	tree map[string]interface{}
}

// ParseJSONPayload builds a RawPayload from raw JSON bytes.  The top
// level value must be a JSON object.
func ParseJSONPayload(raw []byte) (RawPayload, error) {
	var tree map[string]interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, ErrMalformedPayload
	}
	return &jsonPayload{tree: tree}, nil
}

func (p *jsonPayload) Lookup(path string) (interface{}, bool) {
	steps := strings.Split(strings.Trim(path, "/"), "/")
	if len(steps) == 1 && steps[0] == "" {
		return nil, false
	}

	var current interface{} = p.tree

	for _, step := range steps {
		switch node := current.(type) {
		case map[string]interface{}:
			value, ok := node[step]
			if !ok {
				return nil, false
			}
			current = value
		case []interface{}:
			idx, err := strconv.Atoi(step)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

func (p *jsonPayload) Keys() []string {
	keys := make([]string, 0, len(p.tree))
	for k := range p.tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
