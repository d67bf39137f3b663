package resources

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/Sternrassler/drata-client/pkg/params"
)

// DefaultLimit is used when returnAll is false and no limit is given.
const DefaultLimit = 50

// DefaultBinaryProperty is the binary property read when binaryPropertyName is unset.
const DefaultBinaryProperty = "data"

// Input carries the parameters of one item.
type Input struct {
	// Params are the node parameters resolved for the item.
	Params map[string]any

	// Binary returns the file stored under a binary property of the item.
	Binary func(property string) (client.File, error)
}

// String returns a required string parameter. Numbers are rendered without
// a fractional part when they have none.
func (in Input) String(name string) (string, error) {
	v, ok := in.Params[name]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	s := params.IDString(v)
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	return s, nil
}

// OptionalString returns a string parameter or "".
func (in Input) OptionalString(name string) string {
	return params.IDString(in.Params[name])
}

// Bool returns a boolean parameter or def.
func (in Input) Bool(name string, def bool) bool {
	switch v := in.Params[name].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns an integer parameter or def.
func (in Input) Int(name string, def int) int {
	switch v := in.Params[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Fields returns a cleaned copy of a collection parameter such as
// additionalFields or filters. A missing collection yields an empty map.
func (in Input) Fields(name string) map[string]any {
	m, _ := in.Params[name].(map[string]any)
	return params.Clean(m)
}

// File returns the binary data named by the binaryPropertyName parameter.
func (in Input) File() (client.File, error) {
	property := in.OptionalString("binaryPropertyName")
	if property == "" {
		property = DefaultBinaryProperty
	}
	if in.Binary == nil {
		return client.File{}, fmt.Errorf("no binary data available for property %q", property)
	}
	file, err := in.Binary(property)
	if err != nil {
		return client.File{}, fmt.Errorf("read binary property %q: %w", property, err)
	}
	return file, nil
}
