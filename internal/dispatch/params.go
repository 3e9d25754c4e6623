package dispatch

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/teemow/mailwarm/internal/gmail"
)

// DefaultLimit is the number of messages listed when no limit is given.
const DefaultLimit = 10

// Params are the named arguments of a call, as decoded from JSON.
type Params map[string]any

// requireString returns a non-empty string parameter.
func (p Params) requireString(name string) (string, error) {
	s, err := p.optionalString(name)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", &MissingParameterError{Name: name}
	}
	return s, nil
}

// optionalString returns a string parameter, or "" when it is absent or null.
func (p Params) optionalString(name string) (string, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &InvalidParameterError{Name: name, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

// limit returns the "limit" parameter, DefaultLimit when absent. JSON numbers
// arrive as float64 and must be whole and positive.
func (p Params) limit() (int64, error) {
	const name = "limit"
	v, ok := p[name]
	if !ok || v == nil {
		return DefaultLimit, nil
	}

	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt32 {
			return 0, &InvalidParameterError{Name: name, Reason: fmt.Sprintf("expected a whole number, got %v", x)}
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, &InvalidParameterError{Name: name, Reason: err.Error()}
		}
		n = i
	default:
		return 0, &InvalidParameterError{Name: name, Reason: fmt.Sprintf("expected number, got %T", v)}
	}
	if n <= 0 {
		return 0, &InvalidParameterError{Name: name, Reason: "must be positive"}
	}
	return n, nil
}

// attachments decodes the "attachments" parameter: a list of objects with
// either "path" or "data" (standard base64) plus an optional "filename",
// for which "name" is accepted as an alias.
func (p Params) attachments() ([]gmail.OutgoingAttachment, error) {
	const name = "attachments"
	v, ok := p[name]
	if !ok || v == nil {
		return nil, nil
	}

	var items []map[string]any
	switch x := v.(type) {
	case []any:
		for i, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &InvalidParameterError{Name: name, Reason: fmt.Sprintf("item %d: expected object, got %T", i, item)}
			}
			items = append(items, m)
		}
	case []map[string]any:
		items = x
	default:
		return nil, &InvalidParameterError{Name: name, Reason: fmt.Sprintf("expected list, got %T", v)}
	}

	out := make([]gmail.OutgoingAttachment, 0, len(items))
	for i, item := range items {
		fields := Params(item)
		filename, err := fields.optionalString("filename")
		if err != nil {
			return nil, err
		}
		if filename == "" {
			if filename, err = fields.optionalString("name"); err != nil {
				return nil, err
			}
		}
		path, err := fields.optionalString("path")
		if err != nil {
			return nil, err
		}
		encoded, err := fields.optionalString("data")
		if err != nil {
			return nil, err
		}

		a := gmail.OutgoingAttachment{Filename: filename, Path: path}
		if v, ok := item["data"]; ok && v != nil {
			data, err := decodeStdBase64(encoded)
			if err != nil {
				return nil, fmt.Errorf("attachment %d: %w: data is not base64: %w", i, gmail.ErrInvalidAttachment, err)
			}
			if data == nil {
				data = []byte{}
			}
			a.Data = data
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeStdBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return raw, nil
		}
		return nil, err
	}
	return data, nil
}
