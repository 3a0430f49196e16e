package store

import (
	"fmt"

	"github.com/roach88/quarry/internal/value"
)

// marshalDoc converts record fields to JSON TEXT for storage.
// Keys are sorted and dates are tagged, see value.MarshalFields.
func marshalDoc(f value.Fields) (string, error) {
	if f == nil {
		return "{}", nil
	}
	data, err := value.MarshalFields(f)
	if err != nil {
		return "", fmt.Errorf("marshal doc: %w", err)
	}
	return string(data), nil
}

// unmarshalDoc parses stored JSON TEXT back into fields.
func unmarshalDoc(data string) (value.Fields, error) {
	if data == "" || data == "{}" {
		return value.Fields{}, nil
	}
	f, err := value.UnmarshalFields([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal doc: %w", err)
	}
	return f, nil
}
