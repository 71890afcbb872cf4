package hub

import (
	"bytes"
	"encoding/json"
)

// List is a repeated field that also accepts a bare value where older or
// looser inputs supply a single object instead of an array.
type List[T any] []T

// UnmarshalJSON accepts either a JSON array or a single value.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}

	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = List[T]{one}
	return nil
}

// First returns the first element, or the zero value when empty.
func (l List[T]) First() T {
	var zero T
	if len(l) == 0 {
		return zero
	}
	return l[0]
}
