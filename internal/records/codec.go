package records

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeList decodes a stored JSON array. A missing or null value decodes to
// an empty list.
func DecodeList[T any](raw []byte) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding list: %w", err)
	}
	return items, nil
}

// EncodeList encodes items as a JSON array; nil encodes as [].
func EncodeList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}
