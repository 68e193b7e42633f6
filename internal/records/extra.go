package records

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Extra carries JSON fields this build does not model, so records written by a
// newer or older release survive a read/write cycle unchanged.
type Extra map[string]json.RawMessage

// knownFields returns the lower-cased JSON names declared on t's fields.
// encoding/json matches names case-insensitively, so comparisons here do too.
func knownFields(t reflect.Type) map[string]bool {
	known := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			if tag == "-" {
				continue
			}
			if n, _, _ := strings.Cut(tag, ","); n != "" {
				name = n
			}
		}
		known[strings.ToLower(name)] = true
	}
	return known
}

// unmarshalKnown decodes data into v (a pointer to a struct) and returns the
// fields v has no slot for.
func unmarshalKnown(data []byte, v any) (Extra, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	known := knownFields(reflect.TypeOf(v).Elem())
	for k := range all {
		if known[strings.ToLower(k)] {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return Extra(all), nil
}

// marshalWithExtra encodes v and adds extra fields that v does not already emit.
func marshalWithExtra(v any, extra Extra) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("re-reading encoded record: %w", err)
	}
	for k, raw := range extra {
		if _, ok := m[k]; !ok {
			m[k] = raw
		}
	}
	return json.Marshal(m)
}

// Clone returns a deep copy of e.
func (e Extra) Clone() Extra {
	if e == nil {
		return nil
	}
	cp := make(Extra, len(e))
	for k, v := range e {
		cp[k] = append(json.RawMessage(nil), v...)
	}
	return cp
}
