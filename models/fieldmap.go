package models

import (
	"bytes"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Field is one named value of a submission.
type Field struct {
	Name  string
	Value Value
}

// FieldMap is the ordered field-name to value mapping collected for a
// submission. Order is preserved through JSON and storage round trips.
type FieldMap []Field

// Fields is a convenience constructor used by callers that build records
// in code.
func Fields(pairs ...Field) FieldMap {
	m := make(FieldMap, 0, len(pairs))
	for _, p := range pairs {
		m = m.Set(p.Name, p.Value)
	}
	return m
}

// Get returns the value stored under name.
func (m FieldMap) Get(name string) (Value, bool) {
	for _, f := range m {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the value under name in place, or appends it when absent.
func (m FieldMap) Set(name string, v Value) FieldMap {
	for i := range m {
		if m[i].Name == name {
			m[i].Value = v
			return m
		}
	}
	return append(m, Field{Name: name, Value: v})
}

// Clone returns a deep copy.
func (m FieldMap) Clone() FieldMap {
	if m == nil {
		return nil
	}
	out := make(FieldMap, len(m))
	for i, f := range m {
		out[i] = Field{Name: f.Name, Value: f.Value}
		if f.Value.kind == KindBlob {
			out[i].Value.blob = bytes.Clone(f.Value.blob)
		}
	}
	return out
}

// Equal compares content, ignoring field order.
func (m FieldMap) Equal(o FieldMap) bool {
	if len(m) != len(o) {
		return false
	}
	for _, f := range m {
		other, ok := o.Get(f.Name)
		if !ok || !f.Value.Equal(other) {
			return false
		}
	}
	return true
}

// Digest returns the lowercase hex SHA-256 of the JSON encoding of m.
func (m FieldMap) Digest() string {
	raw, _ := m.MarshalJSON()
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (m FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping member order. Duplicate names
// and unsupported value shapes are rejected with [ErrValidation].
func (m *FieldMap) UnmarshalJSON(raw []byte) error {
	if string(bytes.TrimSpace(raw)) == "null" {
		*m = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: data: %w", ErrValidation, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: data must be an object", ErrValidation)
	}

	var out FieldMap
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return fmt.Errorf("%w: data: %w", ErrValidation, err)
		}
		name, _ := tok.(string)
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrValidation, name)
		}
		seen[name] = struct{}{}

		var rawValue json.RawMessage
		if err = dec.Decode(&rawValue); err != nil {
			return fmt.Errorf("%w: field %q: %w", ErrValidation, name, err)
		}
		var v Value
		if err = v.UnmarshalJSON(rawValue); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		out = append(out, Field{Name: name, Value: v})
	}

	if _, err = dec.Token(); err != nil {
		return fmt.Errorf("%w: data: %w", ErrValidation, err)
	}
	if _, err = dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after object", ErrValidation)
	}

	*m = out
	return nil
}

// Value implements driver.Valuer; the map is stored as JSON text.
func (m FieldMap) Value() (driver.Value, error) {
	raw, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (m *FieldMap) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		return m.UnmarshalJSON([]byte(v))
	case []byte:
		return m.UnmarshalJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into FieldMap", src)
	}
}

// Metadata is free-form submission metadata: operator identity, device id,
// seal stamps. Keys are encoded in sorted order.
type Metadata map[string]string

// Well-known metadata keys.
const (
	MetaAgentID          = "agentId"
	MetaAgentName        = "agentName"
	MetaAgentCode        = "agentCode"
	MetaDeviceID         = "deviceId"
	MetaFinalizedAt      = "finalizedAt"
	MetaDigitalSignature = "digitalSignature"
)

func (md Metadata) Clone() Metadata {
	if md == nil {
		return nil
	}
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func (md Metadata) Value() (driver.Value, error) {
	if md == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]string(md))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (md *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*md = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Metadata", src)
	}

	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	if len(out) == 0 {
		*md = nil
		return nil
	}
	*md = out
	return nil
}
