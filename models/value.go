// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind identifies which variant a [Value] holds.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindBlob
)

// blobKey is the single member of the JSON object that carries binary data.
const blobKey = "$blob"

// Value is a single field value of a submission: a string, a number, a bool,
// null, or an opaque binary blob. Numbers keep their exact JSON literal so a
// record survives any number of encode/decode cycles unchanged.
type Value struct {
	kind ValueKind
	text string
	b    bool
	blob []byte
}

func NullValue() Value { return Value{} }
func StringValue(s string) Value { return Value{kind: KindString, text: s} }
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func IntValue(n int64) Value { return Value{kind: KindNumber, text: strconv.FormatInt(n, 10)} }
func BlobValue(data []byte) Value { return Value{kind: KindBlob, blob: bytes.Clone(data)} }
func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Blob() []byte { return bytes.Clone(v.blob) }
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) Text() (string, bool) { return v.text, v.kind == KindString }

// NumberValue builds a numeric value from a JSON number literal.
func NumberValue(literal string) (Value, error) {
	if _, err := json.Number(literal).Float64(); err != nil || !json.Valid([]byte(literal)) {
		return Value{}, fmt.Errorf("%w: %q is not a number literal", ErrValidation, literal)
	}
	return Value{kind: KindNumber, text: literal}, nil
}

// Number returns the numeric literal and whether the value is a number.
func (v Value) Number() (json.Number, bool) {
	return json.Number(v.text), v.kind == KindNumber
}

// Equal reports whether both values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindString, KindNumber:
		return v.text == o.text
	case KindBool:
		return v.b == o.b
	case KindBlob:
		return bytes.Equal(v.blob, o.blob)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString, KindNumber:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindBlob:
		return fmt.Sprintf("<blob %d bytes>", len(v.blob))
	default:
		return "null"
	}
}

// MarshalJSON implements json.Marshaler. Strings are written without HTML
// escaping so the output matches the canonical transfer encoding.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return marshalString(v.text)
	case KindNumber:
		return []byte(v.text), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	case KindBlob:
		return []byte(`{"` + blobKey + `":"` + base64.StdEncoding.EncodeToString(v.blob) + `"}`), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler. Arrays and objects other than
// the blob wrapper are rejected with [ErrValidation].
func (v *Value) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty value", ErrValidation)
	}

	switch raw[0] {
	case 'n':
		if string(raw) != "null" {
			return fmt.Errorf("%w: malformed literal %q", ErrValidation, raw)
		}
		*v = NullValue()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("%w: malformed bool: %w", ErrValidation, err)
		}
		*v = BoolValue(b)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%w: malformed string: %w", ErrValidation, err)
		}
		*v = StringValue(s)
	case '{':
		var obj map[string]string
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fmt.Errorf("%w: unsupported object value: %w", ErrValidation, err)
		}
		encoded, ok := obj[blobKey]
		if !ok || len(obj) != 1 {
			return fmt.Errorf("%w: object values must be {%q: base64}", ErrValidation, blobKey)
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("%w: malformed blob: %w", ErrValidation, err)
		}
		*v = Value{kind: KindBlob, blob: data}
	case '[':
		return fmt.Errorf("%w: array values are not supported", ErrValidation)
	default:
		num, err := NumberValue(string(raw))
		if err != nil {
			return err
		}
		*v = num
	}

	return nil
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
