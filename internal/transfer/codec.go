// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package transfer

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/MKhiriev/go-field-sync/models"
)

const (
	signaturePrefix = `,"signature":"`
	signatureSuffix = `"}`
	signatureHexLen = sha256.Size * 2
	trailerLen      = len(signaturePrefix) + signatureHexLen + len(signatureSuffix)

	timeLayout = "2006-01-02T15:04:05.000Z"
)

// Build assembles a payload for project from the given submissions. Only the
// portable snapshot of each submission is carried; review state, error
// reasons and sync bookkeeping stay on the device. Timestamps are truncated
// to milliseconds. The returned payload is already signed.
func Build(project models.Project, submissions []models.Submission, now time.Time) (models.TransferPayload, error) {
	if err := checkUTF8("projectName", project.Name); err != nil {
		return models.TransferPayload{}, err
	}

	records := make([]models.Record, 0, len(submissions))
	for _, s := range submissions {
		if s.ProjectID != project.ID {
			return models.TransferPayload{}, fmt.Errorf("%w: submission %s belongs to project %s", models.ErrValidation, s.ID, s.ProjectID)
		}
		rec := s.Snapshot()
		if err := checkRecordUTF8(rec); err != nil {
			return models.TransferPayload{}, err
		}
		rec.CreatedAt = truncate(rec.CreatedAt)
		rec.UpdatedAt = truncate(rec.UpdatedAt)
		if len(rec.Metadata) == 0 {
			rec.Metadata = nil
		}
		if len(rec.Data) == 0 {
			rec.Data = nil
		}
		records = append(records, rec)
	}

	payload := models.TransferPayload{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Count:       len(records),
		Data:        records,
		GeneratedAt: truncate(now),
	}

	body, err := canonicalBody(payload)
	if err != nil {
		return models.TransferPayload{}, err
	}
	payload.Signature = digest(body)

	return payload, nil
}

// Encode returns the signed wire form of p. A payload that already carries
// a signature, as Build returns it, must still match it: content edited
// after signing fails with [models.ErrIntegrity] instead of being signed
// again. An unsigned payload is signed here.
func Encode(p models.TransferPayload) ([]byte, error) {
	if p.Signature != "" {
		if err := Verify(p); err != nil {
			return nil, err
		}
	}

	body, err := canonicalBody(p)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+trailerLen-1)
	out = append(out, body[:len(body)-1]...)
	out = append(out, signaturePrefix...)
	out = append(out, digest(body)...)
	out = append(out, signatureSuffix...)

	return out, nil
}

// Parse verifies raw and decodes it. Verification runs before any content is
// interpreted: a missing or malformed signature trailer, or a digest
// mismatch, fails with [models.ErrIntegrity]. A verified payload with a
// missing member, a member of the wrong type or a count that disagrees with
// its data fails with [models.ErrValidation].
func Parse(raw []byte) (models.TransferPayload, error) {
	raw = bytes.TrimRight(raw, " \t\r\n")
	if len(raw) < trailerLen+2 {
		return models.TransferPayload{}, fmt.Errorf("%w: payload too short to carry a signature", models.ErrIntegrity)
	}

	split := len(raw) - trailerLen
	trailer := raw[split:]
	if !bytes.HasPrefix(trailer, []byte(signaturePrefix)) || !bytes.HasSuffix(trailer, []byte(signatureSuffix)) {
		return models.TransferPayload{}, fmt.Errorf("%w: signature trailer missing", models.ErrIntegrity)
	}

	sigHex := trailer[len(signaturePrefix) : len(signaturePrefix)+signatureHexLen]
	want, err := decodeLowerHex(sigHex)
	if err != nil {
		return models.TransferPayload{}, fmt.Errorf("%w: malformed signature: %w", models.ErrIntegrity, err)
	}

	body := make([]byte, 0, split+1)
	body = append(body, raw[:split]...)
	body = append(body, '}')

	got := sha256.Sum256(body)
	if subtle.ConstantTimeCompare(got[:], want) != 1 {
		return models.TransferPayload{}, fmt.Errorf("%w: signature does not match content", models.ErrIntegrity)
	}

	payload, err := decodeBody(body)
	if err != nil {
		return models.TransferPayload{}, err
	}
	payload.Signature = string(sigHex)

	return payload, nil
}

// Verify reports whether p carries the signature of its own content.
func Verify(p models.TransferPayload) error {
	body, err := canonicalBody(p)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(digest(body)), []byte(p.Signature)) != 1 {
		return fmt.Errorf("%w: signature does not match content", models.ErrIntegrity)
	}
	return nil
}

func digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func decodeLowerHex(s []byte) ([]byte, error) {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return nil, fmt.Errorf("invalid hex character %q", c)
		}
	}
	return hex.DecodeString(string(s))
}

func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// wireTime is a timestamp in the fixed millisecond UTC layout.
type wireTime time.Time

func (t wireTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(timeLayout) + `"`), nil
}

func (t *wireTime) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = wireTime(parsed.UTC())
	return nil
}

type wireRecord struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"projectId"`
	CreatedAt wireTime        `json:"createdAt"`
	UpdatedAt wireTime        `json:"updatedAt"`
	Status    models.Status   `json:"status"`
	Data      models.FieldMap `json:"data"`
	Metadata  models.Metadata `json:"metadata"`
}

type wireBody struct {
	ProjectID   string       `json:"projectId"`
	ProjectName string       `json:"projectName"`
	Count       int          `json:"count"`
	Data        []wireRecord `json:"data"`
	GeneratedAt wireTime     `json:"generatedAt"`
}

func canonicalBody(p models.TransferPayload) ([]byte, error) {
	if p.Count != len(p.Data) {
		return nil, fmt.Errorf("%w: count %d does not match %d records", models.ErrValidation, p.Count, len(p.Data))
	}

	wb := wireBody{
		ProjectID:   p.ProjectID,
		ProjectName: p.ProjectName,
		Count:       p.Count,
		Data:        make([]wireRecord, len(p.Data)),
		GeneratedAt: wireTime(p.GeneratedAt),
	}
	for i, r := range p.Data {
		md := r.Metadata
		if md == nil {
			md = models.Metadata{}
		}
		wb.Data[i] = wireRecord{
			ID:        r.ID,
			ProjectID: r.ProjectID,
			CreatedAt: wireTime(r.CreatedAt),
			UpdatedAt: wireTime(r.UpdatedAt),
			Status:    r.Status,
			Data:      r.Data,
			Metadata:  md,
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wb); err != nil {
		return nil, fmt.Errorf("%w: encode payload: %w", models.ErrValidation, err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

var (
	bodyMembers   = []string{"projectId", "projectName", "count", "data", "generatedAt"}
	recordMembers = []string{"id", "projectId", "createdAt", "updatedAt", "status", "data", "metadata"}
)

func decodeBody(body []byte) (models.TransferPayload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return models.TransferPayload{}, fmt.Errorf("%w: payload is not an object: %w", models.ErrValidation, err)
	}
	if err := requireMembers("payload", top, bodyMembers); err != nil {
		return models.TransferPayload{}, err
	}

	var records []map[string]json.RawMessage
	if err := json.Unmarshal(top["data"], &records); err != nil {
		return models.TransferPayload{}, fmt.Errorf("%w: data must be an array of objects: %w", models.ErrValidation, err)
	}
	for i, rec := range records {
		if err := requireMembers(fmt.Sprintf("data[%d]", i), rec, recordMembers); err != nil {
			return models.TransferPayload{}, err
		}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var wb wireBody
	if err := dec.Decode(&wb); err != nil {
		if errors.Is(err, models.ErrValidation) {
			return models.TransferPayload{}, err
		}
		return models.TransferPayload{}, fmt.Errorf("%w: decode payload: %w", models.ErrValidation, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return models.TransferPayload{}, fmt.Errorf("%w: trailing data after payload", models.ErrValidation)
	}

	if wb.Count != len(wb.Data) {
		return models.TransferPayload{}, fmt.Errorf("%w: count %d does not match %d records", models.ErrValidation, wb.Count, len(wb.Data))
	}

	p := models.TransferPayload{
		ProjectID:   wb.ProjectID,
		ProjectName: wb.ProjectName,
		Count:       wb.Count,
		Data:        make([]models.Record, len(wb.Data)),
		GeneratedAt: time.Time(wb.GeneratedAt),
	}
	for i, r := range wb.Data {
		if r.ID == "" {
			return models.TransferPayload{}, fmt.Errorf("%w: data[%d] without id", models.ErrValidation, i)
		}
		md := r.Metadata
		if len(md) == 0 {
			md = nil
		}
		p.Data[i] = models.Record{
			ID:        r.ID,
			ProjectID: r.ProjectID,
			CreatedAt: time.Time(r.CreatedAt),
			UpdatedAt: time.Time(r.UpdatedAt),
			Status:    r.Status,
			Data:      r.Data,
			Metadata:  md,
		}
	}

	return p, nil
}

func requireMembers(where string, obj map[string]json.RawMessage, names []string) error {
	for _, name := range names {
		raw, ok := obj[name]
		if !ok || (string(raw) == "null" && name != "metadata") {
			return fmt.Errorf("%w: %s is missing %q", models.ErrValidation, where, name)
		}
	}
	return nil
}

func checkUTF8(where, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s is not valid UTF-8", models.ErrValidation, where)
	}
	return nil
}

func checkRecordUTF8(r models.Record) error {
	for _, f := range r.Data {
		if err := checkUTF8("field name", f.Name); err != nil {
			return err
		}
		if text, ok := f.Value.Text(); ok {
			if err := checkUTF8(fmt.Sprintf("field %q", f.Name), text); err != nil {
				return err
			}
		}
	}
	for k, v := range r.Metadata {
		if err := checkUTF8("metadata key", k); err != nil {
			return err
		}
		if err := checkUTF8(fmt.Sprintf("metadata %q", k), v); err != nil {
			return err
		}
	}
	return nil
}
