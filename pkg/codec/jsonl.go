// Package codec implements the line-delimited JSON format used for both
// on-disk conversation logs and export/import payloads.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"contextdb/pkg/models"
)

// MalformedLineError reports the first line of a blob that failed to parse
// as a message record. Line is 1-based and counts non-blank lines from the
// top of the blob.
type MalformedLineError struct {
	Line int
	Err  error
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed line %d: %v", e.Line, e.Err)
}

func (e *MalformedLineError) Unwrap() error { return e.Err }

// EncodeLine serializes one record as a compact JSON object without a
// trailing newline; callers join lines themselves.
func EncodeLine(m models.MessageRecord) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message record: %w", err)
	}
	return b, nil
}

// DecodeLine parses one stored line into a record. The line must be a JSON
// object; arrays, scalars and truncated objects are rejected.
func DecodeLine(line []byte) (models.MessageRecord, error) {
	var m models.MessageRecord
	if !likelyObject(line) {
		return m, fmt.Errorf("not a JSON object")
	}
	if err := json.Unmarshal(line, &m); err != nil {
		return m, err
	}
	return m, nil
}

// DecodeAll splits a blob on newlines, discards blank lines (the writer
// leaves a trailing one) and parses each remaining line independently. It
// fails fast: the first bad line invalidates the whole decode. The result is
// never nil on success, so an all-blank blob decodes to a valid empty log.
func DecodeAll(blob []byte) ([]models.MessageRecord, error) {
	out := []models.MessageRecord{}
	n := 0
	for _, line := range bytes.Split(blob, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		n++
		m, err := DecodeLine(line)
		if err != nil {
			return nil, &MalformedLineError{Line: n, Err: err}
		}
		out = append(out, m)
	}
	return out, nil
}

// likelyObject reports whether b starts with '{' after leading whitespace.
func likelyObject(b []byte) bool {
	for _, c := range b {
		if c == ' ' || c == '\n' || c == '\r' || c == '\t' {
			continue
		}
		return c == '{'
	}
	return false
}
