// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package telemetry

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Snapshot maps client keys to records, as served in one response.
// Keys keep the order they had on the wire.
type Snapshot struct {
	keys    []string
	records map[string]Record
}

// NewSnapshot builds a snapshot keyed by each record's client ID, in the given order.
func NewSnapshot(records ...Record) Snapshot {
	snap := Snapshot{records: make(map[string]Record, len(records))}
	for _, rec := range records {
		snap.set(rec.ClientID, rec)
	}
	return snap
}

func (s *Snapshot) set(key string, rec Record) {
	if _, ok := s.records[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.records[key] = rec
}

// Len gets the number of clients in the snapshot.
func (s Snapshot) Len() int {
	return len(s.keys)
}

// Keys gets the snapshot's keys in wire order.
func (s Snapshot) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Get looks up the record stored under key.
func (s Snapshot) Get(key string) (Record, bool) {
	rec, ok := s.records[key]
	return rec, ok
}

// Records gets every record in wire order.
// A record without a client_id is identified by its key.
func (s Snapshot) Records() []Record {
	records := make([]Record, 0, len(s.keys))
	for _, key := range s.keys {
		rec := s.records[key]
		if rec.ClientID == "" {
			rec.ClientID = key
		}
		records = append(records, rec)
	}
	return records
}

// UnmarshalJSON decodes a JSON object of records, remembering key order.
// A repeated key keeps its first position and its last value.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = Snapshot{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Errorf("Snapshot must be a JSON object, got %v", tok)
	}

	snap := Snapshot{records: make(map[string]Record)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.Errorf("Unexpected token %v", tok)
		}
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return errors.Wrapf(err, "Record %q", key)
		}
		snap.set(key, rec)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = snap
	return nil
}

// MarshalJSON encodes the snapshot as a JSON object in wire order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.records[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeError is returned when a response body cannot be parsed into a Snapshot.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "Decode snapshot: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeSnapshot parses a stats response body.
// Nothing is returned but the error if any part of the body is malformed.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, &DecodeError{Err: err}
	}
	return snap, nil
}

// IsDecodeError reports whether the cause of err is a DecodeError.
func IsDecodeError(err error) bool {
	_, ok := errors.Cause(err).(*DecodeError)
	return ok
}
