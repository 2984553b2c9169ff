// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package telemetry describes the per-client snapshot served by a WebRTC ingest server's stats endpoint.
package telemetry

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Record holds one client's state at the instant a snapshot was taken.
type Record struct {
	ClientID           string `json:"client_id"`
	Video              Frame  `json:"video"`
	Bps                Value  `json:"bps"`
	ICEConnectionState string `json:"ice_connection_state"`
	PortNum            Value  `json:"port_num"`
}

// A Value is a scalar the server may send as either a JSON number or a JSON string.
// Numbers keep their literal text, so 500000 is displayed as 500000.
type Value struct {
	text    string
	numeric bool
}

// Text creates a Value from a string.
func Text(s string) Value {
	return Value{text: s}
}

// Number creates a numeric Value from its literal text.
func Number(n string) Value {
	return Value{text: n, numeric: true}
}

// String gets the display text of a Value.
func (v Value) String() string {
	return v.text
}

// Numeric reports whether the value arrived as a JSON number.
func (v Value) Numeric() bool {
	return v.numeric
}

// Float parses the value as a number, whether it arrived as a number or as numeric text.
func (v Value) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// UnmarshalJSON accepts numbers, strings, booleans and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("Empty value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case 'n':
		// null is displayed as an empty cell.
		*v = Value{}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Text(strconv.FormatBool(b))
	case '{', '[':
		return errors.Errorf("Expected a number or a string, got %s", data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n.String())
	}
	return nil
}

// MarshalJSON writes the value back the way it arrived.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.numeric && v.text != "" {
		return []byte(v.text), nil
	}
	return json.Marshal(v.text)
}
