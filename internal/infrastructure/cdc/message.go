// Package cdc implements the change-data-capture websocket client: dialing
// the upstream feed, decoding frames, and reconnecting with a bounded
// back-off, the way websocket.rs/ws_message.rs do in the original daemon
// (there, against tokio-tungstenite; here, against fasthttp/websocket).
package cdc

import (
	"encoding/json"
	"fmt"
)

// Kind is the mutation kind carried by a CDC frame.
type Kind string

// CDC kinds.
const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Change is the wire envelope for one CDC frame: parallel columnnames and
// columnvalues arrays, positionally aligned. columnvalues items are
// untagged scalars of type bool | i32 | string | null.
type Change struct {
	Kind         Kind              `json:"kind"`
	Table        string            `json:"table"`
	ColumnNames  []string          `json:"columnnames"`
	ColumnValues []json.RawMessage `json:"columnvalues"`
}

// Fields decodes columnnames/columnvalues into a name -> scalar map. A
// malformed frame (mismatched array lengths, unparsable JSON) returns an
// error so the caller can log and drop the frame without panicking.
func (c *Change) Fields() (map[string]any, error) {
	if len(c.ColumnNames) != len(c.ColumnValues) {
		return nil, fmt.Errorf("cdc: columnnames/columnvalues length mismatch (%d != %d)", len(c.ColumnNames), len(c.ColumnValues))
	}

	fields := make(map[string]any, len(c.ColumnNames))
	for i, name := range c.ColumnNames {
		var v any
		if err := json.Unmarshal(c.ColumnValues[i], &v); err != nil {
			return nil, fmt.Errorf("cdc: cannot decode column %q: %w", name, err)
		}
		fields[name] = v
	}
	return fields, nil
}

// StringField reads a string column, tolerating a JSON null by returning "".
func StringField(fields map[string]any, name string) (string, bool) {
	v, ok := fields[name]
	if !ok || v == nil {
		return "", ok
	}
	s, ok := v.(string)
	return s, ok
}

// IntField reads a numeric column as an int, tolerating the fact that
// encoding/json decodes untagged numbers as float64.
func IntField(fields map[string]any, name string) (int, bool) {
	v, ok := fields[name]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// BoolField reads a boolean column.
func BoolField(fields map[string]any, name string) (bool, bool) {
	v, ok := fields[name]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
