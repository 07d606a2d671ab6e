package resource

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Row is one remote object as decoded from the API. Relation fields hold
// either a bare id or a nested Row (map[string]any), depending on depth.
type Row map[string]any

// ID returns the integer primary key of the row.
func (r Row) ID() (int64, bool) {
	return AsID(r["id"])
}

// AsRow converts a nested sub-object to a Row.
func AsRow(v any) (Row, bool) {
	switch t := v.(type) {
	case Row:
		return t, true
	case map[string]any:
		return Row(t), true
	}
	return nil, false
}

// AsID coerces a decoded JSON value into an integer id. Float values are
// accepted only when they carry no fractional part.
func AsID(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case float32:
		return AsID(float64(t))
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// MustID is like ID but panics on a row without a usable id.
func (r Row) MustID() int64 {
	id, ok := r.ID()
	if !ok {
		panic(fmt.Sprintf("row has no integer id: %v", r["id"]))
	}
	return id
}
