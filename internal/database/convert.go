package database

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/juju/errors"
	"gorm.io/datatypes"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/resource"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// convertValue coerces a decoded JSON value into the Go type of f.
func convertValue(f backend.Field, v any, stripTZ bool) (any, error) {
	switch f.Type {
	case backend.String:
		return toString(v), nil
	case backend.Int:
		if v == nil {
			return int64(0), nil
		}
		return toInt(v)
	case backend.NullInt:
		if isNull(v) {
			return (*int64)(nil), nil
		}
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return &n, nil
	case backend.Float:
		if v == nil {
			return float64(0), nil
		}
		return toFloat(v)
	case backend.NullFloat:
		if isNull(v) {
			return (*float64)(nil), nil
		}
		x, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return &x, nil
	case backend.Bool:
		if v == nil {
			return false, nil
		}
		return toBool(v)
	case backend.NullBool:
		if isNull(v) {
			return (*bool)(nil), nil
		}
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		return &b, nil
	case backend.Time:
		if isNull(v) {
			return time.Time{}, nil
		}
		return toTime(v, stripTZ)
	case backend.NullTime:
		if isNull(v) {
			return (*time.Time)(nil), nil
		}
		t, err := toTime(v, stripTZ)
		if err != nil {
			return nil, err
		}
		return &t, nil
	case backend.JSON:
		return toJSON(v)
	}
	return nil, errors.NotSupportedf("value type %d", f.Type)
}

func isNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case *int64:
		return t == nil
	case *float64:
		return t == nil
	case *bool:
		return t == nil
	case *time.Time:
		return t == nil
	}
	return false
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case *string:
		if t == nil {
			return ""
		}
		return *t
	}
	data, err := gojson.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case *int64:
		if t == nil {
			return 0, nil
		}
		return *t, nil
	case bool:
		return 0, errors.NotValidf("boolean %v as integer", t)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, nil
		}
		return 0, errors.NotValidf("integer %q", t)
	}
	if n, ok := resource.AsID(v); ok {
		return n, nil
	}
	if f, ok := v.(float64); ok && !math.IsNaN(f) {
		return 0, errors.NotValidf("non-integral number %v", f)
	}
	return 0, errors.NotValidf("integer %v (%T)", v, v)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case *float64:
		if t == nil {
			return 0, nil
		}
		return *t, nil
	case json.Number:
		return t.Float64()
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errors.NotValidf("number %q", t)
		}
		return x, nil
	}
	return 0, errors.NotValidf("number %v (%T)", v, v)
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case *bool:
		return t != nil && *t, nil
	case float64:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, errors.NotValidf("boolean %q", t)
		}
		return b, nil
	}
	return false, errors.NotValidf("boolean %v (%T)", v, v)
}

func toTime(v any, stripTZ bool) (time.Time, error) {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return time.Time{}, nil
		}
		t = *x
	case string:
		parsed, err := parseTime(x)
		if err != nil {
			return time.Time{}, err
		}
		t = parsed
	case float64:
		t = time.Unix(int64(x), 0)
	case int64:
		t = time.Unix(x, 0)
	default:
		return time.Time{}, errors.NotValidf("timestamp %v (%T)", v, v)
	}
	if stripTZ {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	return t, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.NotValidf("timestamp %q", s)
}

func toJSON(v any) (datatypes.JSON, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case datatypes.JSON:
		return t, nil
	case json.RawMessage:
		return datatypes.JSON(t), nil
	case []byte:
		return datatypes.JSON(t), nil
	}
	data, err := gojson.Marshal(v)
	if err != nil {
		return nil, errors.Annotate(err, "encoding JSON field")
	}
	return datatypes.JSON(data), nil
}
