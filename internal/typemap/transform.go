package typemap

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"db-migrate/internal/dialect"

	"github.com/lib/pq"
)

// Transform converts one value read from the source into the representation
// the target expects. A Transform never panics: when a value cannot be
// converted it is returned unchanged.
type Transform func(v any) any

// GetValueTransformation returns the coercion needed to move values of
// sourceType into a column of targetType, or nil when the value
// representation is the same on both sides.
func GetValueTransformation(sourceType, targetType string, from, to dialect.Kind) Transform {
	if from == to {
		return nil
	}
	src, dst := FamilyOf(sourceType), FamilyOf(targetType)

	var fn Transform
	switch to {
	case dialect.SQLite:
		switch {
		case src == FamilyArray:
			fn = arrayToJSON
		case src == FamilyBoolean && dst != FamilyBoolean:
			fn = boolToInt
		case src == FamilyJSON:
			fn = jsonToText
		case src == FamilyTemporal:
			fn = temporalToText(BaseType(sourceType))
		case src == FamilyNumeric || src == FamilyUUID || (src == FamilyOther && dst != FamilyBinary):
			// lib/pq hands these over as their text encoding in []byte
			fn = bytesToString
		}
	case dialect.Postgres:
		switch {
		case dst == FamilyArray:
			fn = jsonToArray
		case dst == FamilyBoolean:
			fn = toBool
		case dst == FamilyJSON:
			fn = jsonToText
		case dst == FamilyTemporal:
			fn = textToTime
		}
	}
	if fn == nil {
		return nil
	}
	return safe(fn)
}

// safe guards fn so that nil passes through and a panic yields the input.
func safe(fn Transform) Transform {
	return func(v any) (out any) {
		if v == nil {
			return nil
		}
		defer func() {
			if recover() != nil {
				out = v
			}
		}()
		return fn(v)
	}
}

func boolToInt(v any) any {
	switch b := v.(type) {
	case bool:
		if b {
			return int64(1)
		}
		return int64(0)
	case []byte:
		return boolToInt(string(b))
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return boolToInt(parsed)
		}
	}
	return v
}

func toBool(v any) any {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	case []byte:
		return toBool(string(x))
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n != 0
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		switch strings.ToLower(s) {
		case "yes", "y", "on":
			return true
		case "no", "n", "off":
			return false
		}
	}
	return v
}

func arrayToJSON(v any) any {
	var arr pq.StringArray
	if err := arr.Scan(v); err != nil {
		return v
	}
	if arr == nil {
		arr = pq.StringArray{}
	}
	payload, err := json.Marshal([]string(arr))
	if err != nil {
		return v
	}
	return string(payload)
}

func jsonToArray(v any) any {
	var raw []byte
	switch x := v.(type) {
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	default:
		return v
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return v
	}
	arr := make(pq.StringArray, len(items))
	for i, item := range items {
		switch s := item.(type) {
		case string:
			arr[i] = s
		default:
			b, err := json.Marshal(s)
			if err != nil {
				return v
			}
			arr[i] = string(b)
		}
	}
	return arr
}

func jsonToText(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case json.RawMessage:
		return string(x)
	case map[string]any, []any:
		payload, err := json.Marshal(x)
		if err != nil {
			return v
		}
		return string(payload)
	}
	return v
}

func bytesToString(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func temporalToText(base string) Transform {
	layout := time.RFC3339Nano
	switch base {
	case "DATE":
		layout = time.DateOnly
	case "TIME":
		layout = "15:04:05.999999999"
	case "TIME WITH TIME ZONE":
		layout = "15:04:05.999999999Z07:00"
	}
	return func(v any) any {
		switch x := v.(type) {
		case time.Time:
			if base == "TIMESTAMP" {
				return x.Format("2006-01-02T15:04:05.999999999")
			}
			return x.Format(layout)
		case []byte:
			return string(x)
		}
		return v
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
	"15:04:05.999999999",
}

func textToTime(v any) any {
	var s string
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		s = x
	case []byte:
		s = string(x)
	case int64:
		return time.Unix(x, 0).UTC()
	default:
		return v
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return v
}
