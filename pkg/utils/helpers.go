package utils

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses duration string like "5m"
func ParseDuration(d string) time.Duration {
	if d == "" {
		return 5 * time.Minute
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return 5 * time.Minute
	}
	return duration
}

// ParseValue turns a raw CSV cell into int, float64 or the trimmed string.
// Empty cells become nil so they count as missing. Text that parses to NaN
// or an infinity stays a string.
func ParseValue(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && isFinite(f) {
		return f
	}
	return s
}

// Numeric safely converts supported types to float64.
func Numeric(v interface{}) float64 {
	f, _ := CoerceFloat(v)
	if math.IsNaN(f) {
		return 0
	}
	return f
}

// CoerceFloat converts v to float64. Numeric strings are parsed; nil, bools,
// empty strings, unparseable text and non-finite values report ok=false
// with NaN.
func CoerceFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return math.NaN(), false
	case float64:
		if !isFinite(val) {
			return math.NaN(), false
		}
		return val, true
	case float32:
		if !isFinite(float64(val)) {
			return math.NaN(), false
		}
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return math.NaN(), false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !isFinite(f) {
			return math.NaN(), false
		}
		return f, true
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Float64 {
			f := rv.Convert(reflect.TypeOf(float64(0))).Float()
			if !isFinite(f) {
				return math.NaN(), false
			}
			return f, true
		}
		return math.NaN(), false
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsMissing reports whether a cell value should be treated as absent.
func IsMissing(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(val)
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}

// Round rounds f to the given number of decimal places.
func Round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
