package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rzpsarthak13/rematerializer/internal/core"
)

// Coerce converts a caller-supplied value to the logical Go value of kind.
// Unlike the row mapper it never truncates: fractional numbers bound to
// integer kinds, out-of-range values and unparseable text are errors.
// A nil value stays nil.
func Coerce(value any, kind core.ColumnKind) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch kind {
	case core.KindTinyInt:
		i, err := exactInt(value, math.MinInt8, math.MaxInt8, kind)
		return int8(i), err
	case core.KindSmallInt:
		i, err := exactInt(value, math.MinInt16, math.MaxInt16, kind)
		return int16(i), err
	case core.KindInteger:
		i, err := exactInt(value, math.MinInt32, math.MaxInt32, kind)
		return int32(i), err
	case core.KindBigInt:
		return exactInt(value, math.MinInt64, math.MaxInt64, kind)
	case core.KindFloat:
		return exactFloat(value)
	case core.KindDecimal:
		return exactDecimal(value)
	case core.KindVarchar:
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case core.KindVarbinary:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	case core.KindTimestamp:
		return exactTime(value)
	case core.KindBoolean:
		return exactBool(value)
	case core.KindInvalid:
		return nil, fmt.Errorf("cannot bind %T to an invalid column kind", value)
	}
	return nil, fmt.Errorf("cannot convert %T to %s", value, kind)
}

func exactInt(value any, lo, hi int64, kind core.ColumnKind) (int64, error) {
	var i int64
	switch v := value.(type) {
	case int:
		i = int64(v)
	case int8:
		i = int64(v)
	case int16:
		i = int64(v)
	case int32:
		i = int64(v)
	case int64:
		i = v
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows %s", v, kind)
		}
		i = int64(v)
	case uint8:
		i = int64(v)
	case uint16:
		i = int64(v)
	case uint32:
		i = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows %s", v, kind)
		}
		i = int64(v)
	case float32:
		return exactInt(float64(v), lo, hi, kind)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		// float64(hi) rounds up to 2^63 for BIGINT; hi+1 is exact at every width.
		if v < float64(lo) || v >= float64(hi)+1 {
			return 0, fmt.Errorf("value %v overflows %s", v, kind)
		}
		return int64(v), nil
	case decimal.Decimal:
		if !v.IsInteger() {
			return 0, fmt.Errorf("value %s is not an integer", v)
		}
		if v.LessThan(decimal.NewFromInt(lo)) || v.GreaterThan(decimal.NewFromInt(hi)) {
			return 0, fmt.Errorf("value %s overflows %s", v, kind)
		}
		return v.IntPart(), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to %s: %w", kind, err)
		}
		i = parsed
	default:
		return 0, fmt.Errorf("cannot convert %T to %s", value, kind)
	}

	if i < lo || i > hi {
		return 0, fmt.Errorf("value %d overflows %s", i, kind)
	}
	return i, nil
}

func exactFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case decimal.Decimal:
		f, exact := v.Float64()
		if !exact {
			return 0, fmt.Errorf("value %s cannot be represented exactly as FLOAT", v)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to FLOAT: %w", err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to FLOAT", value)
	}
}

func exactDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int8:
		return decimal.NewFromInt(int64(v)), nil
	case int16:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, fmt.Errorf("value %v cannot be represented as DECIMAL", v)
		}
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("cannot convert string to DECIMAL: %w", err)
		}
		return d, nil
	case []byte:
		return exactDecimal(string(v))
	default:
		return decimal.Decimal{}, fmt.Errorf("cannot convert %T to DECIMAL", value)
	}
}

// exactTime accepts time values, known text layouts and integers, which are
// read as microseconds since the Unix epoch.
func exactTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("cannot convert nil *time.Time to TIMESTAMP")
		}
		return v.UTC(), nil
	case string:
		return parseTime(v)
	case int64:
		return time.UnixMicro(v).UTC(), nil
	case int:
		return time.UnixMicro(int64(v)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to TIMESTAMP", value)
	}
}

func exactBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int, int8, int16, int32, int64:
		i, _ := exactInt(v, math.MinInt64, math.MaxInt64, core.KindBigInt)
		if i != 0 && i != 1 {
			return false, fmt.Errorf("value %d is not a BOOLEAN", i)
		}
		return i == 1, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("cannot convert string to BOOLEAN: %w", err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("cannot convert %T to BOOLEAN", value)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time string: %s", s)
}
