package schema

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rzpsarthak13/rematerializer/internal/core"
)

// KindResolver resolves the logical kind of a destination column by position.
type KindResolver interface {
	Len() int
	KindAt(position int) (core.ColumnKind, bool)
}

// Mapper converts driver-native row values into the cache's logical values.
type Mapper struct {
	dialect core.Dialect
}

// NewMapper creates a row mapper. The dialect normalizes vendor wrappers and may be nil.
func NewMapper(dialect core.Dialect) *Mapper {
	return &Mapper{dialect: dialect}
}

// Map converts one result row. The row must have exactly one value per
// destination column; the output is in the same order.
func (m *Mapper) Map(values []any, kinds KindResolver) ([]any, error) {
	if kinds == nil {
		return nil, fmt.Errorf("column types cannot be nil")
	}
	if len(values) != kinds.Len() {
		return nil, fmt.Errorf("row has %d values, expected %d columns", len(values), kinds.Len())
	}

	out := make([]any, len(values))
	for i, raw := range values {
		kind, ok := kinds.KindAt(i)
		if !ok {
			return nil, fmt.Errorf("no column type for position %d", i)
		}
		v, err := m.MapValue(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("column %d (%s): %w", i, kind, err)
		}
		out[i] = v
	}
	return out, nil
}

// MapValue converts a single driver-native value to the logical value of kind.
//
// Integer kinds narrow to the declared width with truncation of any fraction
// and two's complement wrap-around; there is no range check. Decimal values
// pass through unchanged. Values of kinds without a specific rule are
// returned as they arrived.
func (m *Mapper) MapValue(raw any, kind core.ColumnKind) (any, error) {
	v, err := m.normalize(raw)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}

	switch kind {
	case core.KindTinyInt:
		i, err := truncatedInt(v)
		return int8(i), err
	case core.KindSmallInt:
		i, err := truncatedInt(v)
		return int16(i), err
	case core.KindInteger:
		i, err := truncatedInt(v)
		return int32(i), err
	case core.KindBigInt:
		return truncatedInt(v)
	case core.KindFloat:
		return toFloat(v)
	case core.KindDecimal:
		return exactDecimal(v)
	case core.KindVarchar:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	case core.KindVarbinary:
		if s, ok := v.(string); ok {
			return []byte(s), nil
		}
		return v, nil
	case core.KindTimestamp:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			return parseTime(t)
		case []byte:
			return parseTime(string(t))
		}
		return v, nil
	case core.KindBoolean:
		switch b := v.(type) {
		case int64:
			return b != 0, nil
		case []byte:
			return strconv.ParseBool(string(b))
		}
		return v, nil
	case core.KindInvalid:
		return nil, fmt.Errorf("invalid column kind")
	}
	return v, nil
}

// normalize applies the dialect's vendor conversions and unwraps driver.Valuer
// wrappers such as sql.NullTime.
func (m *Mapper) normalize(raw any) (any, error) {
	v := raw
	if m.dialect != nil {
		var err error
		if v, err = m.dialect.NormalizeValue(v); err != nil {
			return nil, err
		}
	}

	switch v.(type) {
	case nil, decimal.Decimal:
		return v, nil
	}
	if valuer, ok := v.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		return val, nil
	}
	return v, nil
}

func truncatedInt(value any) (int64, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v.IntPart(), nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("value %v is not a finite number", v)
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to integer: %w", err)
		}
		return d.IntPart(), nil
	case []byte:
		return truncatedInt(string(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", value)
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	case []byte:
		return toFloat(string(v))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to FLOAT: %w", err)
		}
		return f, nil
	case uint64:
		return float64(v), nil
	default:
		return exactFloat(value)
	}
}
