package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/rematerializer/internal/core"
	"github.com/rzpsarthak13/rematerializer/internal/registry"
)

func eventColumns(t *testing.T) *registry.ColumnTypes {
	t.Helper()
	ct, err := registry.NewColumnTypes([]core.Column{
		{Name: "region", Kind: core.KindVarchar},
		{Name: "seq", Kind: core.KindBigInt},
		{Name: "amount", Kind: core.KindDecimal},
		{Name: "at", Kind: core.KindTimestamp},
	}, []string{"region", "seq"})
	require.NoError(t, err)
	return ct
}

func TestParseKey(t *testing.T) {
	ct := eventColumns(t)

	key, err := parseKey(ct, []string{"eu", "17"})
	require.NoError(t, err)
	assert.Equal(t, []any{"eu", int64(17)}, key)

	key, err = parseKey(ct, []string{"eu"})
	require.NoError(t, err)
	assert.Equal(t, []any{"eu"}, key)

	_, err = parseKey(ct, []string{"eu", "seventeen"})
	assert.ErrorContains(t, err, "key column seq (BIGINT)")

	_, err = parseKey(ct, []string{"eu", "1", "2"})
	assert.ErrorContains(t, err, "primary key has 2 columns")
}

func TestParseValue(t *testing.T) {
	v, err := parseValue("100.50", core.KindDecimal)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("100.5").Equal(v.(decimal.Decimal)))

	v, err = parseValue("2024-01-02T03:04:05Z", core.KindTimestamp)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), v)

	v, err = parseValue("true", core.KindBoolean)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = parseValue("abc", core.KindVarbinary)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)

	_, err = parseValue("1", core.KindInvalid)
	assert.Error(t, err)
}

func TestRenderRow(t *testing.T) {
	ct := eventColumns(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, renderRow(&buf, ct, []any{"eu", int64(17), decimal.RequireFromString("9.99"), at}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 4)
	assert.Equal(t, "region", got[0]["column"])
	assert.Equal(t, "VARCHAR", got[0]["type"])
	assert.Equal(t, float64(17), got[1]["value"])
	assert.Equal(t, "9.99", got[2]["value"])
	assert.Equal(t, "2024-01-02T03:04:05Z", got[3]["value"])

	buf.Reset()
	require.NoError(t, renderRow(&buf, ct, nil))
	assert.Equal(t, "null\n", buf.String())
}
