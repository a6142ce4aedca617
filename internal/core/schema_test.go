package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseColumnKind(t *testing.T) {
	tests := []struct {
		in   string
		want ColumnKind
	}{
		{"INTEGER", KindInteger},
		{"int", KindInteger},
		{" bigint ", KindBigInt},
		{"VARCHAR(64)", KindVarchar},
		{"numeric(12, 2)", KindDecimal},
		{"double precision", KindFloat},
		{"bytea", KindVarbinary},
		{"datetime", KindTimestamp},
		{"bool", KindBoolean},
		{"TinyInt", KindTinyInt},
		{"smallint", KindSmallInt},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColumnKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseColumnKind_Unknown(t *testing.T) {
	_, err := ParseColumnKind("GEOMETRY")
	assert.Error(t, err)

	_, err = ParseColumnKind("")
	assert.Error(t, err)
}

func TestColumnKind_String(t *testing.T) {
	assert.Equal(t, "DECIMAL", KindDecimal.String())
	assert.Equal(t, "ColumnKind(0)", KindInvalid.String())
	assert.True(t, KindSmallInt.IsInteger())
	assert.False(t, KindDecimal.IsInteger())
}

func TestColumn_YAML(t *testing.T) {
	var cols []Column
	err := yaml.Unmarshal([]byte("- name: id\n  type: integer\n- name: balance\n  type: NUMERIC(10,2)\n"), &cols)
	require.NoError(t, err)

	assert.Equal(t, []Column{
		{Name: "id", Kind: KindInteger},
		{Name: "balance", Kind: KindDecimal},
	}, cols)

	out, err := yaml.Marshal(cols[1])
	require.NoError(t, err)
	assert.Contains(t, string(out), "type: DECIMAL")

	_, err = KindInvalid.MarshalText()
	assert.Error(t, err)
}
