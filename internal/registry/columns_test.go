package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/rematerializer/internal/core"
)

func accountColumns() []core.Column {
	return []core.Column{
		{Name: "id", Kind: core.KindInteger},
		{Name: "balance", Kind: core.KindDecimal},
		{Name: "name", Kind: core.KindVarchar},
	}
}

func TestNewColumnTypes(t *testing.T) {
	ct, err := NewColumnTypes(accountColumns(), []string{"id"})
	require.NoError(t, err)

	assert.Equal(t, 3, ct.Len())
	assert.Equal(t, []string{"id", "balance", "name"}, ct.ColumnNames())
	assert.Equal(t, []string{"id"}, ct.PrimaryKey())
	assert.Equal(t, 1, ct.PrimaryKeyLen())

	kind, ok := ct.KindAt(1)
	require.True(t, ok)
	assert.Equal(t, core.KindDecimal, kind)

	kind, ok = ct.KindOf("NAME")
	require.True(t, ok)
	assert.Equal(t, core.KindVarchar, kind)

	col, ok := ct.PrimaryKeyColumn(0)
	require.True(t, ok)
	assert.Equal(t, core.Column{Name: "id", Kind: core.KindInteger}, col)

	_, ok = ct.KindAt(3)
	assert.False(t, ok)
	_, ok = ct.PrimaryKeyColumn(1)
	assert.False(t, ok)
}

func TestNewColumnTypes_CompositeKeyOrder(t *testing.T) {
	cols := []core.Column{
		{Name: "region", Kind: core.KindVarchar},
		{Name: "seq", Kind: core.KindBigInt},
		{Name: "payload", Kind: core.KindVarbinary},
	}
	ct, err := NewColumnTypes(cols, []string{"seq", "region"})
	require.NoError(t, err)

	first, _ := ct.PrimaryKeyColumn(0)
	second, _ := ct.PrimaryKeyColumn(1)
	assert.Equal(t, "seq", first.Name)
	assert.Equal(t, "region", second.Name)
}

func TestNewColumnTypes_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		columns []core.Column
		pk      []string
		wantErr string
	}{
		{"no columns", nil, []string{"id"}, "at least one column"},
		{"no key", accountColumns(), nil, "at least one primary key"},
		{"unknown key", accountColumns(), []string{"missing"}, "not a declared column"},
		{"duplicate key", accountColumns(), []string{"id", "ID"}, "more than once"},
		{"empty name", []core.Column{{Name: " ", Kind: core.KindInteger}}, []string{"id"}, "empty name"},
		{"no kind", []core.Column{{Name: "id"}}, []string{"id"}, "has no type"},
		{
			"duplicate column",
			[]core.Column{{Name: "id", Kind: core.KindInteger}, {Name: "Id", Kind: core.KindBigInt}},
			[]string{"id"},
			"declared more than once",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewColumnTypes(tt.columns, tt.pk)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestColumnsReturnsCopy(t *testing.T) {
	ct, err := NewColumnTypes(accountColumns(), []string{"id"})
	require.NoError(t, err)

	cols := ct.Columns()
	cols[0].Kind = core.KindVarchar

	kind, _ := ct.KindAt(0)
	assert.Equal(t, core.KindInteger, kind)
}

func TestFromDefinitions(t *testing.T) {
	ct, err := FromDefinitions([]Definition{
		{Name: "id", Type: "integer"},
		{Name: "balance", Type: "NUMERIC(12,2)"},
		{Name: "name", Type: "varchar(64)"},
	}, []string{"id"})
	require.NoError(t, err)

	kind, _ := ct.KindOf("balance")
	assert.Equal(t, core.KindDecimal, kind)

	_, err = FromDefinitions([]Definition{{Name: "id", Type: "GEOGRAPHY"}}, []string{"id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "id"`)
}
