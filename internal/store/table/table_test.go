package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablePadsAndReads(t *testing.T) {
	t.Parallel()

	tbl := New([]string{"a", "b", "c"}, [][]string{{"1"}, {"2", "x", "y"}})
	require.Equal(t, 2, tbl.Len())

	v, ok := tbl.Value(0, "c")
	assert.True(t, ok)
	assert.Empty(t, v)

	v, ok = tbl.Value(1, "b")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = tbl.Value(0, "missing")
	assert.False(t, ok)
	_, ok = tbl.Value(5, "a")
	assert.False(t, ok)
}

func TestTableEnsureColumnAndSet(t *testing.T) {
	t.Parallel()

	tbl := New([]string{"a"}, [][]string{{"1"}, {"2"}})
	tbl.EnsureColumn("Seguimiento")
	tbl.EnsureColumn("Seguimiento")
	assert.Equal(t, []string{"a", "Seguimiento"}, tbl.Header())

	require.NoError(t, tbl.Set(1, "Seguimiento", "done"))
	assert.Equal(t, [][]string{{"1", ""}, {"2", "done"}}, tbl.Rows())

	assert.Error(t, tbl.Set(2, "a", "x"))
	assert.Error(t, tbl.Set(0, "nope", "x"))
}

func TestTableRowsIsCopy(t *testing.T) {
	t.Parallel()

	tbl := New([]string{"a"}, [][]string{{"1"}})
	rows := tbl.Rows()
	rows[0][0] = "mutated"
	v, _ := tbl.Value(0, "a")
	assert.Equal(t, "1", v)
}

func TestTableKeepsCellsBeyondHeader(t *testing.T) {
	t.Parallel()

	tbl := New([]string{"a", "b"}, [][]string{{"1", "x", "nota"}, {"2"}})
	assert.Equal(t, []string{"a", "b", ""}, tbl.Header())
	assert.Equal(t, "nota", tbl.At(0, 2))

	tbl.EnsureColumn("Seguimiento")
	col, ok := tbl.Column("Seguimiento")
	require.True(t, ok)
	assert.Equal(t, 3, col)
	assert.Equal(t, [][]string{{"1", "x", "nota", ""}, {"2", "", "", ""}}, tbl.Rows())
	assert.Empty(t, tbl.At(5, 0))
}
