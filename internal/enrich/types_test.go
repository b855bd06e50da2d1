package enrich

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultFields(t *testing.T) {
	t.Parallel()

	res := Result{
		Motivos:     "desc",
		Motivos2:    "reason",
		Seguimiento: "[1] a: b",
		Links:       []string{"https://x/anex-download/1", "https://x/anex-download/2"},
	}
	at := time.Date(2024, 5, 1, 3, 0, 0, 0, time.FixedZone("COT", -5*3600))
	fields := res.Fields(DefaultColumns(), at)
	assert.Equal(t, Fields{
		"Motivos":     "desc",
		"Motivos2":    "reason",
		"Seguimiento": "[1] a: b",
		"Expediente":  "https://x/anex-download/1\nhttps://x/anex-download/2",
		"Enriquecido": "2024-05-01T08:00:00Z",
	}, fields)
}

func TestEmptyResultFieldsStillStamped(t *testing.T) {
	t.Parallel()

	cols := DefaultColumns()
	fields := Result{}.Fields(cols, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	require.Len(t, fields, 5)
	for _, col := range []string{cols.Motivos, cols.Motivos2, cols.Seguimiento, cols.Expediente} {
		assert.Empty(t, fields[col], col)
	}
	assert.True(t, cols.Complete(fields[cols.Seguimiento], fields[cols.Attempted]))

	cols.Attempted = ""
	fields = Result{}.Fields(cols, time.Now())
	assert.Len(t, fields, 4)
	assert.Equal(t, []string{"Motivos", "Motivos2", "Seguimiento", "Expediente"}, cols.Enrichment())
}

func TestColumnsComplete(t *testing.T) {
	t.Parallel()

	cols := DefaultColumns()
	assert.False(t, cols.Complete("", ""))
	assert.False(t, cols.Complete("  ", " "))
	assert.True(t, cols.Complete("[1] a: b", ""))
	assert.True(t, cols.Complete("", "2024-05-01T08:00:00Z"))

	cols.Attempted = ""
	assert.False(t, cols.Complete("", "2024-05-01T08:00:00Z"))
}

func TestColumnsResolveID(t *testing.T) {
	t.Parallel()

	header := []string{"a", "b", "c", "d", "e", "NURC", "g"}

	name, err := DefaultColumns().ResolveID(header)
	require.NoError(t, err)
	assert.Equal(t, "NURC", name)

	cols := DefaultColumns()
	cols.ID = "b"
	name, err = cols.ResolveID(header)
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	cols.ID = "missing"
	_, err = cols.ResolveID(header)
	assert.ErrorIs(t, err, ErrStore)

	_, err = DefaultColumns().ResolveID([]string{"only"})
	assert.ErrorIs(t, err, ErrStore)
}

func TestCredentialsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Credentials{Username: "u", Password: "p"}.Validate())

	err := Credentials{Username: "u"}.Validate()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "password")

	err = Credentials{}.Validate()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "username and password")
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	assert.True(t, IsFatal(fmt.Errorf("x: %w", ErrConfiguration)))
	assert.True(t, IsFatal(fmt.Errorf("x: %w", ErrAuthentication)))
	assert.True(t, IsFatal(fmt.Errorf("x: %w", ErrSession)))
	assert.True(t, IsFatal(fmt.Errorf("x: %w", ErrStore)))
	assert.False(t, IsFatal(fmt.Errorf("x: %w", ErrExtraction)))
	assert.False(t, IsFatal(fmt.Errorf("x: %w", ErrAttachment)))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}
