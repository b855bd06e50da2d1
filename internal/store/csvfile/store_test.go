package csvfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/store/csvfile"
)

func TestRoundTripIsByteStable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "records.csv")
	original := "NURC,Seguimiento\n123.0,\n456,done\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o600))

	store, err := csvfile.Open(path)
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())
	v, ok := store.Value(0, "NURC")
	require.True(t, ok)
	assert.Equal(t, "123.0", v)

	require.NoError(t, store.Save())
	// #nosec G304 -- test reads from the controlled temp directory.
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(got))
}

func TestSaveMultilineCells(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "records.csv")
	require.NoError(t, os.WriteFile(path, []byte("NURC\n1\n"), 0o600))

	store, err := csvfile.Open(path)
	require.NoError(t, err)
	store.EnsureColumn("Seguimiento")
	require.NoError(t, store.Set(0, "Seguimiento", "[a] b: c\n---\n[d] e: f"))
	require.NoError(t, store.Save())

	reopened, err := csvfile.Open(path)
	require.NoError(t, err)
	v, _ := reopened.Value(0, "Seguimiento")
	assert.Equal(t, "[a] b: c\n---\n[d] e: f", v)
}

func TestOpenMissing(t *testing.T) {
	t.Parallel()

	_, err := csvfile.Open(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, enrich.ErrStore)
}

func TestSaveKeepsCellsBeyondHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "records.csv")
	require.NoError(t, os.WriteFile(path, []byte("NURC,Seguimiento\n1,,nota sin encabezado\n2\n"), 0o600))

	store, err := csvfile.Open(path)
	require.NoError(t, err)
	store.EnsureColumn("Motivos")
	require.NoError(t, store.Set(0, "Motivos", "desc"))
	require.NoError(t, store.Save())

	// #nosec G304 -- test reads from the controlled temp directory.
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "NURC,Seguimiento,,Motivos\n1,,nota sin encabezado,desc\n2,,,\n", string(got))
}
