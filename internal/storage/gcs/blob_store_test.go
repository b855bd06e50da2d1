package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorIs(t, err, enrich.ErrConfiguration)

	_, err = Open(context.Background(), Config{})
	require.ErrorIs(t, err, enrich.ErrConfiguration)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s, err := New(client, Config{Bucket: "pqrd", Prefix: "/runs/2024/"})
	require.NoError(t, err)
	assert.Equal(t, "runs/2024/attachments/1/a.pdf", s.ObjectName("/attachments/1/a.pdf"))

	bare, err := New(client, Config{Bucket: "pqrd"})
	require.NoError(t, err)
	assert.Equal(t, "checkpoints/x.xlsx", bare.ObjectName("checkpoints/x.xlsx"))
	require.NoError(t, bare.Close())
}
