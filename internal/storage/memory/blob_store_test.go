package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStore(t *testing.T) {
	t.Parallel()

	s := NewBlobStore()
	uri, err := s.PutObject(context.Background(), "b/x.csv", "text/csv", strings.NewReader("a,b"))
	require.NoError(t, err)
	assert.Equal(t, "memory://b/x.csv", uri)
	_, err = s.PutObject(context.Background(), "a/y.bin", "", strings.NewReader("y"))
	require.NoError(t, err)

	data, ok := s.Get("b/x.csv")
	require.True(t, ok)
	assert.Equal(t, "a,b", string(data))
	assert.Equal(t, "text/csv", s.ContentType("b/x.csv"))
	assert.Equal(t, []string{"a/y.bin", "b/x.csv"}, s.Paths())

	boom := errors.New("quota")
	s.Fail(boom)
	_, err = s.PutObject(context.Background(), "c", "", strings.NewReader(""))
	require.ErrorIs(t, err, boom)
}
