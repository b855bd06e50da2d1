package attachment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/hash/sha256"
	"github.com/JakeFAU/pqrd-enricher/internal/storage/memory"
)

type fakeDownloader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (d *fakeDownloader) Download(_ context.Context, url, path string) error {
	d.mu.Lock()
	d.calls = append(d.calls, url)
	err := d.fail[url]
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(url), 0o600)
}

func TestFetchAllPreservesOrderAndIsolatesFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dl := &fakeDownloader{fail: map[string]error{"https://h/anex-download/bad.pdf": errors.New("status 500")}}
	f := NewFetcher(Config{Dir: dir, Concurrency: 2}, dl, sha256.NewTruncated(16), nil, zap.NewNop())

	links := []string{
		"https://h/anex-download/uno.pdf",
		"https://h/anex-download/bad.pdf",
		"https://h/anex-download/Acta%20final.docx",
	}
	out := f.FetchAll(context.Background(), "2024001", links)
	require.Len(t, out, 3)
	for i, o := range out {
		assert.Equal(t, links[i], o.Link)
	}
	assert.True(t, out[0].OK())
	assert.False(t, out[1].OK())
	assert.ErrorIs(t, out[1].Err, enrich.ErrAttachment)
	assert.True(t, out[2].OK())
	assert.Equal(t, filepath.Join(dir, "2024001", "Acta final.docx"), out[2].Path)
	assert.FileExists(t, out[0].Path)
	assert.Len(t, dl.calls, 3)
}

func TestFetchAllIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := NewFetcher(Config{Dir: dir}, &fakeDownloader{}, sha256.New(), nil, nil)
	links := []string{"https://h/anex-download/a.pdf"}

	first := f.FetchAll(context.Background(), "7", links)
	second := f.FetchAll(context.Background(), "7", links)
	require.True(t, first[0].OK())
	require.True(t, second[0].OK())
	assert.Equal(t, first[0].Path, second[0].Path)

	entries, err := os.ReadDir(filepath.Join(dir, "7"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFetchAllEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := NewFetcher(Config{Dir: dir}, &fakeDownloader{}, nil, nil, nil)
	assert.Empty(t, f.FetchAll(context.Background(), "8", nil))
	assert.NoDirExists(t, filepath.Join(dir, "8"))
}

func TestFetchAllFallbackAndCollisions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	hasher := sha256.NewTruncated(16)
	f := NewFetcher(Config{Dir: dir}, &fakeDownloader{}, hasher, nil, nil)
	links := []string{
		"https://h/",
		"https://h/x/acta.pdf",
		"https://h/y/acta.pdf",
	}
	out := f.FetchAll(context.Background(), "9", links)

	digest, err := hasher.Hash([]byte(links[0]))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "9", digest), out[0].Path)
	assert.Equal(t, filepath.Join(dir, "9", "acta.pdf"), out[1].Path)
	assert.Equal(t, filepath.Join(dir, "9", "acta_1.pdf"), out[2].Path)
}

func TestFetchAllMirrorsToArchive(t *testing.T) {
	t.Parallel()

	archive := memory.NewBlobStore()
	f := NewFetcher(Config{Dir: t.TempDir()}, &fakeDownloader{}, nil, archive, nil)
	out := f.FetchAll(context.Background(), "10", []string{"https://h/anex-download/r.pdf"})

	require.True(t, out[0].OK())
	assert.Equal(t, "memory://attachments/10/r.pdf", out[0].URI)
	data, ok := archive.Get("attachments/10/r.pdf")
	require.True(t, ok)
	assert.Equal(t, "https://h/anex-download/r.pdf", string(data))
	assert.Equal(t, "application/pdf", archive.ContentType("attachments/10/r.pdf"))
}

func TestFileName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://h/anex-download/informe.pdf": "informe.pdf",
		"https://h/a/Resoluci%C3%B3n%201.pdf": "Resolución 1.pdf",
		"https://h/a/..%2F..%2Fetc%2Fpasswd":  "_.._etc_passwd",
		"https://h/":                          "",
		"https://h/download?id=3":             "download",
		"https://h/a/x%3Cy%3E.txt":            "x_y_.txt",
	}
	for link, want := range tests {
		assert.Equal(t, want, FileName(link), link)
	}
	assert.LessOrEqual(t, len(SafeName(strings.Repeat("a", 400))), maxNameLength)
}
