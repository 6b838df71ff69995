package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pisoprint/internal/paper"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func seed(t *testing.T, m *Manager, base string, pages int) {
	t.Helper()
	for _, p := range paper.All() {
		for i := 1; i <= pages; i++ {
			touch(t, m.RasterPath(p, base, i))
		}
		touch(t, m.NormalizedPath(base, p))
	}
}

func TestNew_CreatesLayout(t *testing.T) {
	root := t.TempDir()
	_, err := New(root)
	require.NoError(t, err)
	for _, d := range []string{"letter", "legal", "normalized", "uploads"} {
		st, err := os.Stat(filepath.Join(root, d))
		require.NoError(t, err)
		assert.True(t, st.IsDir())
	}
}

func TestPaths(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "abc-3.png", RasterName("abc", 3))
	assert.Equal(t, filepath.Join(m.Root(), "legal", "abc-3.png"), m.RasterPath(paper.Legal, "abc", 3))
	assert.Equal(t, filepath.Join(m.Root(), "normalized", "abc-letter.pdf"), m.NormalizedPath("abc", paper.Letter))
}

func TestOnNewUpload_ClearsEverything(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	seed(t, m, "old", 3)
	seed(t, m, "other", 1)

	assert.Equal(t, 8, m.OnNewUpload())
	assert.Empty(t, names(t, m.RasterDir(paper.Letter)))
	assert.Empty(t, names(t, m.RasterDir(paper.Legal)))
}

func TestOnReset_RemovesOnlyPrefix(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	seed(t, m, "aaa", 2)
	seed(t, m, "bbb", 2)
	touch(t, m.UploadPath("aaa"))
	touch(t, filepath.Join(m.RasterDir(paper.Letter), "aaa-1-gray.png"))

	// 2 pages * 2 papers + gray variant + 2 normalized + upload
	assert.Equal(t, 8, m.OnReset("aaa"))

	for _, p := range paper.All() {
		for _, n := range names(t, m.RasterDir(p)) {
			assert.False(t, strings.HasPrefix(n, "aaa"), n)
		}
		assert.Len(t, names(t, m.RasterDir(p)), 2)
		_, err := os.Stat(m.NormalizedPath("bbb", p))
		assert.NoError(t, err)
	}
	_, err = os.Stat(m.UploadPath("aaa"))
	assert.True(t, os.IsNotExist(err))
}

func TestOnReplace_NothingToRemove(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, m.OnReplace("ghost"))
}

func TestOnReset_InvalidBaseNameIsNoop(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	seed(t, m, "keep", 1)
	assert.Equal(t, 0, m.OnReset(""))
	assert.Equal(t, 0, m.OnReset("../keep"))
	assert.Len(t, names(t, m.RasterDir(paper.Letter)), 1)
}

func TestResetThenNewUpload_LeavesNoOldFiles(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	seed(t, m, "old", 4)

	m.OnReset("old")
	m.OnNewUpload()
	seed(t, m, "new", 2)

	for _, p := range paper.All() {
		for _, n := range names(t, m.RasterDir(p)) {
			assert.False(t, strings.HasPrefix(n, "old"), n)
		}
	}
}

func TestIndex_ExactMatchOnly(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	for _, n := range []string{"doc-1.png", "doc-10.png", "doc-2-gray.png", "doc-x.png", "doc2-1.png", "other-1.png"} {
		touch(t, filepath.Join(m.RasterDir(paper.Letter), n))
	}

	idx, err := m.Index(paper.Letter, "doc")
	require.NoError(t, err)
	assert.Len(t, idx, 2)
	assert.Equal(t, filepath.Join(m.RasterDir(paper.Letter), "doc-1.png"), idx[1])
	assert.Contains(t, idx, 10)

	idx, err = m.Index(paper.Legal, "doc")
	require.NoError(t, err)
	assert.Empty(t, idx)
}

func TestOnRasterized_RemovesOnlySource(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	seed(t, m, "doc", 2)
	touch(t, m.UploadPath("doc"))

	assert.True(t, m.OnRasterized("doc"))
	_, err = os.Stat(m.UploadPath("doc"))
	assert.True(t, os.IsNotExist(err))
	assert.Len(t, names(t, m.RasterDir(paper.Letter)), 2)

	assert.False(t, m.OnRasterized("doc"))
	assert.False(t, m.OnRasterized("../doc"))
}

func TestWritable(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Writable())
	for _, p := range paper.All() {
		assert.Empty(t, names(t, m.RasterDir(p)))
	}

	require.NoError(t, os.RemoveAll(m.RasterDir(paper.Legal)))
	assert.Error(t, m.Writable())
}

func TestSweepTemps(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	stale := filepath.Join(m.RasterDir(paper.Letter), ".render-123.png")
	fresh := filepath.Join(m.Root(), "normalized", ".norm-9.pdf")
	touch(t, stale)
	touch(t, fresh)
	touch(t, m.RasterPath(paper.Letter, "doc", 1))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(m.RasterPath(paper.Letter, "doc", 1), old, old))

	assert.Equal(t, 1, m.SweepTemps(time.Hour))
	assert.Equal(t, []string{"doc-1.png"}, names(t, m.RasterDir(paper.Letter)))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}
