package sink

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipstream"
	"github.com/meigma/zipstream/internal/testutil"
)

func newArchive(t *testing.T, files map[string]string) *zipstream.Archive {
	t.Helper()
	a := zipstream.New()
	t.Cleanup(func() { a.Close() })
	for name, content := range files {
		require.NoError(t, a.AddFile(name, content))
	}
	return a
}

func chunks(parts ...string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for _, p := range parts {
			if !yield([]byte(p), nil) {
				return
			}
		}
	}
}

func TestDrain(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	res, err := Drain(context.Background(), chunks("ab", "", "cde"), &buf)
	require.NoError(t, err)

	assert.Equal(t, "abcde", buf.String())
	assert.Equal(t, int64(5), res.Size)
	assert.Equal(t, digest.FromString("abcde"), res.Digest)
	assert.Empty(t, res.Path)
}

func TestDrainArchive(t *testing.T) {
	t.Parallel()

	a := newArchive(t, map[string]string{"a.txt": "a"})
	var buf bytes.Buffer
	res, err := Drain(context.Background(), a.Generate(context.Background()), &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(buf.Len()), res.Size)
	assert.Equal(t, digest.FromBytes(buf.Bytes()), res.Digest)
	assert.Zero(t, a.Len())
}

func TestDrainSequenceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	seq := func(yield func([]byte, error) bool) {
		if yield([]byte("partial"), nil) {
			yield(nil, boom)
		}
	}

	res, err := Drain(context.Background(), seq, &bytes.Buffer{})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, zipstream.ErrAborted)
	assert.Equal(t, int64(7), res.Size)
	assert.Empty(t, res.Digest)
}

func TestDrainWriteFailureKeepsRegistry(t *testing.T) {
	t.Parallel()

	a := newArchive(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	writeErr := errors.New("no space")
	_, err := Drain(context.Background(), a.Generate(context.Background()), errWriter{err: writeErr})

	require.ErrorIs(t, err, zipstream.ErrAborted)
	require.ErrorIs(t, err, writeErr)
	assert.Equal(t, 2, a.Len())
}

func TestDrainContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Drain(ctx, chunks("a"), &bytes.Buffer{})
	require.ErrorIs(t, err, zipstream.ErrAborted)
	require.ErrorIs(t, err, context.Canceled)
}

type errWriter struct {
	err error
}

func (w errWriter) Write([]byte) (int, error) {
	return 0, w.err
}

func TestFileWritesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.zip")
	a := newArchive(t, map[string]string{"a.txt": "a", "n.txt": "123456789"})

	res, err := NewFile(path).Write(context.Background(), a.Generate(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), res.Size)
	assert.Equal(t, digest.FromBytes(data), res.Digest)

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Len(t, r.File, 2)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileFailureLeavesNoOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	a := zipstream.New()
	t.Cleanup(func() { a.Close() })
	require.NoError(t, a.AddFile("ok.txt", "fine"))
	require.NoError(t, a.AddFile("bad.bin", &testutil.FailingSource{Data: []byte("0123456789"), FailAfter: 4}))

	_, err := NewFile(path).Write(context.Background(), a.Generate(context.Background()))
	require.ErrorIs(t, err, zipstream.ErrSourceRead)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data), "existing file untouched")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 2, a.Len())
}

func TestFilePerm(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	a := newArchive(t, map[string]string{"a": "a"})

	_, err := NewFile(path, WithPerm(0o600)).Write(context.Background(), a.Generate(context.Background()))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
