package main

import (
	"bytes"
	"context"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipstream"
)

func TestAddInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tree := filepath.Join(dir, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "sub", "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "sub", "b.txt"), []byte("bb"), 0o644))
	single := filepath.Join(dir, "single.txt")
	require.NoError(t, os.WriteFile(single, []byte("single"), 0o644))

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "remote", time.Time{}, bytes.NewReader([]byte("remote bytes")))
	}))
	t.Cleanup(server.Close)

	a := zipstream.New()
	t.Cleanup(func() { a.Close() })
	logger := slog.New(slog.DiscardHandler)
	err := addInputs(context.Background(), a, []string{tree, single, server.URL + "/files/remote.bin"}, logger)
	require.NoError(t, err)

	got := make(map[string]uint64)
	for _, ev := range a.Entries() {
		got[ev.Name()] = ev.Size()
	}
	assert.Equal(t, map[string]uint64{
		"project/":           0,
		"project/a.txt":      1,
		"project/sub/":       0,
		"project/sub/b.txt":  2,
		"project/sub/empty/": 0,
		"single.txt":         6,
		"remote.bin":         12,
	}, got)

	var out bytes.Buffer
	_, err = a.WriteArchive(context.Background(), &out)
	require.NoError(t, err)
}

func TestAddInputsCurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("bb"), 0o644))
	t.Chdir(dir)

	a := zipstream.New()
	t.Cleanup(func() { a.Close() })
	require.NoError(t, addInputs(context.Background(), a, []string{"."}, slog.New(slog.DiscardHandler)))

	var names []string
	for _, ev := range a.Entries() {
		names = append(names, ev.Name())
	}
	assert.Equal(t, []string{"a.txt", "sub/", "sub/b.txt"}, names)
}

func TestWalkBase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		root string
		want string
	}{
		{root: ".", want: ""},
		{root: "./", want: ""},
		{root: "..", want: ""},
		{root: string(filepath.Separator), want: ""},
		{root: "project", want: "project"},
		{root: filepath.Join("a", "project") + string(filepath.Separator), want: "project"},
	}
	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, walkBase(tt.root))
		})
	}
}

func TestAddInputsMissingPath(t *testing.T) {
	t.Parallel()

	a := zipstream.New()
	err := addInputs(context.Background(), a, []string{filepath.Join(t.TempDir(), "missing")}, slog.New(slog.DiscardHandler))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestProgressPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	report := progressPrinter(&buf)
	report(zipstream.ProgressEvent{Percent: 10.2, FilesTotal: 2})
	report(zipstream.ProgressEvent{Percent: 10.7, FilesTotal: 2})
	report(zipstream.ProgressEvent{Stage: zipstream.StageFinalizing, Percent: 100, FilesDone: 2, FilesTotal: 2})

	assert.Equal(t, "\r 10% 0/2 writing\r100% 2/2 finalizing\n", buf.String())
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	cfg, inputs := parseFlags([]string{"-o", "out.zip", "-workers", "3", "-prefetch", "2", "-tag", "a", "-tag", "b", "x", "y"})
	assert.Equal(t, "out.zip", cfg.output)
	assert.Equal(t, 3, cfg.workers)
	assert.Equal(t, 2, cfg.prefetch)
	assert.Equal(t, stringList{"a", "b"}, cfg.tags)
	assert.Equal(t, []string{"x", "y"}, inputs)
}
