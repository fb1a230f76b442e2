package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/meigma/zipstream"
	zhttp "github.com/meigma/zipstream/http"
)

// addInputs registers each input: URLs as remote entries named after the
// last path element, files under their base name, and directories
// recursively under their base name.
func addInputs(ctx context.Context, a *zipstream.Archive, inputs []string, logger *slog.Logger) error {
	for _, in := range inputs {
		if isURL(in) {
			if err := addURL(ctx, a, in, logger); err != nil {
				return err
			}
			continue
		}
		if err := addPath(a, in, logger); err != nil {
			return err
		}
	}
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func addURL(ctx context.Context, a *zipstream.Archive, raw string, logger *slog.Logger) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", raw, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = u.Hostname()
	}
	src, err := zhttp.NewSource(ctx, raw, zhttp.WithLogger(logger))
	if err != nil {
		return err
	}
	return a.AddFile(name, src)
}

func addPath(a *zipstream.Archive, root string, logger *slog.Logger) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return addLocalFile(a, root, filepath.Base(root), info)
	}
	base := walkBase(root)

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := path.Join(base, filepath.ToSlash(rel))
		if name == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return a.AddFolder(name, zipstream.AddWithModTime(info.ModTime()))
		case info.Mode().IsRegular():
			return addLocalFile(a, p, name, info)
		default:
			logger.Warn("skipping non-regular file", "path", p, "mode", info.Mode().Type())
			return nil
		}
	})
}

// walkBase returns the archive prefix for a walked directory. Roots without
// a name of their own (".", "..", "/") contribute only their contents.
func walkBase(root string) string {
	base := filepath.Base(filepath.Clean(root))
	switch base {
	case ".", "..", string(filepath.Separator):
		return ""
	}
	return base
}

func addLocalFile(a *zipstream.Archive, p, name string, info fs.FileInfo) error {
	src, err := zipstream.FileSource(p)
	if err != nil {
		return err
	}
	return a.AddFile(name, src, zipstream.AddWithModTime(info.ModTime()))
}
