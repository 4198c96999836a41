package barcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/newthinker/novaquant/internal/core"
)

// LocalFS implements Store as one JSON file per key under a base directory
type LocalFS struct {
	basePath string
}

// NewLocalFS creates the base directory if needed
func NewLocalFS(basePath string) (*LocalFS, error) {
	if basePath == "" {
		return nil, core.Errorf(core.ErrConfigInvalid, "cache path is required for localfs")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &LocalFS{basePath: basePath}, nil
}

func (l *LocalFS) fullPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

func (l *LocalFS) Load(ctx context.Context, key string) ([]core.OHLCV, bool, error) {
	data, err := os.ReadFile(l.fullPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	bars, err := decodeBars(data)
	if err != nil {
		return nil, false, err
	}
	return bars, true, nil
}

func (l *LocalFS) Save(ctx context.Context, key string, bars []core.OHLCV) error {
	data, err := encodeBars(bars)
	if err != nil {
		return err
	}
	path := l.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	// write then rename so concurrent readers never see a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (l *LocalFS) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := filepath.WalkDir(l.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	return keys, err
}

func (l *LocalFS) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.fullPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
