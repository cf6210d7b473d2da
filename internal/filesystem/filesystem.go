// Package filesystem stores key/value pairs as individual files with a
// SHA-256 header used to detect torn or edited values.
package filesystem

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/docfiler/docfiler/internal/config"
	"github.com/docfiler/docfiler/internal/kvstore"
)

const fileSuffix = ".json"

// Store is a kvstore.Store rooted at a directory.
type Store struct {
	dir string
}

var _ kvstore.Store = (*Store)(nil)

// NewStore returns a store rooted at dir, or config.GetObjectsDir when dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = config.GetObjectsDir()
	}
	return &Store{dir: dir}
}

// Dir reports the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Read(key string) (string, bool, error) {
	//nolint:gosec // G304: path is derived from an encoded key under the store dir
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}

	hash, value, found := strings.Cut(string(raw), "\n")
	if !found || calculateHash(value) != hash {
		return "", false, fmt.Errorf("read %s: %w", key, kvstore.ErrCorrupt)
	}
	return value, true, nil
}

// Write replaces the value atomically through a temp file and rename.
func (s *Store) Write(key, value string) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	content := calculateHash(value) + "\n" + value
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, s.path(key)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Remove deletes the file for key if it exists.
func (s *Store) Remove(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Keys lists the stored keys in directory order.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, urlEncode(key)+fileSuffix)
}

func calculateHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func urlEncode(value string) string {
	// url.QueryEscape encodes spaces as '+', so convert to '%20' to match encodeURIComponent.
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
