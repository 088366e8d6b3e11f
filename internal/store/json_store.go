package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrIO      = errors.New("document i/o failed")
	ErrCorrupt = errors.New("document is corrupt")
)

// JSONStore persists whole JSON documents, one file per document
type JSONStore struct {
	fs  afero.Fs
	now func() time.Time
}

// NewJSONStore creates a store on top of the given filesystem
func NewJSONStore(fs afero.Fs) *JSONStore {
	return &JSONStore{fs: fs, now: time.Now}
}

// Fs returns the filesystem the store writes to
func (s *JSONStore) Fs() afero.Fs {
	return s.fs
}

// Load reads the document at path into a value produced by def.
//
// An absent file is not an error: the default document is returned. When
// the file cannot be read or decoded the default document is still
// returned, together with an error wrapping ErrIO or ErrCorrupt. A corrupt
// file is moved aside so the next Save does not overwrite it.
func Load[T any](s *JSONStore, path string, def func() *T) (*T, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return def(), nil
		}
		return def(), fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}

	doc := def()
	if err := json.Unmarshal(data, doc); err != nil {
		corruptErr := fmt.Errorf("%w: decode %s: %v", ErrCorrupt, path, err)
		if qerr := s.quarantine(path); qerr != nil {
			return def(), errors.Join(corruptErr, qerr)
		}
		return def(), corruptErr
	}

	return doc, nil
}

// Save replaces the document at path. The document is written to a
// temporary file in the same directory and renamed over the target, so
// a failed write leaves the previous version in place.
func (s *JSONStore) Save(path string, doc any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrIO, path, err)
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create dir %s: %v", ErrIO, dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", ErrIO, path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrIO, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: sync %s: %v", ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrIO, tmpName, err)
	}

	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %v", ErrIO, path, err)
	}

	return nil
}

func (s *JSONStore) quarantine(path string) error {
	target := path + ".corrupt-" + strconv.FormatInt(s.now().Unix(), 10)
	if err := s.fs.Rename(path, target); err != nil {
		return fmt.Errorf("%w: quarantine %s: %v", ErrIO, path, err)
	}
	return nil
}
