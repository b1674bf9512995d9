package cookiestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStore keeps one sealed jar file per key under Dir.
type FileStore struct {
	Dir   string
	Codec *Codec
}

func NewFileStore(dir string, codec *Codec) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cookie dir: %w", err)
	}
	return &FileStore{Dir: dir, Codec: codec}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, unsafeChars.ReplaceAllString(key, "_")+".jar")
}

func (s *FileStore) Load(_ context.Context, key string) ([]Cookie, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Codec.Decode(string(b))
}

func (s *FileStore) Save(_ context.Context, key string, cookies []Cookie) error {
	enc, err := s.Codec.Encode(cookies)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, ".jar-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(enc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
