// Package afsstore implements storage.ObjectStore on top of viant/afs, so any
// scheme afs.New knows (file://, mem://) can back blob bindings.
package afsstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	jstorage "github.com/vk/jobhost/internal/storage"
)

// Store is an object store rooted at a base URL.
type Store struct {
	fs      afs.Service
	baseURL string
}

// New returns a Store rooted at baseURL. A plain directory path is treated
// as a file:// location.
func New(baseURL string) *Store {
	if !strings.Contains(baseURL, "://") {
		baseURL = "file://" + baseURL
	}
	return &Store{fs: afs.New(), baseURL: strings.TrimRight(baseURL, "/")}
}

// BaseURL returns the root URL of the store.
func (s *Store) BaseURL() string {
	return s.baseURL
}

func (s *Store) objectURL(p string) string {
	return url.Join(s.baseURL, strings.TrimLeft(p, "/"))
}

// Read implements storage.ObjectStore.
func (s *Store) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	URL := s.objectURL(p)
	ok, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", URL, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, jstorage.ErrNotFound)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", URL, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Write implements storage.ObjectStore.
func (s *Store) Write(ctx context.Context, p string, r io.Reader) error {
	URL := s.objectURL(p)
	if err := s.fs.Upload(ctx, URL, 0o644, r); err != nil {
		return fmt.Errorf("uploading %s: %w", URL, err)
	}
	return nil
}

// List implements storage.ObjectStore.
func (s *Store) List(ctx context.Context, prefix string) ([]jstorage.ObjectInfo, error) {
	ok, err := s.fs.Exists(ctx, s.baseURL)
	if err != nil || !ok {
		return nil, err
	}

	var objects []jstorage.ObjectInfo
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if info.IsDir() {
			return true, nil
		}
		rel := path.Join(parent, info.Name())
		if strings.HasPrefix(rel, prefix) {
			objects = append(objects, jstorage.ObjectInfo{Path: rel, Size: info.Size(), ModTime: info.ModTime()})
		}
		return true, nil
	}
	if err := s.fs.Walk(ctx, s.baseURL, visitor); err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.baseURL, err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}
