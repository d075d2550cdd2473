// Package objstore is the photo object store: a flat bucket of image
// blobs addressed by name, with a public URL per object. Object names
// encode the capture timestamp (ticket-<epoch-millis>-<random>.<ext>),
// which is what backfill reconciliation parses.
package objstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Object is one stored photo blob.
type Object struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store abstracts the photo bucket.
type Store interface {
	// List returns every object in the bucket, sorted by name.
	List(ctx context.Context) ([]Object, error)
	// Put writes data under name and returns its public URL.
	Put(ctx context.Context, name string, data []byte) (string, error)
	// Get reads an object's bytes.
	Get(ctx context.Context, name string) ([]byte, error)
	// URL returns the public URL for name without checking existence.
	URL(name string) string
}

// NewObjectName builds a bucket name for a photo captured now. The
// extension is derived from the content type; anything that is not PNG
// is stored as JPEG, matching what phone cameras produce.
func NewObjectName(now time.Time, contentType string) string {
	ext := "jpg"
	if strings.Contains(strings.ToLower(contentType), "png") {
		ext = "png"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("ticket-%d-%s.%s", now.UnixMilli(), suffix, ext)
}

// FSStore implements Store on a local directory. The daemon serves the
// directory over HTTP, so an object's public URL is
// <site>/photos/<name>.
type FSStore struct {
	dir     string
	baseURL string
}

// NewFSStore creates the backing directory if needed.
func NewFSStore(dir, siteBaseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("objstore: mkdir %s: %w", dir, err)
	}
	return &FSStore{dir: dir, baseURL: strings.TrimRight(siteBaseURL, "/")}, nil
}

// Dir returns the backing directory (for HTTP static serving).
func (s *FSStore) Dir() string { return s.dir }

func (s *FSStore) List(_ context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("objstore: list: %w", err)
	}

	var objects []Object
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		objects = append(objects, Object{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (s *FSStore) Put(_ context.Context, name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("objstore: invalid object name %q", name)
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("objstore: object %q already exists", name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("objstore: put %s: %w", name, err)
	}
	return s.URL(name), nil
}

func (s *FSStore) Get(_ context.Context, name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("objstore: invalid object name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("objstore: get %s: %w", name, err)
	}
	return data, nil
}

func (s *FSStore) URL(name string) string {
	return s.baseURL + "/photos/" + name
}
