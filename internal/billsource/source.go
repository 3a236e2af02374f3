// Package billsource opens bill exports from the local filesystem or from
// Google Cloud Storage (gs:// URIs).
package billsource

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const gcsScheme = "gs://"

// Object describes one bill file found by List.
type Object struct {
	URI     string
	Name    string
	Size    int64
	Updated time.Time
}

// Source fetches, lists and archives bill files. Local paths and gs:// URIs
// are both accepted wherever a location is expected.
type Source struct{}

// New creates a Source. GCS access uses Application Default Credentials.
func New() *Source {
	return &Source{}
}

// IsGCS reports whether uri points at Cloud Storage.
func IsGCS(uri string) bool {
	return strings.HasPrefix(uri, gcsScheme)
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCS(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename returns the base name of a local path or GCS URI.
func Filename(uri string) string {
	if IsGCS(uri) {
		_, object, err := ParseGCSURI(uri)
		if err != nil {
			return strings.TrimPrefix(uri, gcsScheme)
		}
		return path.Base(object)
	}
	return filepath.Base(uri)
}

// Fetch reads the bytes of a bill.
func (s *Source) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if IsGCS(uri) {
		return fetchFromGCS(ctx, uri)
	}
	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return data, nil
}

// List returns the bill files directly under a local directory or a GCS
// prefix, ordered by name. Only .csv, .xlsx and .xls files are listed.
func (s *Source) List(ctx context.Context, location string) ([]Object, error) {
	var (
		objs []Object
		err  error
	)
	if IsGCS(location) {
		objs, err = listGCS(ctx, location)
	} else {
		objs, err = listLocal(location)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].URI < objs[j].URI })
	return objs, nil
}

// Archive writes data to a gs:// URI or a local path.
func (s *Source) Archive(ctx context.Context, data []byte, uri string) error {
	if IsGCS(uri) {
		return uploadToGCS(ctx, data, uri)
	}
	if err := os.MkdirAll(filepath.Dir(uri), 0o755); err != nil {
		return fmt.Errorf("Archive: %w", err)
	}
	if err := os.WriteFile(uri, data, 0o644); err != nil {
		return fmt.Errorf("Archive: %w", err)
	}
	return nil
}

// Join appends a file name to a directory or GCS prefix.
func Join(location, name string) string {
	if IsGCS(location) {
		return strings.TrimSuffix(location, "/") + "/" + name
	}
	return filepath.Join(location, name)
}

func isBillFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx", ".xls":
		return true
	}
	return false
}

func listLocal(dir string) ([]Object, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listLocal: %w", err)
	}

	var out []Object
	for _, e := range entries {
		if e.IsDir() || !isBillFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("listLocal: %s: %w", e.Name(), err)
		}
		out = append(out, Object{
			URI:     filepath.Join(dir, e.Name()),
			Name:    e.Name(),
			Size:    info.Size(),
			Updated: info.ModTime(),
		})
	}
	return out, nil
}
