package billsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// fetchFromGCS downloads the file bytes from the given GCS URI.
func fetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading bytes: %w", err)
	}
	return data, nil
}

// listGCS lists bill objects directly under a gs://bucket/prefix location.
func listGCS(ctx context.Context, location string) ([]Object, error) {
	trimmed := strings.TrimPrefix(location, gcsScheme)
	bucketName, prefix, _ := strings.Cut(trimmed, "/")
	if bucketName == "" {
		return nil, fmt.Errorf("listGCS: invalid location %s", location)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("listGCS: creating storage client: %w", err)
	}
	defer client.Close()

	it := client.Bucket(bucketName).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var out []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listGCS: listing %s: %w", location, err)
		}
		// Entries with only Prefix set are sub-directories.
		if attrs.Name == "" || !isBillFile(attrs.Name) {
			continue
		}
		out = append(out, Object{
			URI:     gcsScheme + bucketName + "/" + attrs.Name,
			Name:    path.Base(attrs.Name),
			Size:    attrs.Size,
			Updated: attrs.Updated,
		})
	}
	return out, nil
}

// uploadToGCS writes data to the given GCS URI.
func uploadToGCS(ctx context.Context, data []byte, gcsURI string) error {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return fmt.Errorf("uploadToGCS: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("uploadToGCS: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectPath).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("uploadToGCS: copy to writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("uploadToGCS: finalize upload: %w", err)
	}
	return nil
}
