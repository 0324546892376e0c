package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
)

// StandardStorageClass is applied to every archived artifact.
const StandardStorageClass = "STANDARD"

// StorageAdapter provides blob storage operations using Google Cloud Storage
type StorageAdapter struct {
	Client *storage.Client
}

func NewStorageAdapter(client *storage.Client) *StorageAdapter {
	return &StorageAdapter{Client: client}
}

// Write uploads data in a single request. The object only exists once Close
// succeeds, so a nil error means the artifact is durable.
func (a *StorageAdapter) Write(ctx context.Context, bucketName, objectName string, data []byte) error {
	wc := a.Client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.StorageClass = StandardStorageClass
	wc.ContentType = contentType(objectName)
	wc.ChunkSize = 0

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write gs://%s/%s: %w", bucketName, objectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", bucketName, objectName, err)
	}
	return nil
}

func (a *StorageAdapter) Read(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	rc, err := a.Client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func contentType(objectName string) string {
	switch path.Ext(objectName) {
	case ".zip":
		return "application/zip"
	case ".gpx":
		return "application/gpx+xml"
	case ".tcx":
		return "application/vnd.garmin.tcx+xml"
	case ".kml":
		return "application/vnd.google-earth.kml+xml"
	case ".csv":
		return "text/csv"
	case ".fit":
		return "application/vnd.ant.fit"
	}
	return "application/octet-stream"
}
