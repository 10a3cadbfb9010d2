package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// NewGCSClient creates a Google Cloud Storage client. If credsPath is empty, ADC is used.
func NewGCSClient(ctx context.Context, credsPath string) (*storage.Client, error) {
	if credsPath == "" {
		return storage.NewClient(ctx)
	}
	return storage.NewClient(ctx, option.WithCredentialsFile(credsPath))
}

// UploadObject uploads bytes from r into bucket/objectPath with the provided contentType
func UploadObject(ctx context.Context, client *storage.Client, bucket, objectPath, contentType string, r io.Reader) (string, error) {
	wc := client.Bucket(bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // disable chunking for small files
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return PublicURL(bucket, objectPath), nil
}

// DeleteObject removes bucket/objectPath. Missing objects are not an error.
func DeleteObject(ctx context.Context, client *storage.Client, bucket, objectPath string) error {
	err := client.Bucket(bucket).Object(objectPath).Delete(ctx)
	if err == storage.ErrObjectNotExist {
		return nil
	}
	return err
}

// GCSMedia adapts a storage client and bucket to the media-upload
// collaborator the user service depends on.
type GCSMedia struct {
	Client *storage.Client
	Bucket string
}

func NewGCSMedia(client *storage.Client, bucket string) *GCSMedia {
	return &GCSMedia{Client: client, Bucket: bucket}
}

func (g *GCSMedia) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	if g.Client == nil || g.Bucket == "" {
		return "", errors.New("gcs not configured")
	}
	return UploadObject(ctx, g.Client, g.Bucket, objectPath, contentType, r)
}

func (g *GCSMedia) Delete(ctx context.Context, objectPath string) error {
	if g.Client == nil || g.Bucket == "" {
		return errors.New("gcs not configured")
	}
	return DeleteObject(ctx, g.Client, g.Bucket, objectPath)
}

func (g *GCSMedia) ObjectPath(url string) string {
	return ObjectPathFromURL(g.Bucket, url)
}

// PublicURL builds a public URL for an object (assuming public read access or signed URLs)
func PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}

// ObjectPathFromURL reverses PublicURL for the given bucket. Returns "" when
// the URL does not point into the bucket.
func ObjectPathFromURL(bucket, url string) string {
	prefix := fmt.Sprintf("https://storage.googleapis.com/%s/", bucket)
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}
