package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// ObjectWriter opens a writer for a new object in the media bucket and
// makes finished objects publicly readable. The Cloud Storage bucket is the
// production implementation; tests substitute an in-memory one.
type ObjectWriter interface {
	NewWriter(ctx context.Context, name, contentType string) io.WriteCloser
	MakePublic(ctx context.Context, name string) error
}

// CloudStorageClient uploads chat and profile media to the Firebase bucket
// and returns durable download URLs. Only files under mediaDir are read.
type CloudStorageClient struct {
	objects    ObjectWriter
	bucketName string
	mediaDir   string
	now        func() time.Time
}

func NewCloudStorageClient(ctx context.Context, bucketName, projectID, credentialsPath, mediaDir string) (*CloudStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     projectID,
		StorageBucket: bucketName,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %v", err)
	}

	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %v", bucketName, err)
	}

	return &CloudStorageClient{
		objects:    bucketObjects{bucket: bucket},
		bucketName: bucketName,
		mediaDir:   mediaDir,
		now:        time.Now,
	}, nil
}

// NewWithObjects builds a client over an arbitrary object writer.
func NewWithObjects(bucketName, mediaDir string, objects ObjectWriter) *CloudStorageClient {
	return &CloudStorageClient{
		objects:    objects,
		bucketName: bucketName,
		mediaDir:   mediaDir,
		now:        time.Now,
	}
}

// Upload stores the media behind localRef (a file path or file:// URI) under
// folder and returns its public URL. Remote http(s) references are already
// durable and are returned unchanged.
func (c *CloudStorageClient) Upload(ctx context.Context, folder, localRef string) (string, error) {
	if strings.HasPrefix(localRef, "http://") || strings.HasPrefix(localRef, "https://") {
		return localRef, nil
	}

	path, err := c.localPath(localRef)
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media %s: %v", path, err)
	}
	defer file.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(file, head)
		contentType = http.DetectContentType(head[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("failed to rewind media %s: %v", path, err)
		}
	}

	name := fmt.Sprintf("%s/%d-%s%s", strings.Trim(folder, "/"), c.now().UnixMilli(), uuid.New().String(), filepath.Ext(path))

	wc := c.objects.NewWriter(ctx, name, contentType)
	if _, err := io.Copy(wc, file); err != nil {
		wc.Close()
		return "", fmt.Errorf("failed to copy media to bucket: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}

	if err := c.objects.MakePublic(ctx, name); err != nil {
		return "", fmt.Errorf("failed to set ACL: %v", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, name), nil
}

// localPath resolves localRef, following symlinks, and refuses anything
// outside the media directory.
func (c *CloudStorageClient) localPath(localRef string) (string, error) {
	path := localRef
	if strings.HasPrefix(localRef, "file://") {
		u, err := url.Parse(localRef)
		if err != nil {
			return "", fmt.Errorf("invalid media reference %q: %v", localRef, err)
		}
		path = u.Path
	}
	if c.mediaDir == "" {
		return "", fmt.Errorf("local media uploads are disabled")
	}

	root, err := filepath.EvalSymlinks(c.mediaDir)
	if err != nil {
		return "", fmt.Errorf("media directory unavailable: %v", err)
	}
	if root, err = filepath.Abs(root); err != nil {
		return "", fmt.Errorf("media directory unavailable: %v", err)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media %s: %v", path, err)
	}
	if resolved, err = filepath.Abs(resolved); err != nil {
		return "", fmt.Errorf("failed to open media %s: %v", path, err)
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("media %s is outside the media directory", path)
	}
	return resolved, nil
}

type bucketObjects struct {
	bucket *gcs.BucketHandle
}

func (b bucketObjects) NewWriter(ctx context.Context, name, contentType string) io.WriteCloser {
	wc := b.bucket.Object(name).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"
	return wc
}

func (b bucketObjects) MakePublic(ctx context.Context, name string) error {
	return b.bucket.Object(name).ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader)
}
