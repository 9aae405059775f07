package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjects struct {
	mu          sync.Mutex
	objects     map[string]*bytes.Buffer
	types       map[string]string
	public      map[string]bool
	makePublicE error
}

func newMemObjects() *memObjects {
	return &memObjects{
		objects: map[string]*bytes.Buffer{},
		types:   map[string]string{},
		public:  map[string]bool{},
	}
}

type memWriter struct {
	*bytes.Buffer
}

func (memWriter) Close() error { return nil }

func (m *memObjects) NewWriter(_ context.Context, name, contentType string) io.WriteCloser {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := &bytes.Buffer{}
	m.objects[name] = buf
	m.types[name] = contentType
	return memWriter{buf}
}

func (m *memObjects) MakePublic(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.makePublicE != nil {
		return m.makePublicE
	}
	m.public[name] = true
	return nil
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestUploadStoresFileUnderFolder(t *testing.T) {
	objects := newMemObjects()
	dir := t.TempDir()
	c := NewWithObjects("faindi-test", dir, objects)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }

	path := writeFile(t, dir, "photo.png", []byte("png-bytes"))
	link, err := c.Upload(context.Background(), "chat", path)
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^https://storage\.googleapis\.com/faindi-test/(chat/1700000000000-[0-9a-f-]{36}\.png)$`)
	match := pattern.FindStringSubmatch(link)
	require.Len(t, match, 2, link)

	name := match[1]
	assert.Equal(t, "png-bytes", objects.objects[name].String())
	assert.Equal(t, "image/png", objects.types[name])
	assert.True(t, objects.public[name])
}

func TestUploadAcceptsFileURIAndSniffsType(t *testing.T) {
	objects := newMemObjects()
	dir := t.TempDir()
	c := NewWithObjects("faindi-test", dir, objects)

	path := writeFile(t, dir, "note", []byte("plain text body"))
	link, err := c.Upload(context.Background(), "/avatar/", (&url.URL{Scheme: "file", Path: path}).String())
	require.NoError(t, err)
	assert.Contains(t, link, "/faindi-test/avatar/")

	for name, ct := range objects.types {
		assert.Equal(t, "text/plain; charset=utf-8", ct, name)
	}
}

func TestUploadPassesRemoteURLsThrough(t *testing.T) {
	objects := newMemObjects()
	c := NewWithObjects("faindi-test", "", objects)

	link, err := c.Upload(context.Background(), "chat", "https://cdn.example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.jpg", link)
	assert.Empty(t, objects.objects)
}

func TestUploadErrors(t *testing.T) {
	objects := newMemObjects()
	dir := t.TempDir()
	c := NewWithObjects("faindi-test", dir, objects)

	_, err := c.Upload(context.Background(), "chat", filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	objects.makePublicE = errors.New("acl denied")
	_, err = c.Upload(context.Background(), "chat", writeFile(t, dir, "a.jpg", []byte("jpg")))
	assert.ErrorContains(t, err, "acl denied")
}

func TestUploadRefusesFilesOutsideMediaDir(t *testing.T) {
	objects := newMemObjects()
	dir := t.TempDir()
	c := NewWithObjects("faindi-test", dir, objects)

	secret := writeFile(t, t.TempDir(), "id_rsa", []byte("private key"))

	_, err := c.Upload(context.Background(), "chat", secret)
	assert.ErrorContains(t, err, "outside the media directory")

	_, err = c.Upload(context.Background(), "chat", (&url.URL{Scheme: "file", Path: secret}).String())
	assert.ErrorContains(t, err, "outside the media directory")

	_, err = c.Upload(context.Background(), "chat", filepath.Join(dir, "..", filepath.Base(filepath.Dir(secret)), "id_rsa"))
	assert.Error(t, err)

	link := filepath.Join(dir, "innocent.png")
	require.NoError(t, os.Symlink(secret, link))
	_, err = c.Upload(context.Background(), "chat", link)
	assert.ErrorContains(t, err, "outside the media directory")

	assert.Empty(t, objects.objects)
}

func TestUploadWithoutMediaDirRejectsLocalFiles(t *testing.T) {
	objects := newMemObjects()
	c := NewWithObjects("faindi-test", "", objects)

	_, err := c.Upload(context.Background(), "chat", writeFile(t, t.TempDir(), "a.png", []byte("png")))
	assert.ErrorContains(t, err, "disabled")
	assert.Empty(t, objects.objects)
}
