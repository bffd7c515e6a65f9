package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig configures the object-storage backend.
type MinIOConfig struct {
	Endpoint  string // "minio:9000" or "http(s)://minio:9000"
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // optional key prefix, e.g. "public/"
}

// MinIO is a Storage Root backed by an S3-compatible bucket. Directories are
// key prefixes; MkdirAll writes a zero-length "name/" marker so empty
// directories (e.g. an empty archive's target) still show up in listings.
type MinIO struct {
	client *minio.Client
	bucket string
	prefix string
}

type minioObject struct {
	*minio.Object
	info EntryInfo
}

func (o *minioObject) Info() EntryInfo { return o.info }

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

func normalisePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// NewMinIO connects to the endpoint and checks that the bucket exists.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	// Sanity check: bucket must exist.
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket does not exist: %s", cfg.Bucket)
	}

	return &MinIO{client: client, bucket: cfg.Bucket, prefix: normalisePrefix(cfg.Prefix)}, nil
}

// Bucket returns the bucket name.
func (m *MinIO) Bucket() string { return m.bucket }

func (m *MinIO) key(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}
	return m.prefix + name, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (m *MinIO) List(ctx context.Context) ([]EntryInfo, error) {
	out := make([]EntryInfo, 0)
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: m.prefix}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, m.prefix)
		isDir := strings.HasSuffix(name, "/")
		name = strings.TrimSuffix(name, "/")
		if name == "" {
			continue
		}
		out = append(out, EntryInfo{Name: name, Size: obj.Size, ModTime: obj.LastModified, IsDir: isDir})
	}
	return out, nil
}

// isFile reports whether an object is stored at exactly key.
func (m *MinIO) isFile(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, err
}

// checkParents returns ErrNotDirectory if any ancestor of name is stored as
// a file. Object keys cannot enforce this on their own.
func (m *MinIO) checkParents(ctx context.Context, name string) error {
	for _, p := range parents(name) {
		file, err := m.isFile(ctx, m.prefix+p)
		if err != nil {
			return err
		}
		if file {
			return fmt.Errorf("%w: %s", ErrNotDirectory, p)
		}
	}
	return nil
}

// hasChildren reports whether any object lives under key+"/".
func (m *MinIO) hasChildren(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: key + "/", MaxKeys: 1}) {
		if obj.Err != nil {
			return false, obj.Err
		}
		return true, nil
	}
	return false, nil
}

func (m *MinIO) Stat(ctx context.Context, name string) (EntryInfo, error) {
	key, err := m.key(name)
	if err != nil {
		return EntryInfo{}, err
	}
	st, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return EntryInfo{Name: name, Size: st.Size, ModTime: st.LastModified}, nil
	}
	if !isNoSuchKey(err) {
		return EntryInfo{}, err
	}
	dir, err := m.hasChildren(ctx, key)
	if err != nil {
		return EntryInfo{}, err
	}
	if !dir {
		return EntryInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return EntryInfo{Name: name, IsDir: true}, nil
}

func (m *MinIO) Open(ctx context.Context, name string) (Object, error) {
	info, err := m.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, m.prefix+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return &minioObject{Object: obj, info: info}, nil
}

type minioWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *minioWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *minioWriter) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

// Create streams the written bytes into a single PutObject call.
func (m *MinIO) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	key, err := m.key(name)
	if err != nil {
		return nil, err
	}
	dir, err := m.hasChildren(ctx, key)
	if err != nil {
		return nil, err
	}
	if dir {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	if err := m.checkParents(ctx, name); err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	w := &minioWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := m.client.PutObject(ctx, m.bucket, key, pr, -1, minio.PutObjectOptions{
			ContentType: contentTypeFor(name),
		})
		// Unblock the writer if the upload stopped early.
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

func (m *MinIO) MkdirAll(ctx context.Context, name string) error {
	key, err := m.key(name)
	if err != nil {
		return err
	}
	file, err := m.isFile(ctx, key)
	if err != nil {
		return err
	}
	if file {
		return fmt.Errorf("%w: %s", ErrNotDirectory, name)
	}
	if err := m.checkParents(ctx, name); err != nil {
		return err
	}
	_, err = m.client.PutObject(ctx, m.bucket, key+"/", strings.NewReader(""), 0, minio.PutObjectOptions{})
	return err
}

func (m *MinIO) Remove(ctx context.Context, name string) error {
	info, err := m.Stat(ctx, name)
	if err != nil {
		return err
	}
	if info.IsDir {
		return fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	return m.client.RemoveObject(ctx, m.bucket, m.prefix+name, minio.RemoveObjectOptions{})
}

func (m *MinIO) RemoveAll(ctx context.Context, name string) error {
	key, err := m.key(name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := make(chan minio.ObjectInfo)
	listErr := make(chan error, 1)
	go func() {
		listed := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: key + "/", Recursive: true})
		listErr <- feedRemovals(ctx, key, listed, objects)
	}()

	var errs []error
	for rerr := range m.client.RemoveObjects(ctx, m.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil && !isNoSuchKey(rerr.Err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err))
		}
	}
	// RemoveObjects can stop reading early; unblock the producer.
	cancel()
	for range objects {
	}
	if err := <-listErr; err != nil {
		errs = append(errs, fmt.Errorf("list %s: %w", name, err))
	}
	return errors.Join(errs...)
}

// feedRemovals sends key and then every listed object to out, closing out
// when done. A listing error or a canceled ctx stops the feed and is
// returned so a partial delete is never reported as success.
func feedRemovals(ctx context.Context, key string, listed <-chan minio.ObjectInfo, out chan<- minio.ObjectInfo) error {
	defer close(out)
	send := func(obj minio.ObjectInfo) error {
		select {
		case out <- obj:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := send(minio.ObjectInfo{Key: key}); err != nil {
		return err
	}
	for obj := range listed {
		if obj.Err != nil {
			return obj.Err
		}
		if err := send(obj); err != nil {
			return err
		}
	}
	return nil
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
