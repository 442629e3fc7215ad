package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/antgroup/zit/hash"
)

// gcsRawStorage is a read-only rawStorage backed by a Google Cloud Storage
// bucket, for repositories that keep their canonical object store remote and
// only cache loose objects locally. Mirrors the two-tier local+remote layering
// of modules/zeta/backend/odb.go's ro/rw split, but across a network backend
// instead of a second local directory.
type gcsRawStorage struct {
	ctx    context.Context
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSBackend opens a read-only remote object layer backed by a GCS bucket.
// Pass the result to WithRemoteLayer.
func NewGCSBackend(ctx context.Context, bucket, prefix string) (rawStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("objectstore: gcs client: %w", err)
	}
	return &gcsRawStorage{ctx: ctx, client: client, bucket: bucket, prefix: prefix}, nil
}

func (g *gcsRawStorage) objectName(id hash.ID) string {
	hex := id.String()
	return path.Join(g.prefix, hex[:2], hex[2:4], hex)
}

func (g *gcsRawStorage) get(id hash.ID) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(g.objectName(id)).NewReader(g.ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, ErrNotFound(id)
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *gcsRawStorage) has(id hash.ID) bool {
	_, err := g.client.Bucket(g.bucket).Object(g.objectName(id)).Attrs(g.ctx)
	return err == nil
}

func (g *gcsRawStorage) put(data []byte) (hash.ID, error) {
	return hash.ZeroID, ErrReadOnly("put (gcs backend is read-only)")
}

func (g *gcsRawStorage) resolvePrefix(prefix string) (hash.ID, error) {
	return hash.ZeroID, fmt.Errorf("objectstore: prefix resolution unsupported on gcs backend")
}

func (g *gcsRawStorage) close() error {
	return g.client.Close()
}

// s3RawStorage is the analogous read-only remote layer backed by an S3
// (or S3-compatible) bucket.
type s3RawStorage struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Backend opens a read-only remote object layer backed by an S3 bucket,
// using the ambient AWS credential chain (environment, shared config, IMDS).
func NewS3Backend(ctx context.Context, bucket, prefix string) (rawStorage, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("objectstore: aws config: %w", err)
	}
	return &s3RawStorage{ctx: ctx, client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

func (r *s3RawStorage) objectName(id hash.ID) string {
	hex := id.String()
	return path.Join(r.prefix, hex[:2], hex[2:4], hex)
}

func (r *s3RawStorage) get(id hash.ID) ([]byte, error) {
	out, err := r.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectName(id)),
	})
	if err != nil {
		return nil, ErrNotFound(id)
	}
	defer out.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *s3RawStorage) has(id hash.ID) bool {
	_, err := r.client.HeadObject(r.ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectName(id)),
	})
	return err == nil
}

func (r *s3RawStorage) put(data []byte) (hash.ID, error) {
	return hash.ZeroID, ErrReadOnly("put (s3 backend is read-only)")
}

func (r *s3RawStorage) resolvePrefix(prefix string) (hash.ID, error) {
	return hash.ZeroID, fmt.Errorf("objectstore: prefix resolution unsupported on s3 backend")
}

func (r *s3RawStorage) close() error {
	return nil
}
