package model

import (
	"bytes"
	"context"
	"io"

	"github.com/evergreen-ci/pail"
	"github.com/pkg/errors"
)

// PailType describes the name of the blob storage backing a pail Bucket
// implementation.
type PailType string

const (
	PailS3    PailType = "s3"
	PailLocal PailType = "local"

	defaultS3Region = "us-east-1"
)

// BucketOptions describe where a bucket-backed document lives.
type BucketOptions struct {
	Type   PailType
	Name   string
	Prefix string
	Region string
	// Key is the object name of the document within the bucket.
	Key string
}

func (t PailType) Validate() error {
	switch t {
	case PailS3, PailLocal:
		return nil
	default:
		return errors.Errorf("unsupported bucket type '%s'", t)
	}
}

// Create returns a pail Bucket backed by PailType.
func (t PailType) Create(ctx context.Context, opts BucketOptions) (pail.Bucket, error) {
	var b pail.Bucket
	var err error

	switch t {
	case PailS3:
		region := opts.Region
		if region == "" {
			region = defaultS3Region
		}
		b, err = pail.NewS3Bucket(ctx, pail.S3Options{
			Name:        opts.Name,
			Prefix:      opts.Prefix,
			Region:      region,
			Permissions: pail.S3PermissionsPrivate,
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
	case PailLocal:
		b, err = pail.NewLocalBucket(pail.LocalOptions{
			Path:   opts.Name,
			Prefix: opts.Prefix,
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
	default:
		return nil, errors.Errorf("bucket type '%s' not implemented", t)
	}

	if err = b.Check(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

type bucketBackend struct {
	bucket pail.Bucket
	key    string
	format DocumentFormat
}

// NewBucketBackend stores the document as a single object in a pail bucket.
// Buckets offer no conditional put, so the revision check and the put are
// two steps; callers still need to serialize writers externally.
func NewBucketBackend(bucket pail.Bucket, key string) (Backend, error) {
	if bucket == nil {
		return nil, errors.New("must specify a bucket")
	}
	if key == "" {
		return nil, errors.New("must specify a document key")
	}

	return &bucketBackend{bucket: bucket, key: key, format: FormatForPath(key)}, nil
}

func (b *bucketBackend) Format() DocumentFormat { return b.format }

func (b *bucketBackend) Read(ctx context.Context) ([]byte, Revision, error) {
	r, err := b.bucket.Get(ctx, b.key)
	if pail.IsKeyNotFoundError(err) {
		return nil, "", ErrDocumentNotFound
	}
	if err != nil {
		return nil, "", errors.Wrapf(err, "getting '%s' from bucket", b.key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", errors.Wrapf(err, "reading '%s' from bucket", b.key)
	}

	return data, contentRevision(data), nil
}

func (b *bucketBackend) Write(ctx context.Context, data []byte, expected Revision) (Revision, error) {
	_, current, err := b.Read(ctx)
	if err != nil && err != ErrDocumentNotFound {
		return "", errors.WithStack(err)
	}
	if current != expected {
		return "", ErrRevisionMismatch
	}

	if err = b.bucket.Put(ctx, b.key, bytes.NewReader(data)); err != nil {
		return "", errors.Wrapf(err, "putting '%s' into bucket", b.key)
	}

	return contentRevision(data), nil
}
