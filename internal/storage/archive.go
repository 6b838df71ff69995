// Package storage archives uploaded source documents to S3 before the local
// copy is deleted.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Uploader is the part of manager.Uploader the archive needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// BucketAPI is used for readiness checks.
type BucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type Options struct {
	Bucket string
	Prefix string
	// Password, when set, seals every object before upload.
	Password string
}

type Archive struct {
	uploader Uploader
	bucket   BucketAPI
	opts     Options
}

// NewS3Archive builds an archive on the default AWS credential chain.
func NewS3Archive(ctx context.Context, opts Options) (*Archive, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("archive bucket not configured")
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return NewArchive(manager.NewUploader(cli), cli, opts), nil
}

func NewArchive(u Uploader, b BucketAPI, opts Options) *Archive {
	return &Archive{uploader: u, bucket: b, opts: opts}
}

// Key is the object key of a document's archived source.
func (a *Archive) Key(baseName string) string {
	return path.Join(a.opts.Prefix, baseName+".pdf")
}

// Put uploads body under the document's key and returns that key.
func (a *Archive) Put(ctx context.Context, baseName string, body []byte, meta map[string]string) (string, error) {
	key := a.Key(baseName)
	payload := body
	contentType := "application/pdf"
	m := map[string]string{"base-name": baseName, "archived-at": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range meta {
		m[k] = v
	}
	if a.opts.Password != "" {
		sealed, err := Seal(body, a.opts.Password)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt data: %w", err)
		}
		payload = sealed
		contentType = "application/octet-stream"
		m["encryption-format"] = sealMagic
	}

	out, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
		Metadata:    m,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	ev := log.Info().Str("key", key).Int("size", len(payload)).Bool("sealed", a.opts.Password != "")
	if out != nil && out.Location != "" {
		ev = ev.Str("location", out.Location)
	}
	ev.Msg("archived source document")
	return key, nil
}

// Ping checks that the bucket is reachable.
func (a *Archive) Ping(ctx context.Context) error {
	if a.bucket == nil {
		return fmt.Errorf("bucket client unavailable")
	}
	_, err := a.bucket.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.opts.Bucket)})
	return err
}
