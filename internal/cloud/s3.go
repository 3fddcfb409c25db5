package cloud

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"keyhaven/internal/haven"
)

const (
	s3MetaRevision  = "revision"
	s3MetaUpdatedAt = "updated-at"
)

// S3Options configures the S3 transport.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string // optional; default credential chain when empty
	SecretKey string
}

// S3Transport stores records as S3 objects under
// <prefix>records/<identity> (identity encoded URL-safe). Revision and
// update time travel as object metadata. Access is governed by the bucket's
// IAM credentials, so the scoped token is not transmitted.
type S3Transport struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ haven.Transport = (*S3Transport)(nil)

// NewS3Transport creates an S3 transport for the given bucket.
func NewS3Transport(ctx context.Context, opts S3Options) (*S3Transport, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Transport{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
	}, nil
}

func (t *S3Transport) recordKey(identity string) string {
	return t.prefix + "records/" + base64.RawURLEncoding.EncodeToString([]byte(identity))
}

// Push uploads the record, replacing any previous revision.
func (t *S3Transport) Push(ctx context.Context, rec *haven.Record, _ haven.AccessToken) (*haven.Record, error) {
	_, err := t.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.recordKey(rec.Identity)),
		Body:   bytes.NewReader(rec.Payload),
		Metadata: map[string]string{
			s3MetaRevision:  rec.Revision,
			s3MetaUpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("uploading record: %w", err)
	}
	return copyRecord(rec), nil
}

// Pull downloads the record for identity, or returns (nil, nil) when absent.
func (t *S3Transport) Pull(ctx context.Context, identity string, _ haven.AccessToken) (*haven.Record, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.recordKey(identity)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching record: %w", err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading record body: %w", err)
	}

	rec := &haven.Record{Identity: identity, Payload: payload}
	rec.Revision = out.Metadata[s3MetaRevision]
	if v := out.Metadata[s3MetaUpdatedAt]; v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			rec.UpdatedAt = ts
		}
	}
	return rec, nil
}

// Delete removes the record for identity.
func (t *S3Transport) Delete(ctx context.Context, identity string, _ haven.AccessToken) error {
	key := t.recordKey(identity)

	// DeleteObject succeeds on missing keys, so probe first: the "entry
	// doesn't exist" signal is load-bearing for the caller.
	_, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return haven.ErrRecordNotFound
		}
		return fmt.Errorf("checking record: %w", err)
	}

	if _, err := t.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

// DeleteAll removes every record under the prefix.
func (t *S3Transport) DeleteAll(ctx context.Context, _ haven.AccessToken) error {
	paginator := s3.NewListObjectsV2Paginator(t.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
		Prefix: aws.String(t.prefix + "records/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing records: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := t.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(t.bucket),
			Delete: &types.Delete{Objects: objects},
		}); err != nil {
			return fmt.Errorf("deleting records: %w", err)
		}
	}
	return nil
}

// ValidateSetup verifies that the bucket is reachable.
func (t *S3Transport) ValidateSetup() error {
	_, err := t.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(t.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket not accessible: %w", err)
	}
	return nil
}
