package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"reel-go/internal/config"
	"reel-go/internal/reel"
)

// s3API is the subset of the S3 client the vault uses.
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Vault stores snapshots as objects in an S3 bucket (or any S3-compatible
// service) under <prefix>/<collectionID>/<name>, with the version marker in
// a sibling "<name>.version" object.
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   s3API
	uploader *manager.Uploader
}

// NewS3Vault creates a vault on top of an existing client.
func NewS3Vault(name, bucket, prefix string, client s3API) *S3Vault {
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

// NewS3VaultFromConfig builds an S3 client from the default AWS credential
// chain. Static keys and a custom endpoint in cfg override the defaults.
func NewS3VaultFromConfig(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" || cfg.S3SecretAccessKey != "" {
		if cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("s3 vault requires both s3_access_key_id and s3_secret_access_key")
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Vault(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client), nil
}

func (v *S3Vault) key(collectionID, name string) (string, error) {
	for _, part := range []string{collectionID, name} {
		if part == "" || part == "." || part == ".." || strings.Contains(part, "/") {
			return "", fmt.Errorf("invalid snapshot key component %q", part)
		}
	}
	if v.prefix == "" {
		return path.Join(collectionID, name), nil
	}
	return path.Join(v.prefix, collectionID, name), nil
}

// PutSnapshot uploads the snapshot and then its version marker. A short
// read leaves the previous version marker in place.
func (v *S3Vault) PutSnapshot(collectionID string, name string, r io.Reader, size int64, version int64) error {
	key, err := v.key(collectionID, name)
	if err != nil {
		return err
	}
	ctx := context.Background()

	cr := &countingReader{r: r}
	if _, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
		Body:   cr,
	}); err != nil {
		return fmt.Errorf("uploading snapshot to s3://%s/%s: %w", v.bucket, key, err)
	}
	if cr.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, cr.n)
	}

	versionData := []byte(strconv.FormatInt(version, 10))
	if _, err := v.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(key + ".version"),
		Body:          bytes.NewReader(versionData),
		ContentLength: aws.Int64(int64(len(versionData))),
	}); err != nil {
		return fmt.Errorf("writing version marker: %w", err)
	}
	return nil
}

// GetSnapshot streams the snapshot object to w.
func (v *S3Vault) GetSnapshot(collectionID string, name string, w io.Writer) error {
	key, err := v.key(collectionID, name)
	if err != nil {
		return err
	}
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("snapshot %q for collection %s: %w", name, collectionID, reel.ErrNotFound)
		}
		return fmt.Errorf("fetching s3://%s/%s: %w", v.bucket, key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// GetSnapshotVersion returns 0 if no version marker exists.
func (v *S3Vault) GetSnapshotVersion(collectionID string, name string) (int64, error) {
	key, err := v.key(collectionID, name)
	if err != nil {
		return 0, err
	}
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key + ".version"),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version marker: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, fmt.Errorf("reading version marker: %w", err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and the credentials can reach it.
func (v *S3Vault) ValidateSetup() error {
	if _, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ reel.Vault = (*S3Vault)(nil)
