package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	s3Scheme = "s3://"

	// cacheMaxAge is long enough that previews are effectively immutable
	cacheMaxAge = 232000000 * time.Second

	// maxPresignExpiry is the SigV4 upper bound
	maxPresignExpiry = 7 * 24 * time.Hour
)

// S3API is the subset of the S3 client used by S3Store
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Presigner signs download URLs
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config configures an S3Store
type S3Config struct {
	Bucket string
	Region string

	// Endpoint targets an S3-compatible service (MinIO, LocalStack) with path-style addressing
	Endpoint string

	// PublicBaseURL, when set, is used instead of presigned URLs: <base>/<key>
	PublicBaseURL string

	// URLExpiry bounds presigned URLs. Defaults to the SigV4 maximum of 7 days.
	URLExpiry time.Duration
}

// S3Store stores artifacts in an S3 bucket
type S3Store struct {
	client    S3API
	presigner Presigner
	cfg       S3Config
	now       func() time.Time
}

// NewS3Store creates an S3 store from the default AWS credential chain
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, s3.NewPresignClient(client), cfg), nil
}

// NewS3StoreWithClient creates an S3 store over existing clients
func NewS3StoreWithClient(client S3API, presigner Presigner, cfg S3Config) *S3Store {
	if cfg.URLExpiry <= 0 || cfg.URLExpiry > maxPresignExpiry {
		cfg.URLExpiry = maxPresignExpiry
	}
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")
	return &S3Store{
		client:    client,
		presigner: presigner,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Put uploads a file under a time-partitioned key and returns a download URL
func (s *S3Store) Put(ctx context.Context, localPath string, opts PutOptions) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(localPath)
	}

	now := s.now()
	key := objectKey(now, filepath.Base(localPath))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.cfg.Bucket),
		Key:          aws.String(key),
		Body:         f,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(fmt.Sprintf("max-age=%d", int64(cacheMaxAge.Seconds()))),
		Expires:      aws.Time(now.Add(cacheMaxAge)),
		Metadata:     putMetadata(opts),
	})
	if err != nil {
		return "", fmt.Errorf("S3 upload failed: %w", err)
	}

	return s.downloadURL(ctx, key)
}

// Get streams an object addressed as s3://bucket/key
func (s *S3Store) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("S3 download failed: %w", err)
	}
	return out.Body, nil
}

// Head returns object metadata
func (s *S3Store) Head(ctx context.Context, uri string) (*Metadata, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("S3 head failed: %w", err)
	}

	return &Metadata{
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

// Owns reports whether uri is an s3:// URI
func (s *S3Store) Owns(uri string) bool {
	return strings.HasPrefix(uri, s3Scheme)
}

func (s *S3Store) downloadURL(ctx context.Context, key string) (string, error) {
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL + "/" + key, nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.URLExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to sign download URL: %w", err)
	}
	return req.URL, nil
}

// ParseS3URI splits s3://bucket/key/parts into bucket and key
func ParseS3URI(uri string) (string, string, error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedURI, uri)
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 uri: %s", uri)
	}
	return bucket, key, nil
}

func putMetadata(opts PutOptions) map[string]string {
	md := map[string]string{}
	if opts.Parent != "" {
		md["parent"] = opts.Parent
	}
	if opts.Variant != "" {
		md["variant"] = opts.Variant
	}
	return md
}
