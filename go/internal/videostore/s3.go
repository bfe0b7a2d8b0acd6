package videostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const keyPrefix = "videos/"

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds bucket settings. An empty Endpoint uses AWS.
type S3Config struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Store keeps each video as one object; metadata travels as object user metadata.
type S3Store struct {
	client S3API
	bucket string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3StoreWithClient(client, cfg.Bucket), nil
}

func NewS3StoreWithClient(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Put(ctx context.Context, id string, meta Metadata, blob io.Reader) error {
	body, size, cleanup, err := seekable(blob)
	if err != nil {
		return fmt.Errorf("put video %s: %w", id, err)
	}
	defer cleanup()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(keyPrefix + id),
		Body:          body,
		ContentLength: aws.Int64(size),
		Metadata:      encodeMetadata(meta),
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put video %s: %w", id, err)
	}
	return nil
}

// seekable returns blob as a ReadSeeker with its remaining length. The SDK only accepts
// unseekable payloads over TLS with a trailing checksum, so other readers (request bodies)
// are spooled to a temporary file first.
func seekable(blob io.Reader) (io.ReadSeeker, int64, func(), error) {
	if rs, ok := blob.(io.ReadSeeker); ok {
		start, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, 0, nil, err
		}
		end, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, nil, err
		}
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return nil, 0, nil, err
		}
		return rs, end - start, func() {}, nil
	}

	f, err := os.CreateTemp("", "videostore-upload-*")
	if err != nil {
		return nil, 0, nil, fmt.Errorf("spool upload: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}
	size, err := io.Copy(f, blob)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		cleanup()
		return nil, 0, nil, fmt.Errorf("spool upload: %w", err)
	}
	return f, size, cleanup, nil
}

func (s *S3Store) Get(ctx context.Context, id string) (Metadata, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(keyPrefix + id),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return Metadata{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Metadata{}, nil, fmt.Errorf("get video %s: %w", id, err)
	}

	meta := decodeMetadata(id, out.Metadata)
	meta.ContentType = aws.ToString(out.ContentType)
	meta.Size = aws.ToInt64(out.ContentLength)
	return meta, out.Body, nil
}

func (s *S3Store) List(ctx context.Context) ([]Metadata, error) {
	var out []Metadata
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list videos: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return nil, fmt.Errorf("head object %s: %w", key, err)
			}
			meta := decodeMetadata(strings.TrimPrefix(key, keyPrefix), head.Metadata)
			meta.ContentType = aws.ToString(head.ContentType)
			meta.Size = aws.ToInt64(head.ContentLength)
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func encodeMetadata(meta Metadata) map[string]string {
	m := map[string]string{"name": meta.Name}
	if meta.DurationSec > 0 {
		m["duration-sec"] = strconv.FormatFloat(meta.DurationSec, 'f', -1, 64)
	}
	if !meta.UploadedAt.IsZero() {
		m["uploaded-at"] = meta.UploadedAt.UTC().Format(time.RFC3339)
	}
	return m
}

func decodeMetadata(id string, m map[string]string) Metadata {
	meta := Metadata{ID: id, Name: m["name"]}
	if d, err := strconv.ParseFloat(m["duration-sec"], 64); err == nil {
		meta.DurationSec = d
	}
	if ts, err := time.Parse(time.RFC3339, m["uploaded-at"]); err == nil {
		meta.UploadedAt = ts
	}
	return meta
}
