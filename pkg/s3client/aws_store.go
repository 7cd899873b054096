package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 100 * time.Millisecond
	defaultMaxDelay   = 30 * time.Second

	// S3 DeleteObjects accepts at most 1000 keys per request.
	deleteBatchSize = 1000
)

// S3Store implements Store against a single S3 bucket, with retry and
// exponential backoff around every call.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewS3Store creates a Store for bucket. The bucket name is the one piece of
// configuration without a usable default, so its absence fails construction.
func NewS3Store(cfg aws.Config, bucket string, optFns ...func(*s3.Options)) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("s3client: bucket name is required")
	}
	client := s3.NewFromConfig(cfg, optFns...)
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     bucket,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}, nil
}

// Head retrieves object metadata, mapping the not-found class of errors to
// ErrNotFound.
func (s *S3Store) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	resp, err := withRetry(ctx, s, func() (*s3.HeadObjectOutput, error) {
		return s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("head object %s: %w", key, err)
	}

	return &ObjectInfo{
		ETag:         aws.ToString(resp.ETag),
		Size:         aws.ToInt64(resp.ContentLength),
		LastModified: aws.ToTime(resp.LastModified),
	}, nil
}

// Put uploads body under key. Recognized headers map to the matching object
// attributes; anything else is stored as user metadata.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, headers map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	applyHeaders(input, headers)

	_, err := withRetry(ctx, s, func() (*manager.UploadOutput, error) {
		return s.uploader.Upload(ctx, input)
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// List returns every key under prefix. Pagination is handled internally.
func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := withRetry(ctx, s, func() (*s3.ListObjectsV2Output, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			objects = append(objects, Object{
				Key:  *obj.Key,
				Size: aws.ToInt64(obj.Size),
			})
		}
	}

	return objects, nil
}

// DeleteMulti removes keys in batches, in quiet mode: keys that are already
// gone are not errors.
func (s *S3Store) DeleteMulti(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		identifiers := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			identifiers = append(identifiers, types.ObjectIdentifier{Key: aws.String(key)})
		}

		resp, err := withRetry(ctx, s, func() (*s3.DeleteObjectsOutput, error) {
			return s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{
					Objects: identifiers,
					Quiet:   aws.Bool(true),
				},
			})
		})
		if err != nil {
			return fmt.Errorf("delete objects: %w", err)
		}
		if len(resp.Errors) > 0 {
			first := resp.Errors[0]
			return fmt.Errorf("delete objects: %d keys failed, first %s: %s",
				len(resp.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}

	return nil
}

func applyHeaders(input *s3.PutObjectInput, headers map[string]string) {
	for name, value := range headers {
		switch name {
		case "Content-Type":
			input.ContentType = aws.String(value)
		case "Content-Encoding":
			input.ContentEncoding = aws.String(value)
		case "Content-Disposition":
			input.ContentDisposition = aws.String(value)
		case "Content-Language":
			input.ContentLanguage = aws.String(value)
		case "Cache-Control":
			input.CacheControl = aws.String(value)
		case "Content-Length":
			// Derived from the body.
		default:
			if input.Metadata == nil {
				input.Metadata = make(map[string]string)
			}
			input.Metadata[name] = value
		}
	}
}

func withRetry[T any](ctx context.Context, s *S3Store, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		output, err := fn()
		if err == nil {
			return output, nil
		}

		// Absence is a result, never a condition to retry.
		if isNotFound(err) || !isRetryableError(err) {
			return zero, err
		}

		lastErr = err
		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(s.retryDelay(attempt)):
			}
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func isRetryableError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "ServiceUnavailable", "RequestTimeout", "RequestTimeoutException":
			return true
		}
		if httpErr, ok := apiErr.(interface{ HTTPStatusCode() int }); ok {
			code := httpErr.HTTPStatusCode()
			return code >= 500 && code < 600
		}
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}

// retryDelay applies exponential backoff with ±25% jitter, capped at maxDelay.
func (s *S3Store) retryDelay(attempt int) time.Duration {
	base := float64(s.baseDelay)
	delay := base * math.Pow(2.0, float64(attempt))

	jitter := delay * 0.25 * (2*rand.Float64() - 1)
	delay += jitter

	if delay > float64(s.maxDelay) {
		delay = float64(s.maxDelay)
	}

	return time.Duration(delay)
}
