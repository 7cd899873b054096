package s3client

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(aws.Config{}, "")
	assert.Error(t, err)
}

func TestApplyHeaders(t *testing.T) {
	input := &s3.PutObjectInput{}
	applyHeaders(input, map[string]string{
		"Content-Type":     "text/html; charset=utf-8",
		"Content-Encoding": "gzip",
		"Cache-Control":    "max-age=3600",
		"Content-Length":   "42",
		"x-custom":         "value",
	})

	assert.Equal(t, "text/html; charset=utf-8", aws.ToString(input.ContentType))
	assert.Equal(t, "gzip", aws.ToString(input.ContentEncoding))
	assert.Equal(t, "max-age=3600", aws.ToString(input.CacheControl))
	// Content-Length is derived from the body, never passed through.
	assert.Nil(t, input.ContentLength)
	assert.Equal(t, map[string]string{"x-custom": "value"}, input.Metadata)
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"types.NotFound", &types.NotFound{}, true},
		{"types.NoSuchKey", &types.NoSuchKey{}, true},
		{
			name: "generic NotFound code",
			err:  &smithy.GenericAPIError{Code: "NotFound", Message: "not found"},
			want: true,
		},
		{
			name: "other api error",
			err:  &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"},
			want: false,
		},
		{"plain error", errors.New("boom"), false},
		{"sentinel itself", ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, true},
		{"service unavailable", &smithy.GenericAPIError{Code: "ServiceUnavailable"}, true},
		{"request timeout", &smithy.GenericAPIError{Code: "RequestTimeout"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestRetryDelay(t *testing.T) {
	s := &S3Store{
		baseDelay: 100 * time.Millisecond,
		maxDelay:  30 * time.Second,
	}

	// With ±25% jitter the delay stays within a predictable band.
	for attempt := 0; attempt < 10; attempt++ {
		delay := s.retryDelay(attempt)
		require.GreaterOrEqual(t, delay, time.Duration(0))
		assert.LessOrEqual(t, delay, s.maxDelay)
	}

	// Early attempts grow roughly exponentially.
	first := s.retryDelay(0)
	assert.Less(t, first, 200*time.Millisecond)
}
