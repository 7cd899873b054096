package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want string
	}{
		{
			name: "empty content",
			body: []byte{},
			want: `"d41d8cd98f00b204e9800998ecf8427e"`,
		},
		{
			name: "nil content",
			body: nil,
			want: `"d41d8cd98f00b204e9800998ecf8427e"`,
		},
		{
			name: "known content",
			body: []byte("hi"),
			want: `"49f68a5c8493ec2c0bf489821c21fc3b"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fingerprint(tt.body))
		})
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	body := []byte("some content")
	assert.Equal(t, Fingerprint(body), Fingerprint(body))
	assert.NotEqual(t, Fingerprint(body), Fingerprint([]byte("other content")))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical quoted", `"abc123"`, `"abc123"`, true},
		{"case differs", `"ABC123"`, `"abc123"`, true},
		{"quoted vs bare", `"abc123"`, "abc123", true},
		{"different digests", `"abc123"`, `"abc124"`, false},
		{"both empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"html with charset", "index.html", "text/html; charset=utf-8"},
		{"nested path", "assets/css/site.css", "text/css; charset=utf-8"},
		{"binary type without charset", "logo.png", "image/png"},
		{"no extension", "Makefile", ""},
		{"unknown extension", "data.zzz9", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentType(tt.path))
		})
	}
}
