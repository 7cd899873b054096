// Package identity computes content fingerprints and content-type metadata
// for local files. The fingerprint is an MD5 digest formatted as a quoted
// lowercase hex string, matching the ETag S3 reports for non-multipart
// objects, so local and remote identities compare directly.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"mime"
	"path/filepath"
	"strings"
)

// Fingerprint returns the content hash of b as a quoted lowercase hex
// string, e.g. `"9a0364b9e99bb480dd25e1f0284c8555"`.
func Fingerprint(b []byte) string {
	sum := md5.Sum(b)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// Equal compares two fingerprints case-insensitively, ignoring surrounding
// quotes. Remote stores are inconsistent about both.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.Trim(a, `"`), strings.Trim(b, `"`))
}

// ContentType derives the MIME type from the file extension. If a charset
// is known for the type it is appended as a lowercased parameter. Returns
// an empty string when the extension is unknown.
func ContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		return ""
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	if charset, ok := params["charset"]; ok {
		params["charset"] = strings.ToLower(charset)
	}
	return mime.FormatMediaType(mediaType, params)
}
