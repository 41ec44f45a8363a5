package s3fetch

import (
	"errors"
	"path"
	"strings"
)

const s3Scheme = "s3://"

// IsS3URI reports whether arg names an S3 object rather than a local path.
func IsS3URI(arg string) bool {
	return strings.HasPrefix(arg, s3Scheme)
}

// ParseS3URI parses an S3 URI (s3://bucket/key) into bucket and key components.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !IsS3URI(uri) {
		return "", "", errors.New("invalid S3 URI: must start with s3://")
	}

	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errors.New("invalid S3 URI: missing bucket name")
	}
	return bucket, key, nil
}

// LocalName converts an S3 key to a safe local filename.
func LocalName(key string) string {
	// S3 keys always use '/', independent of the local OS.
	name := path.Base(key)
	if name == "." || name == "/" || name == ".." {
		return "object"
	}
	return name
}
