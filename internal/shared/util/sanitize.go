package util

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidFileName is returned for names that are empty or name a directory.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens a name into a single path segment. Dots inside
// a name are kept; only the "." and ".." segments are refused.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	switch s {
	case "", ".", "..":
		return "", ErrInvalidFileName
	}
	return s, nil
}

// TimestampedName prefixes a sanitized file name with the upload time in unix milliseconds.
func TimestampedName(name string, at time.Time) (string, error) {
	sanitized, err := SanitizeFileName(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d_%s", at.UnixMilli(), sanitized), nil
}

// OriginalName strips the timestamp prefix added by TimestampedName.
func OriginalName(stored string) string {
	base := path.Base(stored)
	idx := strings.Index(base, "_")
	if idx <= 0 {
		return base
	}
	for _, ch := range base[:idx] {
		if ch < '0' || ch > '9' {
			return base
		}
	}
	return base[idx+1:]
}

// UploadedAt parses the timestamp prefix added by TimestampedName.
func UploadedAt(stored string) (time.Time, bool) {
	base := path.Base(stored)
	prefix, _, found := strings.Cut(base, "_")
	if !found || prefix == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
