package source

import (
	"mime"
	"path/filepath"
	"strings"
)

// Str returns nil for the empty string.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int returns nil for zero.
func Int[T ~int | ~int32 | ~int64](v T) *int {
	if v == 0 {
		return nil
	}
	n := int(v)
	return &n
}

// Int64 returns nil for zero.
func Int64[T ~int | ~int32 | ~int64](v T) *int64 {
	if v == 0 {
		return nil
	}
	n := int64(v)
	return &n
}

// Seconds returns nil for zero.
func Seconds[T ~int | ~int32 | ~int64 | ~float64](v T) *float64 {
	if v == 0 {
		return nil
	}
	f := float64(v)
	return &f
}

// Ext derives a file extension from the file name, falling back to the mime type.
func Ext(name, mimeType string) *string {
	if ext := filepath.Ext(name); ext != "" {
		return &ext
	}
	if mimeType == "" {
		return nil
	}
	switch strings.ToLower(mimeType) {
	case "image/jpeg":
		return Str(".jpg")
	case "audio/ogg":
		return Str(".ogg")
	case "video/mp4":
		return Str(".mp4")
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return nil
	}
	return &exts[0]
}
