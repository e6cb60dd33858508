package constants

import (
	"net/http"
	"strings"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// AllowedExtensions holds the file extensions picked up by batch and folder ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without dot) is ingestible.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// DetectMIME sniffs document bytes. ok is false for anything outside PDF/PNG/JPEG.
func DetectMIME(data []byte) (mimeType string, ok bool) {
	if len(data) >= 5 && string(data[:5]) == "%PDF-" {
		return MIMEPDF, true
	}
	mt := http.DetectContentType(data)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	switch mt {
	case MIMEPDF, MIMEPNG, MIMEJPEG:
		return mt, true
	}
	return mt, false
}

// IsImage reports whether a supported MIME type is a raster image.
func IsImage(mimeType string) bool {
	return mimeType == MIMEPNG || mimeType == MIMEJPEG
}
