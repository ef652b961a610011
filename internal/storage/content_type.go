package storage

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxCVSize is the largest CV upload accepted.
const MaxCVSize = 10 << 20

// cvTypes maps accepted CV content types to their canonical extension.
var cvTypes = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"text/plain": ".txt",
}

// DetectContentType determines the MIME type of an upload.
//
// Detection priority:
// 1. providedType, unless it is empty or the generic octet-stream
// 2. the file extension
// 3. sniffing head, the first bytes of the content
func DetectContentType(providedType, filename string, head []byte) string {
	if base := baseType(providedType); base != "" && base != "application/octet-stream" {
		return base
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return baseType(contentType)
	}

	if len(head) > 0 {
		return baseType(http.DetectContentType(head))
	}
	return "application/octet-stream"
}

// IsAllowedCVType checks if a content type is an accepted CV format.
func IsAllowedCVType(contentType string) bool {
	_, ok := cvTypes[baseType(contentType)]
	return ok
}

// IsPlainText returns true for text/plain uploads, whose body can be used as
// CV text directly.
func IsPlainText(contentType string) bool {
	return baseType(contentType) == "text/plain"
}

// ExtensionForCVType returns the canonical extension for an accepted CV type.
func ExtensionForCVType(contentType string) string {
	if ext, ok := cvTypes[baseType(contentType)]; ok {
		return ext
	}
	return ".bin"
}

// baseType strips parameters like charset and normalizes case.
func baseType(contentType string) string {
	return strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
}
