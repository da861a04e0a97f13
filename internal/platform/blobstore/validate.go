package blobstore

import (
	"fmt"
	"path/filepath"
	"strings"
)

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xlsx": true,
	".xls":  true,
}

func allowedContentType(ct string) bool {
	switch ct {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		// Browsers often send this for office files.
		"application/octet-stream":
		return true
	}
	return strings.HasPrefix(ct, "image/")
}

// UnsupportedTypeError rejects an upload by extension or MIME type.
type UnsupportedTypeError struct {
	FileName    string
	ContentType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("File type not supported! Got: %s", e.ContentType)
}

// ValidateUpload checks the file extension and the declared MIME type.
// Both have to be on the allow list.
func ValidateUpload(fileName, contentType string) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	if allowedExtensions[ext] && allowedContentType(ct) {
		return nil
	}
	return &UnsupportedTypeError{FileName: fileName, ContentType: contentType}
}
