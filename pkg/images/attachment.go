// Package images decides whether a draft image needs an upload round-trip
// and turns locally selected files into hosted URLs.
package images

import (
	"errors"
	"mime"
	"net/http"
	"strings"
)

// MaxAttachmentBytes bounds a single uploaded image.
const MaxAttachmentBytes = 10 << 20

var (
	// ErrUploadFailed wraps any object store failure during resolution.
	ErrUploadFailed = errors.New("images: upload failed")
	// ErrNotImage is returned for attachments whose content is not an image.
	ErrNotImage = errors.New("images: attachment is not an image")
	// ErrTooLarge is returned for attachments over MaxAttachmentBytes.
	ErrTooLarge = errors.New("images: attachment too large")
)

// imageExtensions lists the accepted image types and the storage key
// extension for each. SVG is excluded since browsers run scripts in it.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Attachment is a locally selected file pending upload.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewAttachment builds an attachment. The declared content type is kept for
// logging only; Validate replaces it with the sniffed one.
func NewAttachment(filename, contentType string, data []byte) *Attachment {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &Attachment{Filename: filename, ContentType: contentType, Data: data}
}

// Validate sniffs the attachment's bytes and accepts JPEG, PNG, GIF and WebP
// under MaxAttachmentBytes. On success ContentType holds the sniffed type,
// whatever the client declared.
func (a *Attachment) Validate() error {
	if len(a.Data) > MaxAttachmentBytes {
		return ErrTooLarge
	}
	sniffed := SniffImageType(a.Data)
	if sniffed == "" {
		return ErrNotImage
	}
	a.ContentType = sniffed
	return nil
}

// Extension returns the storage key extension for the attachment's content
// type. The client filename never contributes, so a key cannot end in .html
// or .svg.
func (a *Attachment) Extension() string {
	mediaType, _, _ := mime.ParseMediaType(a.ContentType)
	return imageExtensions[mediaType]
}

// SniffImageType returns the content type of data when it is one of the
// accepted image types, and "" otherwise.
func SniffImageType(data []byte) string {
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	if _, ok := imageExtensions[mediaType]; !ok {
		return ""
	}
	return mediaType
}

// ExtensionType maps a storage key extension back to its image type, or ""
// for anything outside the accepted set.
func ExtensionType(ext string) string {
	ext = strings.ToLower(ext)
	for mediaType, e := range imageExtensions {
		if e == ext {
			return mediaType
		}
	}
	return ""
}
