package storage

import (
	"mime"
	"path"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType is used when neither the key's extension nor the payload
// identifies a more specific type.
const DefaultContentType = "application/octet-stream"

// DetectContentType resolves a content type for key/content, cheapest signal
// first: the key's extension via the platform mime table, then magic-byte
// sniffing of the payload's leading bytes. Returns DefaultContentType when
// both come up empty.
func DetectContentType(key string, content []byte) string {
	if ext := path.Ext(key); ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	if len(content) > 0 {
		if mt := mimetype.Detect(content); mt != nil {
			return mt.String()
		}
	}
	return DefaultContentType
}
