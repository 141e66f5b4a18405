package storage

import (
	"io"
	"time"
)

// ObjectMetadata describes one stored object's envelope. Size is always the
// logical (uncompressed) payload length seen by callers, never the on-disk or
// wire size.
type ObjectMetadata struct {
	ContentType        string            `json:"contentType"`
	Size               int64             `json:"size"`
	ETag               string            `json:"etag"`
	Checksum           string            `json:"checksum,omitempty"`
	LastModified       time.Time         `json:"lastModified"`
	CreatedAt          time.Time         `json:"createdAt,omitempty"`
	UserMetadata       map[string]string `json:"userMetadata,omitempty"`
	ContentEncoding    string            `json:"contentEncoding,omitempty"`
	CacheControl       string            `json:"cacheControl,omitempty"`
	ContentDisposition string            `json:"contentDisposition,omitempty"`
	StorageClass       string            `json:"storageClass,omitempty"`
	VersionID          string            `json:"versionId,omitempty"`
}

// Object is an immutable pairing of a key, its metadata, and its content.
// Produced only by read operations. The caller owns Body and must close it.
type Object struct {
	Key      string
	Metadata ObjectMetadata
	Body     io.ReadCloser
}

// Bytes drains and closes Body, returning the full payload. Convenience for
// callers that want the materialized content rather than a stream.
func (o *Object) Bytes() ([]byte, error) {
	defer o.Body.Close()
	return io.ReadAll(o.Body)
}

// ObjectInfo is the listing view of an object: enough to page through a
// namespace without fetching bodies or sidecar metadata.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ListResult is one page of a listing. Cursor is opaque; pass it back via
// ListOptions.Cursor to fetch the next page. Truncated is false on the last
// page.
type ListResult struct {
	Objects        []ObjectInfo
	CommonPrefixes []string
	Cursor         string
	Truncated      bool
}

// StoreStats summarizes a namespace, computed by paging the full listing.
type StoreStats struct {
	ObjectCount  int64
	TotalSize    int64
	LargestKey   string
	LargestSize  int64
	LastModified time.Time
}
