// Package storage defines the object storage contract implemented by the
// backends under infrastructure/storage/adapters, together with the shared
// metadata model, error taxonomy, and backend-agnostic composite operations.
//
// Callers program against ObjectStorage and never need adapter-specific
// types; which backend bytes actually land on is a deployment decision made
// by the factory.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStorage is the contract every backend implements. Missing objects are
// not errors for Get/GetMetadata/Delete/Exists; they are errors (NOT_FOUND)
// only for operations that require the object to pre-exist.
type ObjectStorage interface {
	// Put stores content under key, replacing any existing object unless a
	// precondition in opts says otherwise. Returns metadata describing what
	// was actually stored.
	Put(ctx context.Context, key string, r io.Reader, opts *PutOptions) (*ObjectMetadata, error)

	// Get returns the object at key, or (nil, nil) if it does not exist or a
	// conditional option suppressed the body. The caller must close Body.
	Get(ctx context.Context, key string, opts *GetOptions) (*Object, error)

	// GetMetadata returns the object's metadata without transferring the
	// body, or (nil, nil) if the key does not exist.
	GetMetadata(ctx context.Context, key string) (*ObjectMetadata, error)

	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object at key. Returns false (not an error) if the
	// key did not exist.
	Delete(ctx context.Context, key string) (bool, error)

	// List returns one page of objects, optionally filtered by prefix and
	// grouped by delimiter. Safe to call repeatedly with the returned cursor
	// to page through an unbounded namespace.
	List(ctx context.Context, opts *ListOptions) (*ListResult, error)

	// OpenRead returns a live byte stream for the object. Unlike Get, a
	// missing key is a NOT_FOUND error because the caller asked for a stream
	// it intends to consume.
	OpenRead(ctx context.Context, key string, opts *GetOptions) (io.ReadCloser, error)

	// OpenWrite returns a streaming writer bound to key. The final metadata
	// is available from the writer only after Close succeeds.
	OpenWrite(ctx context.Context, key string, opts *PutOptions) (ObjectWriter, error)

	// SignedURL produces a time-limited, method-scoped URL granting direct
	// access to the object without going through this interface.
	SignedURL(ctx context.Context, key string, opts *SignedURLOptions) (string, error)
}

// ObjectWriter is a streaming destination for one object. Metadata reports
// the result of the underlying store once Close has returned nil.
type ObjectWriter interface {
	io.WriteCloser

	// Metadata returns the stored object's metadata. It errors if called
	// before a successful Close.
	Metadata() (*ObjectMetadata, error)
}

// Renamer is optionally implemented by backends that can move an object
// atomically. Move checks for it before falling back to copy-then-delete.
type Renamer interface {
	Rename(ctx context.Context, src, dst string) error
}

// PutOptions controls a single Put. Pointer fields distinguish "absent" from
// the zero value.
type PutOptions struct {
	// ContentType of the payload. Sniffed from the key and content when empty.
	ContentType string

	// Checksum is the caller-computed hex SHA-256 of the payload. When set,
	// the backend verifies it against the received bytes and fails the write
	// with CHECKSUM_MISMATCH on disagreement.
	Checksum string

	// UserMetadata is opaque key/value metadata stored with the object.
	UserMetadata map[string]string

	CacheControl       string
	ContentEncoding    string
	ContentDisposition string

	// StorageClass is a backend-specific tier hint (e.g. S3 STANDARD_IA).
	StorageClass string

	// IfMatch makes the write conditional: it fails with PRECONDITION_FAILED
	// unless the current object's etag equals the given value.
	IfMatch *string

	// IfNoneMatch makes the write create-only: it fails with ALREADY_EXISTS
	// if any object is present at the key.
	IfNoneMatch bool
}

// GetOptions controls a single Get or OpenRead.
type GetOptions struct {
	// Range selects a byte range of the logical (uncompressed) payload.
	Range *ByteRange

	// IfModifiedSince suppresses the body (Get returns nil, nil) when the
	// object has not been modified after the given time.
	IfModifiedSince *time.Time

	// IfNoneMatch suppresses the body when the current etag equals the given
	// value, mirroring HTTP conditional-get semantics.
	IfNoneMatch *string

	// Raw disables transparent decompression on backends that compress at
	// rest. The returned size still reflects the logical payload.
	Raw bool
}

// ListOptions controls one page of a listing.
type ListOptions struct {
	// Prefix restricts results to keys starting with it.
	Prefix string

	// Delimiter groups keys sharing a segment after Prefix into
	// CommonPrefixes, giving directory-like listings. Usually "/".
	Delimiter string

	// Limit caps the number of entries per page. Backends apply a default
	// when zero.
	Limit int

	// Cursor resumes a listing from a previous page's ListResult.Cursor.
	Cursor string
}

// SignedURLOptions controls SignedURL generation.
type SignedURLOptions struct {
	// Method the URL is scoped to: "GET" or "PUT". Defaults to "GET".
	Method string

	// ExpiresIn bounds the URL's validity. Defaults to 15 minutes.
	ExpiresIn time.Duration

	// Download forces a content-disposition attachment on backends that
	// support it. The value, when non-empty, overrides the filename.
	Download string

	// Transform requests an image-transforming URL on backends with a
	// rendering endpoint. Ignored elsewhere.
	Transform *ImageTransform
}

// ImageTransform describes resize/format parameters for image render URLs.
// It drives URL construction only; no I/O is performed.
type ImageTransform struct {
	Width   int
	Height  int
	Quality int
	Format  string
	Resize  string // "cover", "contain", or "fill"
}
