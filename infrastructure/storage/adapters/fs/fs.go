// Package fs implements the object storage contract over a local directory
// tree. Each key maps to a data file plus a sidecar metadata file; writes go
// through a per-key advisory lock and a temp-file + rename protocol so a
// reader never observes a partially written object.
package fs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	iofs "io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"blobstore/config"
	"blobstore/domain/observability"
	"blobstore/domain/storage"
)

const (
	tmpSuffix        = ".tmp"
	defaultListLimit = 1000
	defaultExpiry    = 15 * time.Minute
)

// Store is the local filesystem backend. Safe for concurrent use by multiple
// goroutines sharing the one instance; two Stores pointed at the same root
// still race at the OS level and are not protected against each other.
type Store struct {
	root    string
	cfg     config.FSConfig
	locks   *keyLocks
	secret  []byte
	logger  observability.Logger
	metrics observability.Metrics
}

// New creates a filesystem store rooted at cfg.Root, creating the directory
// if needed. Call Close when done to stop the lock sweeper.
func New(cfg config.FSConfig, logger observability.Logger, metrics observability.Metrics) (*Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}

	if err := os.MkdirAll(cfg.Root, cfg.DirMode); err != nil {
		return nil, storage.WrapError(storage.CodeInternal, "", fmt.Errorf("create storage root %q: %w", cfg.Root, err))
	}
	absRoot, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, storage.WrapError(storage.CodeInternal, "", fmt.Errorf("resolve storage root: %w", err))
	}

	secret := []byte(cfg.URLSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, storage.WrapError(storage.CodeInternal, "", err)
		}
	}

	s := &Store{
		root:    absRoot,
		cfg:     cfg,
		locks:   newKeyLocks(cfg.LockTimeout, cfg.LockTTL),
		secret:  secret,
		logger:  logger.WithFields(map[string]interface{}{"component": "fs_storage"}),
		metrics: metrics.WithTags(map[string]string{"storage": "fs"}),
	}
	s.sweepStaleTemp()

	s.logger.Info("filesystem storage initialized", "root", absRoot, "compression", cfg.Compression)
	return s, nil
}

// Close stops the lock sweeper. The store must not be used afterwards.
func (s *Store) Close() error {
	s.locks.Close()
	return nil
}

// dataPath resolves a normalized key to its file under root, rejecting any
// result that escapes the root. The ".meta.json" and ".tmp" suffixes are
// reserved for the backend's own files on every path segment: a key ending in
// either would overwrite a sidecar, vanish from listings, or be deleted by
// the startup temp sweep.
func (s *Store) dataPath(key string) (string, error) {
	for _, seg := range strings.Split(key, "/") {
		if strings.HasSuffix(seg, metaSuffix) || strings.HasSuffix(seg, tmpSuffix) {
			return "", storage.NewError(storage.CodeInvalidKey, key)
		}
	}
	joined := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", storage.NewError(storage.CodeInvalidKey, key)
	}
	return joined, nil
}

// Put stores content under key using the atomic write protocol: lock the
// key, stage the bytes in a uniquely named temp file in the destination
// directory, rename over the final path, then write the sidecar.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts *storage.PutOptions) (*storage.ObjectMetadata, error) {
	if opts == nil {
		opts = &storage.PutOptions{}
	}
	key, err := storage.Normalize(key)
	if err != nil {
		return nil, err
	}
	path, err := s.dataPath(key)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCounter("fs.put.attempts", nil)

	content, err := storage.ReadAll(r)
	if err != nil {
		s.metrics.IncrementCounter("fs.put.errors", map[string]string{"error": "read"})
		return nil, storage.WrapError(storage.CodeInvalidContent, key, err)
	}
	checksum := storage.ComputeChecksum(content)
	if opts.Checksum != "" && opts.Checksum != checksum {
		s.metrics.IncrementCounter("fs.put.errors", map[string]string{"error": "checksum"})
		return nil, storage.NewError(storage.CodeChecksumMismatch, key)
	}

	token, err := s.locks.Acquire(ctx, key)
	if err != nil {
		s.metrics.IncrementCounter("fs.put.errors", map[string]string{"error": "lock_timeout"})
		return nil, err
	}
	defer s.locks.Release(key, token)

	prior := readEnvelope(path + metaSuffix)
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if opts.IfNoneMatch && exists {
		return nil, storage.NewError(storage.CodeAlreadyExists, key)
	}
	if opts.IfMatch != nil {
		if !exists {
			return nil, storage.NewError(storage.CodePreconditionFailed, key)
		}
		current := ""
		if prior != nil {
			current = prior.Metadata.ETag
		}
		if current != *opts.IfMatch {
			return nil, storage.NewError(storage.CodePreconditionFailed, key)
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = storage.DetectContentType(key, content)
	}

	stored := content
	compressed := false
	if s.cfg.Compression {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(content); err == nil && gz.Close() == nil && buf.Len() < len(content) {
			stored = buf.Bytes()
			compressed = true
		}
	}
	etag := storage.ComputeETag(stored)

	if err := os.MkdirAll(filepath.Dir(path), s.cfg.DirMode); err != nil {
		s.metrics.IncrementCounter("fs.put.errors", map[string]string{"error": "mkdir"})
		return nil, storage.WrapError(storage.CodeInternal, key, err)
	}

	tmp := fmt.Sprintf("%s.%d.%s%s", path, time.Now().UnixNano(), uuid.NewString()[:8], tmpSuffix)
	if err := os.WriteFile(tmp, stored, s.cfg.FileMode); err != nil {
		s.metrics.IncrementCounter("fs.put.errors", map[string]string{"error": "write"})
		return nil, storage.WrapError(storage.CodeInternal, key, err)
	}
	// rename is the only step that makes the new content visible
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		s.metrics.IncrementCounter("fs.put.errors", map[string]string{"error": "rename"})
		return nil, storage.WrapError(storage.CodeInternal, key, err)
	}

	now := time.Now().UTC()
	createdAt := now
	if exists && prior != nil && !prior.Metadata.CreatedAt.IsZero() {
		createdAt = prior.Metadata.CreatedAt
	}
	meta := storage.ObjectMetadata{
		ContentType:        contentType,
		Size:               int64(len(content)),
		ETag:               etag,
		Checksum:           checksum,
		LastModified:       now,
		CreatedAt:          createdAt,
		UserMetadata:       opts.UserMetadata,
		ContentEncoding:    opts.ContentEncoding,
		CacheControl:       opts.CacheControl,
		ContentDisposition: opts.ContentDisposition,
		StorageClass:       opts.StorageClass,
	}
	env := &envelope{Metadata: meta, Compressed: compressed, StoredSize: int64(len(stored))}
	if err := writeEnvelope(path+metaSuffix, env, s.cfg.FileMode); err != nil {
		s.metrics.IncrementCounter("fs.put.errors", map[string]string{"error": "sidecar"})
		return nil, storage.WrapError(storage.CodeInternal, key, err)
	}

	s.logger.Info("object stored", "key", key, "bytes", len(content), "compressed", compressed)
	s.metrics.IncrementCounter("fs.put.success", nil)
	s.metrics.RecordHistogram("fs.put.bytes", float64(len(content)), nil)
	return &meta, nil
}

// Get returns the object at key, or (nil, nil) if absent or a conditional in
// opts suppresses the body. Compressed payloads are transparently
// decompressed unless opts.Raw is set.
func (s *Store) Get(ctx context.Context, key string, opts *storage.GetOptions) (*storage.Object, error) {
	if opts == nil {
		opts = &storage.GetOptions{}
	}
	key, err := storage.Normalize(key)
	if err != nil {
		return nil, err
	}
	path, err := s.dataPath(key)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCounter("fs.get.attempts", nil)

	stored, env, found, err := s.readObject(ctx, key, path)
	if err != nil {
		s.metrics.IncrementCounter("fs.get.errors", nil)
		return nil, err
	}
	if !found {
		s.metrics.IncrementCounter("fs.get.miss", nil)
		return nil, nil
	}

	meta := s.resolveMetadata(key, path, env, stored)

	// Conditional headers are evaluated against sidecar metadata, not stat
	// info, so unrelated filesystem touches don't defeat them.
	if opts.IfNoneMatch != nil && meta.ETag == *opts.IfNoneMatch {
		return nil, nil
	}
	if opts.IfModifiedSince != nil && !meta.LastModified.After(*opts.IfModifiedSince) {
		return nil, nil
	}

	data := stored
	if env != nil && env.Compressed {
		// Range is defined over the logical payload, which does not exist as
		// a byte sequence when the caller asked for the raw stored form.
		if opts.Raw && opts.Range != nil {
			return nil, storage.WrapError(storage.CodeInvalidContent, key,
				fmt.Errorf("range read of a compressed object requires decompression"))
		}
		if !opts.Raw {
			gz, err := gzip.NewReader(bytes.NewReader(stored))
			if err != nil {
				return nil, storage.WrapError(storage.CodeInvalidContent, key, err)
			}
			data, err = io.ReadAll(gz)
			if err != nil {
				return nil, storage.WrapError(storage.CodeInvalidContent, key, err)
			}
		}
	}
	if opts.Range != nil {
		data = opts.Range.Slice(data)
	}

	s.metrics.IncrementCounter("fs.get.success", nil)
	return &storage.Object{Key: key, Metadata: meta, Body: storage.NewByteReader(data)}, nil
}

// GetMetadata returns the object's metadata without reading the body, or
// (nil, nil) if the key does not exist.
func (s *Store) GetMetadata(ctx context.Context, key string) (*storage.ObjectMetadata, error) {
	key, err := storage.Normalize(key)
	if err != nil {
		return nil, err
	}
	path, err := s.dataPath(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, storage.WrapError(storage.CodeInternal, key, err)
	}

	if env := readEnvelope(path + metaSuffix); env != nil {
		meta := env.Metadata
		return &meta, nil
	}

	// No sidecar: synthesize from stat plus a bounded sniff of the head.
	head := make([]byte, 512)
	n := 0
	if f, err := os.Open(path); err == nil {
		n, _ = f.Read(head)
		f.Close()
	}
	meta := storage.ObjectMetadata{
		ContentType:  storage.DetectContentType(key, head[:n]),
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
	}
	return &meta, nil
}

// Exists reports whether key has a data file.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	key, err := storage.Normalize(key)
	if err != nil {
		return false, err
	}
	path, err := s.dataPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, storage.WrapError(storage.CodeInternal, key, err)
	}
	return true, nil
}

// Delete removes the data file and its sidecar, then prunes newly empty
// parent directories up to the root. Missing keys return (false, nil).
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	key, err := storage.Normalize(key)
	if err != nil {
		return false, err
	}
	path, err := s.dataPath(key)
	if err != nil {
		return false, err
	}
	s.metrics.IncrementCounter("fs.delete.attempts", nil)

	token, err := s.locks.Acquire(ctx, key)
	if err != nil {
		return false, err
	}
	defer s.locks.Release(key, token)

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		s.metrics.IncrementCounter("fs.delete.errors", nil)
		return false, storage.WrapError(storage.CodeInternal, key, err)
	}
	os.Remove(path + metaSuffix) // best effort
	s.pruneEmptyDirs(filepath.Dir(path))

	s.logger.Info("object deleted", "key", key)
	s.metrics.IncrementCounter("fs.delete.success", nil)
	return true, nil
}

// List walks the tree under root, derives keys from paths, applies prefix
// and delimiter filtering, and paginates in memory sorted by last-modified
// descending. Suited to moderate object counts, not web-scale namespaces.
func (s *Store) List(ctx context.Context, opts *storage.ListOptions) (*storage.ListResult, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset, err := storage.DecodeOffsetCursor(opts.Cursor)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCounter("fs.list.attempts", nil)

	var objects []storage.ObjectInfo
	prefixSet := map[string]struct{}{}

	walkErr := filepath.WalkDir(s.root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() || strings.HasSuffix(path, metaSuffix) || strings.HasSuffix(path, tmpSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if opts.Prefix != "" && !strings.HasPrefix(key, opts.Prefix) {
			return nil
		}

		if opts.Delimiter != "" {
			remainder := strings.TrimPrefix(key, opts.Prefix)
			if i := strings.Index(remainder, opts.Delimiter); i >= 0 {
				prefixSet[opts.Prefix+remainder[:i+len(opts.Delimiter)]] = struct{}{}
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		size := info.Size()
		etag := ""
		if env := readEnvelope(path + metaSuffix); env != nil {
			size = env.Metadata.Size
			etag = env.Metadata.ETag
		}
		objects = append(objects, storage.ObjectInfo{
			Key:          key,
			Size:         size,
			LastModified: info.ModTime().UTC(),
			ETag:         etag,
		})
		return nil
	})
	if walkErr != nil {
		s.metrics.IncrementCounter("fs.list.errors", nil)
		return nil, storage.WrapError(storage.CodeInternal, "", walkErr)
	}

	sort.Slice(objects, func(i, j int) bool {
		if objects[i].LastModified.Equal(objects[j].LastModified) {
			return objects[i].Key < objects[j].Key
		}
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	var commonPrefixes []string
	for p := range prefixSet {
		commonPrefixes = append(commonPrefixes, p)
	}
	sort.Strings(commonPrefixes)

	result := &storage.ListResult{CommonPrefixes: commonPrefixes}
	if offset < len(objects) {
		end := offset + limit
		if end > len(objects) {
			end = len(objects)
		}
		result.Objects = objects[offset:end]
		if end < len(objects) {
			result.Truncated = true
			result.Cursor = storage.EncodeOffsetCursor(end)
		}
	}

	s.metrics.IncrementCounter("fs.list.success", nil)
	s.metrics.RecordHistogram("fs.list.count", float64(len(result.Objects)), nil)
	return result, nil
}

// OpenRead returns the object's body as a stream. A missing key is NOT_FOUND
// here, unlike Get.
func (s *Store) OpenRead(ctx context.Context, key string, opts *storage.GetOptions) (io.ReadCloser, error) {
	obj, err := s.Get(ctx, key, opts)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, storage.NewError(storage.CodeNotFound, key)
	}
	return obj.Body, nil
}

// OpenWrite returns a streaming writer that commits through Put on Close.
func (s *Store) OpenWrite(ctx context.Context, key string, opts *storage.PutOptions) (storage.ObjectWriter, error) {
	if _, err := storage.Normalize(key); err != nil {
		return nil, err
	}
	return storage.NewPipeWriter(ctx, key, opts, s.Put), nil
}

// SignedURL mints a file:// URL whose query string carries an HMAC over
// key, method, and expiry. Only meaningful to another holder of this store's
// secret (see VerifySignedURL); it honors the time-limited, method-scoped
// contract without any external service.
func (s *Store) SignedURL(ctx context.Context, key string, opts *storage.SignedURLOptions) (string, error) {
	if opts == nil {
		opts = &storage.SignedURLOptions{}
	}
	key, err := storage.Normalize(key)
	if err != nil {
		return "", err
	}
	path, err := s.dataPath(key)
	if err != nil {
		return "", err
	}

	method := opts.Method
	if method == "" {
		method = "GET"
	}
	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	expiresAt := time.Now().Add(expiry).Unix()

	q := url.Values{}
	q.Set("key", key)
	q.Set("method", method)
	q.Set("expires", strconv.FormatInt(expiresAt, 10))
	q.Set("signature", s.sign(key, method, expiresAt))

	return "file://" + filepath.ToSlash(path) + "?" + q.Encode(), nil
}

// VerifySignedURL checks a URL minted by SignedURL: signature valid, not
// expired, and scoped to the given method.
func (s *Store) VerifySignedURL(rawURL, method string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	q := u.Query()
	expiresAt, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil || time.Now().Unix() > expiresAt {
		return false
	}
	if q.Get("method") != method {
		return false
	}
	expected := s.sign(q.Get("key"), q.Get("method"), expiresAt)
	return hmac.Equal([]byte(expected), []byte(q.Get("signature")))
}

func (s *Store) sign(key, method string, expiresAt int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", key, method, expiresAt)
	return hex.EncodeToString(mac.Sum(nil))
}

// Rename implements storage.Renamer with a true atomic rename of the data
// file, so Move on this backend never goes through copy-then-delete.
func (s *Store) Rename(ctx context.Context, src, dst string) error {
	src, err := storage.Normalize(src)
	if err != nil {
		return err
	}
	dst, err = storage.Normalize(dst)
	if err != nil {
		return err
	}
	srcPath, err := s.dataPath(src)
	if err != nil {
		return err
	}
	dstPath, err := s.dataPath(dst)
	if err != nil {
		return err
	}

	// lock both keys in a fixed order so two crossing moves cannot deadlock
	first, second := src, dst
	if second < first {
		first, second = second, first
	}
	t1, err := s.locks.Acquire(ctx, first)
	if err != nil {
		return err
	}
	defer s.locks.Release(first, t1)
	t2, err := s.locks.Acquire(ctx, second)
	if err != nil {
		return err
	}
	defer s.locks.Release(second, t2)

	if _, err := os.Stat(srcPath); err != nil {
		if os.IsNotExist(err) {
			return storage.NewError(storage.CodeNotFound, src)
		}
		return storage.WrapError(storage.CodeInternal, src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), s.cfg.DirMode); err != nil {
		return storage.WrapError(storage.CodeInternal, dst, err)
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return storage.WrapError(storage.CodeInternal, src, err)
	}
	if err := os.Rename(srcPath+metaSuffix, dstPath+metaSuffix); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("sidecar move failed", "src", src, "dst", dst, "error", err)
	}
	s.pruneEmptyDirs(filepath.Dir(srcPath))
	return nil
}

// readObject returns a mutually consistent data/envelope pair for key, or
// found=false when the key has no data file. Put replaces the data file and
// its sidecar in two steps, so a read landing between them can pair new bytes
// with a stale envelope; the etag check detects that and retries, finally
// serializing with mutators through the key lock. A missing envelope is not
// treated as torn: that is the deliberate sidecar-loss fallback.
func (s *Store) readObject(ctx context.Context, key, path string) ([]byte, *envelope, bool, error) {
	read := func() ([]byte, *envelope, bool, error) {
		stored, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil, false, nil
			}
			return nil, nil, false, storage.WrapError(storage.CodeInternal, key, err)
		}
		return stored, readEnvelope(path + metaSuffix), true, nil
	}

	for attempt := 0; attempt < 3; attempt++ {
		stored, env, found, err := read()
		if err != nil || !found {
			return nil, nil, false, err
		}
		if env == nil || env.Metadata.ETag == storage.ComputeETag(stored) {
			return stored, env, true, nil
		}
		time.Sleep(pollInterval)
	}

	token, err := s.locks.Acquire(ctx, key)
	if err != nil {
		return nil, nil, false, err
	}
	defer s.locks.Release(key, token)
	return read()
}

// resolveMetadata prefers the sidecar and falls back to stat-derived fields
// when it is missing or unreadable.
func (s *Store) resolveMetadata(key, path string, env *envelope, stored []byte) storage.ObjectMetadata {
	if env != nil {
		return env.Metadata
	}
	meta := storage.ObjectMetadata{
		ContentType: storage.DetectContentType(key, stored),
		Size:        int64(len(stored)),
	}
	if info, err := os.Stat(path); err == nil {
		meta.LastModified = info.ModTime().UTC()
	}
	return meta
}

// pruneEmptyDirs walks upward from dir removing now-empty directories,
// stopping at the store root. Failures are ignored: cleanup never affects
// the primary operation's outcome.
func (s *Store) pruneEmptyDirs(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// sweepStaleTemp removes temp files a crashed writer may have left behind.
// Best effort, run once at startup.
func (s *Store) sweepStaleTemp() {
	_ = filepath.WalkDir(s.root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, tmpSuffix) {
			os.Remove(path)
		}
		return nil
	})
}
