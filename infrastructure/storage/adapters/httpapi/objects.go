package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"blobstore/domain/storage"
)

const (
	checksumHeader   = "X-Checksum-Sha256"
	userMetaPrefix   = "X-Meta-"
	defaultListLimit = 1000
	defaultExpiry    = 15 * time.Minute
)

// Put uploads content under key. The remote API distinguishes create (POST)
// from overwrite (PUT), so a preliminary existence probe picks the method.
func (c *Client) Put(ctx context.Context, key string, r io.Reader, opts *storage.PutOptions) (*storage.ObjectMetadata, error) {
	if opts == nil {
		opts = &storage.PutOptions{}
	}
	key, err := storage.Normalize(key)
	if err != nil {
		return nil, err
	}
	c.metrics.IncrementCounter("httpapi.put.attempts", nil)

	content, err := storage.ReadAll(r)
	if err != nil {
		return nil, storage.WrapError(storage.CodeInvalidContent, key, err)
	}
	checksum := storage.ComputeChecksum(content)
	if opts.Checksum != "" && opts.Checksum != checksum {
		return nil, storage.NewError(storage.CodeChecksumMismatch, key)
	}

	exists, err := c.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if opts.IfNoneMatch && exists {
		return nil, storage.NewError(storage.CodeAlreadyExists, key)
	}
	if opts.IfMatch != nil {
		if !exists {
			return nil, storage.NewError(storage.CodePreconditionFailed, key)
		}
		current, err := c.GetMetadata(ctx, key)
		if err != nil {
			return nil, err
		}
		if current == nil || current.ETag != *opts.IfMatch {
			return nil, storage.NewError(storage.CodePreconditionFailed, key)
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = storage.DetectContentType(key, content)
	}

	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set(checksumHeader, checksum)
	if opts.CacheControl != "" {
		header.Set("Cache-Control", opts.CacheControl)
	}
	if opts.ContentEncoding != "" {
		header.Set("Content-Encoding", opts.ContentEncoding)
	}
	if opts.ContentDisposition != "" {
		header.Set("Content-Disposition", opts.ContentDisposition)
	}
	var userMeta map[string]string
	if len(opts.UserMetadata) > 0 {
		userMeta = make(map[string]string, len(opts.UserMetadata))
		for k, v := range opts.UserMetadata {
			header.Set(userMetaPrefix+k, v)
			userMeta[strings.ToLower(k)] = v
		}
	}

	method := http.MethodPost
	if exists {
		method = http.MethodPut
	}
	resp, err := c.do(ctx, method, c.objectURL(key), bytes.NewReader(content), header)
	if err != nil {
		c.metrics.IncrementCounter("httpapi.put.errors", nil)
		return nil, err
	}
	if err := checkStatus(resp, key); err != nil {
		c.metrics.IncrementCounter("httpapi.put.errors", nil)
		return nil, err
	}

	etag := resp.Header.Get("Etag")
	if etag == "" {
		etag = storage.ComputeETag(content)
	}
	c.logger.Info("object stored", "key", key, "bytes", len(content), "method", method)
	c.metrics.IncrementCounter("httpapi.put.success", nil)
	c.metrics.RecordHistogram("httpapi.put.bytes", float64(len(content)), nil)

	return &storage.ObjectMetadata{
		ContentType:        contentType,
		Size:               int64(len(content)),
		ETag:               etag,
		Checksum:           checksum,
		LastModified:       time.Now().UTC(),
		UserMetadata:       userMeta,
		CacheControl:       opts.CacheControl,
		ContentEncoding:    opts.ContentEncoding,
		ContentDisposition: opts.ContentDisposition,
		StorageClass:       opts.StorageClass,
	}, nil
}

// Get fetches the object, streaming the response body through to the caller.
// Conditional options ride as HTTP headers; 304 and 404 both yield (nil, nil).
func (c *Client) Get(ctx context.Context, key string, opts *storage.GetOptions) (*storage.Object, error) {
	if opts == nil {
		opts = &storage.GetOptions{}
	}
	key, err := storage.Normalize(key)
	if err != nil {
		return nil, err
	}
	c.metrics.IncrementCounter("httpapi.get.attempts", nil)

	header := http.Header{}
	if opts.Range != nil {
		header.Set("Range", opts.Range.Header())
	}
	if opts.IfModifiedSince != nil {
		header.Set("If-Modified-Since", opts.IfModifiedSince.UTC().Format(http.TimeFormat))
	}
	if opts.IfNoneMatch != nil {
		header.Set("If-None-Match", *opts.IfNoneMatch)
	}

	resp, err := c.do(ctx, http.MethodGet, c.objectURL(key), nil, header)
	if err != nil {
		c.metrics.IncrementCounter("httpapi.get.errors", nil)
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusNotFound, http.StatusNotModified:
		resp.Body.Close()
		c.metrics.IncrementCounter("httpapi.get.miss", nil)
		return nil, nil
	default:
		c.metrics.IncrementCounter("httpapi.get.errors", nil)
		return nil, checkStatus(resp, key)
	}

	c.metrics.IncrementCounter("httpapi.get.success", nil)
	return &storage.Object{
		Key:      key,
		Metadata: metadataFromHeaders(resp.Header),
		Body:     resp.Body,
	}, nil
}

// GetMetadata issues a HEAD so no body is transferred. (nil, nil) if absent.
func (c *Client) GetMetadata(ctx context.Context, key string) (*storage.ObjectMetadata, error) {
	key, err := storage.Normalize(key)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodHead, c.objectURL(key), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		meta := metadataFromHeaders(resp.Header)
		return &meta, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, statusError(resp.StatusCode, key, "")
	}
}

// Exists reports presence via a metadata probe.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	meta, err := c.GetMetadata(ctx, key)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

// Delete removes key through the batch endpoint. The preliminary probe gives
// the contract's "did it exist" answer, since the batch API reports nothing
// per key.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	key, err := storage.Normalize(key)
	if err != nil {
		return false, err
	}
	exists, err := c.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	body, _ := json.Marshal(map[string][]string{"prefixes": {key}})
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := c.do(ctx, http.MethodDelete, c.baseURL+"/object/"+url.PathEscape(c.bucket), bytes.NewReader(body), header)
	if err != nil {
		c.metrics.IncrementCounter("httpapi.delete.errors", nil)
		return false, err
	}
	if err := checkStatus(resp, key); err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		c.metrics.IncrementCounter("httpapi.delete.errors", nil)
		return false, err
	}
	c.logger.Info("object deleted", "key", key)
	c.metrics.IncrementCounter("httpapi.delete.success", nil)
	return true, nil
}

// listEntry is the wire shape of one listing row.
type listEntry struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"lastModified"`
}

// List translates the service's offset pagination into the shared opaque
// cursor. One extra row is requested to detect truncation without a second
// round trip. Delimiter grouping happens client-side.
func (c *Client) List(ctx context.Context, opts *storage.ListOptions) (*storage.ListResult, error) {
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
	c.metrics.IncrementCounter("httpapi.list.attempts", nil)

	reqBody, _ := json.Marshal(map[string]interface{}{
		"prefix": opts.Prefix,
		"limit":  limit + 1,
		"offset": offset,
	})
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/object/list/"+url.PathEscape(c.bucket), bytes.NewReader(reqBody), header)
	if err != nil {
		c.metrics.IncrementCounter("httpapi.list.errors", nil)
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.IncrementCounter("httpapi.list.errors", nil)
		return nil, statusError(resp.StatusCode, "", string(detail))
	}

	var entries []listEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, storage.WrapError(storage.CodeInvalidContent, "", err)
	}

	truncated := len(entries) > limit
	if truncated {
		entries = entries[:limit]
	}

	result := &storage.ListResult{Truncated: truncated}
	if truncated {
		result.Cursor = storage.EncodeOffsetCursor(offset + limit)
	}
	seen := map[string]struct{}{}
	for _, e := range entries {
		if opts.Delimiter != "" {
			remainder := strings.TrimPrefix(e.Name, opts.Prefix)
			if i := strings.Index(remainder, opts.Delimiter); i >= 0 {
				p := opts.Prefix + remainder[:i+len(opts.Delimiter)]
				if _, dup := seen[p]; !dup {
					seen[p] = struct{}{}
					result.CommonPrefixes = append(result.CommonPrefixes, p)
				}
				continue
			}
		}
		result.Objects = append(result.Objects, storage.ObjectInfo{
			Key:          e.Name,
			Size:         e.Size,
			LastModified: e.LastModified,
			ETag:         e.ETag,
		})
	}

	c.metrics.IncrementCounter("httpapi.list.success", nil)
	return result, nil
}

// OpenRead streams the object's body; a missing key is NOT_FOUND.
func (c *Client) OpenRead(ctx context.Context, key string, opts *storage.GetOptions) (io.ReadCloser, error) {
	obj, err := c.Get(ctx, key, opts)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, storage.NewError(storage.CodeNotFound, key)
	}
	return obj.Body, nil
}

// OpenWrite returns a streaming writer that commits through Put on Close.
func (c *Client) OpenWrite(ctx context.Context, key string, opts *storage.PutOptions) (storage.ObjectWriter, error) {
	if _, err := storage.Normalize(key); err != nil {
		return nil, err
	}
	return storage.NewPipeWriter(ctx, key, opts, c.Put), nil
}

// SignedURL asks the service to mint a time-bounded URL for the object.
// When a transform is requested the render URL is built locally instead;
// render URLs are public-path constructions, not server-minted.
func (c *Client) SignedURL(ctx context.Context, key string, opts *storage.SignedURLOptions) (string, error) {
	if opts == nil {
		opts = &storage.SignedURLOptions{}
	}
	key, err := storage.Normalize(key)
	if err != nil {
		return "", err
	}
	if opts.Transform != nil {
		return c.TransformURL(key, opts.Transform), nil
	}

	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	reqBody, _ := json.Marshal(map[string]int64{"expiresIn": int64(expiry.Seconds())})
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/object/sign/"+url.PathEscape(c.bucket)+"/"+escapeKey(key), bytes.NewReader(reqBody), header)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", statusError(resp.StatusCode, key, string(detail))
	}

	var signed struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", storage.WrapError(storage.CodeInvalidContent, key, err)
	}
	return c.baseURL + signed.SignedURL, nil
}

func metadataFromHeaders(h http.Header) storage.ObjectMetadata {
	meta := storage.ObjectMetadata{
		ContentType:        h.Get("Content-Type"),
		ETag:               h.Get("Etag"),
		Checksum:           h.Get(checksumHeader),
		CacheControl:       h.Get("Cache-Control"),
		ContentEncoding:    h.Get("Content-Encoding"),
		ContentDisposition: h.Get("Content-Disposition"),
	}
	if cl := h.Get("Content-Length"); cl != "" {
		meta.Size, _ = strconv.ParseInt(cl, 10, 64)
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			meta.LastModified = t.UTC()
		}
	}
	for name, vs := range h {
		if len(vs) > 0 && strings.HasPrefix(name, userMetaPrefix) && name != userMetaPrefix {
			if meta.UserMetadata == nil {
				meta.UserMetadata = map[string]string{}
			}
			// header canonicalization loses the caller's casing, so keys
			// normalize to lowercase on this backend
			meta.UserMetadata[strings.ToLower(strings.TrimPrefix(name, userMetaPrefix))] = vs[0]
		}
	}
	return meta
}

