package httpapi

import (
	"net/url"
	"strconv"

	"blobstore/domain/storage"
)

// PublicURL constructs the deterministic public path for key. The URL only
// resolves if the bucket is public; no request is made to find out.
func (c *Client) PublicURL(key string) string {
	key, err := storage.Normalize(key)
	if err != nil {
		return ""
	}
	return c.baseURL + "/object/public/" + url.PathEscape(c.bucket) + "/" + escapeKey(key)
}

// TransformURL composes the rendering endpoint URL for an image object with
// resize/format/quality query parameters. Purely URL construction; the
// rendering service does the work when the URL is fetched.
func (c *Client) TransformURL(key string, t *storage.ImageTransform) string {
	key, err := storage.Normalize(key)
	if err != nil {
		return ""
	}
	base := c.baseURL + "/render/image/public/" + url.PathEscape(c.bucket) + "/" + escapeKey(key)
	if t == nil {
		return base
	}

	q := url.Values{}
	if t.Width > 0 {
		q.Set("width", strconv.Itoa(t.Width))
	}
	if t.Height > 0 {
		q.Set("height", strconv.Itoa(t.Height))
	}
	if t.Quality > 0 {
		q.Set("quality", strconv.Itoa(t.Quality))
	}
	if t.Format != "" {
		q.Set("format", t.Format)
	}
	if t.Resize != "" {
		q.Set("resize", t.Resize)
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}
