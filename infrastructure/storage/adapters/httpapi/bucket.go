package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"blobstore/domain/storage"
)

// Bucket describes one container on the object service.
type Bucket struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Bucket lifecycle calls are administrative operations layered on the same
// request and error machinery as the object contract; they are not part of
// ObjectStorage.

// CreateBucket creates a bucket. Creating one that already exists surfaces
// ALREADY_EXISTS from the service's 409.
func (c *Client) CreateBucket(ctx context.Context, name string, public bool) error {
	body, _ := json.Marshal(map[string]interface{}{"name": name, "public": public})
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/bucket", bytes.NewReader(body), jsonHeader())
	if err != nil {
		return err
	}
	return checkStatus(resp, "")
}

// GetBucket fetches one bucket's attributes, or (nil, nil) if it is absent.
func (c *Client) GetBucket(ctx context.Context, name string) (*Bucket, error) {
	resp, err := c.do(ctx, http.MethodGet, c.bucketURL(name), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		var b Bucket
		if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
			return nil, storage.WrapError(storage.CodeInvalidContent, "", err)
		}
		return &b, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, statusError(resp.StatusCode, "", string(detail))
	}
}

// UpdateBucket changes a bucket's public flag.
func (c *Client) UpdateBucket(ctx context.Context, name string, public bool) error {
	body, _ := json.Marshal(map[string]bool{"public": public})
	resp, err := c.do(ctx, http.MethodPut, c.bucketURL(name), bytes.NewReader(body), jsonHeader())
	if err != nil {
		return err
	}
	return checkStatus(resp, "")
}

// DeleteBucket removes a bucket. The service rejects non-empty buckets;
// call EmptyBucket first.
func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.bucketURL(name), nil, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, "")
}

// EmptyBucket deletes every object in the bucket.
func (c *Client) EmptyBucket(ctx context.Context, name string) error {
	resp, err := c.do(ctx, http.MethodPost, c.bucketURL(name)+"/empty", nil, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, "")
}

// ListBuckets returns all buckets visible to the credential in use.
func (c *Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/bucket", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, statusError(resp.StatusCode, "", string(detail))
	}
	var buckets []Bucket
	if err := json.NewDecoder(resp.Body).Decode(&buckets); err != nil {
		return nil, storage.WrapError(storage.CodeInvalidContent, "", err)
	}
	return buckets, nil
}

func (c *Client) bucketURL(name string) string {
	return c.baseURL + "/bucket/" + url.PathEscape(name)
}

func jsonHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}
