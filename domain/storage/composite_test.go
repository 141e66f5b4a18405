package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory ObjectStorage used to exercise the
// composite operations and the pipe writer without touching a real backend.
type memStore struct {
	mu      sync.Mutex
	objects map[string]memObject
}

type memObject struct {
	data []byte
	meta ObjectMetadata
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]memObject)}
}

func (m *memStore) Put(ctx context.Context, key string, r io.Reader, opts *PutOptions) (*ObjectMetadata, error) {
	if opts == nil {
		opts = &PutOptions{}
	}
	key, err := Normalize(key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, exists := m.objects[key]
	if opts.IfNoneMatch && exists {
		return nil, NewError(CodeAlreadyExists, key)
	}
	if opts.IfMatch != nil && (!exists || existing.meta.ETag != *opts.IfMatch) {
		return nil, NewError(CodePreconditionFailed, key)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = DetectContentType(key, data)
	}
	meta := ObjectMetadata{
		ContentType:  contentType,
		Size:         int64(len(data)),
		ETag:         ComputeETag(data),
		Checksum:     ComputeChecksum(data),
		LastModified: time.Now().UTC(),
		UserMetadata: opts.UserMetadata,
	}
	m.objects[key] = memObject{data: data, meta: meta}
	return &meta, nil
}

func (m *memStore) Get(ctx context.Context, key string, opts *GetOptions) (*Object, error) {
	key, err := Normalize(key)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, nil
	}
	return &Object{Key: key, Metadata: obj.meta, Body: NewByteReader(obj.data)}, nil
}

func (m *memStore) GetMetadata(ctx context.Context, key string) (*ObjectMetadata, error) {
	obj, err := m.Get(ctx, key, nil)
	if err != nil || obj == nil {
		return nil, err
	}
	obj.Body.Close()
	meta := obj.Metadata
	return &meta, nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	meta, err := m.GetMetadata(ctx, key)
	return meta != nil, err
}

func (m *memStore) Delete(ctx context.Context, key string) (bool, error) {
	key, err := Normalize(key)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return false, nil
	}
	delete(m.objects, key)
	return true, nil
}

func (m *memStore) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	if opts == nil {
		opts = &ListOptions{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	offset, err := DecodeOffsetCursor(opts.Cursor)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := &ListResult{}
	end := offset + limit
	if end > len(keys) {
		end = len(keys)
	}
	for _, k := range keys[offset:end] {
		obj := m.objects[k]
		result.Objects = append(result.Objects, ObjectInfo{
			Key: k, Size: obj.meta.Size, LastModified: obj.meta.LastModified, ETag: obj.meta.ETag,
		})
	}
	m.mu.Unlock()

	if end < len(keys) {
		result.Truncated = true
		result.Cursor = EncodeOffsetCursor(end)
	}
	return result, nil
}

func (m *memStore) OpenRead(ctx context.Context, key string, opts *GetOptions) (io.ReadCloser, error) {
	obj, err := m.Get(ctx, key, opts)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, NewError(CodeNotFound, key)
	}
	return obj.Body, nil
}

func (m *memStore) OpenWrite(ctx context.Context, key string, opts *PutOptions) (ObjectWriter, error) {
	return NewPipeWriter(ctx, key, opts, m.Put), nil
}

func (m *memStore) SignedURL(ctx context.Context, key string, opts *SignedURLOptions) (string, error) {
	return "mem://" + key, nil
}

// renamingStore layers a Rename implementation over memStore to exercise the
// optional-interface path in Move.
type renamingStore struct {
	*memStore
	renames int
}

func (r *renamingStore) Rename(ctx context.Context, src, dst string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[src]
	if !ok {
		return NewError(CodeNotFound, src)
	}
	r.objects[dst] = obj
	delete(r.objects, src)
	r.renames++
	return nil
}

func put(t *testing.T, s ObjectStorage, key, content string) *ObjectMetadata {
	t.Helper()
	meta, err := s.Put(context.Background(), key, strings.NewReader(content), nil)
	require.NoError(t, err)
	return meta
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	put(t, s, "src.txt", "payload")

	meta, err := Copy(ctx, s, "src.txt", "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(7), meta.Size)

	obj, err := s.Get(ctx, "dst.txt", nil)
	require.NoError(t, err)
	require.NotNil(t, obj)
	data, err := obj.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// source survives a copy
	exists, err := s.Exists(ctx, "src.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCopyMissingSource(t *testing.T) {
	_, err := Copy(context.Background(), newMemStore(), "absent", "dst")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestMoveFallsBackToCopyDelete(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	put(t, s, "a.txt", "x")

	_, err := Move(ctx, s, "a.txt", "b.txt")
	require.NoError(t, err)

	exists, err := s.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = s.Exists(ctx, "b.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMovePrefersRenamer(t *testing.T) {
	ctx := context.Background()
	s := &renamingStore{memStore: newMemStore()}
	put(t, s, "a.txt", "x")

	_, err := Move(ctx, s, "a.txt", "b.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, s.renames, "Move should use the backend's Rename")

	exists, err := s.Exists(ctx, "b.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteMany(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	put(t, s, "a", "1")
	put(t, s, "b", "2")

	deleted, err := DeleteMany(ctx, s, []string{"a", "missing", "b"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, deleted)
}

func TestStatsPagesThroughNamespace(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	for i := 0; i < 7; i++ {
		put(t, s, fmt.Sprintf("data/%d.bin", i), strings.Repeat("x", i+1))
	}
	put(t, s, "other/skip.bin", "zzzz")

	stats, err := Stats(ctx, s, "data/")
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.ObjectCount)
	assert.Equal(t, int64(1+2+3+4+5+6+7), stats.TotalSize)
	assert.Equal(t, "data/6.bin", stats.LargestKey)
	assert.Equal(t, int64(7), stats.LargestSize)
}

func TestVerifyChecksum(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	content := []byte("to be verified")
	put(t, s, "v.bin", string(content))

	ok, err := VerifyChecksum(ctx, s, "v.bin", ComputeChecksum(content))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyChecksum(ctx, s, "v.bin", ComputeChecksum([]byte("tampered")))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyChecksum(ctx, s, "missing", "whatever")
	assert.True(t, IsNotFound(err))
}

func TestPipeWriterStreamsToPut(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()

	w, err := s.OpenWrite(ctx, "streamed.bin", &PutOptions{ContentType: "application/octet-stream"})
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("chunk-"), 1000)
	for i := 0; i < len(payload); i += 512 {
		end := i + 512
		if end > len(payload) {
			end = len(payload)
		}
		_, err := w.Write(payload[i:end])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	meta, err := w.Metadata()
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), meta.Size)

	obj, err := s.Get(ctx, "streamed.bin", nil)
	require.NoError(t, err)
	data, err := obj.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestPipeWriterMetadataBeforeClose(t *testing.T) {
	s := newMemStore()
	w, err := s.OpenWrite(context.Background(), "x", nil)
	require.NoError(t, err)

	_, err = w.Metadata()
	assert.Error(t, err, "metadata is only available after Close")
	require.NoError(t, w.Close())
}

func TestPipeWriterPropagatesPutFailure(t *testing.T) {
	s := newMemStore()
	// invalid key makes the underlying Put fail
	w := NewPipeWriter(context.Background(), "../escape", nil, s.Put)
	_, _ = w.Write([]byte("data"))
	err := w.Close()
	require.Error(t, err)
	assert.Equal(t, CodeInvalidKey, CodeOf(err))
}
