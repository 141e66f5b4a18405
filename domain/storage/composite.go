package storage

import (
	"context"
)

// Composite operations are expressed purely in terms of the ObjectStorage
// primitives so every backend gets them for free. A backend with a cheaper
// native path overrides by implementing the corresponding optional interface
// (see Renamer), which these functions check the way io.Copy checks for
// io.ReaderFrom.

// Copy duplicates the object at src under dst, preserving content type and
// user metadata. The source must exist; a missing source is NOT_FOUND.
func Copy(ctx context.Context, s ObjectStorage, src, dst string) (*ObjectMetadata, error) {
	obj, err := s.Get(ctx, src, nil)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, NewError(CodeNotFound, src)
	}
	defer obj.Body.Close()

	return s.Put(ctx, dst, obj.Body, &PutOptions{
		ContentType:        obj.Metadata.ContentType,
		UserMetadata:       obj.Metadata.UserMetadata,
		CacheControl:       obj.Metadata.CacheControl,
		ContentEncoding:    obj.Metadata.ContentEncoding,
		ContentDisposition: obj.Metadata.ContentDisposition,
		StorageClass:       obj.Metadata.StorageClass,
	})
}

// Move relocates src to dst. Backends implementing Renamer get a true atomic
// rename; everyone else gets copy-then-delete-source, which is not atomic
// across the two keys.
func Move(ctx context.Context, s ObjectStorage, src, dst string) (*ObjectMetadata, error) {
	if r, ok := s.(Renamer); ok {
		if err := r.Rename(ctx, src, dst); err != nil {
			return nil, err
		}
		return s.GetMetadata(ctx, dst)
	}

	meta, err := Copy(ctx, s, src, dst)
	if err != nil {
		return nil, err
	}
	if _, err := s.Delete(ctx, src); err != nil {
		return nil, err
	}
	return meta, nil
}

// DeleteMany removes every key, returning the subset that actually existed.
// Missing keys are skipped silently, matching Delete's semantics.
func DeleteMany(ctx context.Context, s ObjectStorage, keys []string) ([]string, error) {
	var deleted []string
	for _, key := range keys {
		ok, err := s.Delete(ctx, key)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted = append(deleted, key)
		}
	}
	return deleted, nil
}

// Stats pages through the namespace under prefix and aggregates counts and
// sizes. Cost is proportional to the number of objects.
func Stats(ctx context.Context, s ObjectStorage, prefix string) (*StoreStats, error) {
	stats := &StoreStats{}
	opts := &ListOptions{Prefix: prefix}
	for {
		page, err := s.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Objects {
			stats.ObjectCount++
			stats.TotalSize += obj.Size
			if obj.Size > stats.LargestSize {
				stats.LargestSize = obj.Size
				stats.LargestKey = obj.Key
			}
			if obj.LastModified.After(stats.LastModified) {
				stats.LastModified = obj.LastModified
			}
		}
		if !page.Truncated {
			return stats, nil
		}
		opts.Cursor = page.Cursor
	}
}

// VerifyChecksum reports whether the object's payload hashes to expected.
// The stored checksum is trusted when present; otherwise the body is read
// and hashed. A missing object is NOT_FOUND.
func VerifyChecksum(ctx context.Context, s ObjectStorage, key, expected string) (bool, error) {
	meta, err := s.GetMetadata(ctx, key)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, NewError(CodeNotFound, key)
	}
	if meta.Checksum != "" {
		return meta.Checksum == expected, nil
	}

	obj, err := s.Get(ctx, key, nil)
	if err != nil {
		return false, err
	}
	if obj == nil {
		return false, NewError(CodeNotFound, key)
	}
	data, err := obj.Bytes()
	if err != nil {
		return false, WrapError(CodeInternal, key, err)
	}
	return ComputeChecksum(data) == expected, nil
}
