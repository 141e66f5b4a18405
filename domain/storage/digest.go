package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// ComputeChecksum returns the hex SHA-256 of data. Checksums are always taken
// over the logical (uncompressed) payload, independent of storage encoding.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeETag returns the integrity tag for the bytes actually written by a
// backend. Same digest as the checksum, but taken over the stored encoding,
// so a compressed object has etag != checksum.
func ComputeETag(stored []byte) string {
	sum := sha256.Sum256(stored)
	return hex.EncodeToString(sum[:])
}

// ChecksumReader computes a SHA-256 digest of everything read through it.
// Used to verify streamed payloads without a second pass.
type ChecksumReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{r: r, h: sha256.New()}
}

func (c *ChecksumReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.h.Write(p[:n])
		c.n += int64(n)
	}
	return n, err
}

// Sum returns the hex digest of the bytes read so far.
func (c *ChecksumReader) Sum() string { return hex.EncodeToString(c.h.Sum(nil)) }

// BytesRead returns how many bytes have passed through the reader.
func (c *ChecksumReader) BytesRead() int64 { return c.n }
