package storage

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ByteRange selects an inclusive byte span of the logical payload. End < 0
// means "through the last byte". A negative Start with End < 0 is the suffix
// form: the last -Start bytes.
type ByteRange struct {
	Start int64
	End   int64
}

// ParseByteRange parses an HTTP-style range spec ("bytes=0-99", "bytes=100-",
// "bytes=-50"). Only single ranges are supported.
func ParseByteRange(spec string) (*ByteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(spec, prefix) {
		return nil, WrapError(CodeInvalidContent, "", fmt.Errorf("malformed range %q", spec))
	}
	body := strings.TrimPrefix(spec, prefix)
	if strings.Contains(body, ",") {
		return nil, WrapError(CodeInvalidContent, "", fmt.Errorf("multiple ranges not supported: %q", spec))
	}
	start, end, found := strings.Cut(body, "-")
	if !found {
		return nil, WrapError(CodeInvalidContent, "", fmt.Errorf("malformed range %q", spec))
	}

	r := &ByteRange{End: -1}
	if start == "" {
		// suffix form: last N bytes
		n, err := strconv.ParseInt(end, 10, 64)
		if err != nil || n <= 0 {
			return nil, WrapError(CodeInvalidContent, "", fmt.Errorf("malformed range %q", spec))
		}
		r.Start = -n
		return r, nil
	}

	s, err := strconv.ParseInt(start, 10, 64)
	if err != nil || s < 0 {
		return nil, WrapError(CodeInvalidContent, "", fmt.Errorf("malformed range %q", spec))
	}
	r.Start = s
	if end != "" {
		e, err := strconv.ParseInt(end, 10, 64)
		if err != nil || e < s {
			return nil, WrapError(CodeInvalidContent, "", fmt.Errorf("malformed range %q", spec))
		}
		r.End = e
	}
	return r, nil
}

// Header renders the range as an HTTP Range header value.
func (r *ByteRange) Header() string {
	if r.Start < 0 {
		return fmt.Sprintf("bytes=%d", r.Start)
	}
	if r.End < 0 {
		return fmt.Sprintf("bytes=%d-", r.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// Slice applies the range to a materialized payload, clamping to its bounds.
func (r *ByteRange) Slice(data []byte) []byte {
	size := int64(len(data))
	start, end := r.Start, r.End
	if start < 0 {
		start = size + start
		if start < 0 {
			start = 0
		}
		return data[start:]
	}
	if start >= size {
		return nil
	}
	if end < 0 || end >= size {
		end = size - 1
	}
	return data[start : end+1]
}

// ReadAll drains r into memory. Thin wrapper kept so backends share one spot
// for buffering policy.
func ReadAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

// NewByteReader exposes a materialized payload as the stream form the Object
// model expects.
func NewByteReader(data []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(data))
}
