package storage

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Listing cursors are opaque to callers but shared between backends that page
// by numeric offset (the local walk and the remote offset-based API). The S3
// adapter carries the service's own continuation token instead.

const cursorPrefix = "off:"

// EncodeOffsetCursor wraps a numeric offset in an opaque cursor string.
func EncodeOffsetCursor(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// DecodeOffsetCursor unwraps a cursor produced by EncodeOffsetCursor. The
// empty cursor decodes to offset 0.
func DecodeOffsetCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil || !strings.HasPrefix(string(raw), cursorPrefix) {
		return 0, WrapError(CodeInvalidContent, "", fmt.Errorf("malformed cursor %q", cursor))
	}
	offset, err := strconv.Atoi(strings.TrimPrefix(string(raw), cursorPrefix))
	if err != nil || offset < 0 {
		return 0, WrapError(CodeInvalidContent, "", fmt.Errorf("malformed cursor %q", cursor))
	}
	return offset, nil
}
