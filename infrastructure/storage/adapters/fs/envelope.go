package fs

import (
	"encoding/json"
	"io/fs"
	"os"

	"blobstore/domain/storage"
)

// metaSuffix names the sidecar file written next to each data file.
const metaSuffix = ".meta.json"

// envelope is the on-disk sidecar record for one object: the caller-visible
// metadata plus the backend-internal fields needed to undo storage encoding.
// Metadata.Size is always the logical (uncompressed) size; StoredSize is what
// is actually on disk.
type envelope struct {
	Metadata   storage.ObjectMetadata `json:"metadata"`
	Compressed bool                   `json:"compressed"`
	StoredSize int64                  `json:"storedSize"`
}

// readEnvelope loads the sidecar for a data path. Any failure (missing file,
// corrupt JSON) yields nil: the caller falls back to stat-derived metadata
// rather than surfacing an error. Deliberate leniency so an unreadable
// sidecar degrades rather than masks the data file.
func readEnvelope(metaPath string) *envelope {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	return &env
}

// writeEnvelope persists the sidecar through its own temp-and-rename step, so
// a concurrent reader sees either the previous envelope or the new one, never
// a partial write. Written after the data rename; a crash between the two
// leaves, at worst, a data file without fresh metadata. Callers hold the key
// lock, so the fixed temp name cannot collide.
func writeEnvelope(metaPath string, env *envelope, mode fs.FileMode) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	tmp := metaPath + tmpSuffix
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, metaPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
