package config

import "time"

// applyDefaults fills gaps parse leaves for values whose defaults depend on
// other settings.
func applyDefaults(cfg *Config) {
	if cfg.Storage.Timeout <= 0 {
		cfg.Storage.Timeout = 30 * time.Second
	}
	if cfg.Storage.HTTPAPI.Timeout <= 0 {
		cfg.Storage.HTTPAPI.Timeout = cfg.Storage.Timeout
	}
	if cfg.Storage.FS.DirMode == 0 {
		cfg.Storage.FS.DirMode = 0o755
	}
	if cfg.Storage.FS.FileMode == 0 {
		cfg.Storage.FS.FileMode = 0o644
	}
}

// DefaultFSConfig returns sensible defaults for the filesystem adapter.
// Useful for tests that build configs by hand.
func DefaultFSConfig(root string) FSConfig {
	return FSConfig{
		Root:        root,
		DirMode:     0o755,
		FileMode:    0o644,
		LockTimeout: 5 * time.Second,
		LockTTL:     30 * time.Second,
	}
}

// DefaultStorageConfig returns a filesystem-backed storage config rooted at
// root.
func DefaultStorageConfig(root string) StorageConfig {
	return StorageConfig{
		Adapter: "fs",
		Timeout: 30 * time.Second,
		FS:      DefaultFSConfig(root),
	}
}
