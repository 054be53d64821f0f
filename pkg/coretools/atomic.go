package coretools

import (
	"os"
	"path/filepath"

	"github.com/fariz/warden/pkg/errkit"
)

// atomicWriteFile writes data to a temp file in the target directory,
// fsyncs it, then renames it over the destination. Readers never observe
// a partially written file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errkit.Wrap(errkit.KindFileSystem, err, "failed to create parent directory").
			WithContext("op", "write")
	}

	tmp, err := os.CreateTemp(dir, ".warden-*")
	if err != nil {
		return errkit.Wrap(errkit.KindFileSystem, err, "failed to create temp file").
			WithContext("op", "write")
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return errkit.Wrap(errkit.KindFileSystem, err, "failed to write file").
			WithContext("op", "write")
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errkit.Wrap(errkit.KindFileSystem, err, "failed to sync file").
			WithContext("op", "write")
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return errkit.Wrap(errkit.KindFileSystem, err, "failed to set file mode").
			WithContext("op", "write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errkit.Wrap(errkit.KindFileSystem, err, "failed to close temp file").
			WithContext("op", "write")
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errkit.Wrap(errkit.KindFileSystem, err, "failed to replace file").
			WithContext("op", "write")
	}
	return nil
}
