package storage

import (
	"errors"
	"io/fs"
	"os"
)

// sqliteSidecars are the files SQLite keeps next to a database in WAL mode.
var sqliteSidecars = []string{"", "-wal", "-shm"}

// DatabaseSize returns the bytes a SQLite database occupies on disk,
// counting its WAL and shared-memory files. Files that do not exist count
// as zero, so a cache that was never written reports 0.
func DatabaseSize(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	var total int64
	for _, suffix := range sqliteSidecars {
		info, err := os.Stat(path + suffix)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if info.IsDir() {
			return 0, &fs.PathError{Op: "size", Path: path + suffix, Err: errors.New("is a directory")}
		}
		total += info.Size()
	}
	return total, nil
}
