package opossum

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// positionListRecord is the on-disk shape of an index file: a single field
// holding a sorted, deduplicated list of positions.
type positionListRecord struct {
	Positions []uint64 `json:"positions"`
}

// positionIndexFile provides atomic read/write of a sorted, deduplicated
// position list backed by one file. TypeIndex and TagIndex are built on it.
type positionIndexFile struct {
	path  string
	flush bool
}

func newPositionIndexFile(path string, flush bool) *positionIndexFile {
	return &positionIndexFile{path: path, flush: flush}
}

const (
	transientReadRetries = 3
	transientReadBackoff = 5 * time.Millisecond
)

// read returns the stored position list, or an empty list if the file does
// not exist. A corrupted file is treated as empty; the next successful
// write self-heals it.
func (f *positionIndexFile) read() ([]uint64, error) {
	var lastErr error
	for attempt := 0; attempt < transientReadRetries; attempt++ {
		data, err := os.ReadFile(f.path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			if isTransientSharingError(err) {
				lastErr = err
				time.Sleep(transientReadBackoff)
				continue
			}
			return nil, newPathError(IO, "positionIndexFile.read", f.path, err)
		}
		var rec positionListRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			// Corrupted index file: treated as empty.
			return nil, nil
		}
		return rec.Positions, nil
	}
	return nil, newPathError(IO, "positionIndexFile.read", f.path, lastErr)
}

// exists reports whether the backing file is present.
func (f *positionIndexFile) exists() (bool, error) {
	_, err := os.Stat(f.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, newPathError(IO, "positionIndexFile.exists", f.path, err)
}

// add inserts position into the list if absent, keeping it sorted, and
// writes the result back atomically. Duplicate positions are silently
// ignored.
func (f *positionIndexFile) add(position uint64) error {
	positions, err := f.read()
	if err != nil {
		return err
	}
	idx := sort.Search(len(positions), func(i int) bool { return positions[i] >= position })
	if idx < len(positions) && positions[idx] == position {
		return nil // already present
	}
	positions = append(positions, 0)
	copy(positions[idx+1:], positions[idx:])
	positions[idx] = position
	return f.write(positions)
}

// write overwrites the file with the given sorted positions via
// temp-file-then-rename, fsyncing the temp file first when flush is set.
func (f *positionIndexFile) write(positions []uint64) error {
	data, err := json.Marshal(positionListRecord{Positions: positions})
	if err != nil {
		return newStoreError(IO, "positionIndexFile.write", err)
	}
	return atomicWriteFile(f.path, data, f.flush)
}

// atomicWriteFile is the shared temp-file-then-rename primitive used by
// positionIndexFile, the ledger, and event files: write to a randomly
// suffixed temp name in the same directory (so rename stays on one
// filesystem), optionally fsync, then rename into place. On any error after
// the temp file is created, it is best-effort removed.
func atomicWriteFile(path string, data []byte, flush bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newPathError(IO, "atomicWriteFile.mkdir", dir, err)
	}
	tmpPath := path + ".tmp." + uuid.NewString()

	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_EXCL, 0o644)
	if err != nil {
		return newPathError(IO, "atomicWriteFile.create", tmpPath, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return newPathError(IO, "atomicWriteFile.write", tmpPath, err)
	}
	if flush {
		if err := f.Sync(); err != nil {
			f.Close()
			return newPathError(IO, "atomicWriteFile.fsync", tmpPath, err)
		}
	}
	if err := f.Close(); err != nil {
		return newPathError(IO, "atomicWriteFile.close", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return newPathError(IO, "atomicWriteFile.rename", path, err)
	}
	cleanup = false
	return nil
}

// isTransientSharingError reports whether err looks like another process is
// mid-write/mid-rename on the same file, i.e. worth a short retry rather
// than a hard failure. This covers POSIX EAGAIN/EBUSY-flavoured errors that
// can surface on reads racing a concurrent rename on some filesystems
// (notably network mounts).
func isTransientSharingError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return isPlatformTransient(pathErr.Err)
	}
	return false
}
