package opossum

import (
	"os"
	"sort"
	"strconv"
	"strings"
)

// StorePaths exposes the on-disk layout for a store without requiring the
// caller to open it. Used by the recovery package, which deliberately
// avoids taking the cross-process lock or going through Store at all:
// orphan-file listing is read-only operator tooling, not a store operation.
type StorePaths struct {
	EventsDir  string
	LedgerFile string
	LockFile   string
}

// ResolveStorePaths returns the paths recovery tooling needs for rootPath/
// storeName, without creating anything or validating the store exists.
func ResolveStorePaths(rootPath, storeName string) StorePaths {
	layout := newStoreLayout(rootPath, storeName)
	return StorePaths{EventsDir: layout.eventsDir(), LedgerFile: layout.ledgerFile(), LockFile: layout.lockFile()}
}

// ReadLedgerPosition returns the committed high-water mark at ledgerFile, or
// 0 if the file is absent or corrupted, the same tolerant read Store itself
// uses.
func ReadLedgerPosition(ledgerFile string) (uint64, error) {
	l := newLedger(ledgerFile, false)
	return l.current()
}

// ListEventFilePositions returns every position with an event file present
// in eventsDir, sorted ascending, regardless of whether the ledger has
// advanced past them.
func ListEventFilePositions(eventsDir string) ([]uint64, error) {
	entries, err := os.ReadDir(eventsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newPathError(IO, "ListEventFilePositions", eventsDir, err)
	}
	var positions []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, eventFileExtension) {
			continue
		}
		base := strings.TrimSuffix(name, eventFileExtension)
		pos, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue // a .json file whose name is not a position
		}
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	return positions, nil
}
