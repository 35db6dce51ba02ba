// Package recovery provides read-only operator tooling for diagnosing the
// crash-window anomaly documented for the store: a process that dies
// between writing an event file and advancing the ledger leaves behind an
// "orphan" file at a position the ledger never committed to. Opossum does
// not repair this automatically. ListOrphanFiles only reports it: silent
// self-healing across a crash window would hide exactly the failure an
// operator needs to see.
package recovery

import "github.com/majortom/opossum/pkg/opossum"

// ListOrphanFiles returns every position that has an event file on disk but
// sits above the ledger's committed high-water mark for the store at
// rootPath/storeName. A non-empty result means a writer crashed mid-append;
// the orphaned files are otherwise harmless and may be deleted once
// confirmed to not be part of a batch still in flight.
func ListOrphanFiles(rootPath, storeName string) ([]uint64, error) {
	paths := opossum.ResolveStorePaths(rootPath, storeName)

	committed, err := opossum.ReadLedgerPosition(paths.LedgerFile)
	if err != nil {
		return nil, err
	}

	positions, err := opossum.ListEventFilePositions(paths.EventsDir)
	if err != nil {
		return nil, err
	}

	var orphans []uint64
	for _, p := range positions {
		if p > committed {
			orphans = append(orphans, p)
		}
	}
	return orphans, nil
}
