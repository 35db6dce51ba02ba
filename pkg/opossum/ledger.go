package opossum

import (
	"encoding/json"
	"os"
)

// ledgerRecord is the on-disk shape of the ledger file: the high-water mark
// of committed positions, plus an informational event count.
type ledgerRecord struct {
	Position   uint64 `json:"position"`
	EventCount uint64 `json:"event_count"`
}

// ledger is the authoritative "highest assigned position" counter. Writes
// (advance) and the reads inside Append happen under the Store's in-process
// append mutex, and the cross-process lock extends that across processes.
// Read-side callers (query evaluation, recovery tooling) call current()
// without either lock; the temp-file-then-rename write means they see either
// the old or the new value.
type ledger struct {
	path  string
	flush bool
}

func newLedger(path string, flush bool) *ledger {
	return &ledger{path: path, flush: flush}
}

// current returns the highest committed position, or 0 if the ledger file
// does not exist or is corrupted.
func (l *ledger) current() (uint64, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		if isTransientSharingError(err) {
			for attempt := 0; attempt < transientReadRetries; attempt++ {
				data, err = os.ReadFile(l.path)
				if err == nil {
					break
				}
				if os.IsNotExist(err) {
					return 0, nil
				}
			}
			if err != nil {
				return 0, newPathError(IO, "ledger.current", l.path, err)
			}
		} else {
			return 0, newPathError(IO, "ledger.current", l.path, err)
		}
	}
	var rec ledgerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupted ledger is recovered by the next successful advance.
		return 0, nil
	}
	return rec.Position, nil
}

// advance overwrites the ledger with newValue, atomically and (if
// configured) durably.
func (l *ledger) advance(newValue, eventCount uint64) error {
	data, err := json.Marshal(ledgerRecord{Position: newValue, EventCount: eventCount})
	if err != nil {
		return newStoreError(IO, "ledger.advance", err)
	}
	return atomicWriteFile(l.path, data, l.flush)
}
