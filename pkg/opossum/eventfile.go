package opossum

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// eventFileRecord is the on-disk shape of one committed event. Payload is
// carried as json.RawMessage since Codec.Encode has already guaranteed it is
// well-formed, minified JSON.
type eventFileRecord struct {
	Position      uint64          `json:"position"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	Tags          []Tag           `json:"tags,omitempty"`
	Timestamp     string          `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CausationID   string          `json:"causation_id,omitempty"`
}

// eventFileStore reads and writes individual event files under a store's
// events/ directory. One file per committed position, named by
// formatPosition, never renamed or moved once written.
type eventFileStore struct {
	layout       storeLayout
	flush        bool
	writeProtect bool
}

func newEventFileStore(layout storeLayout, flush, writeProtect bool) *eventFileStore {
	return &eventFileStore{layout: layout, flush: flush, writeProtect: writeProtect}
}

// write commits one event file at the event's position. Called only from
// inside the append critical section, in ascending position order.
func (s *eventFileStore) write(ev SequencedEvent) error {
	rec := eventFileRecord{
		Position:      ev.Position,
		Type:          ev.Type,
		Payload:       json.RawMessage(ev.Payload),
		Tags:          ev.Tags,
		Timestamp:     ev.Metadata.Timestamp.UTC().Format(rfc3339Nano),
		CorrelationID: ev.Metadata.CorrelationID,
		CausationID:   ev.Metadata.CausationID,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return newStoreError(IO, "eventFileStore.write", err)
	}
	path := s.layout.eventFilePath(ev.Position)
	if err := atomicWriteFile(path, data, s.flush); err != nil {
		return err
	}
	if s.writeProtect {
		if err := os.Chmod(path, 0o444); err != nil {
			return newPathError(IO, "eventFileStore.write.chmod", path, err)
		}
	}
	return nil
}

// read loads and decodes the event file at position.
func (s *eventFileStore) read(position uint64) (SequencedEvent, error) {
	path := s.layout.eventFilePath(position)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SequencedEvent{}, &StoreError{Kind: NotFound, Op: "eventFileStore.read", Path: path, Position: position, Err: err}
		}
		return SequencedEvent{}, newPathError(IO, "eventFileStore.read", path, err)
	}
	return decodeEventFileRecord(data, position, path)
}

func decodeEventFileRecord(data []byte, position uint64, path string) (SequencedEvent, error) {
	var rec eventFileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return SequencedEvent{}, &StoreError{Kind: CorruptedPayload, Op: "eventFileStore.read", Path: path, Position: position, Err: err}
	}
	ts, err := parseRFC3339Nano(rec.Timestamp)
	if err != nil {
		return SequencedEvent{}, &StoreError{Kind: CorruptedPayload, Op: "eventFileStore.read", Path: path, Position: position, Err: err}
	}
	return SequencedEvent{
		Position: rec.Position,
		Type:     rec.Type,
		Payload:  []byte(rec.Payload),
		Tags:     rec.Tags,
		Metadata: Metadata{
			Timestamp:     ts,
			CorrelationID: rec.CorrelationID,
			CausationID:   rec.CausationID,
		},
	}, nil
}

// readMany loads every position in positions (assumed already sorted per the
// caller's desired output order) and returns the matching SequencedEvents in
// the same order. At or above parallelReadThreshold it fans reads out across a
// bounded pool of goroutines via errgroup, since each read is an independent
// file open with no shared state; below it, sequential reads avoid
// goroutine overhead for the common small-batch case.
func (s *eventFileStore) readMany(positions []uint64) ([]SequencedEvent, error) {
	out := make([]SequencedEvent, len(positions))
	if len(positions) < parallelReadThreshold {
		for i, pos := range positions {
			ev, err := s.read(pos)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	}

	degree := runtime.NumCPU() * 2
	if degree < 1 {
		degree = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(degree)
	for i, pos := range positions {
		i, pos := i, pos
		g.Go(func() error {
			ev, err := s.read(pos)
			if err != nil {
				return err
			}
			out[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// rewrite overwrites an already-committed event file in place, used only by
// the AddTags maintenance operation. It clears any write-protection bit
// first and reinstates it afterward, matching write's policy.
func (s *eventFileStore) rewrite(ev SequencedEvent) error {
	path := s.layout.eventFilePath(ev.Position)
	if s.writeProtect {
		if err := os.Chmod(path, 0o644); err != nil && !os.IsNotExist(err) {
			return newPathError(IO, "eventFileStore.rewrite.chmod", path, err)
		}
	}
	return s.write(ev)
}

const rfc3339Nano = time.RFC3339Nano

var errEmptyTimestamp = errors.New("event file is missing its timestamp field")

func parseRFC3339Nano(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errEmptyTimestamp
	}
	t, err := time.Parse(rfc3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing event timestamp %q: %w", s, err)
	}
	return t, nil
}
