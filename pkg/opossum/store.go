package opossum

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"
)

// Store is the filesystem-backed event store facade: the only type
// application code is expected to hold a reference to. It owns every
// subordinate component (ledger, indices, locks) for a single
// <RootPath>/<StoreName> directory.
type Store struct {
	cfg    StoreConfig
	layout storeLayout

	events    *eventFileStore
	ledger    *ledger
	index     *indexCoordinator
	evaluator *queryEvaluator
	condition *appendConditionChecker
	crossLock *crossProcessLock

	// appendMu is the in-process mutual-exclusion guard for the append
	// critical section. A weighted semaphore of size 1 gives FIFO-ish
	// fairness across goroutines within this process; the cross-process
	// lock extends the same guarantee across processes.
	appendMu *semaphore.Weighted

	codec Codec
}

// NewStore opens (creating if necessary) the store directory described by
// cfg and returns a ready-to-use Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	layout := newStoreLayout(cfg.RootPath, cfg.StoreName)
	if err := os.MkdirAll(layout.eventsDir(), 0o755); err != nil {
		return nil, newPathError(IO, "NewStore", layout.eventsDir(), err)
	}
	if err := os.MkdirAll(layout.eventTypeIndexDir(), 0o755); err != nil {
		return nil, newPathError(IO, "NewStore", layout.eventTypeIndexDir(), err)
	}
	if err := os.MkdirAll(layout.tagIndexDir(), 0o755); err != nil {
		return nil, newPathError(IO, "NewStore", layout.tagIndexDir(), err)
	}

	led := newLedger(layout.ledgerFile(), cfg.FlushImmediately)
	idx := newIndexCoordinator(layout, cfg.FlushIndices)
	ev := newQueryEvaluator(idx, led)

	return &Store{
		cfg:       cfg,
		layout:    layout,
		events:    newEventFileStore(layout, cfg.FlushImmediately, cfg.WriteProtectEventFiles),
		ledger:    led,
		index:     idx,
		evaluator: ev,
		condition: newAppendConditionChecker(ev),
		crossLock: newCrossProcessLock(layout.lockFile(), cfg.CrossProcessLockTimeout),
		appendMu:  semaphore.NewWeighted(1),
		codec:     JSONCodec{},
	}, nil
}

// WithCodec replaces the store's payload codec. Must be called before the
// first Append/Read; not safe to change mid-lifetime.
func (s *Store) WithCodec(c Codec) *Store {
	s.codec = c
	return s
}

// Append validates, sequences and durably commits events, after verifying
// cond still holds. It returns the position assigned to the first event in
// the batch. On failure the ledger is not advanced; event files and index
// entries already written for the batch before the failure stay on disk.
func (s *Store) Append(ctx context.Context, events []NewEvent, cond AppendCondition) (uint64, error) {
	if len(events) == 0 {
		return 0, &StoreError{Kind: InvalidArgument, Op: "Store.Append", Err: errEmptyBatch}
	}
	for i := range events {
		if events[i].Type == "" {
			return 0, &StoreError{Kind: InvalidArgument, Op: "Store.Append", Err: errEmptyEventType}
		}
		encoded, err := s.codec.Encode(events[i].Payload)
		if err != nil {
			return 0, err
		}
		events[i].Payload = encoded
		if err := validateTagKeys(events[i].Tags); err != nil {
			return 0, err
		}
	}

	if err := ctx.Err(); err != nil {
		return 0, &StoreError{Kind: Cancelled, Op: "Store.Append", Err: err}
	}
	if err := s.appendMu.Acquire(ctx, 1); err != nil {
		return 0, &StoreError{Kind: Cancelled, Op: "Store.Append", Err: err}
	}
	defer s.appendMu.Release(1)

	held, err := s.crossLock.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer held.release()

	current, err := s.ledger.current()
	if err != nil {
		return 0, err
	}
	if err := s.condition.check(cond, current); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	sequenced := make([]SequencedEvent, len(events))
	for i, e := range events {
		meta := e.Metadata
		if meta.Timestamp.IsZero() {
			meta.Timestamp = now
		}
		sequenced[i] = SequencedEvent{
			Position: current + uint64(i) + 1,
			Type:     e.Type,
			Payload:  e.Payload,
			Tags:     e.Tags,
			Metadata: meta,
		}
	}

	for _, ev := range sequenced {
		if err := ctx.Err(); err != nil {
			return 0, &StoreError{Kind: Cancelled, Op: "Store.Append", Err: err}
		}
		if err := s.events.write(ev); err != nil {
			return 0, err
		}
	}
	for _, ev := range sequenced {
		if err := s.index.addEvent(ev); err != nil {
			return 0, err
		}
	}

	newPosition := current + uint64(len(sequenced))
	if err := s.ledger.advance(newPosition, newPosition); err != nil {
		return 0, err
	}

	positions := make([]uint64, len(sequenced))
	for i, ev := range sequenced {
		positions[i] = ev.Position
	}
	s.cfg.logger().Printf("Appended %d events, positions: %v", len(sequenced), positions)

	return sequenced[0].Position, nil
}

// Read returns every committed event matching q, ordered by position
// (ascending unless opts.Descending), starting strictly after
// opts.FromPosition.
func (s *Store) Read(ctx context.Context, q Query, opts ReadOptions) ([]SequencedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Kind: Cancelled, Op: "Store.Read", Err: err}
	}
	positions, err := s.evaluator.evaluate(q, opts.FromPosition)
	if err != nil {
		return nil, err
	}
	if opts.Descending {
		reverseUint64(positions)
	}
	events, err := s.events.readMany(positions)
	if err != nil {
		return nil, err
	}
	for i := range events {
		decoded, err := s.codec.Decode(events[i].Payload)
		if err != nil {
			return nil, err
		}
		events[i].Payload = decoded
	}
	s.cfg.logger().Printf("Read %d events matching query, from position %d", len(events), opts.FromPosition)
	return events, nil
}

// ReadLast returns the single highest-positioned event matching q, or
// (SequencedEvent{}, false, nil) if nothing matches. It reads only that one
// event file, however many events match.
func (s *Store) ReadLast(ctx context.Context, q Query) (SequencedEvent, bool, error) {
	if err := ctx.Err(); err != nil {
		return SequencedEvent{}, false, &StoreError{Kind: Cancelled, Op: "Store.ReadLast", Err: err}
	}
	positions, err := s.evaluator.evaluate(q, 0)
	if err != nil || len(positions) == 0 {
		return SequencedEvent{}, false, err
	}
	ev, err := s.events.read(positions[len(positions)-1])
	if err == nil {
		ev.Payload, err = s.codec.Decode(ev.Payload)
	}
	if err != nil {
		return SequencedEvent{}, false, err
	}
	return ev, true, nil
}

// DeleteStore irrecoverably removes the entire store directory, including
// every event file, index and the ledger. It takes both the in-process
// append mutex and the cross-process lock first so a concurrent append
// cannot race the deletion, then strips any read-only attributes left by
// WriteProtectEventFiles before recursing: on Windows (unlike POSIX, where
// directory-write permission is what governs removal) a read-only file
// blocks its own deletion regardless of its parent directory's permissions.
func (s *Store) DeleteStore(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Kind: Cancelled, Op: "Store.DeleteStore", Err: err}
	}
	if err := s.appendMu.Acquire(ctx, 1); err != nil {
		return &StoreError{Kind: Cancelled, Op: "Store.DeleteStore", Err: err}
	}
	defer s.appendMu.Release(1)

	held, err := s.crossLock.acquire(ctx)
	if err != nil {
		return err
	}
	defer held.release()

	root := s.layout.storeDir()
	if err := clearReadOnly(root); err != nil {
		return err
	}
	if err := os.RemoveAll(root); err != nil {
		return newPathError(IO, "Store.DeleteStore", root, err)
	}
	return nil
}

// clearReadOnly walks root and chmods every regular file to writable, so a
// subsequent RemoveAll cannot be blocked by files write-protected via
// WriteProtectEventFiles. A missing root is not an error: there is nothing
// to strip.
func clearReadOnly(root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		return os.Chmod(path, 0o644)
	})
	if err != nil && !os.IsNotExist(err) {
		return newPathError(IO, "Store.DeleteStore.clearReadOnly", root, err)
	}
	return nil
}

// Close releases any resources the store holds. The filesystem backend
// holds none beyond what each operation already releases, but Close exists
// so callers can defer it uniformly regardless of backend.
func (s *Store) Close() error {
	return nil
}

func reverseUint64(s []uint64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
