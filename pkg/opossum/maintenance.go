package opossum

import "context"

// AddTags is an operator maintenance operation: it lets an operator backfill
// tags onto already-committed events of a given type, for indices that did
// not exist when those events were written. It is serialized under the same
// append mutex as Append, since it rewrites event files and registers new
// tag-index entries.
//
// For each committed event of eventType, factory proposes tags to add.
// first-wins: any proposed key already present on the event (from its
// original tags, or from an earlier AddTags run) is discarded rather than
// overwritten, so this operation can never destroy information, only add
// it.
func (s *Store) AddTags(ctx context.Context, eventType string, factory TagFactory) (TagMigrationResult, error) {
	if eventType == "" {
		return TagMigrationResult{}, &StoreError{Kind: InvalidArgument, Op: "Store.AddTags", Err: errEmptyEventType}
	}

	if err := s.appendMu.Acquire(ctx, 1); err != nil {
		return TagMigrationResult{}, &StoreError{Kind: Cancelled, Op: "Store.AddTags", Err: err}
	}
	defer s.appendMu.Release(1)

	held, err := s.crossLock.acquire(ctx)
	if err != nil {
		return TagMigrationResult{}, err
	}
	defer held.release()

	positions, err := s.index.types.positions(eventType)
	if err != nil {
		return TagMigrationResult{}, err
	}

	result := TagMigrationResult{EventType: eventType, Considered: len(positions)}
	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return result, &StoreError{Kind: Cancelled, Op: "Store.AddTags", Err: err}
		}

		ev, err := s.events.read(pos)
		if err != nil {
			return result, err
		}

		existing := make(map[string]struct{}, len(ev.Tags))
		for _, t := range ev.Tags {
			existing[t.Key] = struct{}{}
		}

		proposed := factory(ev)
		var fresh []Tag
		for _, t := range proposed {
			if _, ok := existing[t.Key]; ok {
				continue // first-wins: never overwrite an existing key
			}
			existing[t.Key] = struct{}{}
			fresh = append(fresh, t)
		}
		if len(fresh) == 0 {
			continue
		}

		ev.Tags = append(ev.Tags, fresh...)
		if err := s.events.rewrite(ev); err != nil {
			return result, err
		}
		for _, t := range fresh {
			if err := s.index.tags.add(t, pos); err != nil {
				return result, err
			}
		}
		result.Rewritten++
	}

	s.cfg.logger().Printf("AddTags on %q: considered %d, rewrote %d", eventType, result.Considered, result.Rewritten)
	return result, nil
}
