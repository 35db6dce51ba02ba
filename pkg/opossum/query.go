package opossum

// queryEvaluator resolves a Query into the sorted set of positions it
// matches, via an OR-of-AND algebra: a Query matches the union of its
// Items; an Item matches the intersection of its event-type membership
// (itself an OR across EventTypes) and its per-tag membership (an AND
// across Tags).
type queryEvaluator struct {
	index  *indexCoordinator
	ledger *ledger
}

func newQueryEvaluator(index *indexCoordinator, ledger *ledger) *queryEvaluator {
	return &queryEvaluator{index: index, ledger: ledger}
}

// evaluate returns the sorted, deduplicated positions matching q, restricted
// to positions strictly greater than fromPosition.
func (e *queryEvaluator) evaluate(q Query, fromPosition uint64) ([]uint64, error) {
	if q.IsEmpty() {
		return e.denseRange(fromPosition)
	}

	var unioned [][]uint64
	for _, item := range q.Items {
		positions, err := e.evaluateItem(item)
		if err != nil {
			return nil, err
		}
		unioned = append(unioned, positions)
	}
	merged := mergeSortedUnion(unioned)
	return filterAbove(merged, fromPosition), nil
}

// evaluateItem resolves a single QueryItem to its matching positions: the
// union of its event types, intersected with the AND of its tags. An item
// with neither EventTypes nor Tags matches every event.
func (e *queryEvaluator) evaluateItem(item QueryItem) ([]uint64, error) {
	var typeMatches []uint64
	haveTypeFilter := len(item.EventTypes) > 0
	if haveTypeFilter {
		lists, err := fetchParallel(item.EventTypes, e.index.types.positions)
		if err != nil {
			return nil, err
		}
		typeMatches = mergeSortedUnion(lists)
	}

	haveTagFilter := len(item.Tags) > 0
	var tagMatches []uint64
	if haveTagFilter {
		var err error
		tagMatches, err = e.index.positionsByTags(item.Tags)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case haveTypeFilter && haveTagFilter:
		return intersectSorted([][]uint64{typeMatches, tagMatches}), nil
	case haveTypeFilter:
		return typeMatches, nil
	case haveTagFilter:
		return tagMatches, nil
	default:
		return e.denseRange(0)
	}
}

// denseRange returns every committed position strictly above fromPosition,
// used both for the empty query and for an item with neither a type nor a
// tag filter.
func (e *queryEvaluator) denseRange(fromPosition uint64) ([]uint64, error) {
	current, err := e.ledger.current()
	if err != nil {
		return nil, err
	}
	if current <= fromPosition {
		return nil, nil
	}
	out := make([]uint64, 0, current-fromPosition)
	for p := fromPosition + 1; p <= current; p++ {
		out = append(out, p)
	}
	return out, nil
}

func filterAbove(positions []uint64, fromPosition uint64) []uint64 {
	if fromPosition == 0 {
		return positions
	}
	out := positions[:0:0]
	for _, p := range positions {
		if p > fromPosition {
			out = append(out, p)
		}
	}
	return out
}
