package opossum

import (
	"container/heap"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// indexCoordinator is the facade QueryEvaluator talks to: it owns the type
// and tag indices and answers "which positions match this type/these tags"
// without the caller ever touching a positionIndexFile directly.
type indexCoordinator struct {
	types *typeIndex
	tags  *tagIndex
}

func newIndexCoordinator(layout storeLayout, flushIndices bool) *indexCoordinator {
	return &indexCoordinator{
		types: newTypeIndex(layout, flushIndices),
		tags:  newTagIndex(layout, flushIndices),
	}
}

// addEvent registers position under ev's type and every one of its tags.
// Called once per event from inside the append critical section, after the
// event file itself has been written.
func (c *indexCoordinator) addEvent(ev SequencedEvent) error {
	if err := c.types.add(ev.Type, ev.Position); err != nil {
		return err
	}
	for _, t := range ev.Tags {
		if err := c.tags.add(t, ev.Position); err != nil {
			return err
		}
	}
	return nil
}

// positionsByTypes returns the sorted, deduplicated union of positions
// across every listed type (an OR), fetched in parallel once the list is
// long enough to be worth it.
func (c *indexCoordinator) positionsByTypes(types []string) ([]uint64, error) {
	lists, err := fetchParallel(types, c.types.positions)
	if err != nil {
		return nil, err
	}
	return mergeSortedUnion(lists), nil
}

// positionsByTags returns the sorted intersection of positions across every
// listed tag (an AND: every tag must be present on the event).
func (c *indexCoordinator) positionsByTags(tags []Tag) ([]uint64, error) {
	lists, err := fetchParallel(tags, c.tags.positions)
	if err != nil {
		return nil, err
	}
	return intersectSorted(lists), nil
}

// fetchParallel applies fn to every item, fanning out across a bounded
// goroutine pool once there is enough work to amortize the overhead, and
// preserves input order in the result so merge/intersect below can assume
// it.
func fetchParallel[T any](items []T, fn func(T) ([]uint64, error)) ([][]uint64, error) {
	if len(items) == 0 {
		return nil, nil
	}
	results := make([][]uint64, len(items))
	if len(items) < parallelReadThreshold {
		for i, item := range items {
			r, err := fn(item)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	degree := runtime.NumCPU() * 2
	if degree < 1 {
		degree = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(degree)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// posHeapItem is one list's current head, tracked so mergeSortedUnion can
// pull the global minimum across all lists without re-sorting.
type posHeapItem struct {
	value uint64
	list  int
	idx   int
}

type posHeap []posHeapItem

func (h posHeap) Len() int            { return len(h) }
func (h posHeap) Less(i, j int) bool  { return h[i].value < h[j].value }
func (h posHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *posHeap) Push(x interface{}) { *h = append(*h, x.(posHeapItem)) }
func (h *posHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergeSortedUnion performs a k-way merge of already-sorted,
// deduplicated lists into one sorted, deduplicated list, using a min-heap
// over the K list heads so the total work is O(N log K) rather than
// concatenate-then-sort's O(N log N). It also never materializes an
// intermediate hash set, which would lose the positions' natural order.
func mergeSortedUnion(lists [][]uint64) []uint64 {
	h := make(posHeap, 0, len(lists))
	for i, l := range lists {
		if len(l) > 0 {
			h = append(h, posHeapItem{value: l[0], list: i, idx: 0})
		}
	}
	heap.Init(&h)

	var out []uint64
	var last uint64
	haveLast := false
	for h.Len() > 0 {
		top := heap.Pop(&h).(posHeapItem)
		if !haveLast || top.value != last {
			out = append(out, top.value)
			last = top.value
			haveLast = true
		}
		nextIdx := top.idx + 1
		if nextIdx < len(lists[top.list]) {
			heap.Push(&h, posHeapItem{value: lists[top.list][nextIdx], list: top.list, idx: nextIdx})
		}
	}
	return out
}

// intersectSorted returns the sorted intersection of N already-sorted,
// deduplicated lists via a linear multi-pointer sweep: every pointer sits at
// its list's smallest value not yet ruled out; whichever pointer lags gets
// advanced until all agree or one list is exhausted.
func intersectSorted(lists [][]uint64) []uint64 {
	if len(lists) == 0 {
		return nil
	}
	for _, l := range lists {
		if len(l) == 0 {
			return nil
		}
	}
	idx := make([]int, len(lists))
	var out []uint64
	for {
		max := lists[0][idx[0]]
		for i := 1; i < len(lists); i++ {
			if lists[i][idx[i]] > max {
				max = lists[i][idx[i]]
			}
		}
		allMatch := true
		for i, l := range lists {
			for idx[i] < len(l) && l[idx[i]] < max {
				idx[i]++
			}
			if idx[i] >= len(l) {
				return out
			}
			if l[idx[i]] != max {
				allMatch = false
			}
		}
		if allMatch {
			out = append(out, max)
			for i := range lists {
				idx[i]++
				if idx[i] >= len(lists[i]) {
					return out
				}
			}
		}
	}
}
