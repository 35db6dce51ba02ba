package opossum

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg, err := NewStoreConfig(t.TempDir(), "teststore")
	require.NoError(t, err)
	store, err := NewStore(cfg)
	require.NoError(t, err)
	return store
}

func mustAppend(t *testing.T, store *Store, eventType string, tags ...Tag) uint64 {
	t.Helper()
	pos, err := store.Append(context.Background(), []NewEvent{
		NewNewEvent(eventType, []byte(`{"v":1}`), tags...),
	}, AppendCondition{})
	require.NoError(t, err)
	return pos
}

func TestAppendEmptyStore(t *testing.T) {
	store := newTestStore(t)

	pos := mustAppend(t, store, "Created", NewTag("id", "x"))
	require.Equal(t, uint64(1), pos)

	current, err := store.ledger.current()
	require.NoError(t, err)
	require.Equal(t, uint64(1), current)

	all, err := store.Read(context.Background(), QueryAll(), ReadOptions{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Created", all[0].Type)

	byType, err := store.Read(context.Background(), NewQuery(nil, "Created"), ReadOptions{})
	require.NoError(t, err)
	require.Len(t, byType, 1)

	byTag, err := store.Read(context.Background(), NewQuery([]Tag{NewTag("id", "x")}), ReadOptions{})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
}

func TestAppendBatchContiguity(t *testing.T) {
	store := newTestStore(t)

	pos, err := store.Append(context.Background(), []NewEvent{
		NewNewEvent("A", []byte(`{}`)),
		NewNewEvent("B", []byte(`{}`)),
		NewNewEvent("C", []byte(`{}`)),
	}, AppendCondition{})
	require.NoError(t, err)
	require.Equal(t, uint64(1), pos)

	current, err := store.ledger.current()
	require.NoError(t, err)
	require.Equal(t, uint64(3), current)

	tail, err := store.Read(context.Background(), QueryAll(), ReadOptions{FromPosition: 1})
	require.NoError(t, err)
	require.Len(t, tail, 2)
	require.Equal(t, uint64(2), tail[0].Position)
	require.Equal(t, uint64(3), tail[1].Position)
}

func TestAppendConditionRejectsStaleDecision(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.ReadLast(context.Background(), NewQuery(nil, "InvoiceCreated"))
	require.NoError(t, err)
	require.False(t, found)

	_, err = store.Append(context.Background(), []NewEvent{
		NewNewEvent("InvoiceCreated", []byte(`{"n":1}`)),
	}, AppendCondition{})
	require.NoError(t, err)

	_, err = store.Append(context.Background(), []NewEvent{
		NewNewEvent("InvoiceCreated", []byte(`{"n":1}`)),
	}, AppendCondition{FailIfEventsMatch: NewQuery(nil, "InvoiceCreated")})
	require.Error(t, err)
	require.True(t, IsAppendConditionFailed(err))

	last, found, err := store.ReadLast(context.Background(), NewQuery(nil, "InvoiceCreated"))
	require.NoError(t, err)
	require.True(t, found)
	baseline := last.Position

	_, err = store.Append(context.Background(), []NewEvent{
		NewNewEvent("InvoiceCreated", []byte(`{"n":2}`)),
	}, AppendCondition{FailIfEventsMatch: NewQuery(nil, "InvoiceCreated"), After: &baseline})
	require.NoError(t, err)
}

func TestHighContentionInvoiceNumbering(t *testing.T) {
	store := newTestStore(t)
	const writers = 10

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for {
				last, _, err := store.ReadLast(context.Background(), NewQuery(nil, "InvoiceCreated"))
				require.NoError(t, err)
				baseline := uint64(0)
				if last.Position != 0 {
					baseline = last.Position
				}
				_, err = store.Append(context.Background(), []NewEvent{
					NewNewEvent("InvoiceCreated", []byte(fmt.Sprintf(`{"writer":%d}`, n))),
				}, AppendCondition{FailIfEventsMatch: NewQuery(nil, "InvoiceCreated"), After: &baseline})
				if err == nil {
					return
				}
				require.True(t, IsAppendConditionFailed(err))
			}
		}(i)
	}
	wg.Wait()

	current, err := store.ledger.current()
	require.NoError(t, err)
	require.Equal(t, uint64(writers), current)

	all, err := store.Read(context.Background(), NewQuery(nil, "InvoiceCreated"), ReadOptions{})
	require.NoError(t, err)
	require.Len(t, all, writers)
	seen := make(map[uint64]bool)
	for _, ev := range all {
		require.False(t, seen[ev.Position])
		seen[ev.Position] = true
	}
}

func TestDescendingRead(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		mustAppend(t, store, "Tick")
	}

	events, err := store.Read(context.Background(), QueryAll(), ReadOptions{Descending: true})
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, ev := range events {
		require.Equal(t, uint64(5-i), ev.Position)
	}
}

func TestReadLastEfficientSingleMatch(t *testing.T) {
	store := newTestStore(t)
	mustAppend(t, store, "A")
	mustAppend(t, store, "B")
	mustAppend(t, store, "A")

	last, found, err := store.ReadLast(context.Background(), NewQuery(nil, "A"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(3), last.Position)
}

func TestAppendRejectsEmptyBatch(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Append(context.Background(), nil, AppendCondition{})
	require.Error(t, err)
	require.True(t, IsInvalidArgument(err))
}

func TestAppendRejectsEmptyEventType(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Append(context.Background(), []NewEvent{NewNewEvent("", []byte(`{}`))}, AppendCondition{})
	require.Error(t, err)
	require.True(t, IsInvalidArgument(err))
}

func TestAppendRejectsDuplicateTagKeys(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Append(context.Background(), []NewEvent{
		NewNewEvent("A", []byte(`{}`), NewTag("id", "1"), NewTag("id", "2")),
	}, AppendCondition{})
	require.Error(t, err)
	require.True(t, IsInvalidArgument(err))
}

func TestDeleteStoreRemovesEverything(t *testing.T) {
	store := newTestStore(t)
	mustAppend(t, store, "A")

	require.NoError(t, store.DeleteStore(context.Background()))

	current, err := store.ledger.current()
	require.NoError(t, err)
	require.Equal(t, uint64(0), current)
}

func TestAppendCancellationLeavesNoState(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Append(ctx, []NewEvent{NewNewEvent("A", []byte(`{}`))}, AppendCondition{})
	require.Error(t, err)
	require.True(t, IsCancelled(err))

	current, err := store.ledger.current()
	require.NoError(t, err)
	require.Equal(t, uint64(0), current)
}

func TestAddTagsFirstWinsSemantics(t *testing.T) {
	store := newTestStore(t)
	mustAppend(t, store, "User", NewTag("id", "1"))

	result, err := store.AddTags(context.Background(), "User", func(ev SequencedEvent) []Tag {
		return []Tag{NewTag("id", "overwritten"), NewTag("region", "eu")}
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Considered)
	require.Equal(t, 1, result.Rewritten)

	events, err := store.Read(context.Background(), NewQuery(nil, "User"), ReadOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	tagValues := map[string]string{}
	for _, tag := range events[0].Tags {
		tagValues[tag.Key] = tag.Value
	}
	require.Equal(t, "1", tagValues["id"])
	require.Equal(t, "eu", tagValues["region"])

	byRegion, err := store.Read(context.Background(), NewQuery([]Tag{NewTag("region", "eu")}), ReadOptions{})
	require.NoError(t, err)
	require.Len(t, byRegion, 1)
}
