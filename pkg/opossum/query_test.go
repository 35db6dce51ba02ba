package opossum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueryEvaluatorEmptyQueryIsDenseRange(t *testing.T) {
	store := newTestStore(t)
	mustAppend(t, store, "A")
	mustAppend(t, store, "B")
	mustAppend(t, store, "C")

	positions, err := store.evaluator.evaluate(QueryAll(), 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, positions)

	positions, err = store.evaluator.evaluate(QueryAll(), 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3}, positions)
}

func TestQueryEvaluatorItemIntersectsTypeAndTags(t *testing.T) {
	store := newTestStore(t)
	mustAppend(t, store, "Created", NewTag("id", "x"))
	mustAppend(t, store, "Created", NewTag("id", "y"))
	mustAppend(t, store, "Deleted", NewTag("id", "x"))

	positions, err := store.evaluator.evaluate(NewQuery([]Tag{NewTag("id", "x")}, "Created"), 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, positions)
}

func TestQueryEvaluatorUnionAcrossItems(t *testing.T) {
	store := newTestStore(t)
	mustAppend(t, store, "Created", NewTag("id", "x"))
	mustAppend(t, store, "Deleted", NewTag("id", "y"))
	mustAppend(t, store, "Ignored")

	q := NewQueryFromItems(
		NewQueryItem([]string{"Created"}, nil),
		NewQueryItem([]string{"Deleted"}, nil),
	)
	positions, err := store.evaluator.evaluate(q, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, positions)
}

func TestReadDescendingIsReverseOfAscending(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		mustAppend(t, store, "Tick")
	}

	asc, err := store.Read(context.Background(), QueryAll(), ReadOptions{})
	require.NoError(t, err)
	desc, err := store.Read(context.Background(), QueryAll(), ReadOptions{Descending: true})
	require.NoError(t, err)

	require.Len(t, desc, len(asc))
	for i := range asc {
		require.Equal(t, asc[i].Position, desc[len(desc)-1-i].Position)
	}
}
