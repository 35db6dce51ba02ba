package opossum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestEventFileStore(t *testing.T) *eventFileStore {
	t.Helper()
	layout := newStoreLayout(t.TempDir(), "store")
	return newEventFileStore(layout, true, false)
}

func TestEventFileWriteReadRoundTrip(t *testing.T) {
	s := newTestEventFileStore(t)
	ev := SequencedEvent{
		Position: 1,
		Type:     "Created",
		Payload:  []byte(`{"a":1}`),
		Tags:     []Tag{NewTag("id", "x")},
		Metadata: Metadata{Timestamp: time.Now().UTC(), CorrelationID: "corr-1"},
	}

	require.NoError(t, s.write(ev))

	got, err := s.read(1)
	require.NoError(t, err)
	require.Equal(t, ev.Position, got.Position)
	require.Equal(t, ev.Type, got.Type)
	require.JSONEq(t, string(ev.Payload), string(got.Payload))
	require.Equal(t, ev.Tags, got.Tags)
	require.Equal(t, ev.Metadata.CorrelationID, got.Metadata.CorrelationID)
	require.WithinDuration(t, ev.Metadata.Timestamp, got.Metadata.Timestamp, time.Second)
}

func TestEventFileReadMissingIsNotFound(t *testing.T) {
	s := newTestEventFileStore(t)
	_, err := s.read(99)
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestEventFileReadManyPreservesOrder(t *testing.T) {
	s := newTestEventFileStore(t)
	for i := uint64(1); i <= 15; i++ {
		require.NoError(t, s.write(SequencedEvent{
			Position: i,
			Type:     "Tick",
			Payload:  []byte(`{}`),
			Metadata: Metadata{Timestamp: time.Now().UTC()},
		}))
	}

	positions := make([]uint64, 15)
	for i := range positions {
		positions[i] = uint64(i + 1)
	}

	events, err := s.readMany(positions)
	require.NoError(t, err)
	require.Len(t, events, 15)
	for i, ev := range events {
		require.Equal(t, uint64(i+1), ev.Position)
	}
}

func TestEventFileRewriteSucceedsUnderWriteProtection(t *testing.T) {
	layout := newStoreLayout(t.TempDir(), "store")
	s := newEventFileStore(layout, true, true)
	ev := SequencedEvent{Position: 1, Type: "A", Payload: []byte(`{}`), Metadata: Metadata{Timestamp: time.Now().UTC()}}
	require.NoError(t, s.write(ev))

	ev.Tags = []Tag{NewTag("k", "v")}
	require.NoError(t, s.rewrite(ev))

	got, err := s.read(1)
	require.NoError(t, err)
	require.Equal(t, []Tag{NewTag("k", "v")}, got.Tags)
}
