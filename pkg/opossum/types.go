package opossum

import "time"

// Tag is a key-value pair attached to an event for secondary indexing.
// NewTag is a convenience constructor; a struct literal is equivalent, and
// neither form validates the key or value.
type Tag struct {
	Key   string
	Value string
}

// NewTag creates a single tag from a key-value pair.
func NewTag(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NewTags creates a slice of tags from alternating key-value arguments.
// It panics if the number of arguments is odd, a caller bug rather than a
// runtime condition the store needs to recover from.
func NewTags(kv ...string) []Tag {
	if len(kv)%2 != 0 {
		panic("opossum: NewTags called with an odd number of arguments")
	}
	tags := make([]Tag, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		tags[i/2] = Tag{Key: kv[i], Value: kv[i+1]}
	}
	return tags
}

// Metadata carries the immutable, store-assigned-if-absent facts about an
// event: when it happened and which process/decision it traces back to.
type Metadata struct {
	Timestamp     time.Time
	CorrelationID string
	CausationID   string
}

// NewEvent is an application-provided event the store has not yet
// sequenced. It carries no position.
type NewEvent struct {
	Type     string
	Payload  []byte
	Tags     []Tag
	Metadata Metadata
}

// NewNewEvent builds a NewEvent with the given type, JSON-encoded payload
// and tags. Metadata is left zero-valued; Append fills in the timestamp
// with UTC-now if it is absent.
func NewNewEvent(eventType string, payload []byte, tags ...Tag) NewEvent {
	return NewEvent{Type: eventType, Payload: payload, Tags: tags}
}

// SequencedEvent is a NewEvent plus the globally assigned position. Every
// store read returns events in this form.
type SequencedEvent struct {
	Position uint64
	Type     string
	Payload  []byte
	Tags     []Tag
	Metadata Metadata
}

// QueryItem specifies an optional set of event types (matched by OR) and an
// optional set of tags (matched by AND: every tag must be present). When
// both are set the item matches their intersection.
type QueryItem struct {
	EventTypes []string
	Tags       []Tag
}

// NewQueryItem builds a QueryItem from the given types and tags.
func NewQueryItem(types []string, tags []Tag) QueryItem {
	return QueryItem{EventTypes: types, Tags: tags}
}

// Query is an OR of QueryItems. An empty Query (no items) matches every
// event.
type Query struct {
	Items []QueryItem
}

// NewQuery builds a single-item Query from the given tags and event types.
func NewQuery(tags []Tag, eventTypes ...string) Query {
	return Query{Items: []QueryItem{{EventTypes: eventTypes, Tags: tags}}}
}

// NewQueryFromItems builds a Query from multiple independently OR'd items.
func NewQueryFromItems(items ...QueryItem) Query {
	return Query{Items: items}
}

// QueryAll returns the empty "match everything" query.
func QueryAll() Query {
	return Query{}
}

// IsEmpty reports whether the query has no items, i.e. matches every event.
func (q Query) IsEmpty() bool {
	return len(q.Items) == 0
}

// AppendCondition is the optimistic-concurrency guard evaluated inside the
// append critical section.
type AppendCondition struct {
	// FailIfEventsMatch is the query that, if it has any match (subject to
	// After), causes the append to fail.
	FailIfEventsMatch Query
	// After is the baseline position: only matches strictly greater than
	// this position trigger a failure. Nil means "no baseline."
	After *uint64
}

// ReadOptions configures a Read call.
type ReadOptions struct {
	// FromPosition is an exclusive lower bound: only positions strictly
	// greater than this are returned. Zero means no lower bound.
	FromPosition uint64
	// Descending reverses the returned order (highest position first).
	Descending bool
}

// TagMigrationResult is the outcome of the AddTags maintenance operation.
type TagMigrationResult struct {
	// EventType is the type the migration targeted.
	EventType string
	// Considered is the number of committed events of EventType inspected.
	Considered int
	// Rewritten is the number of event files that actually changed (had at
	// least one genuinely new tag key added).
	Rewritten int
}

// TagFactory proposes tags to add to an already-committed event. The store
// discards any proposed key already present on the event (first-wins).
type TagFactory func(SequencedEvent) []Tag
