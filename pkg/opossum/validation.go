package opossum

// validateTagKeys rejects an event whose tags repeat the same key more than
// once. A caller-constructed event with conflicting tag values is almost
// always a bug, so append-time duplicates are rejected outright; AddTags'
// first-wins merge against an already-committed event is deliberately more
// forgiving (see DESIGN.md).
func validateTagKeys(tags []Tag) error {
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t.Key]; ok {
			return &StoreError{Kind: InvalidArgument, Op: "validateTagKeys", Err: errDuplicateTagKey}
		}
		seen[t.Key] = struct{}{}
	}
	return nil
}
