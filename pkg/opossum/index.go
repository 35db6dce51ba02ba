package opossum

import "sync"

// typeIndex maps event types to the sorted position list of every committed
// event of that type. One positionIndexFile per type, each guarded by its
// own mutex so unrelated types never contend.
type typeIndex struct {
	layout storeLayout
	flush  bool

	mu    sync.Mutex
	files map[string]*positionIndexFile
}

func newTypeIndex(layout storeLayout, flush bool) *typeIndex {
	return &typeIndex{layout: layout, flush: flush, files: make(map[string]*positionIndexFile)}
}

func (x *typeIndex) fileFor(eventType string) *positionIndexFile {
	x.mu.Lock()
	defer x.mu.Unlock()
	f, ok := x.files[eventType]
	if !ok {
		f = newPositionIndexFile(x.layout.typeIndexFilePath(eventType), x.flush)
		x.files[eventType] = f
	}
	return f
}

// add registers position under eventType. Called only from inside the
// append critical section.
func (x *typeIndex) add(eventType string, position uint64) error {
	return x.fileFor(eventType).add(position)
}

// positions returns the sorted position list for eventType, or an empty
// slice if the type has never been indexed.
func (x *typeIndex) positions(eventType string) ([]uint64, error) {
	return x.fileFor(eventType).read()
}

// tagIndex maps tags to the sorted position list of every committed event
// carrying that exact key=value pair. Same per-key file/mutex granularity as
// typeIndex.
type tagIndex struct {
	layout storeLayout
	flush  bool

	mu    sync.Mutex
	files map[Tag]*positionIndexFile
}

func newTagIndex(layout storeLayout, flush bool) *tagIndex {
	return &tagIndex{layout: layout, flush: flush, files: make(map[Tag]*positionIndexFile)}
}

func (x *tagIndex) fileFor(tag Tag) *positionIndexFile {
	x.mu.Lock()
	defer x.mu.Unlock()
	f, ok := x.files[tag]
	if !ok {
		f = newPositionIndexFile(x.layout.tagIndexFilePath(tag), x.flush)
		x.files[tag] = f
	}
	return f
}

func (x *tagIndex) add(tag Tag, position uint64) error {
	return x.fileFor(tag).add(position)
}

func (x *tagIndex) positions(tag Tag) ([]uint64, error) {
	return x.fileFor(tag).read()
}
