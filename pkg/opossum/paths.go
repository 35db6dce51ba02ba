package opossum

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	eventsDirName      = "events"
	indicesDirName     = "Indices"
	eventTypeIndexDir  = "EventType"
	tagIndexDir        = "Tags"
	ledgerFileName     = ".ledger"
	lockFileName       = ".store.lock"
	eventFileExtension = ".json"
	positionFieldWidth = 10
)

// storeLayout resolves every path the store touches, relative to a single
// <RootPath>/<StoreName> root.
type storeLayout struct {
	root string
}

func newStoreLayout(rootPath, storeName string) storeLayout {
	return storeLayout{root: filepath.Join(rootPath, storeName)}
}

func (l storeLayout) storeDir() string   { return l.root }
func (l storeLayout) eventsDir() string  { return filepath.Join(l.root, eventsDirName) }
func (l storeLayout) ledgerFile() string { return filepath.Join(l.root, ledgerFileName) }
func (l storeLayout) lockFile() string   { return filepath.Join(l.root, lockFileName) }

func (l storeLayout) eventTypeIndexDir() string {
	return filepath.Join(l.root, indicesDirName, eventTypeIndexDir)
}

func (l storeLayout) tagIndexDir() string {
	return filepath.Join(l.root, indicesDirName, tagIndexDir)
}

// eventFilePath returns the fixed-width, zero-padded path for position.
func (l storeLayout) eventFilePath(position uint64) string {
	return filepath.Join(l.eventsDir(), formatPosition(position)+eventFileExtension)
}

func formatPosition(position uint64) string {
	return fmt.Sprintf("%0*d", positionFieldWidth, position)
}

// typeIndexFilePath returns the index file path for a given event type.
func (l storeLayout) typeIndexFilePath(eventType string) string {
	return filepath.Join(l.eventTypeIndexDir(), sanitizeName(eventType)+eventFileExtension)
}

// tagIndexFilePath returns the index file path for a given tag.
func (l storeLayout) tagIndexFilePath(tag Tag) string {
	name := sanitizeName(tag.Key) + "_" + sanitizeName(tag.Value)
	return filepath.Join(l.tagIndexDir(), name+eventFileExtension)
}

// illegalNameChars are characters unsafe as filesystem path components on at
// least one of the major desktop/server OSes.
var illegalNameChars = "/\\:*?\"<>|\x00"

// sanitizeName replaces characters illegal in filesystem names with '_'.
func sanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(illegalNameChars, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
