// Command opossum-testprocess is test-only scaffolding: a small standalone
// binary the package tests in pkg/opossum launch as a separate OS process to
// exercise CrossProcessLock across real process boundaries rather than
// goroutines, for the cross-process concurrent-append and lock-contention
// scenarios. It is not part of the public API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/majortom/opossum/pkg/opossum"
)

func main() {
	root := flag.String("root", "", "store root directory")
	store := flag.String("store", "", "store name")
	mode := flag.String("mode", "append-loop", "append-loop | hold-lock")
	count := flag.Int("count", 100, "number of events to append, for append-loop")
	holdFor := flag.Duration("hold-for", time.Second, "how long to hold the lock, for hold-lock")
	flag.Parse()

	switch *mode {
	case "append-loop":
		runAppendLoop(*root, *store, *count)
	case "hold-lock":
		runHoldLock(*root, *store, *holdFor)
	default:
		fail(fmt.Errorf("unknown mode %q", *mode))
	}
}

func runAppendLoop(root, store string, count int) {
	cfg, err := opossum.NewStoreConfig(root, store)
	if err != nil {
		fail(err)
	}
	s, err := opossum.NewStore(cfg)
	if err != nil {
		fail(err)
	}
	defer s.Close()

	for i := 0; i < count; i++ {
		_, err := s.Append(context.Background(), []opossum.NewEvent{
			opossum.NewNewEvent("Tick", []byte(`{}`)),
		}, opossum.AppendCondition{})
		if err != nil {
			fail(err)
		}
	}
	fmt.Println("ok")
}

// runHoldLock takes the store's .store.lock file directly with a blocking
// flock and holds it for holdFor, so a competing opossum-testprocess (or the
// test harness's own in-process Store) observes real OS-level exclusion
// rather than an in-process mutex. It prints "locked" the moment the lock is
// held so the parent test can synchronize on that line before proceeding.
func runHoldLock(root, store string, holdFor time.Duration) {
	paths := opossum.ResolveStorePaths(root, store)
	if err := os.MkdirAll(paths.EventsDir, 0o755); err != nil {
		fail(err)
	}

	f, err := os.OpenFile(paths.LockFile, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		fail(err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		fail(err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	fmt.Println("locked")
	time.Sleep(holdFor)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
