package opossum

import (
	"log"
	"regexp"
	"time"
)

const (
	defaultCrossProcessLockTimeout = 5 * time.Second
	defaultLockBackoffInitial      = 10 * time.Millisecond
	defaultLockBackoffMax          = 500 * time.Millisecond
	// parallelReadThreshold is the batch size at or above which EventFile
	// reads fan out across goroutines instead of running sequentially.
	parallelReadThreshold = 10
)

var storeNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// StoreConfig is the store's configuration surface. It is a plain typed
// struct rather than a file/env loader: loading configuration from an
// external source is an outer bootstrap concern; this struct is what that
// outer layer would populate.
type StoreConfig struct {
	// RootPath is the absolute directory under which StoreName lives.
	// Required.
	RootPath string
	// StoreName is a single directory-safe token identifying this store
	// within RootPath. Required; forbidden characters are rejected at
	// construction, not sanitized away, since the name is caller-chosen
	// and silently mangling it would be surprising.
	StoreName string
	// FlushImmediately fsyncs event files and the ledger before their
	// renames. Defaults to true.
	FlushImmediately bool
	// FlushIndices additionally fsyncs type/tag index files before their
	// renames. Defaults to false, a deliberately weaker default than
	// FlushImmediately; see DESIGN.md.
	FlushIndices bool
	// CrossProcessLockTimeout bounds how long Append waits to acquire
	// .store.lock. Defaults to 5s.
	CrossProcessLockTimeout time.Duration
	// WriteProtectEventFiles sets committed event files read-only at the OS
	// level. Defaults to false.
	WriteProtectEventFiles bool
	// Logger receives the store's internal diagnostic output. Defaults to
	// log.Default(). Out-of-scope "logging setup" refers to wiring this
	// logger to an outer telemetry pipeline, not to the store having one.
	Logger *log.Logger
}

// NewStoreConfig validates rootPath/storeName and returns a StoreConfig with
// every other field defaulted.
func NewStoreConfig(rootPath, storeName string) (StoreConfig, error) {
	cfg := StoreConfig{
		RootPath:                rootPath,
		StoreName:               storeName,
		FlushImmediately:        true,
		FlushIndices:            false,
		CrossProcessLockTimeout: defaultCrossProcessLockTimeout,
		WriteProtectEventFiles:  false,
		Logger:                 log.Default(),
	}
	if err := cfg.validate(); err != nil {
		return StoreConfig{}, err
	}
	return cfg, nil
}

func (c *StoreConfig) validate() error {
	if c.RootPath == "" {
		return &StoreError{Kind: InvalidArgument, Op: "NewStoreConfig", Err: errEmptyRootPath}
	}
	if c.StoreName == "" {
		return &StoreError{Kind: InvalidArgument, Op: "NewStoreConfig", Err: errEmptyStoreName}
	}
	if !storeNamePattern.MatchString(c.StoreName) {
		return &StoreError{Kind: InvalidArgument, Op: "NewStoreConfig", Err: errInvalidStoreName}
	}
	return nil
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.CrossProcessLockTimeout <= 0 {
		c.CrossProcessLockTimeout = defaultCrossProcessLockTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

func (c StoreConfig) logger() *log.Logger {
	if c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}
