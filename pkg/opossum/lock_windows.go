//go:build windows

package opossum

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// isPlatformTransient reports whether err is one of the specific OS error
// codes Windows surfaces for a sharing or lock violation, distinct from a
// genuine failure to open or lock the file.
func isPlatformTransient(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) || errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}

// platformLock holds an OS-level exclusive lock acquired via LockFileEx in
// non-blocking mode.
type platformLock struct {
	f *os.File
}

func tryAcquirePlatformLock(path string) (*platformLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	ol := new(windows.Overlapped)
	err = windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol,
	)
	if err != nil {
		f.Close()
		if isPlatformTransient(err) {
			return nil, nil
		}
		return nil, err
	}
	return &platformLock{f: f}, nil
}

func (l *platformLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	ol := new(windows.Overlapped)
	_ = windows.UnlockFileEx(windows.Handle(l.f.Fd()), 0, 1, 0, ol)
	return l.f.Close()
}
