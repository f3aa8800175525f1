package workspace

import (
	"fmt"
	"sync"

	"github.com/gofrs/flock"
)

// ledgerLock serialises writers against readers both inside the process and
// across processes sharing the ledger. The file lock is held shared while any
// in-process reader is active, and exclusive for the length of a write.
type ledgerLock struct {
	mu      sync.RWMutex
	file    *flock.Flock
	readers int
	rmu     sync.Mutex
}

func newLedgerLock(path string) *ledgerLock {
	return &ledgerLock{file: flock.New(path)}
}

// lock takes the exclusive lock. The returned func releases it.
func (l *ledgerLock) lock() (func(), error) {
	l.mu.Lock()
	if err := l.file.Lock(); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("lock ledger: %w", err)
	}
	return func() {
		l.file.Unlock()
		l.mu.Unlock()
	}, nil
}

// rlock takes the shared lock. The returned func releases it.
func (l *ledgerLock) rlock() (func(), error) {
	l.mu.RLock()
	l.rmu.Lock()
	if l.readers == 0 {
		if err := l.file.RLock(); err != nil {
			l.rmu.Unlock()
			l.mu.RUnlock()
			return nil, fmt.Errorf("lock ledger: %w", err)
		}
	}
	l.readers++
	l.rmu.Unlock()

	return func() {
		l.rmu.Lock()
		l.readers--
		if l.readers == 0 {
			l.file.Unlock()
		}
		l.rmu.Unlock()
		l.mu.RUnlock()
	}, nil
}

func (l *ledgerLock) close() error {
	return l.file.Close()
}
