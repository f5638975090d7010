package repository

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeEntry struct {
	version int64
	value   string
}

type fakeKVStore struct {
	mu     sync.Mutex
	data   map[string]fakeEntry
	getErr error

	// beforeSet, when set, runs before every SetIfNewer takes the lock.
	beforeSet func(version int64)
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: make(map[string]fakeEntry)}
}

func (f *fakeKVStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	e, ok := f.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return e.value, nil
}

func (f *fakeKVStore) SetIfNewer(_ context.Context, key, value string, version int64, _ time.Duration) (bool, error) {
	if f.beforeSet != nil {
		f.beforeSet(version)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.data[key]; ok && cur.version > version {
		return false, nil
	}
	f.data[key] = fakeEntry{version: version, value: value}
	return true, nil
}

var errKVDown = errors.New("connection refused")
