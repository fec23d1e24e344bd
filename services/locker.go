package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultLockWait bounds how long a writer waits for a contended key
const DefaultLockWait = 5 * time.Second

// KeyedLocker serializes writers per entity key.
// Keys must always be acquired in one global order: the user key first, then activity keys ascending.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	wait    time.Duration
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// NewKeyedLocker creates a locker whose Acquire gives up after wait
func NewKeyedLocker(wait time.Duration) *KeyedLocker {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &KeyedLocker{
		entries: make(map[string]*lockEntry),
		wait:    wait,
	}
}

// UserKey is the lock key of a user
func UserKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

// ActivityKey is the lock key of an activity
func ActivityKey(id uint) string {
	return fmt.Sprintf("activity:%d", id)
}

// ActivityKeys returns activity keys in ascending id order without duplicates
func ActivityKeys(ids ...uint) []string {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	keys := make([]string, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}
		keys = append(keys, ActivityKey(id))
	}
	return keys
}

// Acquire takes every key in the given order and returns a release func.
// It fails with ErrBusy when a key cannot be taken within the wait bound.
func (l *KeyedLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	held := make([]string, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, key := range keys {
		if err := l.lock(ctx, key); err != nil {
			release()
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, &Error{Kind: KindBusy, Code: ErrBusy.Code, Message: ErrBusy.Message, Err: fmt.Errorf("waiting for %s: %w", key, err)}
			}
			return nil, err
		}
		held = append(held, key)
	}

	return release, nil
}

func (l *KeyedLocker) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		l.mu.Lock()
		l.drop(key, entry)
		l.mu.Unlock()
		return err
	}
	return nil
}

func (l *KeyedLocker) unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return
	}
	entry.sem.Release(1)
	l.drop(key, entry)
}

// drop releases one reference; callers hold l.mu
func (l *KeyedLocker) drop(key string, entry *lockEntry) {
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports how many keys are tracked
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
