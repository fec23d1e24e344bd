package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityKeysSortedAndDeduplicated(t *testing.T) {
	keys := ActivityKeys(12, 3, 12, 7)
	assert.Equal(t, []string{"activity:3", "activity:7", "activity:12"}, keys)
	assert.Empty(t, ActivityKeys())
}

func TestKeyedLockerReleaseForgetsKeys(t *testing.T) {
	l := NewKeyedLocker(time.Second)

	release, err := l.Acquire(context.Background(), UserKey(1), ActivityKey(2))
	require.NoError(t, err)
	assert.Equal(t, 2, l.size())

	release()
	assert.Equal(t, 0, l.size())
}

func TestKeyedLockerTimesOutAsBusy(t *testing.T) {
	l := NewKeyedLocker(50 * time.Millisecond)

	release, err := l.Acquire(context.Background(), ActivityKey(1))
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(context.Background(), UserKey(9), ActivityKey(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBusy))
	assert.Equal(t, KindBusy, KindOf(err))

	// the user key taken before the timeout was handed back
	assert.Equal(t, 1, l.size())
}

func TestKeyedLockerHonoursCancellation(t *testing.T) {
	l := NewKeyedLocker(time.Minute)

	release, err := l.Acquire(context.Background(), UserKey(1))
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = l.Acquire(ctx, UserKey(1))
	require.ErrorIs(t, err, context.Canceled)
}

func TestKeyedLockerSerializesHolders(t *testing.T) {
	l := NewKeyedLocker(5 * time.Second)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), ActivityKey(1))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.size())
}
