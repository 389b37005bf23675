package ksync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleepLock_AcquireRelease(t *testing.T) {
	l := NewSleepLock("ip")
	assert.False(t, l.Holding())

	l.Acquire()
	assert.True(t, l.Holding())

	l.Release()
	assert.False(t, l.Holding())
}

func TestSleepLock_SecondAcquirerBlocksUntilRelease(t *testing.T) {
	l := NewSleepLock("ip")
	l.Acquire()

	gotIt := make(chan struct{})
	go func() {
		l.Acquire()
		close(gotIt)
	}()

	waitUntil(t, func() bool { return NumSleepers(l) == 1 })
	select {
	case <-gotIt:
		t.Fatal("second acquirer proceeded while the lock was still held")
	case <-time.After(50 * time.Millisecond):
	}

	l.Release()
	select {
	case <-gotIt:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquirer was never woken after release")
	}
	assert.True(t, l.Holding())
}

func TestSleepLock_ManyWaitersEachGetItInTurn(t *testing.T) {
	l := NewSleepLock("ip")
	const n = 4
	var mu sync.Mutex
	order := make([]int, 0, n)

	l.Acquire()
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			l.Acquire()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			l.Release()
		}()
	}

	waitUntil(t, func() bool { return NumSleepers(l) == n })
	l.Release()

	wgDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgDone)
	}()
	select {
	case <-wgDone:
	case <-time.After(2 * time.Second):
		t.Fatal("not every waiter acquired the lock")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, order, n)
	assert.False(t, l.Holding())
}
