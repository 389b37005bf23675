package ksync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition did not become true before the deadline")
}

func TestSleepWakeup_SingleWaiter(t *testing.T) {
	ch := new(int)
	var mu sync.Mutex
	done := make(chan struct{})

	go func() {
		mu.Lock()
		Sleep(ch, &mu)
		mu.Unlock()
		close(done)
	}()

	waitUntil(t, func() bool { return NumSleepers(ch) == 1 })
	Wakeup(ch)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sleeper was not woken")
	}
}

func TestSleepWakeup_WakesEveryWaiter(t *testing.T) {
	ch := new(int)
	var mu sync.Mutex
	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			mu.Lock()
			Sleep(ch, &mu)
			mu.Unlock()
		}()
	}

	waitUntil(t, func() bool { return NumSleepers(ch) == n })
	Wakeup(ch)

	wgDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgDone)
	}()
	select {
	case <-wgDone:
	case <-time.After(2 * time.Second):
		t.Fatal("not every sleeper was woken")
	}
	assert.Equal(t, 0, NumSleepers(ch))
}

func TestWakeup_NoSleepersIsNoop(t *testing.T) {
	ch := new(int)
	assert.NotPanics(t, func() { Wakeup(ch) })
}
