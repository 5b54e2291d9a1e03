package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	k := NewKeyLock()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("ORD-1")
			c := counter
			time.Sleep(time.Microsecond)
			counter = c + 1
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}

func TestKeyLock_OtherKeysDoNotWait(t *testing.T) {
	k := NewKeyLock()
	unlock := k.Lock("ORD-1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		k.Lock("ORD-2")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on ORD-2 blocked behind ORD-1")
	}
}
