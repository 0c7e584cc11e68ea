package ingestion

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster(nil)
	first, cancelFirst := b.Subscribe(4)
	second, cancelSecond := b.Subscribe(4)
	defer cancelSecond()

	b.Publish(Event{Type: EventProgress, Phase: "documents", Current: 1, Total: 2})

	for _, ch := range []<-chan Event{first, second} {
		e := <-ch
		assert.Equal(t, EventProgress, e.Type)
		assert.Equal(t, 1, e.Current)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Time.IsZero())
	}

	cancelFirst()
	cancelFirst()
	_, ok := <-first
	assert.False(t, ok, "cancel closes the channel")
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Type: EventStatusChanged})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}
	assert.Len(t, ch, 1)
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, cancel := b.Subscribe(1)
	b.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, _ := b.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
	b.Publish(Event{Type: EventStatusChanged})
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var mu sync.Mutex
	active := 0
	maxActive := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("doc")
			mu.Lock()
			active++
			maxActive = max(maxActive, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)

	k.mu.Lock()
	assert.Empty(t, k.locks, "unused entries are removed")
	k.mu.Unlock()

	// Different keys do not block each other.
	unlockA := k.lock("a")
	acquired := make(chan struct{})
	go func() {
		unlock := k.lock("b")
		unlock()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("different keys blocked")
	}
	unlockA()
}
