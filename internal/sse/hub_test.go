// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	ch := hub.Register("tab1")
	assert.NotNil(t, ch)
	assert.Equal(t, 1, hub.ClientCount())

	// Same browser, second tab
	ch2 := hub.Register("tab1")
	assert.Equal(t, 2, hub.ClientCount())
	assert.Equal(t, []string{"tab1"}, hub.ClientIDs())

	hub.Unregister(ch)
	assert.Equal(t, 1, hub.ClientCount())

	// Channel is closed after unregistering
	_, ok := <-ch
	assert.False(t, ok)

	hub.Unregister(ch2)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Empty(t, hub.ClientIDs())
}

func TestHub_UnregisterTwice(t *testing.T) {
	hub := NewHub()

	ch := hub.Register("tab1")
	hub.Unregister(ch)

	assert.NotPanics(t, func() {
		hub.Unregister(ch)
	})
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()

	ch1 := hub.Register("tab1")
	ch2 := hub.Register("tab2")

	hub.Broadcast("broadcast-message")

	// All clients should receive the message
	select {
	case msg := <-ch1:
		assert.Equal(t, "broadcast-message", msg)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("ch1 should have received message")
	}

	select {
	case msg := <-ch2:
		assert.Equal(t, "broadcast-message", msg)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("ch2 should have received message")
	}

	hub.Unregister(ch1)
	hub.Unregister(ch2)
}

func TestHub_NonBlockingSend(t *testing.T) {
	hub := NewHub()

	ch := hub.Register("tab1")

	// Fill the channel buffer (size 10)
	for range 10 {
		hub.Broadcast("msg")
	}

	// This should not block even though buffer is full
	done := make(chan bool)
	go func() {
		hub.Broadcast("overflow")
		done <- true
	}()

	select {
	case <-done:
		// Expected - send should not block
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Broadcast blocked on full channel")
	}

	hub.Unregister(ch)
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	const numGoroutines = 100

	// Concurrent registrations
	channels := make([]chan string, numGoroutines)
	for i := range numGoroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			channels[idx] = hub.Register("tab")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, numGoroutines, hub.ClientCount())

	// Concurrent sends
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast("concurrent")
		}()
	}
	wg.Wait()

	// Concurrent unregistrations
	for i := range numGoroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			hub.Unregister(channels[idx])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub()

	ch1 := hub.Register("tab1")
	ch2 := hub.Register("tab2")

	hub.CloseAll()
	assert.Equal(t, 0, hub.ClientCount())

	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)

	// Handlers still unregister on their way out
	assert.NotPanics(t, func() {
		hub.Unregister(ch1)
	})
}
