// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"sync"

	"github.com/samber/lo"
)

// client represents a connected browser tab and its event channel.
type client struct {
	ch chan string
	id string
}

// Hub fans out live-reload events to every connected browser.
type Hub struct {
	clients []client
	mu      sync.RWMutex
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{}
}

// Register adds a new client and returns the channel to receive events on.
func (h *Hub) Register(id string) chan string {
	ch := make(chan string, 10) // buffered to prevent blocking

	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients = append(h.clients, client{ch: ch, id: id})
	return ch
}

// Unregister removes a client channel and closes it.
func (h *Hub) Unregister(ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	before := len(h.clients)
	h.clients = lo.Filter(h.clients, func(c client, _ int) bool {
		return c.ch != ch
	})

	if len(h.clients) != before {
		close(ch)
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.ch <- message:
		default:
			// Channel full, skip
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// ClientIDs returns the ids of connected clients without duplicates.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.Uniq(lo.Map(h.clients, func(c client, _ int) string {
		return c.id
	}))
}

// CloseAll disconnects every client by closing its channel.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		close(c.ch)
	}
	h.clients = nil
}
