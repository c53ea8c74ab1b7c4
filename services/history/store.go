// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history provides the bounded per-conversation message log used by
// the orchestrator. Conversations live only for the process lifetime; there
// is no persistence layer.
package history

import (
	"sync"

	"github.com/mamartiner07/SophIA/services/orchestrator/datatypes"
)

// DefaultMaxTurns is the sliding-window cap applied when no explicit cap is
// configured. Matches the production default of twelve retained turns.
const DefaultMaxTurns = 12

// Store is the conversation log abstraction the orchestrator writes to.
//
// Description:
//
//	Append adds a turn to the end of a conversation and trims the oldest
//	turns once the window cap is exceeded. Read returns a snapshot copy of
//	the log; callers never observe a log mutated mid-iteration. Clear
//	removes every turn for a key.
//
//	Keys are independent: operations on one conversation never block
//	another.
//
// Thread Safety: Implementations must serialize Append/Read/Clear per key.
type Store interface {
	Append(key string, turn datatypes.Turn)
	Read(key string) []datatypes.Turn
	Clear(key string)
}

// conversation is one keyed log with its own lock so distinct conversation
// keys do not contend with each other.
type conversation struct {
	mu    sync.Mutex
	turns []datatypes.Turn
}

// MemoryStore is the in-memory Store implementation.
//
// Description:
//
//	Holds a map of conversation key to log. The map itself is guarded by a
//	read-write mutex used only for key lookup and insertion; turn access is
//	serialized by the per-conversation lock. Created at process start and
//	torn down at process stop.
//
// Thread Safety: MemoryStore is safe for concurrent use.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	maxTurns      int
}

// NewMemoryStore creates a MemoryStore with the given sliding-window cap.
// A cap of zero or less falls back to DefaultMaxTurns.
func NewMemoryStore(maxTurns int) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &MemoryStore{
		conversations: make(map[string]*conversation),
		maxTurns:      maxTurns,
	}
}

// get returns the conversation for key, creating it if needed.
func (s *MemoryStore) get(key string) *conversation {
	s.mu.RLock()
	c, ok := s.conversations[key]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.conversations[key]; ok {
		return c
	}
	c = &conversation{}
	s.conversations[key] = c
	return c
}

// Append adds a turn to the conversation and enforces the window cap by
// dropping the oldest turns from the front.
func (s *MemoryStore) Append(key string, turn datatypes.Turn) {
	c := s.get(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn)
	if len(c.turns) > s.maxTurns {
		drop := len(c.turns) - s.maxTurns
		// A tool_result is only valid directly after its tool_call, so a
		// trim that severs the pair must take the result with it. Without
		// this the window can open on an orphaned result, which the model
		// API rejects.
		for drop < len(c.turns) && c.turns[drop].Role == datatypes.RoleToolResult {
			drop++
		}
		// Re-slice into a fresh backing array so the dropped prefix does
		// not pin memory as the conversation ages.
		trimmed := make([]datatypes.Turn, len(c.turns)-drop)
		copy(trimmed, c.turns[drop:])
		c.turns = trimmed
	}
}

// Read returns a snapshot copy of the conversation's turns, oldest first.
// A key that has never been written returns an empty slice.
func (s *MemoryStore) Read(key string) []datatypes.Turn {
	s.mu.RLock()
	c, ok := s.conversations[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]datatypes.Turn, len(c.turns))
	copy(snapshot, c.turns)
	return snapshot
}

// Clear removes all turns for a key. A subsequent Read returns empty.
func (s *MemoryStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, key)
}
