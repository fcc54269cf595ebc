// Package cache holds the scraper's two-level cache: folder listings keyed
// by folder name and raw message payloads keyed by message id.
package cache

import (
	"strings"
	"sync"
)

// Store caches folder listings and message payloads between requests.
// Folder names are canonicalized to lower case; message ids are exact.
type Store struct {
	mu       sync.Mutex
	folders  map[string][]string
	messages map[string][]byte
}

func New() *Store {
	return &Store{
		folders:  make(map[string][]string),
		messages: make(map[string][]byte),
	}
}

func folderKey(name string) string {
	return strings.ToLower(name)
}

// LookupFolder returns the cached listing for a folder. The second return
// distinguishes an empty cached listing from no cached listing at all.
func (s *Store) LookupFolder(name string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.folders[folderKey(name)]
	return ids, ok
}

// StoreFolder caches a complete listing for a folder. An empty folder is
// cached as an empty listing, never as a miss.
func (s *Store) StoreFolder(name string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ids == nil {
		ids = []string{}
	}
	s.folders[folderKey(name)] = ids
}

// LookupMessage returns the cached payload for a message id.
func (s *Store) LookupMessage(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, ok := s.messages[id]
	return payload, ok
}

// StoreMessage caches the raw payload for a message id.
func (s *Store) StoreMessage(id string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[id] = payload
}

// InvalidateMessage drops a message payload and every folder listing that
// references the id. Listings referencing a deleted message are stale as a
// whole, so they are removed rather than pruned. Reports whether a payload
// for the id was cached.
func (s *Store) InvalidateMessage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, had := s.messages[id]
	delete(s.messages, id)

	for key, ids := range s.folders {
		for _, cached := range ids {
			if cached == id {
				delete(s.folders, key)
				break
			}
		}
	}
	return had
}

// InvalidateFolder drops a folder listing along with the payloads of every
// message it referenced. Reports whether a listing for the folder was cached.
func (s *Store) InvalidateFolder(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := folderKey(name)
	ids, had := s.folders[key]
	if !had {
		return false
	}
	for _, id := range ids {
		delete(s.messages, id)
	}
	delete(s.folders, key)
	return true
}

// Flush empties both cache levels.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.folders = make(map[string][]string)
	s.messages = make(map[string][]byte)
}

// Stats reports the number of cached folder listings and message payloads.
func (s *Store) Stats() (folders int, messages int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.folders), len(s.messages)
}
