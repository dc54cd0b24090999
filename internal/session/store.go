package session

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Store holds live sessions in memory. With a zero TTL sessions live until
// the process exits; otherwise each read slides the expiry forward.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewStore creates a store. cleanupInterval <= 0 disables the background
// janitor; expired sessions are then only dropped by Sweep.
func NewStore(ttl, cleanupInterval time.Duration) *Store {
	expiration := cache.NoExpiration
	if ttl > 0 {
		expiration = ttl
	}
	return &Store{
		cache: cache.New(expiration, cleanupInterval),
		ttl:   ttl,
	}
}

// Put adds or replaces a session
func (s *Store) Put(sess *Session) {
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)
}

// Get returns a live session
func (s *Store) Get(id string) (*Session, bool) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	sess := x.(*Session)
	if s.ttl > 0 {
		// Replace fails once the janitor has dropped the entry
		if err := s.cache.Replace(id, sess, cache.DefaultExpiration); err != nil {
			return nil, false
		}
	}
	return sess, true
}

// Delete removes a session, firing the eviction hook
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Count returns the number of stored sessions, including expired ones not
// yet swept
func (s *Store) Count() int {
	return s.cache.ItemCount()
}

// Sweep drops expired sessions now
func (s *Store) Sweep() {
	s.cache.DeleteExpired()
}

// OnEvicted registers a hook called with the id of each deleted or expired
// session. Flush does not call it.
func (s *Store) OnEvicted(fn func(id string)) {
	s.cache.OnEvicted(func(key string, _ interface{}) {
		fn(key)
	})
}

// Flush drops every session
func (s *Store) Flush() {
	s.cache.Flush()
}
