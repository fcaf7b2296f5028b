// Package session is the in-memory store of signing sessions. A session
// is keyed by its transaction body hash and lives from build to submission
// (or reset, or TTL expiry). Nothing here is durable; a restart loses all
// sessions, which is the documented contract.
package session

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/torrejonv/multisig-coordinator/errors"
	"github.com/torrejonv/multisig-coordinator/model"
	"github.com/torrejonv/multisig-coordinator/txbuilder"
	"github.com/torrejonv/multisig-coordinator/ulogger"
)

// Store maps session ids to records. Mutation of a record is guarded by the
// record's own lock; the store only adds, looks up and removes entries.
type Store struct {
	logger ulogger.Logger
	cache  *ttlcache.Cache[string, *Record]
}

// NewStore builds a Store whose sessions expire ttl after creation. Expiry
// is equivalent to an explicit reset: an abandoned signing round should not
// pin memory forever.
func NewStore(logger ulogger.Logger, ttl time.Duration) *Store {
	cache := ttlcache.New[string, *Record](
		ttlcache.WithTTL[string, *Record](ttl),
		ttlcache.WithDisableTouchOnHit[string, *Record](),
	)

	// every removal path, TTL expiry included, lands the session in its
	// cleared state
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Record]) {
		item.Value().markCleared()

		if reason == ttlcache.EvictionReasonExpired {
			logger.Infof("session %s expired", item.Key())
		}
	})

	go cache.Start()

	return &Store{
		logger: logger,
		cache:  cache,
	}
}

// Close stops the expiry loop and discards all sessions.
func (s *Store) Close() {
	s.cache.Stop()
	s.cache.DeleteAll()
}

// Seed is everything a freshly built session starts with.
type Seed struct {
	BodyBytes   []byte
	TxBytes     []byte
	ScriptBytes []byte
	MRequired   uint32
	Required    []model.KeyHash
	Preview     *txbuilder.Preview
}

// Create stores a new session under id. Creating an id that already exists
// replaces it: identical bodies collide by design, and the replacement is
// an equivalent artifact.
func (s *Store) Create(id string, seed *Seed) (*Record, error) {
	rec, err := newRecord(id, seed)
	if err != nil {
		return nil, err
	}

	s.cache.Set(id, rec, ttlcache.DefaultTTL)
	s.logger.Debugf("session %s created (m=%d, %d allowed signers)", id, seed.MRequired, len(seed.Required))

	return rec, nil
}

// Get returns the record for id.
func (s *Store) Get(id string) (*Record, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, errors.NewSessionNotFoundError("session %s not found", id)
	}

	return item.Value(), nil
}

// Delete removes id; removing an absent id is a no-op. The record is moved
// to its cleared state before Delete returns.
func (s *Store) Delete(id string) {
	if item := s.cache.Get(id); item != nil {
		item.Value().markCleared()
	}

	s.cache.Delete(id)
}

// DeleteAll removes every session.
func (s *Store) DeleteAll() {
	s.cache.DeleteAll()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}
