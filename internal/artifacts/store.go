// Package artifacts holds the process-wide registry of backend computation
// handles. Operations that produce a computation register it here and return
// the key to the caller; later operations reference it by key.
package artifacts

import (
	"fmt"
	"sync"
	"time"

	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/logging"
)

// Kind classifies an artifact by the operation family that produced it.
type Kind string

const (
	KindComposite Kind = "composite"
	KindIndex     Kind = "index"
	KindImage     Kind = "image"
	KindModel     Kind = "model"
)

// ValidKind reports whether k is a known artifact kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindComposite, KindIndex, KindImage, KindModel:
		return true
	}
	return false
}

// Record is one stored artifact. Records are immutable after insertion; the
// store hands out pointers but callers must never mutate them.
type Record struct {
	Key        string
	Kind       Kind
	Handle     ee.Handle
	CreatedAt  time.Time
	RegionHint string   // place name or geometry summary used to build it
	BandHint   []string // default visualization bands, if known
}

// Hints carries the optional metadata attached at Put time.
type Hints struct {
	Region string
	Bands  []string
}

// Store is a thread-safe keyed registry of Records. Keys embed the kind and
// a millisecond timestamp; puts within the same tick get a monotonic counter
// suffix so every creation event yields a distinct key.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []*Record // insertion order, oldest first

	lastStamp int64
	seq       int

	// maxEntries bounds the registry; zero means unbounded, matching the
	// legacy process-lifetime retention.
	maxEntries int

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEntries caps the store at n records, evicting the oldest on
// overflow. The external contract is unchanged: Get on an evicted key
// reports not-found.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

// withClock overrides the timestamp source in tests.
func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put registers a new handle and returns its key.
func (s *Store) Put(kind Kind, handle ee.Handle, hints Hints) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UnixMilli()
	if stamp <= s.lastStamp {
		s.seq++
	} else {
		s.lastStamp = stamp
		s.seq = 0
	}
	key := fmt.Sprintf("%s_%d", kind, s.lastStamp)
	if s.seq > 0 {
		key = fmt.Sprintf("%s_%d", key, s.seq)
	}

	rec := &Record{
		Key:        key,
		Kind:       kind,
		Handle:     handle,
		CreatedAt:  time.UnixMilli(s.lastStamp).Add(time.Duration(s.seq) * time.Nanosecond),
		RegionHint: hints.Region,
		BandHint:   hints.Bands,
	}
	s.records[key] = rec
	s.order = append(s.order, rec)

	if s.maxEntries > 0 && len(s.order) > s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest.Key)
		logging.StoreDebug("evicted %s (cap %d)", oldest.Key, s.maxEntries)
	}

	logging.StoreDebug("registered %s", key)
	return key
}

// Get returns the record for an exact key.
func (s *Store) Get(key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return rec, nil
}

// MostRecent returns the newest record of the given kind.
func (s *Store) MostRecent(kind Kind) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		if s.order[i].Kind == kind {
			return s.order[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no %s artifact", ErrNotFound, kind)
}

// Resolve looks up the artifact an operation referenced. An empty key always
// means "most recent of kind". A missing key falls back to the most recent
// record of the expected kind when allowFallback is set; the second return
// reports whether that substitution happened so callers can surface it.
// A key that exists but holds a different kind is never recovered.
func (s *Store) Resolve(key string, kind Kind, allowFallback bool) (*Record, bool, error) {
	if key == "" {
		rec, err := s.MostRecent(kind)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}

	rec, err := s.Get(key)
	if err != nil {
		if !allowFallback {
			return nil, false, err
		}
		fallback, ferr := s.MostRecent(kind)
		if ferr != nil {
			return nil, false, err
		}
		logging.StoreDebug("key %s missing, substituting %s", key, fallback.Key)
		return fallback, true, nil
	}

	if rec.Kind != kind {
		return nil, false, fmt.Errorf("%w: %s is a %s, expected %s", ErrWrongKind, key, rec.Kind, kind)
	}
	return rec, false, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
