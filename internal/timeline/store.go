package timeline

import (
	"context"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
)

// Store persists timelines by stream id.
type Store interface {
	// Put creates or replaces the timeline of tl.StreamID.
	Put(ctx context.Context, tl *Timeline) error

	// Get returns the timeline of streamID or ErrNotFound.
	Get(ctx context.Context, streamID string) (*Timeline, error)

	// Delete removes the timeline of streamID or returns ErrNotFound.
	Delete(ctx context.Context, streamID string) error

	// List returns every live timeline sorted by stream id.
	List(ctx context.Context) ([]*Timeline, error)
}

// MemoryStore keeps timelines in process. Entries expire ttl after their
// last Put.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates a store whose entries live for ttl, with expired
// entries purged every cleanupInterval. A ttl of zero keeps entries forever.
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &MemoryStore{cache: cache.New(ttl, cleanupInterval)}
}

func (s *MemoryStore) Put(_ context.Context, tl *Timeline) error {
	if tl.StreamID == "" {
		return ErrInvalidStreamID
	}
	s.cache.SetDefault(tl.StreamID, tl.Clone())
	return nil
}

func (s *MemoryStore) Get(_ context.Context, streamID string) (*Timeline, error) {
	v, ok := s.cache.Get(streamID)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*Timeline).Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, streamID string) error {
	if _, ok := s.cache.Get(streamID); !ok {
		return ErrNotFound
	}
	s.cache.Delete(streamID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Timeline, error) {
	items := s.cache.Items()
	timelines := make([]*Timeline, 0, len(items))
	for _, item := range items {
		timelines = append(timelines, item.Object.(*Timeline).Clone())
	}
	sortByStreamID(timelines)
	return timelines, nil
}

// Len returns the number of entries, expired ones included until the next
// cleanup.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}

func sortByStreamID(timelines []*Timeline) {
	sort.Slice(timelines, func(i, j int) bool {
		return timelines[i].StreamID < timelines[j].StreamID
	})
}
