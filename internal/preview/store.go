package preview

import (
	"sort"
	"sync"
	"time"
)

// Store holds the known preview requests, including finished ones until
// they are pruned. It hands out copies in both directions.
type Store struct {
	mu       sync.RWMutex
	requests map[string]*Request
	images   map[string][]byte // encoded PNG, completed requests only
	nextPos  int
}

func NewStore() *Store {
	return &Store{
		requests: make(map[string]*Request),
		images:   make(map[string][]byte),
	}
}

func (s *Store) Get(id string) (*Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// GetAll returns all requests in arrival order.
func (s *Store) GetAll() []*Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Request, 0, len(s.requests))
	for _, r := range s.requests {
		result = append(result, r.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result
}

// Update inserts or replaces a request. New requests are assigned the
// next arrival position; existing ones keep theirs.
func (s *Store) Update(r *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.requests[r.ID]; ok {
		r.Position = existing.Position
	} else {
		r.Position = s.nextPos
		s.nextPos++
	}
	s.requests[r.ID] = r.Clone()
}

// SetImage attaches the encoded preview to a completed request.
func (s *Store) SetImage(id string, png []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.requests[id]; ok {
		s.images[id] = png
		r.HasImage = true
	}
}

func (s *Store) Image(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	png, ok := s.images[id]
	return png, ok
}

// ActiveCount counts requests that have not reached a terminal phase.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.requests {
		if !r.Phase.IsTerminal() {
			count++
		}
	}
	return count
}

// Prune removes terminal requests older than retain and returns the
// removed IDs.
func (s *Store) Prune(retain time.Duration, now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, r := range s.requests {
		if !r.Phase.IsTerminal() || r.CompletedAt == nil {
			continue
		}
		if now.Sub(*r.CompletedAt) > retain {
			delete(s.requests, id)
			delete(s.images, id)
			removed = append(removed, id)
		}
	}
	return removed
}
