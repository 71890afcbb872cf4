// Package memory is an in-process store for records, their revision and
// activity logs, clients and the event log.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/doiregistry/activity"
	"github.com/lehigh-university-libraries/doiregistry/doi"
	"github.com/lehigh-university-libraries/doiregistry/events"
	"github.com/lehigh-university-libraries/doiregistry/lifecycle"
	"github.com/lehigh-university-libraries/doiregistry/revision"
)

// Store keeps everything in maps behind one lock.
type Store struct {
	mu         sync.RWMutex
	records    map[string]*doi.Record
	snapshots  map[string][]revision.Snapshot
	activities map[string][]activity.Activity
	clients    map[string]*doi.Client
	events     []events.Event
	eventIDs   map[uuid.UUID]bool
	seq        int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		records:    make(map[string]*doi.Record),
		snapshots:  make(map[string][]revision.Snapshot),
		activities: make(map[string][]activity.Activity),
		clients:    make(map[string]*doi.Client),
		eventIDs:   make(map[uuid.UUID]bool),
	}
}

var (
	_ doi.Store           = (*Store)(nil)
	_ doi.ClientDirectory = (*Store)(nil)
	_ events.Source       = (*Store)(nil)
	_ events.Sink         = (*Store)(nil)
)

func (s *Store) Get(_ context.Context, id string) (*doi.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[doi.Key(id)]
	if !ok {
		return nil, &doi.NotFoundError{Resource: "DOI", ID: id}
	}
	return rec.Clone(), nil
}

func (s *Store) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[doi.Key(id)]
	return ok, nil
}

func (s *Store) Commit(_ context.Context, c doi.Commit) error {
	if c.Record == nil {
		return fmt.Errorf("commit without a record")
	}
	key := doi.Key(c.Record.DOI)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := c.Record.Clone()
	current, exists := s.records[key]
	if c.Create {
		if exists {
			return fmt.Errorf("%w: DOI %s already exists", doi.ErrConflict, c.Record.DOI)
		}
		rec.LockVersion = 0
	} else {
		if !exists {
			return &doi.NotFoundError{Resource: "DOI", ID: c.Record.DOI}
		}
		if current.State != c.ExpectedState || current.LockVersion != c.ExpectedLock {
			return fmt.Errorf("%w: DOI %s changed since it was read", doi.ErrConflict, c.Record.DOI)
		}
		rec.LockVersion = c.ExpectedLock + 1
	}

	s.records[key] = rec
	if c.Snapshot != nil {
		s.snapshots[key] = append(s.snapshots[key], *c.Snapshot)
	}
	if c.Activity != nil {
		s.activities[key] = append(s.activities[key], *c.Activity)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, id string, expectedState lifecycle.State, a *activity.Activity) error {
	key := doi.Key(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[key]
	if !ok {
		return &doi.NotFoundError{Resource: "DOI", ID: id}
	}
	if current.State != expectedState {
		return fmt.Errorf("%w: DOI %s is %s", doi.ErrConflict, id, current.State)
	}
	delete(s.records, key)
	delete(s.snapshots, key)
	if a != nil {
		s.activities[key] = append(s.activities[key], *a)
	}
	return nil
}

func (s *Store) Snapshots(_ context.Context, id string) ([]revision.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snapshots[doi.Key(id)]), nil
}

func (s *Store) Activities(_ context.Context, id string) ([]activity.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.activities[doi.Key(id)]), nil
}

func (s *Store) Walk(_ context.Context, after string, limit int) ([]*doi.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		if k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]*doi.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.records[k].Clone())
	}
	return out, nil
}

// PutClient adds or replaces a client.
func (s *Store) PutClient(c doi.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[strings.ToLower(c.ID)] = &c
}

func (s *Store) Client(_ context.Context, id string) (*doi.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[strings.ToLower(id)]
	if !ok {
		return nil, &doi.NotFoundError{Resource: "client", ID: id}
	}
	cp := *c
	return &cp, nil
}

// AppendEvents adds events to the log, skipping ids it already holds, and
// assigns their sequence numbers.
func (s *Store) AppendEvents(_ context.Context, evs []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range evs {
		if e.ID == uuid.Nil || s.eventIDs[e.ID] {
			continue
		}
		s.seq++
		e.Seq = s.seq
		s.eventIDs[e.ID] = true
		s.events = append(s.events, e)
	}
	return nil
}

func (s *Store) EventsFor(_ context.Context, id string) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Event
	for i := range s.events {
		if s.events[i].Involves(id) {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *Store) HighWater(_ context.Context, id string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hw int64
	for i := range s.events {
		if s.events[i].Involves(id) && s.events[i].Seq > hw {
			hw = s.events[i].Seq
		}
	}
	return hw, nil
}
