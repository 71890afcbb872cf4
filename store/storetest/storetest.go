// Package storetest holds the behavior every doi.Store implementation
// shares, as a testify suite the store packages run against themselves.
package storetest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/lehigh-university-libraries/doiregistry/activity"
	"github.com/lehigh-university-libraries/doiregistry/doi"
	"github.com/lehigh-university-libraries/doiregistry/events"
	"github.com/lehigh-university-libraries/doiregistry/hub"
	"github.com/lehigh-university-libraries/doiregistry/lifecycle"
	"github.com/lehigh-university-libraries/doiregistry/revision"
)

// Store is everything a full store provides.
type Store interface {
	doi.Store
	doi.ClientDirectory
	events.Source
	events.Sink
}

// Suite runs the shared store behavior. New must return an empty store.
type Suite struct {
	suite.Suite
	New       func() Store
	PutClient func(Store, doi.Client) error

	ctx   context.Context
	store Store
	now   time.Time
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.New()
	s.now = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
}

func (s *Suite) record(id string) *doi.Record {
	return &doi.Record{
		DOI:      id,
		ClientID: "lehigh.repo",
		State:    lifecycle.Draft,
		URL:      "https://preserve.lehigh.edu/" + id,
		Metadata: &hub.Metadata{
			DOI:    id,
			Titles: hub.List[hub.Title]{{Title: "Title of " + id}},
		},
		XML:     []byte(`<resource xmlns="http://datacite.org/schema/kernel-4"/>`),
		Created: s.now,
		Updated: s.now,
	}
}

func (s *Suite) create(rec *doi.Record) {
	snap, err := revision.Take(rec.Content(), 1, s.now)
	s.Require().NoError(err)
	act := activity.New(rec.DOI, activity.ActionCreate, map[string]activity.Change{
		"state": {Old: []byte("null"), New: []byte(`"draft"`)},
	}, s.now)
	s.Require().NoError(s.store.Commit(s.ctx, doi.Commit{Record: rec, Create: true, Snapshot: snap, Activity: act}))
}

func (s *Suite) TestCreateAndGet() {
	s.create(s.record("10.5438/ABC"))

	got, err := s.store.Get(s.ctx, "10.5438/abc")
	s.Require().NoError(err)
	s.Equal("10.5438/ABC", got.DOI)
	s.Equal(lifecycle.Draft, got.State)
	s.Equal("Title of 10.5438/ABC", got.Title())
	s.Equal(0, got.LockVersion)
	s.True(got.Created.Equal(s.now))

	exists, err := s.store.Exists(s.ctx, "https://doi.org/10.5438/abc")
	s.Require().NoError(err)
	s.True(exists)

	err = s.store.Commit(s.ctx, doi.Commit{Record: s.record("10.5438/abc"), Create: true})
	s.ErrorIs(err, doi.ErrConflict)

	_, err = s.store.Get(s.ctx, "10.5438/missing")
	s.ErrorIs(err, doi.ErrNotFound)
}

func (s *Suite) TestCompareAndSwap() {
	rec := s.record("10.5438/CAS")
	s.create(rec)

	next := rec.Clone()
	next.State = lifecycle.Registered
	s.Require().NoError(s.store.Commit(s.ctx, doi.Commit{
		Record:        next,
		ExpectedState: lifecycle.Draft,
		ExpectedLock:  0,
	}))

	got, err := s.store.Get(s.ctx, rec.DOI)
	s.Require().NoError(err)
	s.Equal(lifecycle.Registered, got.State)
	s.Equal(1, got.LockVersion)

	stale := rec.Clone()
	stale.State = lifecycle.Findable
	err = s.store.Commit(s.ctx, doi.Commit{Record: stale, ExpectedState: lifecycle.Draft, ExpectedLock: 0})
	s.ErrorIs(err, doi.ErrConflict)

	err = s.store.Commit(s.ctx, doi.Commit{Record: stale, ExpectedState: lifecycle.Registered, ExpectedLock: 0})
	s.ErrorIs(err, doi.ErrConflict, "lock version must match too")

	err = s.store.Commit(s.ctx, doi.Commit{Record: s.record("10.5438/none"), ExpectedState: lifecycle.Draft})
	s.ErrorIs(err, doi.ErrNotFound)
}

func (s *Suite) TestFailedCommitWritesNothing() {
	rec := s.record("10.5438/ATOMIC")
	s.create(rec)

	snap, err := revision.Take(rec.Content(), 2, s.now)
	s.Require().NoError(err)
	act := activity.New(rec.DOI, activity.ActionUpdate, nil, s.now)
	err = s.store.Commit(s.ctx, doi.Commit{
		Record:        rec,
		ExpectedState: lifecycle.Findable,
		Snapshot:      snap,
		Activity:      act,
	})
	s.ErrorIs(err, doi.ErrConflict)

	snaps, err := s.store.Snapshots(s.ctx, rec.DOI)
	s.Require().NoError(err)
	s.Len(snaps, 1)
	acts, err := s.store.Activities(s.ctx, rec.DOI)
	s.Require().NoError(err)
	s.Len(acts, 1)
}

func (s *Suite) TestSnapshotsAndActivities() {
	rec := s.record("10.5438/LOG")
	s.create(rec)

	next := rec.Clone()
	next.Metadata.Titles = hub.List[hub.Title]{{Title: "Second"}}
	snap, err := revision.Take(next.Content(), 2, s.now.Add(time.Minute))
	s.Require().NoError(err)
	act := activity.New(rec.DOI, activity.ActionUpdate, map[string]activity.Change{
		"titles": {Old: []byte(`[{"title":"Title of 10.5438/LOG"}]`), New: []byte(`[{"title":"Second"}]`)},
	}, s.now.Add(time.Minute))
	act.Actor = "lehigh.repo"
	act.Version = 1
	s.Require().NoError(s.store.Commit(s.ctx, doi.Commit{
		Record: next, ExpectedState: lifecycle.Draft, Snapshot: snap, Activity: act,
	}))

	snaps, err := s.store.Snapshots(s.ctx, rec.DOI)
	s.Require().NoError(err)
	s.Require().Len(snaps, 2)
	s.Equal(2, snaps[1].Version)
	s.Equal(hub.NamespaceKernel4, snaps[1].Namespace)
	restored, err := snaps[1].Restore()
	s.Require().NoError(err)
	s.Equal("Second", restored.MainTitle())

	target, err := revision.UndoTarget(snaps)
	s.Require().NoError(err)
	s.Equal(1, target.Version)

	acts, err := s.store.Activities(s.ctx, rec.DOI)
	s.Require().NoError(err)
	s.Require().Len(acts, 2)
	s.Equal(activity.ActionUpdate, acts[1].Action)
	s.Equal("lehigh.repo", acts[1].Actor)
	s.JSONEq(`[{"title":"Second"}]`, string(acts[1].Changes["titles"].New))
}

func (s *Suite) TestDelete() {
	rec := s.record("10.5438/GONE")
	s.create(rec)

	err := s.store.Delete(s.ctx, rec.DOI, lifecycle.Findable, nil)
	s.ErrorIs(err, doi.ErrConflict)

	act := activity.New(rec.DOI, activity.ActionDestroy, nil, s.now)
	s.Require().NoError(s.store.Delete(s.ctx, rec.DOI, lifecycle.Draft, act))

	_, err = s.store.Get(s.ctx, rec.DOI)
	s.ErrorIs(err, doi.ErrNotFound)
	snaps, err := s.store.Snapshots(s.ctx, rec.DOI)
	s.Require().NoError(err)
	s.Empty(snaps)
	acts, err := s.store.Activities(s.ctx, rec.DOI)
	s.Require().NoError(err)
	s.Len(acts, 2, "activities outlive the record")

	s.ErrorIs(s.store.Delete(s.ctx, rec.DOI, lifecycle.Draft, nil), doi.ErrNotFound)
}

func (s *Suite) TestWalk() {
	for i := range 7 {
		s.create(s.record(fmt.Sprintf("10.5438/W%d", i)))
	}

	var seen []string
	after := ""
	for {
		recs, err := s.store.Walk(s.ctx, after, 3)
		s.Require().NoError(err)
		for _, r := range recs {
			seen = append(seen, r.DOI)
		}
		if len(recs) < 3 {
			break
		}
		after = doi.Key(recs[len(recs)-1].DOI)
	}
	s.Equal([]string{
		"10.5438/W0", "10.5438/W1", "10.5438/W2", "10.5438/W3",
		"10.5438/W4", "10.5438/W5", "10.5438/W6",
	}, seen)
}

func (s *Suite) TestClients() {
	s.Require().NoError(s.PutClient(s.store, doi.Client{ID: "Lehigh.Archive", Domains: []string{"*.lehigh.edu"}}))

	c, err := s.store.Client(s.ctx, "lehigh.archive")
	s.Require().NoError(err)
	s.Equal([]string{"*.lehigh.edu"}, c.Domains)

	_, err = s.store.Client(s.ctx, "nobody")
	s.ErrorIs(err, doi.ErrNotFound)
}

func (s *Suite) TestEvents() {
	id := uuid.New()
	evs := []events.Event{
		{ID: id, SubjID: "https://doi.org/10.1000/a", RelationTypeID: "cites", ObjID: "https://doi.org/10.5438/ev"},
		{ID: uuid.New(), SubjID: "https://doi.org/10.5438/EV", RelationTypeID: "references", ObjID: "https://doi.org/10.1000/b"},
		{ID: uuid.New(), SubjID: "https://doi.org/10.1000/c", RelationTypeID: "cites", ObjID: "https://doi.org/10.1000/d"},
	}
	for i := range evs {
		evs[i].ApplyDefaults(s.now)
	}
	s.Require().NoError(s.store.AppendEvents(s.ctx, evs))
	// redelivery is ignored
	s.Require().NoError(s.store.AppendEvents(s.ctx, evs[:1]))

	got, err := s.store.EventsFor(s.ctx, "10.5438/EV")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(id, got[0].ID)
	s.Less(got[0].Seq, got[1].Seq)

	hw, err := s.store.HighWater(s.ctx, "10.5438/ev")
	s.Require().NoError(err)
	s.Equal(got[1].Seq, hw)

	none, err := s.store.HighWater(s.ctx, "10.5438/quiet")
	s.Require().NoError(err)
	s.Zero(none)

	agg := events.Aggregate("10.5438/ev", got, events.Options{})
	s.Equal(1, agg.Count("citations"))
	s.Equal(1, agg.Count("references"))
	s.Equal(hw, agg.HighWater)
}
