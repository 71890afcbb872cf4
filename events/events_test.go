package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"pgregory.net/rapid"

	"github.com/lehigh-university-libraries/doiregistry/mapping"
)

func at(year int, month time.Month) time.Time {
	return time.Date(year, month, 15, 0, 0, 0, 0, time.UTC)
}

func ev(subj, rel, obj string, when time.Time) Event {
	return Event{SubjID: subj, RelationTypeID: rel, ObjID: obj, OccurredAt: when, Total: 1}
}

func TestApplyDefaults(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	e := Event{SubjID: "doi:10.5061/DRYAD.8515", ObjID: "https://example.org/page"}
	e.ApplyDefaults(now)

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, 1, e.Total)
	assert.Equal(t, "references", e.RelationTypeID)
	assert.Equal(t, now, e.OccurredAt)
	assert.Equal(t, "https://doi.org/10.5061/dryad.8515", e.SubjID)
	assert.Equal(t, "https://example.org/page", e.ObjID)

	kept := Event{SubjID: "10.5072/a", RelationTypeID: " Is-Cited-By ", Total: 5, OccurredAt: at(2020, 1)}
	kept.ApplyDefaults(now)
	assert.Equal(t, 5, kept.Total)
	assert.Equal(t, "is-cited-by", kept.RelationTypeID)
	assert.Equal(t, at(2020, 1), kept.OccurredAt)
}

func TestDerive(t *testing.T) {
	tests := []struct {
		rel                            string
		source, target, srcRel, tgtRel string
	}{
		{"references", "10.5072/SUBJ", "10.5072/OBJ", "references", "citations"},
		{"cites", "10.5072/SUBJ", "10.5072/OBJ", "references", "citations"},
		{"is-referenced-by", "10.5072/OBJ", "10.5072/SUBJ", "references", "citations"},
		{"has-version", "10.5072/SUBJ", "10.5072/OBJ", "versions", "version_of"},
		{"is-part-of", "10.5072/OBJ", "10.5072/SUBJ", "parts", "part_of"},
		{RelationViews, "", "10.5072/OBJ", "", "views"},
		{"documents", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			e := ev("https://doi.org/10.5072/subj", tt.rel, "doi:10.5072/obj", time.Time{})
			e.Derive()
			assert.Equal(t, tt.source, e.SourceDOI)
			assert.Equal(t, tt.target, e.TargetDOI)
			assert.Equal(t, tt.srcRel, e.SourceRelationTypeID)
			assert.Equal(t, tt.tgtRel, e.TargetRelationTypeID)
		})
	}

	// the derived edge and the aggregate are separate views of cites
	cites := ev("https://doi.org/10.5072/a", "cites", "https://doi.org/10.5072/b", time.Time{})
	cites.Derive()
	assert.Equal(t, "references", cites.SourceRelationTypeID)
	agg := Aggregate("10.5072/a", []Event{cites}, Options{})
	assert.Equal(t, 1, agg.Count("citations"))
	assert.Equal(t, 0, agg.Count("references"))

	// a non-DOI object yields no target DOI
	e := ev("https://doi.org/10.5072/subj", "references", "https://example.org", time.Time{})
	e.Derive()
	assert.Equal(t, "10.5072/SUBJ", e.SourceDOI)
	assert.Empty(t, e.TargetDOI)
}

func TestAggregateSeparatesFamilies(t *testing.T) {
	a := "10.5072/a"
	evs := []Event{
		ev(a, "cites", "10.5072/b", at(2020, 3)),
		ev(a, "references", "10.5072/c", at(2021, 3)),
		ev(a, "has-part", "10.5072/d", at(2022, 3)),
	}
	agg := Aggregate(a, evs, Options{})

	assert.Equal(t, []string{"10.5072/b"}, agg.Family("citations").IDs)
	assert.Equal(t, 1, agg.Count("citations"))
	assert.Equal(t, []string{"10.5072/c"}, agg.Family("references").IDs)
	assert.Equal(t, 1, agg.Count("parts"))
	assert.Equal(t, 0, agg.Count("other"))
	assert.Empty(t, agg.Unclassified)
}

func TestAggregateDedupsCaseInsensitively(t *testing.T) {
	a := "10.5072/A"
	evs := []Event{
		ev("https://doi.org/10.5072/citer", "references", "https://doi.org/10.5072/a", at(2021, 5)),
		ev("10.5072/CITER", "cites", "10.5072/A", at(2019, 2)),
		ev("10.5072/a", "is-referenced-by", "10.5072/Citer", at(2020, 1)),
	}
	agg := Aggregate(a, evs, Options{})

	citations := agg.Family("citations")
	assert.Equal(t, []string{"10.5072/citer"}, citations.IDs)
	assert.Equal(t, 1, citations.Count)
	// deduplicated per citing id at its earliest year
	assert.Equal(t, []Bucket{{Period: "2019", Total: 1}}, citations.OverTime)
	assert.Equal(t, "10.5072/a", agg.DOI)
}

func TestAggregateOtherExcludesClaimed(t *testing.T) {
	a := "10.5072/a"
	evs := []Event{
		ev(a, "references", "10.5072/b", at(2020, 1)),
		ev(a, "documents", "10.5072/b", at(2020, 1)),
		ev(a, "documents", "10.5072/c", at(2020, 1)),
		ev(a, "is-derived-from", "10.5072/a", at(2020, 1)),
		ev(a, "brand-new-relation", "10.5072/e", at(2020, 1)),
		ev("10.5072/x", "references", "10.5072/y", at(2020, 1)),
	}
	agg := Aggregate(a, evs, Options{})

	assert.Equal(t, []string{"10.5072/c"}, agg.Family("other").IDs)
	assert.Equal(t, []string{"10.5072/b"}, agg.Family("references").IDs)
	assert.Equal(t, []string{"brand-new-relation"}, agg.Unclassified)
}

func TestAggregatePrecedence(t *testing.T) {
	voc, err := mapping.LoadVocabularyFromString(`
name: two
families:
  - name: first
    exclusive: true
  - name: second
    exclusive: true
relations:
  a: {subject: first}
  b: {subject: second}
`)
	require.NoError(t, err)
	evs := []Event{
		ev("10.5072/x", "a", "10.5072/shared", at(2020, 1)),
		ev("10.5072/x", "b", "10.5072/shared", at(2020, 1)),
	}

	agg := Aggregate("10.5072/x", evs, Options{Vocabulary: voc})
	assert.Equal(t, 1, agg.Count("first"))
	assert.Equal(t, 0, agg.Count("second"))

	agg = Aggregate("10.5072/x", evs, Options{Vocabulary: voc, Precedence: []string{"second", "unknown"}})
	assert.Equal(t, []string{"second", "first"}, []string{agg.Families[0].Name, agg.Families[1].Name})
	assert.Equal(t, 1, agg.Count("second"))
	assert.Equal(t, 0, agg.Count("first"))
}

func TestAggregateUsage(t *testing.T) {
	a := "10.5072/a"
	views := ev("https://example.org/report", RelationViews, a, at(2023, 2))
	views.Total = 10
	more := ev("https://example.org/report2", RelationViews, "10.5072/A", at(2023, 2))
	more.Total = 5
	later := ev("https://example.org/report", RelationViews, a, at(2023, 4))
	later.Total = 1
	downloads := ev("https://example.org/report", RelationDownloads, a, at(2022, 12))
	downloads.Total = 3
	elsewhere := ev("https://example.org/report", RelationDownloads, "10.5072/b", at(2022, 12))

	agg := Aggregate(a, []Event{views, more, later, downloads, elsewhere}, Options{})
	assert.Equal(t, 16, agg.Views.Total)
	assert.Equal(t, []Bucket{{Period: "2023-02", Total: 15}, {Period: "2023-04", Total: 1}}, agg.Views.OverTime)
	assert.Equal(t, 3, agg.Downloads.Total)
	assert.Equal(t, []Bucket{{Period: "2022-12", Total: 3}}, agg.Downloads.OverTime)
}

func TestAggregateHighWater(t *testing.T) {
	evs := []Event{
		{SubjID: "10.5072/a", ObjID: "10.5072/b", RelationTypeID: "references", Seq: 4},
		{SubjID: "10.5072/c", ObjID: "10.5072/d", RelationTypeID: "references", Seq: 9},
	}
	agg := Aggregate("10.5072/a", evs, Options{})
	assert.Equal(t, int64(9), agg.HighWater)
	// events without a date count but do not bucket
	assert.Equal(t, 1, agg.Count("references"))
	assert.Empty(t, agg.Family("references").OverTime)
}

func eventGen() *rapid.Generator[Event] {
	ids := []string{"10.5072/A", "10.5072/a", "https://doi.org/10.5072/b", "10.5072/B", "10.5072/c", "https://example.org/x"}
	rels := []string{"references", "cites", "is-cited-by", "has-part", "is-part-of", "has-version", "documents", "unknown-rel", RelationViews, RelationDownloads}
	return rapid.Custom(func(t *rapid.T) Event {
		return Event{
			SubjID:         rapid.SampledFrom(ids).Draw(t, "subj"),
			ObjID:          rapid.SampledFrom(ids).Draw(t, "obj"),
			RelationTypeID: rapid.SampledFrom(rels).Draw(t, "rel"),
			OccurredAt:     at(rapid.IntRange(2018, 2024).Draw(t, "year"), time.Month(rapid.IntRange(1, 12).Draw(t, "month"))),
			Total:          rapid.IntRange(1, 20).Draw(t, "total"),
			Seq:            rapid.Int64Range(1, 1000).Draw(t, "seq"),
		}
	})
}

func TestAggregateProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		evs := rapid.SliceOf(eventGen()).Draw(rt, "events")
		original := append([]Event(nil), evs...)

		first := Aggregate("10.5072/a", evs, Options{})
		second := Aggregate("10.5072/A", evs, Options{})
		assert.Equal(rt, first, second)
		assert.Equal(rt, original, evs)

		// order of the log does not matter
		reversed := make([]Event, len(evs))
		for i, e := range evs {
			reversed[len(evs)-1-i] = e
		}
		assert.Equal(rt, first, Aggregate("10.5072/a", reversed, Options{}))

		claimed := make(map[string]bool)
		for _, f := range first.Families {
			assert.Equal(rt, len(f.IDs), f.Count)
			seen := make(map[string]bool)
			for _, id := range f.IDs {
				if seen[id] {
					rt.Fatalf("duplicate id %s in %s", id, f.Name)
				}
				seen[id] = true
				if id == "10.5072/a" {
					rt.Fatalf("the DOI itself is listed in %s", f.Name)
				}
				if f.Name == "other" && claimed[id] {
					rt.Fatalf("other repeats claimed id %s", id)
				}
			}
			for id := range seen {
				claimed[id] = true
			}
		}
	})
}

type memorySource struct {
	evs   []Event
	reads int
}

func (s *memorySource) EventsFor(_ context.Context, doi string) ([]Event, error) {
	s.reads++
	var out []Event
	for _, e := range s.evs {
		if e.Involves(doi) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memorySource) HighWater(ctx context.Context, doi string) (int64, error) {
	var hw int64
	for _, e := range s.evs {
		if e.Involves(doi) && e.Seq > hw {
			hw = e.Seq
		}
	}
	return hw, nil
}

func TestAggregatorUsesCache(t *testing.T) {
	ctx := context.Background()
	src := &memorySource{evs: []Event{
		{SubjID: "10.5072/a", ObjID: "10.5072/b", RelationTypeID: "references", Seq: 1},
	}}
	cache := NewMemoryCache(0)
	agg := NewAggregator(src, cache, Options{})

	first, err := agg.Aggregates(ctx, "10.5072/a")
	require.NoError(t, err)
	second, err := agg.Aggregates(ctx, "10.5072/A")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.reads)
	assert.Equal(t, 1, cache.Len())

	// a new event moves the high-water mark and the key with it
	src.evs = append(src.evs, Event{SubjID: "10.5072/a", ObjID: "10.5072/c", RelationTypeID: "references", Seq: 2})
	third, err := agg.Aggregates(ctx, "10.5072/a")
	require.NoError(t, err)
	assert.Equal(t, 2, third.Count("references"))
	assert.Equal(t, 2, src.reads)
}

func TestMemoryCacheHandsOutCopies(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(0)
	stored := Aggregate("10.5072/a", []Event{
		{SubjID: "10.5072/a", ObjID: "10.5072/b", RelationTypeID: "cites", Seq: 1},
	}, Options{})
	require.Equal(t, "citations", stored.Families[0].Name)
	require.NoError(t, cache.Set(ctx, "k", stored))
	stored.Families[0].IDs[0] = "changed after set"

	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"10.5072/b"}, got.Family("citations").IDs)

	got.Families[0].IDs[0] = "changed after get"
	got.Families = nil
	again, _, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.5072/b"}, again.Family("citations").IDs)
}

func TestCacheKey(t *testing.T) {
	base := CacheKey("10.5072/a", 3, nil)
	assert.Equal(t, base, CacheKey("https://doi.org/10.5072/A", 3, nil))
	assert.NotEqual(t, base, CacheKey("10.5072/a", 4, nil))
	assert.NotEqual(t, base, CacheKey("10.5072/a", 3, []string{"parts"}))
	assert.Regexp(t, `^aggregates:[0-9a-f]{16}$`, base)
}

type recordingSink struct {
	got []Event
}

func (s *recordingSink) AppendEvents(_ context.Context, evs []Event) error {
	s.got = append(s.got, evs...)
	return nil
}

func TestIngest(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	records := []*kgo.Record{
		{Value: []byte(`{"subjId": "https://doi.org/10.5072/SUBJ", "objId": "10.5072/obj", "relationTypeId": "is-part-of", "seq": 99}`)},
		{Value: []byte(`not json`), Offset: 7},
		{Value: []byte(`{"objId": "10.5072/obj"}`)},
	}
	n, err := Ingest(context.Background(), sink, records, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sink.got, 1)

	e := sink.got[0]
	assert.Equal(t, "https://doi.org/10.5072/subj", e.SubjID)
	assert.Equal(t, "10.5072/OBJ", e.SourceDOI)
	assert.Equal(t, "part_of", e.TargetRelationTypeID)
	assert.Equal(t, now, e.OccurredAt)
	assert.Zero(t, e.Seq)

	empty := &recordingSink{}
	n, err = Ingest(context.Background(), empty, nil, now)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, empty.got)
}

type flakySink struct {
	failures int
	calls    int
	got      []Event
}

func (s *flakySink) AppendEvents(_ context.Context, evs []Event) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("store unavailable")
	}
	s.got = append(s.got, evs...)
	return nil
}

func TestAppendWithRetry(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	evs := decodeRecords([]*kgo.Record{
		{Value: []byte(`{"subjId": "10.5072/a", "objId": "10.5072/b", "relationTypeId": "cites"}`)},
	}, now)
	require.Len(t, evs, 1)

	sink := &flakySink{failures: 2}
	n, err := appendWithRetry(context.Background(), sink, evs, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, sink.calls)
	require.Len(t, sink.got, 1)
	assert.Equal(t, evs[0].ID, sink.got[0].ID, "retries resend the same event")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	down := &flakySink{failures: 1 << 30}
	_, err = appendWithRetry(ctx, down, evs, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, down.got)
}
