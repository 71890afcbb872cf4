package events

import (
	"slices"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/mapping"
)

// Counter names.
const (
	CounterViews     = "views"
	CounterDownloads = "downloads"
)

// Options configures Aggregate.
type Options struct {
	// Vocabulary classifies relation types; nil uses mapping.Default().
	Vocabulary *mapping.Vocabulary
	// Precedence reorders the vocabulary's families. Unknown names are
	// ignored.
	Precedence []string
}

// Bucket is one period of a time series. Period is a year ("2024") or a
// year-month ("2024-03").
type Bucket struct {
	Period string `json:"period"`
	Total  int    `json:"total"`
}

// Family is the aggregate of one relation family.
type Family struct {
	Name     string   `json:"name"`
	Count    int      `json:"count"`
	IDs      []string `json:"ids"`
	OverTime []Bucket `json:"overTime,omitempty"`
}

// Counter is a usage total with its monthly series.
type Counter struct {
	Total    int      `json:"total"`
	OverTime []Bucket `json:"overTime,omitempty"`
}

// Aggregates is everything derived from the events of one DOI.
type Aggregates struct {
	DOI          string   `json:"doi"`
	Families     []Family `json:"families"`
	Views        Counter  `json:"views"`
	Downloads    Counter  `json:"downloads"`
	Unclassified []string `json:"unclassified,omitempty"`
	HighWater    int64    `json:"highWater"`
}

// Family returns the aggregate of the named family; the zero Family when
// it is not present.
func (a *Aggregates) Family(name string) Family {
	for _, f := range a.Families {
		if f.Name == name {
			return f
		}
	}
	return Family{Name: name}
}

// Count is shorthand for Family(name).Count.
func (a *Aggregates) Count(name string) int {
	return a.Family(name).Count
}

// Clone returns a deep copy of a.
func (a *Aggregates) Clone() *Aggregates {
	out := *a
	out.Families = make([]Family, len(a.Families))
	for i, f := range a.Families {
		f.IDs = slices.Clone(f.IDs)
		f.OverTime = slices.Clone(f.OverTime)
		out.Families[i] = f
	}
	if a.Families == nil {
		out.Families = nil
	}
	out.Views.OverTime = slices.Clone(a.Views.OverTime)
	out.Downloads.OverTime = slices.Clone(a.Downloads.OverTime)
	out.Unclassified = slices.Clone(a.Unclassified)
	return &out
}

type member struct {
	period string // earliest period the id was seen in
}

// Aggregate folds evs into the aggregates of doi. Identifiers are compared
// lowercased, counts are of distinct related identifiers, and an exclusive
// family drops identifiers claimed by any family before it. The input is
// not modified and the result depends only on the set of events.
func Aggregate(doi string, evs []Event, opts Options) *Aggregates {
	voc := vocabularyFor(opts)
	self := Key(doi)

	out := &Aggregates{DOI: strings.ToLower(doi)}
	families := make(map[string]map[string]member)
	views := make(map[string]int)
	downloads := make(map[string]int)
	unclassified := make(map[string]bool)

	for i := range evs {
		e := evs[i]
		if e.Seq > out.HighWater {
			out.HighWater = e.Seq
		}
		rel := strings.ToLower(strings.TrimSpace(e.RelationTypeID))
		if rel == "" {
			rel = DefaultRelation
		}
		total := e.Total
		if total == 0 {
			total = 1
		}
		subj, obj := Key(e.SubjID), Key(e.ObjID)

		if counter, ok := voc.Counter(rel); ok {
			if obj != self {
				continue
			}
			month := e.YearMonth()
			switch counter {
			case CounterViews:
				out.Views.Total += total
				if month != "" {
					views[month] += total
				}
			case CounterDownloads:
				out.Downloads.Total += total
				if month != "" {
					downloads[month] += total
				}
			}
			continue
		}

		var other string
		var asSubject bool
		switch {
		case subj == self && obj != self:
			other, asSubject = obj, true
		case obj == self && subj != self:
			other = subj
		default:
			continue
		}
		if other == "" {
			continue
		}

		name, ok := voc.Classify(rel, asSubject)
		if !ok {
			unclassified[rel] = true
			continue
		}
		fam, _ := voc.Family(name)
		period := e.Year()
		if fam.Bucket == "month" {
			period = e.YearMonth()
		}

		ids := families[name]
		if ids == nil {
			ids = make(map[string]member)
			families[name] = ids
		}
		prev, seen := ids[other]
		if !seen || (period != "" && (prev.period == "" || period < prev.period)) {
			ids[other] = member{period: period}
		}
	}

	claimed := make(map[string]bool)
	for _, f := range voc.Families {
		agg := Family{Name: f.Name, IDs: []string{}}
		periods := make(map[string]int)
		for id, m := range families[f.Name] {
			if f.Exclusive && claimed[id] {
				continue
			}
			agg.IDs = append(agg.IDs, id)
			if m.period != "" {
				periods[m.period]++
			}
		}
		for id := range families[f.Name] {
			claimed[id] = true
		}
		slices.Sort(agg.IDs)
		agg.Count = len(agg.IDs)
		agg.OverTime = buckets(periods)
		out.Families = append(out.Families, agg)
	}

	out.Views.OverTime = buckets(views)
	out.Downloads.OverTime = buckets(downloads)
	for rel := range unclassified {
		out.Unclassified = append(out.Unclassified, rel)
	}
	slices.Sort(out.Unclassified)
	return out
}

func vocabularyFor(opts Options) *mapping.Vocabulary {
	voc := opts.Vocabulary
	if voc == nil {
		voc = mapping.Default()
	}
	if len(opts.Precedence) == 0 {
		return voc
	}
	known := make([]string, 0, len(opts.Precedence))
	for _, name := range opts.Precedence {
		if _, ok := voc.Family(name); ok {
			known = append(known, name)
		}
	}
	reordered, err := voc.WithPrecedence(known)
	if err != nil {
		return voc
	}
	return reordered
}

func buckets(totals map[string]int) []Bucket {
	if len(totals) == 0 {
		return nil
	}
	out := make([]Bucket, 0, len(totals))
	for period, total := range totals {
		if total == 0 {
			continue
		}
		out = append(out, Bucket{Period: period, Total: total})
	}
	slices.SortFunc(out, func(a, b Bucket) int {
		return strings.Compare(a.Period, b.Period)
	})
	return out
}
