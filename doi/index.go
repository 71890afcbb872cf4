package doi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lehigh-university-libraries/doiregistry/events"
	"github.com/lehigh-university-libraries/doiregistry/hub"
)

// DefaultReindexChunk is the number of records Reindex reads at a time.
const DefaultReindexChunk = 500

// familyFields names the index fields of each relation family.
var familyFields = map[string]string{
	"citations":  "citation",
	"references": "reference",
	"versions":   "version",
	"version_of": "versionOf",
	"parts":      "part",
	"part_of":    "partOf",
	"other":      "otherRelation",
}

// Aggregates returns the relation and usage aggregates of doi.
func (s *Service) Aggregates(ctx context.Context, doi string) (*events.Aggregates, error) {
	if s.aggregator == nil {
		return nil, fmt.Errorf("no event source configured")
	}
	return s.aggregator.Aggregates(ctx, hub.NormalizeDOI(doi))
}

// IndexDocument projects rec into the document sent to the search index:
// the metadata, the lifecycle fields, and the aggregates when an
// aggregator is configured.
func (s *Service) IndexDocument(ctx context.Context, rec *Record) (*structpb.Struct, error) {
	ctx, span := tracer.Start(ctx, "DOI.Service.IndexDocument", trace.WithAttributes(attribute.String("doi", rec.DOI)))
	defer span.End()

	doc := map[string]any{}
	if rec.Metadata != nil {
		if err := toMap(rec.Metadata, &doc); err != nil {
			return nil, fmt.Errorf("projecting metadata of %s: %w", rec.DOI, err)
		}
	}

	doc["id"] = strings.ToLower(rec.DOI)
	doc["uid"] = strings.ToLower(rec.DOI)
	doc["doi"] = rec.DOI
	doc["identifier"] = hub.DOIURL(rec.DOI)
	doc["prefix"] = rec.Prefix()
	doc["suffix"] = strings.TrimPrefix(strings.ToLower(rec.DOI), strings.ToLower(rec.Prefix())+"/")
	doc["clientId"] = rec.ClientID
	doc["state"] = string(rec.State)
	doc["isActive"] = rec.Active
	doc["metadataVersion"] = rec.MetadataVersion
	doc["created"] = rec.Created.Format(timeLayout)
	doc["updated"] = rec.Updated.Format(timeLayout)
	if rec.URL != "" {
		doc["url"] = rec.URL
	}
	if rec.Reason != "" {
		doc["reason"] = rec.Reason
	}
	if rec.Registered != nil {
		doc["registered"] = rec.Registered.Format(timeLayout)
	}
	if rec.Published != nil {
		doc["published"] = rec.Published.Format(timeLayout)
	}
	if rec.LandingPage != nil {
		var lp map[string]any
		if err := toMap(rec.LandingPage, &lp); err != nil {
			return nil, err
		}
		doc["landingPage"] = lp
	}
	if title := rec.Title(); title != "" {
		doc["title"] = title
	}

	if s.aggregator != nil {
		agg, err := s.aggregator.Aggregates(ctx, rec.DOI)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("aggregating events of %s: %w", rec.DOI, err)
		}
		addAggregates(doc, agg)
	}

	st, err := structpb.NewStruct(doc)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("building index document for %s: %w", rec.DOI, err)
	}
	return st, nil
}

// Reindex walks every record in chunks and hands its index document to fn.
// It stops at the first error and returns the number of documents sent.
func (s *Service) Reindex(ctx context.Context, chunk int, fn func(*structpb.Struct) error) (int, error) {
	if chunk <= 0 {
		chunk = DefaultReindexChunk
	}
	ctx, span := tracer.Start(ctx, "DOI.Service.Reindex")
	defer span.End()

	var (
		after string
		sent  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		recs, err := s.store.Walk(ctx, after, chunk)
		if err != nil {
			span.RecordError(err)
			return sent, fmt.Errorf("walking records after %q: %w", after, err)
		}
		for _, rec := range recs {
			doc, err := s.IndexDocument(ctx, rec)
			if err != nil {
				return sent, err
			}
			if err := fn(doc); err != nil {
				return sent, fmt.Errorf("indexing %s: %w", rec.DOI, err)
			}
			sent++
		}
		slog.Debug("Reindexed chunk", "after", after, "count", len(recs), "total", sent)
		if len(recs) < chunk {
			return sent, nil
		}
		after = Key(recs[len(recs)-1].DOI)
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func addAggregates(doc map[string]any, agg *events.Aggregates) {
	for _, f := range agg.Families {
		field, ok := familyFields[f.Name]
		if !ok {
			field = camel(f.Name)
		}
		doc[field+"Count"] = f.Count
		doc[field+"Ids"] = stringsToAny(f.IDs)
		if len(f.OverTime) > 0 {
			doc[camel(f.Name)+"OverTime"] = bucketsToAny(f.OverTime)
		}
	}
	doc["viewCount"] = agg.Views.Total
	doc["downloadCount"] = agg.Downloads.Total
	if len(agg.Views.OverTime) > 0 {
		doc["viewsOverTime"] = bucketsToAny(agg.Views.OverTime)
	}
	if len(agg.Downloads.OverTime) > 0 {
		doc["downloadsOverTime"] = bucketsToAny(agg.Downloads.OverTime)
	}
}

// camel turns a family name such as "version_of" into "versionOf".
func camel(name string) string {
	parts := strings.Split(name, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func bucketsToAny(bs []events.Bucket) []any {
	out := make([]any, len(bs))
	for i, b := range bs {
		out[i] = map[string]any{"yearMonth": b.Period, "total": b.Total}
	}
	return out
}

// toMap round-trips v through JSON so structpb accepts it.
func toMap(v any, out *map[string]any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
