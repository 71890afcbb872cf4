package doi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lehigh-university-libraries/doiregistry/activity"
	"github.com/lehigh-university-libraries/doiregistry/events"
	"github.com/lehigh-university-libraries/doiregistry/format"
	_ "github.com/lehigh-university-libraries/doiregistry/format/datacite"
	_ "github.com/lehigh-university-libraries/doiregistry/format/dcjson"
	"github.com/lehigh-university-libraries/doiregistry/hub"
	"github.com/lehigh-university-libraries/doiregistry/lifecycle"
	"github.com/lehigh-university-libraries/doiregistry/metrics"
	"github.com/lehigh-university-libraries/doiregistry/revision"
	"github.com/lehigh-university-libraries/doiregistry/suffix"
)

var tracer = otel.Tracer("doiregistry/doi")

// Service applies lifecycle events and metadata changes to records and
// commits them together with their snapshots and activities.
type Service struct {
	store        Store
	formats      *format.Registry
	testPrefixes []string
	aggregator   *events.Aggregator
	generator    *suffix.Generator
	clients      ClientDirectory
	authorizer   Authorizer
	registrar    Registrar
	metrics      *metrics.Metrics
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTestPrefixes replaces the prefixes whose DOIs never leave draft.
func WithTestPrefixes(prefixes []string) Option {
	return func(s *Service) { s.testPrefixes = prefixes }
}

// WithFormats decodes input with r instead of format.DefaultRegistry.
func WithFormats(r *format.Registry) Option {
	return func(s *Service) { s.formats = r }
}

// WithAggregator adds relation and usage aggregates to index documents.
func WithAggregator(a *events.Aggregator) Option {
	return func(s *Service) { s.aggregator = a }
}

// WithGenerator mints suffixes for records created without a DOI.
func WithGenerator(g *suffix.Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithClients resolves the target of transfers.
func WithClients(c ClientDirectory) Option {
	return func(s *Service) { s.clients = c }
}

// WithAuthorizer gates capabilities such as transfer.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Service) { s.authorizer = a }
}

// WithRegistrar forwards URLs of registered DOIs to the handle system.
func WithRegistrar(r Registrar) Option {
	return func(s *Service) { s.registrar = r }
}

// WithMetrics records operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service on top of store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		formats:    format.DefaultRegistry,
		authorizer: AllowAll{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input is metadata in any registered format. An empty Data leaves the
// metadata unchanged.
type Input struct {
	Data   []byte
	Format string // sniffed when empty
}

// CreateRequest describes a new DOI.
type CreateRequest struct {
	Input
	// DOI is minted under Prefix when empty.
	DOI            string
	Prefix         string
	ClientID       string
	URL            string
	ContentURLs    []string
	ExemptCreators bool
	// Event is applied after the draft is built. It overrides an event
	// named in a request envelope.
	Event lifecycle.Event
}

// UpdateRequest describes a change to an existing DOI. Zero fields are
// left alone.
type UpdateRequest struct {
	Input
	URL         string
	ContentURLs []string
	Event       lifecycle.Event
	Reason      string
	LandingPage *LandingPage
}

// Outcome is the result of a write. A refused transition is not an error:
// the record is returned with the rest of the change applied and Rejection
// says why the state did not move.
type Outcome struct {
	Record    *Record
	Rejection *lifecycle.Rejection
	Warnings  []hub.FieldError
	// Changed is false when the request left the record as it was.
	Changed bool
}

// Get returns the record of doi.
func (s *Service) Get(ctx context.Context, doi string) (*Record, error) {
	ctx, span := tracer.Start(ctx, "DOI.Service.Get", trace.WithAttributes(attribute.String("doi", doi)))
	defer span.End()

	rec, err := s.store.Get(ctx, doi)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rec, nil
}

// GenerateDOI mints a DOI under prefix. A non-nil seed makes it
// deterministic.
func (s *Service) GenerateDOI(ctx context.Context, prefix string, seed *uint64) (string, error) {
	g := s.generator
	if g == nil {
		g = suffix.NewGenerator(s.store)
	}
	return g.Generate(ctx, prefix, seed)
}

// Create builds a draft from the request, applies its event and stores it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Outcome, error) {
	start := s.now()
	defer s.metrics.ObserveOperation("create", start)
	ctx, span := tracer.Start(ctx, "DOI.Service.Create")
	defer span.End()

	doi := hub.NormalizeDOI(req.DOI)
	decoded, err := s.decode(doi, req.Input)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if doi == "" && decoded != nil {
		doi = decoded.Metadata.DOI
	}
	if doi == "" {
		if req.Prefix == "" {
			return nil, &ValidationError{Errors: []hub.FieldError{{Source: "doi", Title: "DOI can't be blank."}}}
		}
		minted, err := s.GenerateDOI(ctx, req.Prefix, nil)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("minting DOI: %w", err)
		}
		doi = minted
	}
	span.SetAttributes(attribute.String("doi", doi))

	now := s.now().UTC()
	rec := &Record{
		DOI:            doi,
		ClientID:       req.ClientID,
		State:          lifecycle.Draft,
		URL:            strings.TrimSpace(req.URL),
		ContentURLs:    req.ContentURLs,
		ExemptCreators: req.ExemptCreators,
		Created:        now,
		Updated:        now,
	}
	m := &hub.Metadata{}
	schema := ""
	ev := req.Event
	if decoded != nil {
		m = decoded.Metadata
		schema = decoded.SchemaVersion
		if ev == "" && decoded.Event != "" {
			if ev, err = lifecycle.ParseEvent(decoded.Event); err != nil {
				return nil, &ValidationError{Errors: []hub.FieldError{{Source: "event", Title: err.Error(), UID: doi}}}
			}
		}
	}
	if rec.URL == "" {
		rec.URL = strings.TrimSpace(m.URL)
	}

	warnings, err := s.applyMetadata(rec, m, schema, verbatimXML(req.Input, decoded, doi))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := &Outcome{Record: rec, Warnings: warnings, Changed: true}
	if ev != "" {
		out.Rejection = s.fire(rec, ev, "")
	}
	rec.MetadataVersion = 1

	snap, err := revision.Take(rec.Content(), rec.MetadataVersion, now)
	if err != nil {
		return nil, err
	}
	changes, err := activity.Diff(nil, ptr(rec.Subject()))
	if err != nil {
		return nil, fmt.Errorf("diffing %s: %w", doi, err)
	}
	act := s.activity(ctx, doi, activity.ActionCreate, changes, rec.LockVersion, now)

	if err := s.store.Commit(ctx, Commit{Record: rec, Create: true, Snapshot: snap, Activity: act}); err != nil {
		span.RecordError(err)
		return nil, err
	}
	slog.Info("Created DOI", "doi", doi, "state", rec.State, "client", rec.ClientID)
	s.forward(ctx, nil, rec)
	return out, nil
}

// Update applies a metadata change and an optional event to doi.
func (s *Service) Update(ctx context.Context, doi string, req UpdateRequest) (*Outcome, error) {
	start := s.now()
	defer s.metrics.ObserveOperation("update", start)
	ctx, span := tracer.Start(ctx, "DOI.Service.Update", trace.WithAttributes(attribute.String("doi", doi)))
	defer span.End()

	before, err := s.store.Get(ctx, doi)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	decoded, err := s.decode(before.DOI, req.Input)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	rec := before.Clone()
	ev := req.Event
	out := &Outcome{Record: rec}

	if u := strings.TrimSpace(req.URL); u != "" {
		rec.URL = u
	}
	if req.ContentURLs != nil {
		rec.ContentURLs = req.ContentURLs
	}
	if req.LandingPage != nil {
		lp := *req.LandingPage
		rec.LandingPage = &lp
	}

	if decoded != nil {
		m := rec.Metadata.Clone()
		if m == nil {
			m = &hub.Metadata{}
		}
		m.Overlay(decoded.Metadata)
		if u := strings.TrimSpace(req.URL); u == "" && decoded.Metadata.URL != "" {
			rec.URL = strings.TrimSpace(decoded.Metadata.URL)
		}
		if ev == "" && decoded.Event != "" {
			if ev, err = lifecycle.ParseEvent(decoded.Event); err != nil {
				return nil, &ValidationError{Errors: []hub.FieldError{{Source: "event", Title: err.Error(), UID: rec.DOI}}}
			}
		}
		out.Warnings, err = s.applyMetadata(rec, m, decoded.SchemaVersion, verbatimXML(req.Input, decoded, rec.DOI))
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	if ev != "" {
		out.Rejection = s.fire(rec, ev, req.Reason)
	}

	return s.commitUpdate(ctx, before, rec, out)
}

// FireOptions carries the optional payload of an event.
type FireOptions struct {
	Reason      string
	LandingPage *LandingPage
}

// Fire applies a lifecycle event to doi. A landing page result is recorded
// even when the transition is refused.
func (s *Service) Fire(ctx context.Context, doi string, ev lifecycle.Event, opts FireOptions) (*Outcome, error) {
	return s.Update(ctx, doi, UpdateRequest{Event: ev, Reason: opts.Reason, LandingPage: opts.LandingPage})
}

// Undo restores the metadata of the snapshot before the latest one and
// stores it as a new revision.
func (s *Service) Undo(ctx context.Context, doi string) (*Outcome, error) {
	start := s.now()
	defer s.metrics.ObserveOperation("undo", start)
	ctx, span := tracer.Start(ctx, "DOI.Service.Undo", trace.WithAttributes(attribute.String("doi", doi)))
	defer span.End()

	before, err := s.store.Get(ctx, doi)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	snaps, err := s.store.Snapshots(ctx, before.DOI)
	if err != nil {
		return nil, fmt.Errorf("reading snapshots of %s: %w", doi, err)
	}
	target, err := revision.UndoTarget(snaps)
	if err != nil {
		return nil, err
	}
	m, err := target.Restore()
	if err != nil {
		return nil, err
	}
	m.Container = hub.DeriveContainer(m)

	rec := before.Clone()
	rec.MetadataVersion = max(rec.MetadataVersion, revision.NextVersion(snaps)-1)
	warnings, err := s.applyMetadata(rec, m, m.SchemaVersion, nil)
	if err != nil {
		return nil, err
	}
	slog.Info("Restoring DOI metadata", "doi", rec.DOI, "version", target.Version)
	return s.commitUpdate(ctx, before, rec, &Outcome{Record: rec, Warnings: warnings})
}

// Delete removes a draft DOI. Other states fail with ErrMethodNotAllowed.
func (s *Service) Delete(ctx context.Context, doi string) error {
	start := s.now()
	defer s.metrics.ObserveOperation("delete", start)
	ctx, span := tracer.Start(ctx, "DOI.Service.Delete", trace.WithAttributes(attribute.String("doi", doi)))
	defer span.End()

	rec, err := s.store.Get(ctx, doi)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if rec.State != lifecycle.Draft {
		err := fmt.Errorf("%w: DOI %s is %s, only drafts can be deleted", ErrMethodNotAllowed, rec.DOI, rec.State)
		span.RecordError(err)
		return err
	}

	changes, err := activity.Diff(ptr(rec.Subject()), nil)
	if err != nil {
		return fmt.Errorf("diffing %s: %w", doi, err)
	}
	act := s.activity(ctx, rec.DOI, activity.ActionDestroy, changes, rec.LockVersion, s.now())
	if err := s.store.Delete(ctx, rec.DOI, lifecycle.Draft, act); err != nil {
		span.RecordError(err)
		return err
	}
	slog.Info("Deleted DOI", "doi", rec.DOI)
	return nil
}

// Transfer moves doi to another client. The caller needs the transfer
// capability and, when the client lists domains, the record's URL must be on
// one of them.
func (s *Service) Transfer(ctx context.Context, doi, clientID string) (*Record, error) {
	start := s.now()
	defer s.metrics.ObserveOperation("transfer", start)
	ctx, span := tracer.Start(ctx, "DOI.Service.Transfer", trace.WithAttributes(
		attribute.String("doi", doi),
		attribute.String("client", clientID),
	))
	defer span.End()

	before, err := s.store.Get(ctx, doi)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !s.authorizer.Can(ctx, CapabilityTransfer, before) {
		err := &PolicyError{Policy: "transfer", Message: fmt.Sprintf("%s may not transfer DOI %s", actorName(ctx), before.DOI)}
		span.RecordError(err)
		return nil, err
	}
	if s.clients == nil {
		return nil, errors.New("transfer needs a client directory")
	}
	client, err := s.clients.Client(ctx, clientID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if before.URL != "" && len(client.Domains) > 0 && !MatchDomain(client.Domains, before.URL) {
		err := &PolicyError{
			Policy:  "domain",
			Message: fmt.Sprintf("URL %s is not on a domain of client %s", before.URL, client.ID),
		}
		span.RecordError(err)
		return nil, err
	}
	if before.ClientID == client.ID {
		return before, nil
	}

	rec := before.Clone()
	rec.ClientID = client.ID
	rec.Updated = s.now().UTC()
	rec.LockVersion = before.LockVersion + 1
	err = s.store.Commit(ctx, Commit{Record: rec, ExpectedState: before.State, ExpectedLock: before.LockVersion})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	slog.Info("Transferred DOI", "doi", rec.DOI, "from", before.ClientID, "to", rec.ClientID)
	return rec, nil
}

// History returns the activities of doi, oldest first.
func (s *Service) History(ctx context.Context, doi string) ([]activity.Activity, error) {
	rec, err := s.store.Get(ctx, doi)
	if err != nil {
		return nil, err
	}
	return s.store.Activities(ctx, rec.DOI)
}

// Revisions returns the snapshots of doi, oldest first.
func (s *Service) Revisions(ctx context.Context, doi string) ([]revision.Snapshot, error) {
	rec, err := s.store.Get(ctx, doi)
	if err != nil {
		return nil, err
	}
	snaps, err := s.store.Snapshots(ctx, rec.DOI)
	if err != nil {
		return nil, err
	}
	revision.Sort(snaps)
	return snaps, nil
}

// decode reads the input, turning every failure into a *ValidationError.
// It returns nil for empty input.
func (s *Service) decode(doi string, in Input) (*format.Decoded, error) {
	if len(bytes.TrimSpace(in.Data)) == 0 {
		return nil, nil
	}
	d, err := s.formats.Decode(in.Data, in.Format)
	if err != nil {
		s.metrics.IncrementValidationFailures()
		var unsupported *format.UnsupportedSchemaError
		if errors.As(err, &unsupported) {
			return nil, &ValidationError{
				Errors: []hub.FieldError{{Source: "xml", Title: err.Error(), UID: doi}},
				Fatal:  true,
			}
		}
		return nil, &ValidationError{Errors: []hub.FieldError{{Source: "metadata", Title: err.Error(), UID: doi}}}
	}
	return d, nil
}

// applyMetadata validates m for the record's current state and, when it
// passes, stores it on rec together with its kernel-4 XML. xml is kept
// as-is when given.
func (s *Service) applyMetadata(rec *Record, m *hub.Metadata, schema string, xml []byte) ([]hub.FieldError, error) {
	m.DOI = rec.DOI
	if rec.URL != "" {
		m.URL = rec.URL
	}
	if len(rec.ContentURLs) == 0 && len(m.ContentURL) > 0 {
		rec.ContentURLs = m.ContentURL
	}

	result := hub.Validate(m, hub.ValidationOptions{
		UID:            rec.DOI,
		Target:         targetFor(rec.State),
		SchemaVersion:  schema,
		ExemptCreators: rec.ExemptCreators,
	})
	if !result.IsValid() {
		s.metrics.IncrementValidationFailures()
		slog.Debug("Metadata failed validation", "doi", rec.DOI, "errors", len(result.Errors))
		return nil, newValidationError(result)
	}

	m.SchemaVersion = hub.NamespaceKernel4
	if len(xml) == 0 {
		var err error
		xml, err = s.formats.Encode(m, "datacite", hub.NamespaceKernel4)
		if err != nil {
			return nil, fmt.Errorf("encoding %s as kernel-4: %w", rec.DOI, err)
		}
	}
	rec.Metadata = m
	rec.SchemaVersion = hub.NamespaceKernel4
	rec.XML = xml
	return result.Warnings, nil
}

// fire applies ev to rec in place and returns the rejection, if any.
func (s *Service) fire(rec *Record, ev lifecycle.Event, reason string) *lifecycle.Rejection {
	res := lifecycle.Transition(rec.State, ev, lifecycle.Guard{
		DOI:            rec.DOI,
		URL:            rec.URL,
		TestPrefixes:   s.testPrefixes,
		Metadata:       rec.Metadata,
		SchemaVersion:  rec.SchemaVersion,
		ExemptCreators: rec.ExemptCreators,
		Reason:         reason,
	})
	if res.Rejected() {
		s.metrics.ObserveRejection(string(ev), res.Rejection.Code)
		slog.Debug("Transition refused", "doi", rec.DOI, "event", ev, "state", rec.State, "code", res.Rejection.Code)
		return res.Rejection
	}
	s.metrics.ObserveTransition(string(ev), string(res.To))

	now := s.now().UTC()
	rec.State = res.To
	rec.Active = res.Active()
	if ev == lifecycle.Hide {
		rec.Reason = res.Reason
	}
	if res.To == lifecycle.Registered || res.To == lifecycle.Findable {
		if rec.Registered == nil {
			rec.Registered = &now
		}
	}
	if res.To == lifecycle.Findable && rec.Published == nil {
		rec.Published = &now
	}
	return nil
}

// commitUpdate writes rec over before when anything tracked changed.
func (s *Service) commitUpdate(ctx context.Context, before, rec *Record, out *Outcome) (*Outcome, error) {
	now := s.now().UTC()
	contentChanged := !bytes.Equal(before.XML, rec.XML) || !sameJSON(before.Metadata, rec.Metadata)

	changes, err := activity.Diff(ptr(before.Subject()), ptr(rec.Subject()))
	if err != nil {
		return nil, fmt.Errorf("diffing %s: %w", rec.DOI, err)
	}
	if len(changes) == 0 && !contentChanged {
		out.Record = before
		return out, nil
	}

	var snap *revision.Snapshot
	if contentChanged {
		rec.MetadataVersion++
		if snap, err = revision.Take(rec.Content(), rec.MetadataVersion, now); err != nil {
			return nil, err
		}
	}
	rec.LockVersion = before.LockVersion + 1
	rec.Updated = now

	var act *activity.Activity
	if len(changes) > 0 {
		act = s.activity(ctx, rec.DOI, activity.ActionUpdate, changes, rec.LockVersion, now)
	}
	err = s.store.Commit(ctx, Commit{
		Record:        rec,
		ExpectedState: before.State,
		ExpectedLock:  before.LockVersion,
		Snapshot:      snap,
		Activity:      act,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Updated DOI", "doi", rec.DOI, "state", rec.State, "changes", activity.ChangedKeys(changes))
	s.forward(ctx, before, rec)
	out.Record = rec
	out.Changed = true
	return out, nil
}

// forward tells the registrar about new or moved URLs of non-draft DOIs.
// The record is already committed, so failures are only logged.
func (s *Service) forward(ctx context.Context, before, rec *Record) {
	if s.registrar == nil || rec.State == lifecycle.Draft || rec.URL == "" {
		return
	}
	if before != nil && before.State != lifecycle.Draft && before.URL == rec.URL {
		return
	}
	if err := s.registrar.Register(ctx, rec.DOI, rec.URL); err != nil {
		slog.Warn("Handle registration failed", "doi", rec.DOI, "url", rec.URL, "err", err)
	}
}

func (s *Service) activity(ctx context.Context, doi string, action activity.Action, changes map[string]activity.Change, version int, now time.Time) *activity.Activity {
	a := activity.New(doi, action, changes, now)
	a.Actor = ActorFrom(ctx)
	a.RequestID = RequestIDFrom(ctx)
	a.Version = version
	return a
}

// targetFor is the validation target of a record in state st.
func targetFor(st lifecycle.State) hub.Target {
	switch st {
	case lifecycle.Findable:
		return hub.TargetFindable
	case lifecycle.Draft:
		return hub.TargetDraft
	default:
		return hub.TargetRegistered
	}
}

// verbatimXML returns the input when it is kernel-4 DataCite XML for doi
// sent as is, so the stored XML keeps the client's formatting.
func verbatimXML(in Input, d *format.Decoded, doi string) []byte {
	if d == nil || d.Format != "datacite" || Key(d.Metadata.DOI) != Key(doi) {
		return nil
	}
	data := bytes.TrimSpace(in.Data)
	if len(data) == 0 || data[0] != '<' {
		return nil
	}
	if kernel, err := hub.KernelOf(d.SchemaVersion); err != nil || kernel != hub.Kernel4 {
		return nil
	}
	return bytes.Clone(data)
}

func sameJSON(a, b *hub.Metadata) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

func actorName(ctx context.Context) string {
	if a := ActorFrom(ctx); a != "" {
		return a
	}
	return "anonymous"
}

func ptr[T any](v T) *T { return &v }
