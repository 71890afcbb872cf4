// Package server exposes the DOI service over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/lehigh-university-libraries/doiregistry/doi"
	"github.com/lehigh-university-libraries/doiregistry/events"
	"github.com/lehigh-university-libraries/doiregistry/format"
	"github.com/lehigh-university-libraries/doiregistry/lifecycle"
	"github.com/lehigh-university-libraries/doiregistry/metrics"
	"github.com/lehigh-university-libraries/doiregistry/revision"
)

// maxBody caps request bodies.
const maxBody = 10 << 20

// ClientHeader names the client a request acts for.
const ClientHeader = "X-Client-Id"

// Server routes HTTP requests to a doi.Service.
type Server struct {
	svc     *doi.Service
	formats *format.Registry
	sink    events.Sink
	metrics *metrics.Metrics
	now     func() time.Time
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithFormats sets the registry used for content negotiation.
func WithFormats(r *format.Registry) Option {
	return func(s *Server) { s.formats = r }
}

// WithEventSink enables POST /events.
func WithEventSink(sink events.Sink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithMetrics serves /metrics from m and counts ingested events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New builds the router.
func New(svc *doi.Service, opts ...Option) *Server {
	s := &Server{svc: svc, formats: format.DefaultRegistry, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Post("/dois", s.handleCreate)
	r.Route("/dois/{prefix}", func(r chi.Router) {
		r.Get("/*", s.handleGet)
		r.Put("/*", s.handleUpdate)
		r.Delete("/*", s.handleDelete)
	})
	r.Post("/undo/{prefix}/*", s.handleUndo)
	r.Post("/transfer/{prefix}/*", s.handleTransfer)
	r.Get("/activities/{prefix}/*", s.handleActivities)
	r.Get("/revisions/{prefix}/*", s.handleRevisions)
	r.Get("/aggregates/{prefix}/*", s.handleAggregates)
	r.Get("/index/{prefix}/*", s.handleIndex)
	r.Post("/suffixes/{prefix}", s.handleSuffix)
	r.Post("/events", s.handleEvents)
	return r
}

// requestContext copies the request id and client header into the
// context the service reads them from.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := doi.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		if client := r.Header.Get(ClientHeader); client != "" {
			ctx = doi.WithActor(ctx, client)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// outcomeResponse is the body of every write.
type outcomeResponse struct {
	Data      *doi.Record          `json:"data"`
	Rejection *lifecycle.Rejection `json:"rejection,omitempty"`
	Warnings  any                  `json:"warnings,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	ev, err := parseEvent(q.Get("event"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := doi.CreateRequest{
		Input:          doi.Input{Data: body, Format: s.declaredFormat(r)},
		DOI:            q.Get("doi"),
		Prefix:         q.Get("prefix"),
		ClientID:       r.Header.Get(ClientHeader),
		URL:            q.Get("url"),
		ContentURLs:    q["contentUrl"],
		ExemptCreators: q.Get("exemptCreators") == "true",
		Event:          ev,
	}
	out, err := s.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOutcome(w, http.StatusCreated, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := routeDOI(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ser, ok := s.negotiate(r.Header.Get("Accept"))
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"data": rec})
		return
	}
	var out []byte
	if ser.Name() == "datacite" && len(rec.XML) > 0 {
		out = rec.XML
	} else if out, err = s.formats.Encode(rec.Metadata, ser.Name(), ""); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", ser.MediaType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := routeDOI(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	ev, err := parseEvent(q.Get("event"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := doi.UpdateRequest{
		Input:       doi.Input{Data: body, Format: s.declaredFormat(r)},
		URL:         q.Get("url"),
		ContentURLs: q["contentUrl"],
		Event:       ev,
		Reason:      q.Get("reason"),
	}
	if ev == lifecycle.LinkCheck {
		req.LandingPage = landingPage(q, s.now())
	}
	out, err := s.svc.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := routeDOI(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	id, err := routeDOI(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.svc.Undo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := routeDOI(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		ClientID string `json:"clientId"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil || req.ClientID == "" {
		writeError(w, r, errBadRequest("body must be {\"clientId\": \"...\"}"))
		return
	}
	rec, err := s.svc.Transfer(r.Context(), id, req.ClientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	id, err := routeDOI(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	acts, err := s.svc.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": acts})
}

// revisionResponse is one snapshot with its diff to the version before.
type revisionResponse struct {
	ID        uuid.UUID `json:"id"`
	Version   int       `json:"version"`
	Namespace string    `json:"namespace,omitempty"`
	Created   time.Time `json:"created"`
	Patch     string    `json:"patch,omitempty"`
}

func (s *Server) handleRevisions(w http.ResponseWriter, r *http.Request) {
	id, err := routeDOI(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snaps, err := s.svc.Revisions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]revisionResponse, 0, len(snaps))
	for i, snap := range snaps {
		rr := revisionResponse{ID: snap.ID, Version: snap.Version, Namespace: snap.Namespace, Created: snap.Created}
		if i > 0 {
			rr.Patch = revision.Patch(snaps[i-1], snap)
		}
		out = append(out, rr)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	id, err := routeDOI(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	agg, err := s.svc.Aggregates(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": agg})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id, err := routeDOI(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.IndexDocument(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := protojson.Marshal(doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleSuffix(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	var seed *uint64
	if raw := r.URL.Query().Get("seed"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, r, errBadRequest("seed must be a non-negative integer"))
			return
		}
		seed = &n
	}
	id, err := s.svc.GenerateDOI(r.Context(), prefix, seed)
	if err != nil {
		writeError(w, r, errBadRequest(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"doi": id})
}

// handleEvents appends one event or an array of events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeError(w, r, fmt.Errorf("%w: event ingestion is disabled", doi.ErrMethodNotAllowed))
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var raws []json.RawMessage
	if trimmed := strings.TrimSpace(string(body)); strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &raws); err != nil {
			writeError(w, r, errBadRequest("invalid event array: "+err.Error()))
			return
		}
	} else {
		raws = []json.RawMessage{body}
	}

	now := s.now()
	evs := make([]events.Event, 0, len(raws))
	for i, raw := range raws {
		e, err := events.DecodeEvent(raw, now)
		if err != nil {
			writeError(w, r, errBadRequest(fmt.Sprintf("event %d: %v", i, err)))
			return
		}
		evs = append(evs, e)
	}
	if err := s.sink.AppendEvents(r.Context(), evs); err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.AddEventsIngested(len(evs))
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(evs)})
}

// declaredFormat maps a registered Content-Type to a format name. Other
// content types leave the format to sniffing.
func (s *Server) declaredFormat(r *http.Request) string {
	if name := r.URL.Query().Get("format"); name != "" {
		return name
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	if ser, ok := s.formats.ForMediaType(ct); ok {
		return ser.Name()
	}
	return ""
}

// negotiate picks the first registered serializer named in an Accept
// header.
func (s *Server) negotiate(accept string) (format.Serializer, bool) {
	for _, part := range strings.Split(accept, ",") {
		if ser, ok := s.formats.ForMediaType(strings.TrimSpace(part)); ok {
			return ser, true
		}
	}
	return nil, false
}

// routeDOI joins the {prefix} and wildcard route segments. Suffixes may
// contain slashes.
func routeDOI(r *http.Request) (string, error) {
	suffix, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || suffix == "" {
		return "", errBadRequest("missing DOI suffix")
	}
	return chi.URLParam(r, "prefix") + "/" + suffix, nil
}

func parseEvent(raw string) (lifecycle.Event, error) {
	if raw == "" {
		return "", nil
	}
	ev, err := lifecycle.ParseEvent(raw)
	if err != nil {
		return "", errBadRequest(err.Error())
	}
	return ev, nil
}

func landingPage(q url.Values, now time.Time) *doi.LandingPage {
	lp := &doi.LandingPage{
		URL:         q.Get("landingPageUrl"),
		ContentType: q.Get("contentType"),
		Error:       q.Get("error"),
		Checked:     now.UTC(),
	}
	if status, err := strconv.Atoi(q.Get("status")); err == nil {
		lp.Status = status
	}
	return lp
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, errBadRequest("reading body: " + err.Error())
	}
	return body, nil
}

type badRequest string

func (e badRequest) Error() string { return string(e) }

func errBadRequest(msg string) error { return badRequest(msg) }

type errorBody struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Errors any    `json:"errors,omitempty"`
	Fatal  bool   `json:"fatal,omitempty"`
}

// writeError maps service errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Title: err.Error()}
	var (
		verr *doi.ValidationError
		perr *doi.PolicyError
		bad  badRequest
	)
	switch {
	case errors.As(err, &verr):
		body.Status = http.StatusUnprocessableEntity
		body.Title = "metadata is invalid"
		body.Errors = verr.Errors
		body.Fatal = verr.Fatal
	case errors.As(err, &bad):
		body.Status = http.StatusBadRequest
	case errors.Is(err, doi.ErrNotFound):
		body.Status = http.StatusNotFound
	case errors.Is(err, doi.ErrConflict):
		body.Status = http.StatusConflict
	case errors.Is(err, doi.ErrMethodNotAllowed):
		body.Status = http.StatusMethodNotAllowed
	case errors.As(err, &perr), errors.Is(err, doi.ErrForbidden):
		body.Status = http.StatusForbidden
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "err", err)
		body.Status = http.StatusInternalServerError
		body.Title = "internal error"
	}
	writeJSON(w, body.Status, body)
}

func writeOutcome(w http.ResponseWriter, status int, out *doi.Outcome) {
	resp := outcomeResponse{Data: out.Record, Rejection: out.Rejection}
	if len(out.Warnings) > 0 {
		resp.Warnings = out.Warnings
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", mime.FormatMediaType("application/json", map[string]string{"charset": "utf-8"}))
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Writing response failed", "err", err)
	}
}
