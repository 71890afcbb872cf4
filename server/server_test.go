package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lehigh-university-libraries/doiregistry/doi"
	"github.com/lehigh-university-libraries/doiregistry/events"
	"github.com/lehigh-university-libraries/doiregistry/format/bibtex"
	"github.com/lehigh-university-libraries/doiregistry/format/datacite"
	"github.com/lehigh-university-libraries/doiregistry/format/dcjson"
	"github.com/lehigh-university-libraries/doiregistry/metrics"
	"github.com/lehigh-university-libraries/doiregistry/store/memory"
)

const datasetJSON = `{
  "doi": "10.5438/4K3M-NYVG",
  "titles": [{"title": "Sediment cores of the Lehigh River"}],
  "creators": [{"name": "Garcia, Sofia", "nameType": "Personal", "givenName": "Sofia", "familyName": "Garcia"}],
  "publisher": "Lehigh University",
  "publicationYear": 2024,
  "types": {"resourceTypeGeneral": "Dataset"}
}`

type ServerSuite struct {
	suite.Suite
	store   *memory.Store
	metrics *metrics.Metrics
	srv     *Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.store = memory.New()
	s.metrics = metrics.New()
	svc := doi.NewService(s.store,
		doi.WithClients(s.store),
		doi.WithMetrics(s.metrics),
		doi.WithAggregator(events.NewAggregator(s.store, events.NewMemoryCache(0), events.Options{})),
	)
	s.srv = New(svc, WithEventSink(s.store), WithMetrics(s.metrics))
}

func (s *ServerSuite) do(method, target, contentType, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.srv.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) publish() {
	rec := s.do(http.MethodPost, "/dois?event=publish&url=https://preserve.lehigh.edu/datasets/1",
		dcjson.MediaType, datasetJSON, ClientHeader, "lehigh.repo")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *ServerSuite) TestCreateAndGet() {
	s.publish()

	rec := s.do(http.MethodGet, "/dois/10.5438/4k3m-nyvg", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp struct {
		Data doi.Record `json:"data"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("10.5438/4K3M-NYVG", resp.Data.DOI)
	s.Equal("findable", string(resp.Data.State))
	s.Equal("lehigh.repo", resp.Data.ClientID)

	rec = s.do(http.MethodPost, "/dois", dcjson.MediaType, datasetJSON)
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/dois/10.5438/missing", "", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestContentNegotiation() {
	s.publish()

	rec := s.do(http.MethodGet, "/dois/10.5438/4K3M-NYVG", "", "", "Accept", datacite.MediaType)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(datacite.MediaType, rec.Header().Get("Content-Type"))
	s.Contains(rec.Body.String(), "http://datacite.org/schema/kernel-4")

	rec = s.do(http.MethodGet, "/dois/10.5438/4K3M-NYVG", "", "", "Accept", "text/html, "+bibtex.MediaType+";q=0.9")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(bibtex.MediaType, rec.Header().Get("Content-Type"))
	s.Contains(rec.Body.String(), "Sediment cores of the Lehigh River")
}

func (s *ServerSuite) TestRejectedTransitionIsReported() {
	rec := s.do(http.MethodPost, "/dois?event=publish", dcjson.MediaType, datasetJSON)
	s.Require().Equal(http.StatusCreated, rec.Code)

	var resp struct {
		Data      doi.Record `json:"data"`
		Rejection struct {
			Code string `json:"code"`
		} `json:"rejection"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("draft", string(resp.Data.State))
	s.Equal("url_missing", resp.Rejection.Code)
}

func (s *ServerSuite) TestInvalidMetadata() {
	rec := s.do(http.MethodPost, "/dois?doi=10.5438/bad", dcjson.MediaType,
		`{"contributors":[{"name":"Smith, John","contributorType":"Funder"}]}`)
	s.Require().Equal(http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Errors []struct {
			Source string `json:"source"`
		} `json:"errors"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Require().NotEmpty(body.Errors)
	s.Equal("contributors[0]", body.Errors[0].Source)

	rec = s.do(http.MethodPost, "/dois?event=explode", dcjson.MediaType, datasetJSON)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestHideThenDelete() {
	s.publish()

	rec := s.do(http.MethodPut, "/dois/10.5438/4K3M-NYVG?event=hide&reason=withdrawn", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"state":"registered"`)

	rec = s.do(http.MethodDelete, "/dois/10.5438/4K3M-NYVG", "", "")
	s.Equal(http.StatusMethodNotAllowed, rec.Code)

	rec = s.do(http.MethodGet, "/activities/10.5438/4K3M-NYVG", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"action":"update"`)
}

func (s *ServerSuite) TestUpdateAndUndo() {
	s.publish()

	rec := s.do(http.MethodPut, "/dois/10.5438/4K3M-NYVG", dcjson.MediaType, `{"titles":[{"title":"Renamed"}]}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Renamed")

	rec = s.do(http.MethodGet, "/revisions/10.5438/4K3M-NYVG", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var revs struct {
		Data []struct {
			Version int    `json:"version"`
			Patch   string `json:"patch"`
		} `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &revs))
	s.Require().Len(revs.Data, 2)
	s.Equal(1, revs.Data[0].Version)
	s.Empty(revs.Data[0].Patch)
	s.Contains(revs.Data[1].Patch, "+")
	s.Contains(revs.Data[1].Patch, "Renamed")

	rec = s.do(http.MethodPost, "/undo/10.5438/4K3M-NYVG", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Sediment cores of the Lehigh River")

	rec = s.do(http.MethodGet, "/revisions/10.5438/missing", "", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestTransfer() {
	s.publish()
	s.store.PutClient(doi.Client{ID: "other.repo", Domains: []string{"example.org"}})

	rec := s.do(http.MethodPost, "/transfer/10.5438/4K3M-NYVG", "application/json", `{"clientId":"other.repo"}`)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/transfer/10.5438/4K3M-NYVG", "application/json", `{}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestEventsAndAggregates() {
	s.publish()

	body := `[
	  {"subjId": "https://doi.org/10.1000/citing-1", "relationTypeId": "cites", "objId": "https://doi.org/10.5438/4k3m-nyvg"},
	  {"subjId": "https://doi.org/10.1000/citing-2", "relationTypeId": "cites", "objId": "10.5438/4K3M-NYVG"}
	]`
	rec := s.do(http.MethodPost, "/events", "application/json", body)
	s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/aggregates/10.5438/4K3M-NYVG", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp struct {
		Data events.Aggregates `json:"data"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(2, resp.Data.Count("citations"))

	rec = s.do(http.MethodGet, "/index/10.5438/4K3M-NYVG", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var doc map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &doc))
	s.Equal(float64(2), doc["citationCount"])
	s.Equal("10.5438/4k3m-nyvg", doc["uid"])

	rec = s.do(http.MethodPost, "/events", "application/json", `{"objId": "10.5438/x"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestSuffix() {
	rec := s.do(http.MethodPost, "/suffixes/10.5438?seed=123456789", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(strings.HasPrefix(resp["doi"], "10.5438/"))

	again := s.do(http.MethodPost, "/suffixes/10.5438?seed=123456789", "", "")
	s.Equal(rec.Body.String(), again.Body.String())

	rec = s.do(http.MethodPost, "/suffixes/10.5438?seed=-1", "", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestMetricsAndHealth() {
	s.publish()

	rec := s.do(http.MethodGet, "/healthz", "", "")
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", "", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "doiregistry_operation_duration_seconds")
}

func (s *ServerSuite) TestEventsDisabled() {
	srv := New(doi.NewService(memory.New()))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader([]byte(`{}`))))
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}
