package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeIndex is a minimal in-memory stand-in for the index HTTP API.
type fakeIndex struct {
	indexes  map[string]bool
	settings map[string]indexSettings
	docs     map[string]map[string]json.RawMessage

	searchRequests []searchRequest
	searchResponse string
	failAll        bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		indexes:  map[string]bool{},
		settings: map[string]indexSettings{},
		docs:     map[string]map[string]json.RawMessage{},
	}
}

func (f *fakeIndex) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"available"}`))
	})
	mux.HandleFunc("GET /indexes/{name}", func(w http.ResponseWriter, r *http.Request) {
		if !f.indexes[r.PathValue("name")] {
			http.Error(w, `{"code":"index_not_found"}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /indexes", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UID string `json:"uid"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.indexes[body.UID] = true
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("PATCH /indexes/{name}/settings", func(w http.ResponseWriter, r *http.Request) {
		var s indexSettings
		_ = json.NewDecoder(r.Body).Decode(&s)
		f.settings[r.PathValue("name")] = s
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /indexes/{name}/documents", func(w http.ResponseWriter, r *http.Request) {
		var docs []map[string]any
		_ = json.NewDecoder(r.Body).Decode(&docs)
		name := r.PathValue("name")
		if f.docs[name] == nil {
			f.docs[name] = map[string]json.RawMessage{}
		}
		for _, d := range docs {
			raw, _ := json.Marshal(d)
			f.docs[name][d["id"].(string)] = raw
		}
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("DELETE /indexes/{name}/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		delete(f.docs[r.PathValue("name")], r.PathValue("id"))
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /indexes/{name}/search", func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.searchRequests = append(f.searchRequests, req)
		_, _ = w.Write([]byte(f.searchResponse))
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.failAll {
			http.Error(w, `{"code":"internal"}`, http.StatusInternalServerError)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func testClient(t *testing.T, f *fakeIndex) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(Config{URL: srv.URL + "/", APIKey: "test-key"})
}

func TestEnsureIndexes_Idempotent(t *testing.T) {
	f := newFakeIndex()
	c := testClient(t, f)
	ctx := context.Background()

	if err := c.EnsureIndexes(ctx); err != nil {
		t.Fatalf("first EnsureIndexes: %v", err)
	}
	firstSettings := f.settings[IndexEntries]

	if err := c.EnsureIndexes(ctx); err != nil {
		t.Fatalf("second EnsureIndexes: %v", err)
	}

	if !f.indexes[IndexEntries] || !f.indexes[IndexSolutions] {
		t.Fatalf("indexes not created: %+v", f.indexes)
	}
	got := f.settings[IndexEntries]
	if len(got.SearchableAttributes) != len(firstSettings.SearchableAttributes) {
		t.Errorf("settings changed between calls")
	}
	if got.SearchableAttributes[2] != "symptoms" {
		t.Errorf("unexpected searchable attributes: %v", got.SearchableAttributes)
	}
	if got.RankingRules[0] != "words" || got.RankingRules[5] != "exactness" {
		t.Errorf("unexpected ranking rules: %v", got.RankingRules)
	}
	if f.settings[IndexSolutions].FilterableAttributes[1] != "entry_id" {
		t.Errorf("unexpected solution filterables: %v", f.settings[IndexSolutions].FilterableAttributes)
	}
}

func TestIndexAndDeleteEntry(t *testing.T) {
	f := newFakeIndex()
	c := testClient(t, f)
	ctx := context.Background()

	doc := EntryDocument{ID: "e1", Title: "disk full", Severity: "high"}
	if err := c.IndexEntry(ctx, doc); err != nil {
		t.Fatalf("IndexEntry: %v", err)
	}
	if _, ok := f.docs[IndexEntries]["e1"]; !ok {
		t.Fatal("document not stored")
	}

	if err := c.DeleteEntry(ctx, "e1"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if _, ok := f.docs[IndexEntries]["e1"]; ok {
		t.Fatal("document not deleted")
	}
}

func TestSearchEntries(t *testing.T) {
	f := newFakeIndex()
	f.searchResponse = `{
		"hits": [
			{"id": "e1", "title": "disk full on /var", "severity": "high", "_rankingScore": 0.93},
			{"id": "e2", "title": "disk almost full", "severity": "low", "_rankingScore": 0.55}
		],
		"estimatedTotalHits": 2,
		"processingTimeMs": 3
	}`
	c := testClient(t, f)

	filter := CompileFilters([]Filter{Eq("severity", "high")})
	result, err := c.SearchEntries(context.Background(), "disk full", filter, 20, 0)
	if err != nil {
		t.Fatalf("SearchEntries: %v", err)
	}

	if len(result.Hits) != 2 || result.EstimatedTotalHits != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Hits[0].Title != "disk full on /var" || result.Hits[0].Score != 0.93 {
		t.Errorf("unexpected first hit: %+v", result.Hits[0])
	}

	sent := f.searchRequests[0]
	if sent.Query != "disk full" || !sent.ShowRankingScore {
		t.Errorf("unexpected request: %+v", sent)
	}
	if sent.Filter != `severity = "high"` {
		t.Errorf("unexpected filter: %q", sent.Filter)
	}
}

func TestSearchSolutions_DecodesScore(t *testing.T) {
	f := newFakeIndex()
	f.searchResponse = `{
		"hits": [{"id": "s1", "title": "restart", "solution_type": "workaround", "_rankingScore": 0.8}],
		"estimatedTotalHits": 1
	}`
	c := testClient(t, f)

	result, err := c.SearchSolutions(context.Background(), "restart", "", 10, 0)
	if err != nil {
		t.Fatalf("SearchSolutions: %v", err)
	}
	if result.Hits[0].SolutionType != "workaround" || result.Hits[0].Score != 0.8 {
		t.Errorf("unexpected hit: %+v", result.Hits[0])
	}
}

func TestDo_StatusError(t *testing.T) {
	f := newFakeIndex()
	f.failAll = true
	c := testClient(t, f)

	err := c.IndexEntry(context.Background(), EntryDocument{ID: "e1"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusInternalServerError {
		t.Errorf("unexpected code %d", statusErr.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFakeIndex()
	c := testClient(t, f)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}

	f.failAll = true
	if err := c.Health(context.Background()); err == nil {
		t.Fatal("expected health error")
	}
}
