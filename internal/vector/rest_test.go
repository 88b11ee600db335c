package vector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeQdrant serves a subset of the Qdrant REST API backed by a MemoryIndex.
type fakeQdrant struct {
	idx    *MemoryIndex
	apiKey string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if f.apiKey != "" && r.Header.Get("api-key") != f.apiKey {
		http.Error(w, `{"status":{"error":"unauthorized"}}`, http.StatusForbidden)
		return
	}
	if r.URL.Path == "/" {
		writeResult(w, map[string]string{"title": "qdrant"})
		return
	}
	rest, ok := strings.CutPrefix(r.URL.Path, "/collections/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	name, sub, _ := strings.Cut(rest, "/")
	switch {
	case sub == "" && r.Method == http.MethodGet:
		if ok, _ := f.idx.Exists(ctx, name); !ok {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		writeResult(w, map[string]string{"status": "green"})
	case sub == "" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Vectors.Distance != "Cosine" {
			http.Error(w, `{"status":{"error":"bad distance"}}`, http.StatusBadRequest)
			return
		}
		if err := f.idx.Create(ctx, name, body.Vectors.Size); err != nil {
			http.Error(w, `{"status":{"error":"Wrong input: Collection already exists!"}}`, http.StatusBadRequest)
			return
		}
		writeResult(w, true)
	case sub == "" && r.Method == http.MethodDelete:
		_ = f.idx.Delete(ctx, name)
		writeResult(w, true)
	case sub == "points" && r.Method == http.MethodPut:
		var body struct {
			Points []restPoint `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		pts := make([]Point, len(body.Points))
		for i, p := range body.Points {
			pts[i] = Point{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
		}
		if err := f.idx.Upsert(ctx, name, pts); err != nil {
			writeIndexError(w, err)
			return
		}
		writeResult(w, map[string]string{"status": "completed"})
	case sub == "points/search":
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		hits, err := f.idx.Search(ctx, name, body.Vector, body.Limit)
		if err != nil {
			writeIndexError(w, err)
			return
		}
		out := make([]restHit, len(hits))
		for i, h := range hits {
			out[i] = restHit{ID: h.ID, Score: h.Score, Payload: h.Payload}
		}
		writeResult(w, out)
	case sub == "points/count":
		n, err := f.idx.Count(ctx, name)
		if err != nil {
			writeIndexError(w, err)
			return
		}
		writeResult(w, map[string]int{"count": n})
	default:
		http.NotFound(w, r)
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok", "time": 0.001})
}

func writeIndexError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrCollectionNotFound) {
		http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
		return
	}
	http.Error(w, `{"status":{"error":"`+err.Error()+`"}}`, http.StatusBadRequest)
}

func newFakeQdrant(t *testing.T, apiKey string) (*httptest.Server, *MemoryIndex) {
	t.Helper()
	idx := NewMemoryIndex()
	srv := httptest.NewServer(&fakeQdrant{idx: idx, apiKey: apiKey})
	t.Cleanup(srv.Close)
	return srv, idx
}

func TestRESTIndex_Lifecycle(t *testing.T) {
	srv, _ := newFakeQdrant(t, "secret")
	r := NewRESTIndex(srv.URL+"/", "secret", 0)
	ctx := context.Background()

	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if ok, err := r.Exists(ctx, "vid"); err != nil || ok {
		t.Fatalf("Exists before create: %v, %v", ok, err)
	}
	if err := r.Create(ctx, "vid", 2); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create(ctx, "vid", 2); !errors.Is(err, ErrCollectionExists) {
		t.Errorf("second Create: %v, want ErrCollectionExists", err)
	}
	if ok, err := r.Exists(ctx, "vid"); err != nil || !ok {
		t.Fatalf("Exists after create: %v, %v", ok, err)
	}
	pts := []Point{
		{ID: "11111111-1111-1111-1111-111111111111", Vector: []float32{1, 0}, Payload: map[string]any{"content": "first", "start_time": 1.5}},
		{ID: "22222222-2222-2222-2222-222222222222", Vector: []float32{0, 1}, Payload: map[string]any{"content": "second"}},
	}
	if err := r.Upsert(ctx, "vid", pts); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n, err := r.Count(ctx, "vid"); err != nil || n != 2 {
		t.Fatalf("Count: %d, %v", n, err)
	}
	hits, err := r.Search(ctx, "vid", []float32{1, 0.1}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Payload["content"] != "first" || hits[0].Payload["start_time"] != 1.5 {
		t.Errorf("Search hits = %+v", hits)
	}
	if err := r.Delete(ctx, "vid"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Count(ctx, "vid"); !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("Count after delete: %v, want ErrCollectionNotFound", err)
	}
}

func TestRESTIndex_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	r := NewRESTIndex(srv.URL, "", 0)
	if _, err := r.Count(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("5xx: %v, want ErrUnavailable", err)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	r = NewRESTIndex(url, "", 0)
	if err := r.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("connection refused: %v, want ErrUnavailable", err)
	}
}

func TestRESTIndex_ClientErrorIsNotUnavailable(t *testing.T) {
	srv, _ := newFakeQdrant(t, "secret")
	r := NewRESTIndex(srv.URL, "wrong", 0)
	err := r.Ping(context.Background())
	if err == nil || errors.Is(err, ErrUnavailable) {
		t.Errorf("403: %v, want non-transport error", err)
	}
}
