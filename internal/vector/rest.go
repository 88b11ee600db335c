package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RESTIndex talks to Qdrant over its HTTP/JSON API.
type RESTIndex struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRESTIndex creates a client for the Qdrant REST API at baseURL (e.g. http://localhost:6333).
func NewRESTIndex(baseURL, apiKey string, timeout time.Duration) *RESTIndex {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTIndex{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the transport name.
func (r *RESTIndex) Name() string { return "rest" }

type restEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status any             `json:"status"`
}

// statusError is a non-2xx response from the server.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant returned %d: %s", e.code, e.body)
}

func (r *RESTIndex) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("api-key", r.apiKey)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %v", ErrUnavailable, &statusError{code: resp.StatusCode, body: string(data)})
	}
	if resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: string(data)}
	}
	if out == nil {
		return nil
	}
	var env restEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

func collectionPath(name string, suffix string) string {
	return "/collections/" + url.PathEscape(name) + suffix
}

func statusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

// mapNotFound converts a 404 into ErrCollectionNotFound.
func mapNotFound(err error) error {
	if statusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrCollectionNotFound, err)
	}
	return err
}

// Exists reports whether the collection exists.
func (r *RESTIndex) Exists(ctx context.Context, collection string) (bool, error) {
	err := r.do(ctx, http.MethodGet, collectionPath(collection, ""), nil, nil)
	if err == nil {
		return true, nil
	}
	if statusCode(err) == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// Create creates a cosine-distance collection.
func (r *RESTIndex) Create(ctx context.Context, collection string, dimensions int) error {
	body := map[string]any{
		"vectors": map[string]any{"size": dimensions, "distance": "Cosine"},
	}
	err := r.do(ctx, http.MethodPut, collectionPath(collection, ""), body, nil)
	if err == nil {
		return nil
	}
	var se *statusError
	if errors.As(err, &se) && (se.code == http.StatusConflict || strings.Contains(se.body, "already exists")) {
		return ErrCollectionExists
	}
	return err
}

// Delete drops the collection.
func (r *RESTIndex) Delete(ctx context.Context, collection string) error {
	err := r.do(ctx, http.MethodDelete, collectionPath(collection, ""), nil, nil)
	if statusCode(err) == http.StatusNotFound {
		return nil
	}
	return err
}

type restPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Upsert writes points and waits for them to be applied.
func (r *RESTIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := struct {
		Points []restPoint `json:"points"`
	}{Points: make([]restPoint, len(points))}
	for i, p := range points {
		body.Points[i] = restPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	return mapNotFound(r.do(ctx, http.MethodPut, collectionPath(collection, "/points?wait=true"), body, nil))
}

type restHit struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search returns the k nearest points with payloads.
func (r *RESTIndex) Search(ctx context.Context, collection string, query []float32, k int) ([]Hit, error) {
	body := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
	}
	var result []restHit
	if err := r.do(ctx, http.MethodPost, collectionPath(collection, "/points/search"), body, &result); err != nil {
		return nil, mapNotFound(err)
	}
	hits := make([]Hit, len(result))
	for i, h := range result {
		hits[i] = Hit{ID: fmt.Sprint(h.ID), Score: h.Score, Payload: h.Payload}
	}
	return hits, nil
}

// Count returns the exact number of points.
func (r *RESTIndex) Count(ctx context.Context, collection string) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	if err := r.do(ctx, http.MethodPost, collectionPath(collection, "/points/count"), map[string]any{"exact": true}, &result); err != nil {
		return 0, mapNotFound(err)
	}
	return result.Count, nil
}

// Ping checks that the server answers.
func (r *RESTIndex) Ping(ctx context.Context) error {
	return r.do(ctx, http.MethodGet, "/", nil, nil)
}

// Close releases idle connections.
func (r *RESTIndex) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
