package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradebazaar/finance-backend/pkg/logger"
)

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: make(map[string]string)}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = fmt.Sprint(value)
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestRouteTTLMatchesSubrouterRoot(t *testing.T) {
	// A handler mounted at "/" under a subrouter reports its pattern
	// with a trailing slash.
	ttl, ok := routeTTL(http.MethodPost, "/api/v1/returns/")
	if !ok {
		t.Fatal("expected return creation to carry a replay cache")
	}
	if ttl != defaultIdempotencyTTL {
		t.Fatalf("expected default TTL, got %s", ttl)
	}

	ttl, ok = routeTTL(http.MethodPost, "/api/v1/wallets/{walletId}/debit")
	if !ok {
		t.Fatal("expected wallet debit to carry a replay cache")
	}
	if ttl != criticalIdempotencyTTL {
		t.Fatalf("expected critical TTL, got %s", ttl)
	}

	if _, ok := routeTTL(http.MethodGet, "/api/v1/returns/"); ok {
		t.Fatal("listing returns must not require an idempotency key")
	}
}

func returnsTestRouter(store *memoryStore, calls *int) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, testLogger()))
		r.Route("/returns", func(r chi.Router) {
			r.Post("/", func(w http.ResponseWriter, req *http.Request) {
				*calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"success":true}`))
			})
		})
	})
	return r
}

func TestIdempotencyGuardsReturnCreation(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	router := returnsTestRouter(store, &calls)

	// No key: the request is rejected before the handler runs.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns", strings.NewReader(`{"a":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a key, got %d", rec.Code)
	}
	if calls != 0 {
		t.Fatal("handler must not run without an idempotency key")
	}

	// First keyed request reaches the handler and caches the response.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/returns", strings.NewReader(`{"a":1}`))
	req.Header.Set("Idempotency-Key", "ret-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}

	// Replaying the same key and body serves the cached response.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/returns", strings.NewReader(`{"a":1}`))
	req.Header.Set("Idempotency-Key", "ret-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("replay must not re-run the handler, got %d calls", calls)
	}
	if body := rec.Body.String(); body != `{"success":true}` {
		t.Fatalf("unexpected replayed body: %s", body)
	}

	// The same key with a different body is a reuse conflict.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/returns", strings.NewReader(`{"a":2}`))
	req.Header.Set("Idempotency-Key", "ret-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a reused key, got %d", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("reused key must not re-run the handler, got %d calls", calls)
	}
}
