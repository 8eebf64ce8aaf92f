package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/timecredit-backend/api/responses"
	pkgerrors "github.com/angelmondragon/timecredit-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func idempotentRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/abc/transitions", strings.NewReader(body))
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, idempotentRequest(`{}`, ""))
		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d", resp.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be stored without a key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, CriticalIdempotencyTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest(`{"status":"completed"}`, "abc"))
	if first.Code != http.StatusAccepted {
		t.Fatalf("expected first response 202 got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest(`{"status":"completed"}`, "abc"))
	if second.Code != http.StatusAccepted {
		t.Fatalf("expected replayed 202 got %d", second.Code)
	}
	if got := second.Body.String(); got != `{"ok":true}` {
		t.Fatalf("unexpected replay body %q", got)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay marker header")
	}
	if calls != 1 {
		t.Fatalf("handler should run once, ran %d", calls)
	}
	for key, ttl := range store.ttls {
		if ttl != CriticalIdempotencyTTL {
			t.Fatalf("expected record %s stored with critical ttl, got %v", key, ttl)
		}
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(`{"status":"completed"}`, "abc"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest(`{"status":"cancelled"}`, "abc"))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var body responses.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, idempotentRequest(`{}`, "abc"))
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(`{}`, "abc"))
	if inner == nil || inner.Code != http.StatusConflict {
		t.Fatalf("expected nested duplicate to get 409")
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest(`{}`, "abc"))
	if first.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", first.Code)
	}
	if len(store.data) != 0 {
		t.Fatalf("claim should be released after a server error")
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest(`{}`, "abc"))
	if second.Code != http.StatusOK || calls != 2 {
		t.Fatalf("expected retry to execute, code=%d calls=%d", second.Code, calls)
	}
}

func TestIdempotencyScopesKeysPerActor(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(`{}`, "abc"))
	other := idempotentRequest(`{}`, "abc")
	other = other.WithContext(WithUserID(other.Context(), "user-2"))
	handler.ServeHTTP(httptest.NewRecorder(), other)

	if calls != 2 {
		t.Fatalf("same key from another actor should execute, calls=%d", calls)
	}
}
