package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	paymentwebhook "github.com/dariovega/shopstream-backend/internal/webhooks/payment"
	"github.com/dariovega/shopstream-backend/pkg/config"
)

func TestPaymentWebhook_SuccessAndIdempotent(t *testing.T) {
	payload := buildPaymentEvent(t, paymentwebhook.EventPaymentCompleted)
	header := signPayload(payload, "secret")
	service := &fakeWebhookService{}
	guard := newGuard(t)
	handler := PaymentWebhook(service, config.WebhookConfig{SigningSecret: "secret"}, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("X-Payment-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req2.Header.Set("X-Payment-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec2.Code)
	}
	if service.calls != 1 {
		t.Fatalf("duplicate should not increment calls, got %d", service.calls)
	}
}

func TestPaymentWebhook_InvalidSignature(t *testing.T) {
	payload := buildPaymentEvent(t, paymentwebhook.EventPaymentCompleted)
	service := &fakeWebhookService{}
	handler := PaymentWebhook(service, config.WebhookConfig{SigningSecret: "secret"}, newGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("X-Payment-Signature", "invalid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestPaymentWebhook_FailureLeavesNoMark(t *testing.T) {
	payload := buildPaymentEvent(t, paymentwebhook.EventPaymentCompleted)
	header := signPayload(payload, "secret")
	service := &fakeWebhookService{err: errors.New("db down")}
	handler := PaymentWebhook(service, config.WebhookConfig{SigningSecret: "secret"}, newGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("X-Payment-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatalf("expected failure status, got 200")
	}

	// The marker is only written after success, so the provider's retry
	// gets processed.
	service.err = nil
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req2.Header.Set("X-Payment-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 2 {
		t.Fatalf("expected two processing attempts, got %d", service.calls)
	}
}

func TestPaymentWebhook_MarkFailureNeverLosesEvent(t *testing.T) {
	payload := buildPaymentEvent(t, paymentwebhook.EventPaymentCompleted)
	header := signPayload(payload, "secret")
	service := &fakeWebhookService{}
	guard, err := paymentwebhook.NewIdempotencyGuard(
		&brokenWriteStore{inMemoryStore: newInMemoryStore()}, time.Minute, "payment-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := PaymentWebhook(service, config.WebhookConfig{SigningSecret: "secret"}, guard, nil)

	// The event is applied even though the marker cannot be stored.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("X-Payment-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite marker write failure, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service invoked once, got %d", service.calls)
	}

	// Without a marker the redelivery is reprocessed, not dropped.
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req2.Header.Set("X-Payment-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", rec2.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected redelivery to reach the service, got %d calls", service.calls)
	}
}

func buildPaymentEvent(t *testing.T, eventType string) []byte {
	t.Helper()
	event := paymentwebhook.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: paymentwebhook.EventData{
			OrderID:   uuid.New(),
			SessionID: "sess_" + uuid.NewString(),
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newGuard(t *testing.T) *paymentwebhook.IdempotencyGuard {
	t.Helper()
	guard, err := paymentwebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "payment-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

type fakeWebhookService struct {
	calls int
	err   error
}

func (f *fakeWebhookService) HandleEvent(ctx context.Context, event *paymentwebhook.Event) error {
	f.calls++
	return f.err
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("ss:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// brokenWriteStore reads fine but cannot persist markers.
type brokenWriteStore struct {
	*inMemoryStore
}

func (s *brokenWriteStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return false, errors.New("redis unavailable")
}
