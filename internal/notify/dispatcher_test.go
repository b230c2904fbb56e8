package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coinpay/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

type memWebhookStore struct {
	mu      sync.Mutex
	configs map[uuid.UUID]*models.WebhookConfig
	logs    []models.WebhookDeliveryLog
	lookErr error
}

func (s *memWebhookStore) GetWebhookConfig(ctx context.Context, businessID uuid.UUID) (*models.WebhookConfig, error) {
	if s.lookErr != nil {
		return nil, s.lookErr
	}
	return s.configs[businessID], nil
}

func (s *memWebhookStore) LogDelivery(ctx context.Context, entry models.WebhookDeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func TestDispatchSignsAndLogs(t *testing.T) {
	var (
		gotHeader string
		gotBody   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	businessID := uuid.New()
	store := &memWebhookStore{configs: map[uuid.UUID]*models.WebhookConfig{
		businessID: {BusinessID: businessID, URL: srv.URL, Secret: "whsec"},
	}}
	d := NewDispatcher(store, srv.Client(), zaptest.NewLogger(t))
	fixed := time.Unix(1760000000, 0)
	d.now = func() time.Time { return fixed }

	err := d.Dispatch(context.Background(), businessID, models.WebhookPaymentConfirmed, map[string]any{"payment_id": "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := Verify(gotHeader, gotBody, "whsec", time.Minute, fixed); err != nil {
		t.Fatalf("receiver could not verify signature: %v", err)
	}
	if err := Verify(gotHeader, gotBody, "wrong", time.Minute, fixed); err == nil {
		t.Fatal("verification with wrong secret should fail")
	}

	var env Envelope
	if err := json.Unmarshal(gotBody, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != models.WebhookPaymentConfirmed || env.BusinessID != businessID.String() || env.Data["payment_id"] != "p1" {
		t.Errorf("unexpected envelope %+v", env)
	}
	if len(env.ID) < 5 || env.ID[:4] != "evt_" {
		t.Errorf("envelope id %q should be evt_ prefixed", env.ID)
	}

	if len(store.logs) != 1 || !store.logs[0].Success || store.logs[0].StatusCode != http.StatusOK {
		t.Fatalf("unexpected delivery log %+v", store.logs)
	}
}

func TestDispatchFailureIsLoggedNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	businessID := uuid.New()
	store := &memWebhookStore{configs: map[uuid.UUID]*models.WebhookConfig{
		businessID: {URL: srv.URL, Secret: "s"},
	}}
	d := NewDispatcher(store, srv.Client(), zaptest.NewLogger(t))

	if err := d.Dispatch(context.Background(), businessID, models.WebhookPaymentExpired, nil); err == nil {
		t.Fatal("expected delivery error")
	}
	if calls != 1 {
		t.Errorf("webhook called %d times, want 1", calls)
	}
	if len(store.logs) != 1 || store.logs[0].Success || store.logs[0].StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected delivery log %+v", store.logs)
	}
}

func TestDispatchWithoutConfigIsNoop(t *testing.T) {
	store := &memWebhookStore{configs: map[uuid.UUID]*models.WebhookConfig{}}
	d := NewDispatcher(store, nil, zaptest.NewLogger(t))
	if err := d.Dispatch(context.Background(), uuid.New(), models.WebhookEscrowFunded, nil); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if len(store.logs) != 0 {
		t.Errorf("no delivery should be logged, got %d", len(store.logs))
	}
}

func TestDispatchLookupError(t *testing.T) {
	store := &memWebhookStore{lookErr: errors.New("db down")}
	d := NewDispatcher(store, nil, zaptest.NewLogger(t))
	if err := d.Dispatch(context.Background(), uuid.New(), models.WebhookEscrowFunded, nil); err == nil {
		t.Fatal("expected lookup error")
	}
}
