package reconciler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/coinpay/backend/internal/config"
	"github.com/coinpay/backend/internal/events"
	"github.com/coinpay/backend/internal/models"
	"github.com/coinpay/backend/internal/services"
	"github.com/google/uuid"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		PaymentTolerance:   0.01,
		SettleMaxAttempts:  3,
		SettlementChains:   []string{"BTC", "ETH", "SOL"},
		PaymentBatch:       100,
		EscrowExpiryBatch:  50,
		EscrowFundingBatch: 50,
		EscrowRefundBatch:  20,
		SettlementBatch:    50,
		SeriesBatch:        20,
	}
}

// memStore implements the reconciler stores over maps with the same
// compare-and-swap semantics as the SQL repositories.
type memStore struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*models.Payment
	escrows  map[uuid.UUID]*models.Escrow
	series   map[uuid.UUID]*models.EscrowSeries
	events   []models.EscrowEvent
	receipts []models.Receipt
	paidTier map[uuid.UUID]bool

	pingErr    error
	listErr    error
	receiptErr error
	recordErr  error
}

func newMemStore() *memStore {
	return &memStore{
		payments: make(map[uuid.UUID]*models.Payment),
		escrows:  make(map[uuid.UUID]*models.Escrow),
		series:   make(map[uuid.UUID]*models.EscrowSeries),
		paidTier: make(map[uuid.UUID]bool),
	}
}

func (s *memStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *memStore) addPayment(p models.Payment) *models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}
	s.payments[p.ID] = &p
	return &p
}

func (s *memStore) payment(id uuid.UUID) models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.payments[id]
}

func (s *memStore) addEscrow(e models.Escrow) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.escrows[e.ID] = &e
	return e.ID
}

func (s *memStore) escrow(id uuid.UUID) models.Escrow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.escrows[id]
}

func (s *memStore) eventsFor(id uuid.UUID, eventType string) []models.EscrowEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EscrowEvent
	for _, ev := range s.events {
		if ev.EscrowID == id && ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (s *memStore) addSeries(sr models.EscrowSeries) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sr.ID == uuid.Nil {
		sr.ID = uuid.New()
	}
	if sr.Status == "" {
		sr.Status = models.SeriesStatusActive
	}
	s.series[sr.ID] = &sr
	return sr.ID
}

func (s *memStore) seriesByID(id uuid.UUID) models.EscrowSeries {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.series[id]
}

// PaymentStore

func (s *memStore) ListPending(ctx context.Context, limit int) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Payment
	for _, p := range s.payments {
		if p.Status == models.PaymentStatusPending {
			out = append(out, *p)
		}
	}
	return capped(out, limit), nil
}

func (s *memStore) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		if p.Status != models.PaymentStatusPending {
			return false, nil
		}
		p.Status = models.PaymentStatusExpired
		return true, nil
	}
	e, ok := s.escrows[id]
	if !ok || e.Status != models.EscrowStatusCreated {
		return false, nil
	}
	e.Status = models.EscrowStatusExpired
	return true, nil
}

func (s *memStore) MarkConfirmed(ctx context.Context, id uuid.UUID, received float64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return false, nil
	}
	p.Status = models.PaymentStatusConfirmed
	p.ReceivedAmount = &received
	p.ConfirmedAt = &at
	return true, nil
}

// EscrowStore

func (s *memStore) listEscrows(limit int, match func(e *models.Escrow) bool) ([]models.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Escrow
	for _, e := range s.escrows {
		if match(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return capped(out, limit), nil
}

func (s *memStore) ListCreatedExpired(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error) {
	return s.listEscrows(limit, func(e *models.Escrow) bool {
		return e.Status == models.EscrowStatusCreated && e.ExpiresAt.Before(now)
	})
}

func (s *memStore) ListCreatedActive(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error) {
	return s.listEscrows(limit, func(e *models.Escrow) bool {
		return e.Status == models.EscrowStatusCreated && !e.ExpiresAt.Before(now)
	})
}

func (s *memStore) ListFundedExpired(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error) {
	return s.listEscrows(limit, func(e *models.Escrow) bool {
		return e.Status == models.EscrowStatusFunded && e.ExpiresAt.Before(now)
	})
}

// The settlement lists ignore the chain allowlist so the in-code skip is exercised.
func (s *memStore) ListReleasedForSettlement(ctx context.Context, chains []string, maxAttempts, limit int) ([]models.Escrow, error) {
	return s.listEscrows(limit, func(e *models.Escrow) bool {
		return e.Status == models.EscrowStatusReleased && e.SettleAttempts < maxAttempts
	})
}

func (s *memStore) ListRefundsPendingSettlement(ctx context.Context, chains []string, maxAttempts, limit int) ([]models.Escrow, error) {
	return s.listEscrows(limit, func(e *models.Escrow) bool {
		return e.Status == models.EscrowStatusRefunded && e.SettlementTxHash == nil && e.SettleAttempts < maxAttempts
	})
}

func (s *memStore) ListStuckRefunds(ctx context.Context, maxAttempts, limit int) ([]models.Escrow, error) {
	return s.listEscrows(limit, func(e *models.Escrow) bool {
		return e.Status == models.EscrowStatusRefunded && e.SettlementTxHash == nil && e.SettleAttempts >= maxAttempts
	})
}

func (s *memStore) MarkFunded(ctx context.Context, id uuid.UUID, deposited float64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[id]
	if !ok || e.Status != models.EscrowStatusCreated {
		return false, nil
	}
	e.Status = models.EscrowStatusFunded
	e.DepositedAmount = &deposited
	e.FundedAt = &at
	return true, nil
}

func (s *memStore) MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[id]
	if !ok || e.Status != models.EscrowStatusFunded {
		return false, nil
	}
	e.Status = models.EscrowStatusRefunded
	e.RefundedAt = &at
	return true, nil
}

func (s *memStore) RecordSettleFailure(ctx context.Context, id uuid.UUID, status string, seen int, newStatus string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return false, s.recordErr
	}
	e, ok := s.escrows[id]
	if !ok || e.Status != status || e.SettleAttempts != seen {
		return false, nil
	}
	e.SettleAttempts = seen + 1
	e.Status = newStatus
	return true, nil
}

func (s *memStore) AppendEvent(ctx context.Context, ev models.EscrowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) SaveReceipt(ctx context.Context, rc models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiptErr != nil {
		return s.receiptErr
	}
	s.receipts = append(s.receipts, rc)
	return nil
}

// SeriesStore

func (s *memStore) ListDue(ctx context.Context, now time.Time, limit int) ([]models.EscrowSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.EscrowSeries
	for _, sr := range s.series {
		if sr.Status == models.SeriesStatusActive && !sr.NextChargeAt.After(now) {
			out = append(out, *sr)
		}
	}
	return capped(out, limit), nil
}

func (s *memStore) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.series[id]
	if !ok || sr.Status != models.SeriesStatusActive {
		return false, nil
	}
	sr.Status = models.SeriesStatusCompleted
	return true, nil
}

func (s *memStore) Advance(ctx context.Context, id uuid.UUID, seenPeriods int, next time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.series[id]
	if !ok || sr.Status != models.SeriesStatusActive || sr.PeriodsCompleted != seenPeriods {
		return false, nil
	}
	sr.PeriodsCompleted = seenPeriods + 1
	sr.NextChargeAt = next
	return true, nil
}

func (s *memStore) MerchantPaidTier(ctx context.Context, merchantID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paidTier[merchantID], nil
}

func capped[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

// fakeOracle returns a fixed balance per address and counts calls.
type fakeOracle struct {
	mu       sync.Mutex
	balances map[string]float64
	calls    map[string]int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{balances: make(map[string]float64), calls: make(map[string]int)}
}

func (o *fakeOracle) CheckBalance(ctx context.Context, address, chain string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[address]++
	return o.balances[address]
}

func (o *fakeOracle) callCount(address string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[address]
}

type sentWebhook struct {
	businessID uuid.UUID
	event      string
	data       map[string]any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentWebhook
}

func (n *fakeNotifier) Dispatch(ctx context.Context, businessID uuid.UUID, event string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentWebhook{businessID: businessID, event: event, data: data})
	return nil
}

func (n *fakeNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, w := range n.sent {
		if w.event == event {
			c++
		}
	}
	return c
}

type settleCall struct {
	id     uuid.UUID
	refund bool
}

// fakePlatform fails every call while err is set.
type fakePlatform struct {
	mu        sync.Mutex
	err       error
	settles   []settleCall
	forwards  []uuid.UUID
	creates   []services.CreateEscrowParams
	paidTiers []bool
}

func (p *fakePlatform) TriggerSettlement(ctx context.Context, escrowID uuid.UUID, refund bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settles = append(p.settles, settleCall{id: escrowID, refund: refund})
	return p.err
}

func (p *fakePlatform) ForwardPayment(ctx context.Context, paymentID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forwards = append(p.forwards, paymentID)
	return p.err
}

func (p *fakePlatform) CreateEscrow(ctx context.Context, params services.CreateEscrowParams, paidTier bool) (*services.CreateEscrowResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates = append(p.creates, params)
	p.paidTiers = append(p.paidTiers, paidTier)
	if p.err != nil {
		return nil, p.err
	}
	return &services.CreateEscrowResult{Success: true, Escrow: &models.Escrow{ID: uuid.New()}}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, stream string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(typ string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

var errUpstream = errors.New("upstream 502")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptr[T any](v T) *T { return &v }
