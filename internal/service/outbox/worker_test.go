package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/goleak"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "outbox-test")
}

func orderEvent(id string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-" + id,
		EventType:     domain.EventOrderPlaced,
		Payload:       []byte(`{"status":"placed"}`),
	}
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{orderEvent("msg-1")}}
	publisher := &stubPublisher{}

	worker := NewWorker(repo, publisher, WithLogger(quietLogger()), WithRetryBaseDelay(0))
	result := worker.ProcessOnce(context.Background())

	if result != (BatchResult{Sent: 1}) {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(repo.sentIDs) != 1 || repo.sentIDs[0] != "msg-1" {
		t.Fatalf("expected msg-1 marked sent, got %v", repo.sentIDs)
	}
	if len(repo.failedIDs) != 0 {
		t.Fatalf("expected no failed marks, got %v", repo.failedIDs)
	}
	if got := publisher.calls(); got != 1 {
		t.Fatalf("expected 1 publish call, got %d", got)
	}
}

func TestWorker_ProcessOnce_MarkFailedAndDLQAfterRetries(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{orderEvent("msg-2")}}
	publisher := &stubPublisher{err: errors.New("broker down")}
	dlq := &stubPublisher{}

	worker := NewWorker(repo, publisher,
		WithLogger(quietLogger()),
		WithDLQPublisher(dlq),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)
	result := worker.ProcessOnce(context.Background())

	if result != (BatchResult{Failed: 1}) {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if len(repo.failedIDs) != 1 || repo.failedIDs[0] != "msg-2" {
		t.Fatalf("expected msg-2 marked failed, got %v", repo.failedIDs)
	}

	published := dlq.messages()
	if len(published) != 1 {
		t.Fatalf("expected 1 DLQ publish, got %d", len(published))
	}
	var letter DeadLetter
	if err := json.Unmarshal(published[0].Payload, &letter); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if letter.OutboxID != "msg-2" || letter.EventType != domain.EventOrderPlaced {
		t.Fatalf("unexpected dead letter %+v", letter)
	}
	if letter.PublishError == "" || string(letter.Payload) != `{"status":"placed"}` {
		t.Fatalf("dead letter lost details: %+v", letter)
	}
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{orderEvent("msg-3")}}
	publisher := &stubPublisher{sequence: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil}}

	worker := NewWorker(repo, publisher, WithLogger(quietLogger()), WithRetryBaseDelay(0), WithMaxAttempts(3))
	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if len(repo.sentIDs) != 1 || len(repo.failedIDs) != 0 {
		t.Fatalf("expected sent only, got sent=%v failed=%v", repo.sentIDs, repo.failedIDs)
	}
}

func TestWorker_ProcessOnce_PullErrorIsSkipped(t *testing.T) {
	repo := &stubOutboxRepo{pullErr: domain.ErrPersistenceUnavailable}
	publisher := &stubPublisher{}

	result := NewWorker(repo, publisher, WithLogger(quietLogger())).ProcessOnce(context.Background())
	if result != (BatchResult{}) || publisher.calls() != 0 {
		t.Fatalf("expected no work, got %+v calls=%d", result, publisher.calls())
	}
}

func TestWorker_ProcessOnce_CancelledDuringBackoffLeavesPending(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{orderEvent("msg-4")}}
	publisher := &stubPublisher{err: errors.New("broker down")}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	worker := NewWorker(repo, publisher, WithLogger(quietLogger()), WithRetryBaseDelay(time.Second), WithMaxAttempts(5))
	result := worker.ProcessOnce(ctx)

	if result != (BatchResult{}) {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(repo.failedIDs) != 0 || len(repo.sentIDs) != 0 {
		t.Fatalf("cancelled publish must stay pending, got sent=%v failed=%v", repo.sentIDs, repo.failedIDs)
	}
}

func TestWorker_RetryBackoffIsCapped(t *testing.T) {
	worker := NewWorker(&stubOutboxRepo{}, &stubPublisher{}, WithRetryBaseDelay(100*time.Millisecond))

	cases := map[int]time.Duration{
		1:  100 * time.Millisecond,
		2:  200 * time.Millisecond,
		3:  400 * time.Millisecond,
		10: maxRetryDelay,
		70: maxRetryDelay,
	}
	for attempt, want := range cases {
		if got := worker.retryBackoff(attempt); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}

	if got := NewWorker(&stubOutboxRepo{}, &stubPublisher{}, WithRetryBaseDelay(0)).retryBackoff(3); got != 0 {
		t.Fatalf("expected no delay, got %s", got)
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	worker := NewWorker(&stubOutboxRepo{}, &stubPublisher{},
		WithLogger(quietLogger()),
		WithPollInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestWorker_Run_DisabledWithoutPublisher(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewWorker(&stubOutboxRepo{}, nil, WithLogger(quietLogger())).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker without publisher must return immediately")
	}
}

func TestWorker_PublishesCartEventsInCommitOrder(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Customers().Create(ctx, domain.Customer{ID: "c-1", Username: "alice"}); err != nil {
			return err
		}
		return tx.Products().Create(ctx, domain.Product{ID: "p-1", Name: "Apple", PriceMinor: 100, Stock: 5})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	engine := cart.NewEngine(store, cart.WithLogger(quietLogger()))
	if _, err := engine.AddItem(ctx, "c-1", "p-1", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := engine.PlaceOrder(ctx, "c-1"); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	publisher := &stubPublisher{}
	worker := NewWorker(store.Outbox(), publisher, WithLogger(quietLogger()))
	if result := worker.ProcessOnce(ctx); result.Sent != 2 {
		t.Fatalf("expected 2 sent events, got %+v", result)
	}

	published := publisher.messages()
	if published[0].EventType != domain.EventCartItemAdded || published[1].EventType != domain.EventOrderPlaced {
		t.Fatalf("unexpected event order: %s, %s", published[0].EventType, published[1].EventType)
	}

	stats, err := store.Outbox().Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected empty backlog, got %d", stats.PendingCount)
	}
	if result := worker.ProcessOnce(ctx); result != (BatchResult{}) {
		t.Fatalf("sent events must not be published twice, got %+v", result)
	}
}

type stubOutboxRepo struct {
	mu        sync.Mutex
	pending   []domain.OutboxMessage
	pullErr   error
	sentIDs   []string
	failedIDs []string
}

func (s *stubOutboxRepo) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pullErr != nil {
		return nil, s.pullErr
	}
	if limit <= 0 || limit >= len(s.pending) {
		return append([]domain.OutboxMessage(nil), s.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), s.pending[:limit]...), nil
}

func (s *stubOutboxRepo) Stats(context.Context) (domain.OutboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.OutboxStats{PendingCount: len(s.pending)}
	if len(s.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (s *stubOutboxRepo) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedIDs = append(s.failedIDs, id)
	return nil
}

type stubPublisher struct {
	mu        sync.Mutex
	err       error
	sequence  []error
	callCount int
	published []domain.OutboxMessage
}

func (s *stubPublisher) Publish(msg domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	err := s.err
	if len(s.sequence) > 0 {
		err = s.sequence[0]
		s.sequence = s.sequence[1:]
	}
	if err == nil {
		s.published = append(s.published, msg)
	}
	return err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubPublisher) messages() []domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxMessage(nil), s.published...)
}

var (
	_ domain.OutboxRepository = (*stubOutboxRepo)(nil)
	_ domain.OutboxPublisher  = (*stubPublisher)(nil)
)
