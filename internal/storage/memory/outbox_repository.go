package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	seq        int64
	status     string
	attemptCnt int
	updatedAt  time.Time
}

// outboxWriterInMemory пишет в outbox внутри транзакции операции.
type outboxWriterInMemory struct {
	st  *state
	now func() time.Time
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его с идентификатором.
func (w *outboxWriterInMemory) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := w.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	w.st.outboxSeq++
	w.st.outbox[msg.ID] = outboxRecord{
		msg:       msg,
		seq:       w.st.outboxSeq,
		status:    outboxStatusPending,
		updatedAt: now,
	}
	return msg, nil
}

// outboxRepositoryInMemory обслуживает воркер публикации поверх зафиксированного состояния.
type outboxRepositoryInMemory struct {
	store *Store
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке записи.
func (r *outboxRepositoryInMemory) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []outboxRecord
	r.store.read(func(st *state) {
		for _, rec := range st.outbox {
			if rec.status == outboxStatusPending {
				records = append(records, rec)
			}
		}
	})

	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })
	if len(records) > limit {
		records = records[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(records))
	for _, rec := range records {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *outboxRepositoryInMemory) Stats(_ context.Context) (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	r.store.read(func(st *state) {
		for _, rec := range st.outbox {
			if rec.status != outboxStatusPending {
				continue
			}
			stats.PendingCount++
			if stats.OldestPendingAt.IsZero() || rec.msg.CreatedAt.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = rec.msg.CreatedAt
			}
		}
	})
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepositoryInMemory) MarkSent(_ context.Context, id string) error {
	return r.mark(id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepositoryInMemory) MarkFailed(_ context.Context, id string) error {
	return r.mark(id, outboxStatusFailed)
}

func (r *outboxRepositoryInMemory) mark(id, status string) error {
	return r.store.write(func(st *state) error {
		record, ok := st.outbox[id]
		if !ok {
			return domain.ErrOutboxPublish
		}
		record.status = status
		record.attemptCnt++
		record.updatedAt = r.store.now()
		st.outbox[id] = record
		return nil
	})
}

var (
	_ domain.OutboxWriter     = (*outboxWriterInMemory)(nil)
	_ domain.OutboxRepository = (*outboxRepositoryInMemory)(nil)
)
