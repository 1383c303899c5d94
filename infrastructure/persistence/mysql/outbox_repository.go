package mysql

import (
	"context"
	"fmt"
	"time"

	"ordercore/domain/shared"
	"ordercore/infrastructure/outbox"
	"ordercore/infrastructure/persistence"
	"ordercore/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
)

// OutboxRepository outbox_events 表。SaveEvent 在 UnitOfWork 事务内调用，
// 其余方法由 relay worker 在事务外调用，每个状态变更都是单条条件 UPDATE。
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *OutboxRepository) SaveEvent(ctx context.Context, event shared.DomainEvent) error {
	row, err := po.FromDomainEvent(event)
	if err != nil {
		return err
	}
	if err := r.getDB(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert outbox event %s: %w", row.EventType, err)
	}
	return nil
}

// GetPendingEvents oldest first
func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]outbox.Event, error) {
	var rows []po.OutboxEventPO
	err := r.getDB(ctx).
		Where("status = ?", string(outbox.StatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load pending outbox events: %w", err)
	}
	events := make([]outbox.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].ToEvent()
	}
	return events, nil
}

func (r *OutboxRepository) setStatus(ctx context.Context, where string, args []any, values map[string]any) (int64, error) {
	values["updated_at"] = time.Now().UTC()
	result := r.getDB(ctx).Model(&po.OutboxEventPO{}).Where(where, args...).Updates(values)
	return result.RowsAffected, result.Error
}

func (r *OutboxRepository) MarkEventProcessing(ctx context.Context, eventID string) error {
	n, err := r.setStatus(ctx, "id = ? AND status = ?", []any{eventID, string(outbox.StatusPending)},
		map[string]any{"status": string(outbox.StatusProcessing)})
	if err != nil {
		return fmt.Errorf("claim outbox event %s: %w", eventID, err)
	}
	if n == 0 {
		return outbox.ErrAlreadyClaimed
	}
	return nil
}

func (r *OutboxRepository) MarkEventPublished(ctx context.Context, eventID string) error {
	n, err := r.setStatus(ctx, "id = ?", []any{eventID},
		map[string]any{"status": string(outbox.StatusPublished)})
	if err != nil {
		return fmt.Errorf("mark outbox event %s published: %w", eventID, err)
	}
	if n == 0 {
		return fmt.Errorf("outbox event not found: %s", eventID)
	}
	return nil
}

// status 先于 retry_count 赋值：MySQL 按从左到右求值 SET，CASE 要看到旧的计数
const markFailedSQL = `UPDATE outbox_events
SET status = CASE WHEN retry_count + 1 < ? THEN ? ELSE ? END,
    retry_count = retry_count + 1,
    updated_at = ?
WHERE id = ?`

func (r *OutboxRepository) MarkEventFailed(ctx context.Context, eventID string, maxRetries int) error {
	result := r.getDB(ctx).Exec(markFailedSQL,
		maxRetries, string(outbox.StatusPending), string(outbox.StatusFailed), time.Now().UTC(), eventID)
	if result.Error != nil {
		return fmt.Errorf("mark outbox event %s failed: %w", eventID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("outbox event not found: %s", eventID)
	}
	return nil
}

func (r *OutboxRepository) ReclaimStale(ctx context.Context, before time.Time) (int, error) {
	n, err := r.setStatus(ctx, "status = ? AND updated_at < ?", []any{string(outbox.StatusProcessing), before},
		map[string]any{"status": string(outbox.StatusPending)})
	if err != nil {
		return 0, fmt.Errorf("reclaim outbox events: %w", err)
	}
	return int(n), nil
}

var (
	_ shared.OutboxRepository = (*OutboxRepository)(nil)
	_ outbox.Store            = (*OutboxRepository)(nil)
)
