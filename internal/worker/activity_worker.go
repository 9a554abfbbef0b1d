package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendboard/internal/amqp"
	"spendboard/internal/cache"
	"spendboard/internal/log"
	"spendboard/internal/sheets"
)

// ActivityWorker writes every transaction event to the activity sheet.
// Redeliveries of an event already written are skipped.
type ActivityWorker struct {
	sheets sheets.ActivityWriter
	seen   *cache.LRUCache[string]
}

func NewActivityWorker(w sheets.ActivityWriter) *ActivityWorker {
	return &ActivityWorker{
		sheets: w,
		seen:   cache.NewLRUCache[string](1024, 24*time.Hour),
	}
}

// HandleEvent appends ev. A returned error asks the consumer to requeue.
func (w *ActivityWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	key := eventKey(ev)
	if ref, ok := w.seen.Get(key); ok {
		slog.InfoContext(ctx, "Skipping duplicate transaction event",
			log.FieldAction, ev.Action,
			log.FieldTransactionID, ev.ID,
			log.FieldSheetsRef, ref)
		return nil
	}

	ref, err := w.sheets.AppendActivity(ctx, ev)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	w.seen.Set(key, ref)

	slog.InfoContext(ctx, "Recorded transaction activity",
		log.FieldAction, ev.Action,
		log.FieldTransactionID, ev.ID,
		log.FieldSheetsRef, ref,
		log.FieldAmount, ev.Amount.StringFixed(2))
	return nil
}

// Cleaner lets a cache.Manager expire the duplicate index.
func (w *ActivityWorker) Cleaner() cache.Cleaner {
	return w.seen
}

func eventKey(ev *amqp.TransactionEvent) string {
	return fmt.Sprintf("%s|%s|%d", ev.Action, ev.ID, ev.Timestamp.UnixNano())
}
