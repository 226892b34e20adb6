package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/sheets"
	"expensetracker/internal/storage"
)

type (
	// SyncStore is the slice of the repository the mirror worker needs.
	SyncStore interface {
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
		SyncCategories(ctx context.Context, categories []core.Category) error
		GetPendingSyncTransactions(ctx context.Context, limit int) ([]storage.PendingSyncTransaction, error)
		MarkSynced(ctx context.Context, id int64) error
		MarkSyncError(ctx context.Context, id int64) error
	}

	MirrorRecorder interface {
		MirrorSynced(ok bool)
	}
)

// SyncWorker copies stored transactions to the spreadsheet mirror. It is fed
// by broker messages and, as a backstop, by polling for rows still pending.
type SyncWorker struct {
	store     SyncStore
	mirror    sheets.TransactionMirror
	index     sheets.MirrorIndex
	batchSize int
	interval  time.Duration
	recorder  MirrorRecorder

	namesMu sync.RWMutex
	names   map[core.CategoryID]string

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

type SyncWorkerOption func(*SyncWorker)

// WithMirrorIndex enables the duplicate check before appending a row.
func WithMirrorIndex(index sheets.MirrorIndex) SyncWorkerOption {
	return func(w *SyncWorker) { w.index = index }
}

func WithMirrorRecorder(r MirrorRecorder) SyncWorkerOption {
	return func(w *SyncWorker) { w.recorder = r }
}

// WithPollInterval sets how often Start looks for pending rows.
func WithPollInterval(d time.Duration) SyncWorkerOption {
	return func(w *SyncWorker) { w.interval = d }
}

func NewSyncWorker(store SyncStore, mirror sheets.TransactionMirror, batchSize int, opts ...SyncWorkerOption) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	w := &SyncWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
		interval:  30 * time.Second,
	}
	if idx, ok := mirror.(sheets.MirrorIndex); ok {
		w.index = idx
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleSyncMessage mirrors the transaction named by msg. A returned error
// makes the broker redeliver the message once.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		log.FieldComponent, log.ComponentWorker,
		log.FieldTransactionID, msg.ID,
		log.FieldUserID, msg.UserID)

	tx, err := w.store.GetTransaction(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Sync message for unknown transaction, dropping",
			log.FieldComponent, log.ComponentWorker,
			log.FieldTransactionID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	return w.syncTransaction(ctx, tx)
}

// ProcessPending mirrors up to one batch of transactions not yet synced,
// including earlier failures. It returns how many rows were mirrored.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger pending pass to catch up after downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed",
		log.FieldComponent, log.ComponentWorker,
		"synced", synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.GetPendingSyncTransactions(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending transactions",
		log.FieldComponent, log.ComponentWorker,
		"count", len(pending))

	synced := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		tx, err := w.store.GetTransaction(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load pending transaction",
				log.FieldComponent, log.ComponentWorker,
				log.FieldTransactionID, p.ID,
				log.FieldError, err)
			continue
		}
		if err := w.syncTransaction(ctx, tx); err != nil {
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *SyncWorker) syncTransaction(ctx context.Context, tx core.Transaction) error {
	if w.index != nil {
		present, err := w.index.HasTransaction(ctx, tx.ID)
		if err != nil {
			slog.WarnContext(ctx, "Mirror lookup failed, appending anyway",
				log.FieldComponent, log.ComponentWorker,
				log.FieldTransactionID, tx.ID,
				log.FieldError, err)
		}
		if present {
			slog.InfoContext(ctx, "Transaction already mirrored",
				log.FieldComponent, log.ComponentWorker,
				log.FieldTransactionID, tx.ID)
			return w.markSynced(ctx, tx.ID)
		}
	}

	ref, err := w.mirror.AppendTransaction(ctx, sheets.NewMirrorRow(tx, w.categoryName(ctx, tx.CategoryID)))
	if err != nil {
		w.record(false)
		if markErr := w.store.MarkSyncError(ctx, tx.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				log.FieldComponent, log.ComponentWorker,
				log.FieldTransactionID, tx.ID,
				log.FieldError, markErr)
		}
		slog.ErrorContext(ctx, "Failed to mirror transaction",
			log.FieldComponent, log.ComponentWorker,
			log.FieldTransactionID, tx.ID,
			log.FieldError, err)
		return fmt.Errorf("append to mirror: %w", err)
	}

	w.record(true)
	slog.InfoContext(ctx, "Transaction mirrored",
		log.FieldComponent, log.ComponentWorker,
		log.FieldTransactionID, tx.ID,
		log.FieldSheetsRef, ref)
	return w.markSynced(ctx, tx.ID)
}

// markSynced logs rather than fails: the row is already in the mirror.
func (w *SyncWorker) markSynced(ctx context.Context, id int64) error {
	if err := w.store.MarkSynced(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced",
			log.FieldComponent, log.ComponentWorker,
			log.FieldTransactionID, id,
			log.FieldError, err)
	}
	return nil
}

func (w *SyncWorker) record(ok bool) {
	if w.recorder != nil {
		w.recorder.MirrorSynced(ok)
	}
}

func (w *SyncWorker) categoryName(ctx context.Context, id core.CategoryID) string {
	w.namesMu.RLock()
	name, ok := w.names[id]
	w.namesMu.RUnlock()
	if ok {
		return name
	}

	if err := w.loadCategoryNames(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to load category names",
			log.FieldComponent, log.ComponentWorker,
			log.FieldError, err)
	}
	w.namesMu.RLock()
	defer w.namesMu.RUnlock()
	if name, ok := w.names[id]; ok {
		return name
	}
	return fmt.Sprintf("Category %d", id)
}

func (w *SyncWorker) loadCategoryNames(ctx context.Context) error {
	cats, err := w.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	names := make(map[core.CategoryID]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	w.namesMu.Lock()
	w.names = names
	w.namesMu.Unlock()
	return nil
}

// SyncCategories stores the configured category table so the mirror and the
// reports agree on names, then refreshes the worker's name lookup.
func (w *SyncWorker) SyncCategories(ctx context.Context, categories []core.Category) error {
	if len(categories) > 0 {
		if err := w.store.SyncCategories(ctx, categories); err != nil {
			return fmt.Errorf("sync categories: %w", err)
		}
	}
	if err := w.loadCategoryNames(ctx); err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	slog.InfoContext(ctx, "Categories cached",
		log.FieldComponent, log.ComponentWorker,
		"count", len(categories))
	return nil
}

// Start runs the pending poll loop in the background. It returns an error if
// the loop is already running.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Sync worker started",
		log.FieldComponent, log.ComponentWorker,
		"poll_interval", w.interval,
		"batch_size", w.batchSize)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync worker stopped gracefully", log.FieldComponent, log.ComponentWorker)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out", log.FieldComponent, log.ComponentWorker)
		return ctx.Err()
	}
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Pending sync pass failed",
					log.FieldComponent, log.ComponentWorker,
					log.FieldError, err)
			}
		}
	}
}
