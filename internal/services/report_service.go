package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

type (
	ReportStore interface {
		MonthlyExpenseTotals(ctx context.Context, userID int64) ([]core.MonthlyTotal, error)
		MonthlyTotals(ctx context.Context, userID int64) ([]core.MonthlyTotal, error)
		CategoryTotals(ctx context.Context, userID int64) ([]core.CategoryTotal, error)
	}

	CacheRecorder interface {
		CacheLookup(hit bool)
	}
)

// Dashboard bundles every report shown on the report page. Forecast is nil
// when there is not enough data.
type Dashboard struct {
	Monthly    []core.MonthlyTotal
	Categories []core.CategoryTotal
	Forecast   *core.Forecast
}

// ReportService computes per-user aggregates and caches them until the user
// records a new transaction or the entry expires.
type ReportService struct {
	store    ReportStore
	cache    cache.Cache[any]
	loads    singleflight.Group
	recorder CacheRecorder

	// mu guards generations and orders cache writes against Invalidate.
	mu          sync.Mutex
	generations map[int64]uint64
}

var reportNames = []string{"monthly", "category", "forecast"}

func NewReportService(store ReportStore, c cache.Cache[any], recorder CacheRecorder) *ReportService {
	return &ReportService{store: store, cache: c, recorder: recorder, generations: make(map[int64]uint64)}
}

func userPrefix(userID int64) string {
	return fmt.Sprintf("user:%d:", userID)
}

// cached returns the value under key, loading and storing it on a miss.
// Concurrent misses for the same key share one load, which runs detached
// from any single caller's cancellation. A load that overlaps Invalidate
// still answers its callers but is not cached.
func cached[T any](ctx context.Context, s *ReportService, userID int64, name string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	key := userPrefix(userID) + name
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if typed, ok := v.(T); ok {
				s.record(true)
				return typed, nil
			}
		}
		s.record(false)
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(key, func() (any, error) {
		gen := s.generation(userID)
		res, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.remember(userID, gen, key, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func (s *ReportService) generation(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// remember caches res unless the user's reports were invalidated since gen.
func (s *ReportService) remember(userID int64, gen uint64, key string, res any) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[userID] != gen {
		return
	}
	s.cache.Set(key, res)
}

func (s *ReportService) record(hit bool) {
	if s.recorder != nil {
		s.recorder.CacheLookup(hit)
	}
}

// Monthly returns expense totals per month, oldest first.
func (s *ReportService) Monthly(ctx context.Context, userID int64) ([]core.MonthlyTotal, error) {
	return cached(ctx, s, userID, "monthly", func(ctx context.Context) ([]core.MonthlyTotal, error) {
		totals, err := s.store.MonthlyExpenseTotals(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("monthly report: %w", err)
		}
		return totals, nil
	})
}

// ByCategory returns expense totals per category, largest first.
func (s *ReportService) ByCategory(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	return cached(ctx, s, userID, "category", func(ctx context.Context) ([]core.CategoryTotal, error) {
		totals, err := s.store.CategoryTotals(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("category report: %w", err)
		}
		return totals, nil
	})
}

// Forecast predicts next month's spending over all transactions.
// It returns core.ErrNotEnoughData when the user has no transactions.
func (s *ReportService) Forecast(ctx context.Context, userID int64) (core.Forecast, error) {
	return cached(ctx, s, userID, "forecast", func(ctx context.Context) (core.Forecast, error) {
		totals, err := s.store.MonthlyTotals(ctx, userID)
		if err != nil {
			return core.Forecast{}, fmt.Errorf("forecast totals: %w", err)
		}
		return core.ForecastNextMonth(totals)
	})
}

// Dashboard loads all reports concurrently.
func (s *ReportService) Dashboard(ctx context.Context, userID int64) (Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		d.Monthly, err = s.Monthly(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		d.Categories, err = s.ByCategory(gctx, userID)
		return err
	})
	g.Go(func() error {
		f, err := s.Forecast(gctx, userID)
		if errors.Is(err, core.ErrNotEnoughData) {
			return nil
		}
		if err != nil {
			return err
		}
		d.Forecast = &f
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// Invalidate implements ReportInvalidator. Loads already in flight for the
// user are forgotten so later callers start a fresh one.
func (s *ReportService) Invalidate(userID int64) {
	s.mu.Lock()
	s.generations[userID]++
	n := 0
	if s.cache != nil {
		n = s.cache.DeletePrefix(userPrefix(userID))
	}
	s.mu.Unlock()

	for _, name := range reportNames {
		s.loads.Forget(userPrefix(userID) + name)
	}
	if n > 0 {
		slog.Debug("Report cache invalidated",
			log.FieldComponent, log.ComponentReport,
			log.FieldUserID, userID,
			"entries", n)
	}
}
