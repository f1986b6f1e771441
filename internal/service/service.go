package service

import (
	"context"
	"errors"
	"time"

	"salesdesk/backend/internal/apperr"
	"salesdesk/backend/internal/cache"
	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/logging"
	"salesdesk/backend/internal/metrics"
	"salesdesk/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	reports  cache.ReportCache
	cacheTTL time.Duration
	metrics  *metrics.SaleMetrics
	log      *logging.Logger
	loc      *time.Location
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now; tests use it to pin the same-day window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithReportCache(c cache.ReportCache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.reports = c
		}
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithMetrics(m *metrics.SaleMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func New(repo store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		reports:  cache.NoopReportCache{},
		cacheTTL: 5 * time.Minute,
		log:      logging.Nop(),
		loc:      time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// visible hides records of other tenants behind a not-found error. Calls
// without an actor (internal jobs, tests) see every store.
func (s *Service) visible(ctx context.Context, storeID string, what string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.StoreID == storeID {
		return nil
	}
	return apperr.New(apperr.CodeNotFound, what+" not found")
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.IsAdmin() {
		return apperr.New(apperr.CodeForbidden, "admin role required")
	}
	return nil
}

// translate maps storage sentinels onto the public error taxonomy.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if apperr.As(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, what+" not found")
	case errors.Is(err, store.ErrInsufficientStock):
		return apperr.Wrap(apperr.CodeValidation, err, "stock cannot go below zero")
	case errors.Is(err, store.ErrNegativeBalance):
		return apperr.Wrap(apperr.CodeValidation, err, "shop balance cannot go below zero")
	case errors.Is(err, store.ErrConflict):
		return apperr.Wrap(apperr.CodeConflict, err, what+" conflicts with existing data")
	case errors.Is(err, store.ErrSerialization):
		return apperr.Wrap(apperr.CodeTxConflict, err, what+" was changed concurrently, retry the request")
	default:
		return apperr.Wrap(apperr.CodePersistence, err, "storage operation failed")
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.CodeOf(err))
}

// invalidateReports is best effort: a failed bump only delays fresh reports
// until the cache TTL expires.
func (s *Service) invalidateReports(ctx context.Context, storeID string) {
	if err := s.reports.Bump(ctx, storeID); err != nil {
		s.log.Warn(s.log.WithField(ctx, "store_id", storeID), "report cache bump failed", err)
	}
}
