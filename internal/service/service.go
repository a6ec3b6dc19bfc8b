package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/cache"
	"storepos/backend/internal/domain"
	"storepos/backend/internal/logger"
	"storepos/backend/internal/metrics"
	"storepos/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, actorContextKey{}, principal)
}

func ActorFromContext(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(actorContextKey{}).(domain.Principal)
	return principal, ok
}

type Options struct {
	StatsCache    cache.StatsCache
	StatsCacheTTL time.Duration
	Metrics       *metrics.SaleMetrics
	Logger        *logger.Logger
	Location      *time.Location
	// Now overrides the clock; tests pin it.
	Now func() time.Time
}

type Service struct {
	repo     store.Repository
	stats    cache.StatsCache
	statsTTL time.Duration
	metrics  *metrics.SaleMetrics
	log      *logger.Logger
	loc      *time.Location
	now      func() time.Time
	// statsGen counts invalidations per store (int64 -> *atomic.Uint64).
	statsGen sync.Map
}

func New(repo store.Repository, opts Options) *Service {
	if opts.StatsCache == nil {
		opts.StatsCache = cache.NoopStatsCache{}
	}
	if opts.StatsCacheTTL <= 0 {
		opts.StatsCacheTTL = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:     repo,
		stats:    opts.StatsCache,
		statsTTL: opts.StatsCacheTTL,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		loc:      opts.Location,
		now:      opts.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// principal returns the authenticated account of ctx.
func principal(ctx context.Context) (domain.Principal, error) {
	p, ok := ActorFromContext(ctx)
	if !ok || !p.ID.Valid() {
		return domain.Principal{}, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return p, nil
}

// storePrincipal returns the authenticated account of ctx, which must belong
// to a store.
func storePrincipal(ctx context.Context) (domain.Principal, error) {
	p, err := principal(ctx)
	if err != nil {
		return p, err
	}
	if !p.HasStore() {
		return p, apperr.New(apperr.CodeForbidden, "Your account is not assigned to a store yet")
	}
	return p, nil
}

func managerPrincipal(ctx context.Context) (domain.Principal, error) {
	p, err := storePrincipal(ctx)
	if err != nil {
		return p, err
	}
	if !p.ID.IsManager() {
		return p, apperr.New(apperr.CodeForbidden, "manager role required")
	}
	return p, nil
}

// translate maps a repository sentinel onto an application error. Anything
// unrecognised becomes INTERNAL_ERROR with the cause kept for logging.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if appErr := apperr.As(err); appErr != nil {
		return appErr
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.Newf(apperr.CodeNotFound, "%s not found", what)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Wrap(apperr.CodeConflict, err, fmt.Sprintf("%s already exists", what))
	case errors.Is(err, store.ErrConflict):
		return apperr.Wrap(apperr.CodeConflict, err, fmt.Sprintf("%s was changed concurrently", what))
	case errors.Is(err, store.ErrInvalid):
		return apperr.Wrap(apperr.CodeValidation, err, fmt.Sprintf("invalid %s", what))
	case errors.Is(err, store.ErrInsufficientStock):
		return apperr.Wrap(apperr.CodeInsufficientStock, err, "Insufficient stock")
	default:
		return apperr.Wrap(apperr.CodeInternal, err, fmt.Sprintf("failed to load %s", what))
	}
}

func (s *Service) logAudit(ctx context.Context, storeID int64, action string, entityType string, entityID string, detail string) {
	actor := "system"
	if p, ok := ActorFromContext(ctx); ok && p.ID.Valid() {
		actor = p.ID.String()
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		StoreID:    storeID,
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		ctx = s.log.WithFields(ctx, map[string]any{"action": action, "entity_type": entityType, "entity_id": entityID})
		s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "audit.write_failed")
	}
}

// invalidateStats drops the cached dashboard of storeID. A failure only
// delays freshness until the entry expires.
func (s *Service) invalidateStats(ctx context.Context, storeID int64) {
	s.statsGeneration(storeID).Add(1)
	if err := s.stats.Delete(ctx, storeID); err != nil {
		s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "stats_cache.invalidate_failed")
	}
}

func (s *Service) statsGeneration(storeID int64) *atomic.Uint64 {
	gen, _ := s.statsGen.LoadOrStore(storeID, new(atomic.Uint64))
	return gen.(*atomic.Uint64)
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	p, err := managerPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	logs, err := s.repo.ListAuditLogs(ctx, p.StoreID, limit)
	if err != nil {
		return nil, translate(err, "audit logs")
	}
	return logs, nil
}

// resolveNames looks up display names for actors. A lookup failure leaves
// every name unresolved rather than failing the read.
func (s *Service) resolveNames(ctx context.Context, actors []domain.ActorID) map[domain.ActorID]string {
	if len(actors) == 0 {
		return map[domain.ActorID]string{}
	}
	names, err := s.repo.ResolveActorNames(ctx, actors)
	if err != nil {
		s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "actor_names.resolve_failed")
		return map[domain.ActorID]string{}
	}
	return names
}

func nameOrUnknown(names map[domain.ActorID]string, actor domain.ActorID) string {
	if name, ok := names[actor]; ok && name != "" {
		return name
	}
	return "Unknown"
}
