// Package services – OrderService
//
// OrderService coordinates the record store and the idempotency cache into
// the four order operations: create, get, list and delete.
//
// Creation with an idempotency token is best effort. The cache lookup, the
// insert and the cache write are three independent steps, so two concurrent
// requests carrying the same token can both miss, both insert, and both
// write; the later write wins and the other row stays reachable only by id
// or by listing. A lost cache entry has the same effect on a retry. Nothing
// here tries to close that window.
//
// Observability: every public method opens an OpenTelemetry span; swallowed
// cache failures are logged at warn level and counted.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// Defaults applied by NewOrderService.
const (
	DefaultCacheTTL   = 600 * time.Second
	DefaultReadyDelay = 15 * time.Minute
	MaxTokenLen       = 200
)

//go:generate mockgen -source=order_service.go -destination=mocks/mock_order_service.go -package=mocks

// OrderRepo is the record store contract consumed by OrderService.
type OrderRepo interface {
	// InsertOrder persists a live order and returns its store-assigned id.
	InsertOrder(ctx context.Context, db *gorm.DB, tableID, dishID int64, readyTime time.Time) (int64, error)
	// GetOrder returns the live order (tableID, id) or a NotFound error.
	GetOrder(ctx context.Context, db *gorm.DB, tableID, id int64) (*domain.Order, error)
	// ListOrders returns live orders with id >= fromID ascending, at most limit.
	ListOrders(ctx context.Context, db *gorm.DB, tableID int64, fromID, limit *int64) ([]domain.Order, error)
	// MarkOrderDeleted soft-deletes the live order and returns rows affected.
	MarkOrderDeleted(ctx context.Context, db *gorm.DB, tableID, id int64) (int64, error)
	// OrderDeleted reports whether (tableID, id) exists as a deleted row.
	OrderDeleted(ctx context.Context, db *gorm.DB, tableID, id int64) (bool, error)
	// OrdersStats returns the live count and highest id for a table.
	OrdersStats(ctx context.Context, db *gorm.DB, tableID int64) (count, maxID int64, err error)
}

// IdempotencyCache is the key/value store with expiry used to deduplicate
// create requests.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// OrderService implements the order operations. It holds no mutable state
// and is safe for concurrent use.
type OrderService struct {
	// DB is the GORM handle passed to every repo call.
	DB *gorm.DB
	// Repo is the record store.
	Repo OrderRepo
	// Cache deduplicates creates carrying a token. Nil disables deduplication.
	Cache IdempotencyCache

	// CacheTTL is the lifetime of a cached create response.
	CacheTTL time.Duration
	// ReadyDelay is added to the creation time to compute ready_time.
	ReadyDelay time.Duration
	// MaxListLimit caps list page sizes, including unbounded requests. 0 disables.
	MaxListLimit int64
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewOrderService returns an OrderService with default TTL, ready delay and clock.
func NewOrderService(db *gorm.DB, repo OrderRepo, cache IdempotencyCache) *OrderService {
	return &OrderService{
		DB:         db,
		Repo:       repo,
		Cache:      cache,
		CacheTTL:   DefaultCacheTTL,
		ReadyDelay: DefaultReadyDelay,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// CacheKey derives the idempotency cache key for a create request.
func CacheKey(tableID, dishID int64, token string) string {
	return fmt.Sprintf("%d_%d_%s", tableID, dishID, token)
}

// ValidateToken checks that token is 1..MaxTokenLen bytes of printable ASCII
// and not only whitespace.
func ValidateToken(token string) error {
	if strings.TrimSpace(token) == "" || len(token) > MaxTokenLen {
		return ErrBadToken
	}
	for i := 0; i < len(token); i++ {
		if token[i] < 0x20 || token[i] > 0x7e {
			return ErrBadToken
		}
	}
	return nil
}

// Create registers a new order for dishID on tableID.
//
// With an empty token every call inserts a new order. With a token, a cached
// response for (tableID, dishID, token) is returned as-is without touching
// the record store, and replayed reports true. Cache read failures are
// treated as misses and cache write failures are ignored once the order is
// stored.
func (s *OrderService) Create(ctx context.Context, tableID, dishID int64, token string) (order *domain.Order, replayed bool, err error) {
	const op = "services.OrderService.Create"

	ctx, span := s.tracer().Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int64("table.id", tableID),
			attribute.Int64("dish.id", dishID),
			attribute.Bool("idempotency.token", token != ""),
		),
	)
	defer func() { endSpan(span, err) }()

	if token != "" {
		if verr := ValidateToken(token); verr != nil {
			return nil, false, domain.E(domain.KindInvalidInput, op, verr)
		}
	}
	if token == "" || s.Cache == nil {
		order, err = s.insert(ctx, tableID, dishID)
		return order, false, err
	}
	key := CacheKey(tableID, dishID, token)

	if cached, ok := s.lookup(ctx, key, tableID); ok {
		span.SetAttributes(attribute.Bool("idempotency.replayed", true))
		return cached, true, nil
	}

	order, err = s.insert(ctx, tableID, dishID)
	if err != nil {
		return nil, false, err
	}
	s.remember(ctx, key, order)
	return order, false, nil
}

func (s *OrderService) insert(ctx context.Context, tableID, dishID int64) (*domain.Order, error) {
	ready := s.now().Add(s.readyDelay())
	id, err := s.Repo.InsertOrder(ctx, s.DB, tableID, dishID, ready)
	if err != nil {
		return nil, err
	}
	ordersCreated.Inc()
	return &domain.Order{ID: id, TableID: tableID, DishID: dishID, ReadyTime: ready}, nil
}

// lookup returns the cached order for key. Any failure is a miss.
func (s *OrderService) lookup(ctx context.Context, key string, tableID int64) (*domain.Order, bool) {
	raw, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		idemLookups.WithLabelValues("error").Inc()
		logger(ctx).Warn().Err(err).Str("cache_key", key).Str("kind", domain.KindOf(err).String()).
			Msg("idempotency lookup failed; treating as miss")
		return nil, false
	}
	if !ok {
		idemLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	var o domain.Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		idemLookups.WithLabelValues("error").Inc()
		logger(ctx).Warn().Err(err).Str("cache_key", key).Msg("undecodable idempotency entry; treating as miss")
		return nil, false
	}
	idemLookups.WithLabelValues("hit").Inc()
	o.TableID = tableID
	return &o, true
}

// remember stores the serialized order under key. Failures are logged only.
func (s *OrderService) remember(ctx context.Context, key string, o *domain.Order) {
	raw, err := json.Marshal(o)
	if err == nil {
		err = s.Cache.SetWithTTL(ctx, key, string(raw), s.cacheTTL())
	}
	if err != nil {
		idemWriteFailures.Inc()
		logger(ctx).Warn().Err(err).Str("cache_key", key).Int64("order_id", o.ID).
			Msg("idempotency write failed; retries with this token will create a new order")
	}
}

// Get returns the live order (tableID, id). Absent, foreign and deleted
// orders all yield a NotFound error.
func (s *OrderService) Get(ctx context.Context, tableID, id int64) (o *domain.Order, err error) {
	ctx, span := s.tracer().Start(ctx, "Get",
		trace.WithAttributes(
			attribute.Int64("table.id", tableID),
			attribute.Int64("order.id", id),
		),
	)
	defer func() { endSpan(span, err) }()

	return s.Repo.GetOrder(ctx, s.DB, tableID, id)
}

// List returns a page of live orders for tableID with id >= fromID in
// ascending id order. Callers advance with fromID = last id + 1. Nil fromID
// starts at the beginning; nil limit means unbounded, subject to MaxListLimit.
func (s *OrderService) List(ctx context.Context, tableID int64, fromID, limit *int64) (out []domain.Order, err error) {
	const op = "services.OrderService.List"

	ctx, span := s.tracer().Start(ctx, "List",
		trace.WithAttributes(attribute.Int64("table.id", tableID)),
	)
	defer func() { endSpan(span, err) }()

	if (fromID != nil && *fromID < 0) || (limit != nil && *limit < 0) {
		return nil, domain.E(domain.KindInvalidInput, op, ErrBadCursor)
	}
	limit = s.clampLimit(limit)
	if limit != nil && *limit == 0 {
		return []domain.Order{}, nil
	}
	return s.Repo.ListOrders(ctx, s.DB, tableID, fromID, limit)
}

func (s *OrderService) clampLimit(limit *int64) *int64 {
	if s.MaxListLimit <= 0 {
		return limit
	}
	if limit == nil || *limit > s.MaxListLimit {
		capped := s.MaxListLimit
		return &capped
	}
	return limit
}

// Delete soft-deletes the order (tableID, id). Deleting an already deleted
// order succeeds without changes; an order that never existed under tableID
// yields NotFound. More than one affected row is an internal inconsistency.
func (s *OrderService) Delete(ctx context.Context, tableID, id int64) (err error) {
	const op = "services.OrderService.Delete"

	ctx, span := s.tracer().Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.Int64("table.id", tableID),
			attribute.Int64("order.id", id),
		),
	)
	defer func() { endSpan(span, err) }()

	n, err := s.Repo.MarkOrderDeleted(ctx, s.DB, tableID, id)
	if err != nil {
		return err
	}
	switch n {
	case 1:
		ordersDeleted.Inc()
		return nil
	case 0:
		deleted, err := s.Repo.OrderDeleted(ctx, s.DB, tableID, id)
		if err != nil {
			return err
		}
		if deleted {
			return nil
		}
		return domain.E(domain.KindNotFound, op, domain.ErrNotFound)
	default:
		return domain.Internal(op, "delete of order %d on table %d updated %d rows", id, tableID, n)
	}
}

// ListVersion returns an opaque token that changes whenever the visible
// order list of tableID changes.
func (s *OrderService) ListVersion(ctx context.Context, tableID int64) (string, error) {
	count, maxID, err := s.Repo.OrdersStats(ctx, s.DB, tableID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%d:%d", tableID, count, maxID), nil
}

func (s *OrderService) tracer() trace.Tracer { return otel.Tracer("services/OrderService") }

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *OrderService) readyDelay() time.Duration {
	if s.ReadyDelay > 0 {
		return s.ReadyDelay
	}
	return DefaultReadyDelay
}

func (s *OrderService) cacheTTL() time.Duration {
	if s.CacheTTL > 0 {
		return s.CacheTTL
	}
	return DefaultCacheTTL
}

// endSpan records err on span. NotFound is an expected outcome, not a failure.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("error.kind", domain.KindOf(err).String()))
		if domain.KindOf(err) != domain.KindNotFound {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// logger returns the request-scoped logger carried by ctx, or the global one.
func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
