package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wardenhq/warden/internal/observability"
	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

// Decision is the result of a what-if simulation.
type Decision struct {
	Allowed bool   `json:"canPerform"`
	Reason  string `json:"reason"`
}

// Service is the authorization decision point. Can and Simulate never
// fail: unknown users, unknown modules and store errors all resolve to a
// denial.
type Service struct {
	resolver *Resolver
	graph    Graph
	cache    *Cache
	group    singleflight.Group
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService constructs the authorization service over the graph.
func NewService(graph Graph, logger *slog.Logger, metrics *observability.Metrics, resolveTimeout time.Duration) *Service {
	if resolveTimeout <= 0 {
		resolveTimeout = 5 * time.Second
	}
	return &Service{
		resolver: NewResolver(graph),
		graph:    graph,
		cache:    NewCache(),
		timeout:  resolveTimeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Effective returns the user's effective permission set, resolving through
// the cache. Concurrent cache misses for the same user collapse to a
// single traversal. The flight key carries the cache version, so a caller
// arriving after an invalidation starts a fresh traversal instead of
// joining one computed from pre-mutation state.
func (s *Service) Effective(ctx context.Context, userID int64) (PermissionSet, error) {
	if set, ok := s.cache.Get(userID); ok {
		s.metrics.CacheEvent(true)
		return set, nil
	}
	s.metrics.CacheEvent(false)

	gen, epoch := s.cache.Version(userID)
	key := fmt.Sprintf("%d.%d.%d", userID, gen, epoch)
	v, err, _ := s.group.Do(key, func() (any, error) {
		if set, ok := s.cache.Get(userID); ok {
			return set, nil
		}
		// Detach from the first caller's cancellation so collapsed callers
		// are not failed by it; the resolve timeout still bounds the work.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		set, err := s.resolver.Resolve(rctx, userID)
		if err != nil {
			return nil, err
		}
		s.cache.Put(userID, set, gen, epoch)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(PermissionSet), nil
}

// Can reports whether the user holds (module, action). Fail-closed: any
// resolution error is logged and denied.
func (s *Service) Can(ctx context.Context, userID int64, module string, action store.Action) bool {
	set, err := s.Effective(ctx, userID)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) && s.logger != nil {
			s.logger.Error("authz resolve failed, denying",
				slog.Int64("user_id", userID), slog.Any("error", err))
		}
		s.metrics.AuthzDecision(false)
		return false
	}
	allowed := set.Has(module, action)
	s.metrics.AuthzDecision(allowed)
	return allowed
}

// Mine returns the sorted "Module:action" strings for the user, or
// ErrNotFound when the user is unknown.
func (s *Service) Mine(ctx context.Context, userID int64) ([]string, error) {
	set, err := s.Effective(ctx, userID)
	if err != nil {
		return nil, err
	}
	return set.Strings(), nil
}

// Simulate answers "what if" with the reason: either the group/role
// chains granting the pair, or the absence of any. Read-only; it never
// mutates state and, like Can, denies on any internal error.
func (s *Service) Simulate(ctx context.Context, userID int64, module string, action store.Action) Decision {
	paths, err := s.graph.GrantPathsForUser(ctx, userID)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("authz simulate failed, denying",
				slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return Decision{Allowed: false, Reason: "resolution unavailable"}
	}
	var matches []string
	for _, p := range paths {
		if p.Module == module && p.Action == action {
			matches = append(matches,
				fmt.Sprintf("granted via role %q through group %q", p.RoleName, p.GroupName))
		}
	}
	if len(matches) > 0 {
		return Decision{Allowed: true, Reason: strings.Join(matches, "; ")}
	}
	return Decision{Allowed: false, Reason: fmt.Sprintf("no role grants %s:%s", module, action)}
}

// Invalidate drops cached sets for the given users.
func (s *Service) Invalidate(userIDs ...int64) {
	s.cache.Invalidate(userIDs...)
}

// InvalidateAll drops every cached set.
func (s *Service) InvalidateAll() {
	s.cache.InvalidateAll()
}
