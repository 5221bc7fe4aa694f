package catalog

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository interface {
	List(ctx context.Context, category string) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

// Service reads products through a cache. Concurrent misses for the same id
// share one repository call.
type Service struct {
	repo   Repository
	cache  Cache
	group  singleflight.Group
	logger *slog.Logger
}

func NewService(repo Repository, cache Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) List(ctx context.Context, category string) ([]domain.Product, error) {
	return s.repo.List(ctx, category)
}

// Get returns (nil, nil) for an unknown id. Misses are not cached. The shared
// load ignores the cancellation of whichever caller started it.
func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	if s.cache != nil {
		p, err := s.cache.Get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("product cache read failed", "error", err, "product_id", id)
		}
	}

	v, err, _ := s.group.Do(id, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		p, err := s.repo.Get(loadCtx, id)
		if err != nil || p == nil {
			return p, err
		}
		if s.cache != nil {
			if err := s.cache.Set(loadCtx, p); err != nil {
				s.logger.Warn("product cache write failed", "error", err, "product_id", id)
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Product), nil
}
