// Package frequency provides the surname-frequency oracle: registry counts
// fronted by the cache, consumed by the blocking strategy and the rarity
// bonus in the legacy scorer.
package frequency

import (
	"context"
	"fmt"
	"time"

	"github.com/edu-registry/penmatch/internal/blocking"
	"github.com/edu-registry/penmatch/internal/domain"
)

// Service answers surname-frequency queries. Counts change slowly relative
// to match traffic, so cached values are served until the TTL lapses.
type Service struct {
	tables domain.LookupTables
	cache  domain.Cache
	ttl    time.Duration
}

// NewService creates a frequency service. cache may be nil; every query
// then hits the lookup tables directly.
func NewService(tables domain.LookupTables, cache domain.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{tables: tables, cache: cache, ttl: ttl}
}

// Count returns the number of registry records whose surname starts with
// prefix. Cache errors fall through to the repository rather than failing
// the request.
func (s *Service) Count(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("%w: prefix is required", domain.ErrInvalidInput)
	}

	if s.cache != nil {
		if count, found, err := s.cache.GetFrequency(ctx, prefix); err == nil && found {
			return count, nil
		}
	}

	count, err := s.tables.SurnameFrequency(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("surname frequency lookup: %w", err)
	}

	if s.cache != nil {
		// Best effort; a write failure only costs the next lookup.
		_ = s.cache.SetFrequency(ctx, prefix, count, s.ttl)
	}

	return count, nil
}

// Getter adapts the service to the blocking strategy's function type.
func (s *Service) Getter() blocking.FrequencyGetter {
	return s.Count
}
