package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/cache"
)

// cachedRepo serves GetByID from a cache. Doctor profiles are read on
// every public directory view and change rarely. Cache failures fall back
// to the underlying repository.
type cachedRepo struct {
	DoctorRepository
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedRepo wraps next with a read-through cache of single doctors. A
// non-positive ttl disables caching.
func NewCachedRepo(next DoctorRepository, c cache.Cache, ttl time.Duration, logger zerolog.Logger) DoctorRepository {
	if c == nil || ttl <= 0 {
		return next
	}
	return &cachedRepo{DoctorRepository: next, cache: c, ttl: ttl, logger: logger}
}

func cacheKey(id int64) string {
	return "doctor:" + strconv.FormatInt(id, 10)
}

func (r *cachedRepo) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	key := cacheKey(id)
	if raw, err := r.cache.Get(ctx, key); err == nil {
		var d Doctor
		if err := json.Unmarshal(raw, &d); err == nil {
			return &d, nil
		}
		r.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	} else if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn().Err(err).Str("key", key).Msg("doctor cache read failed")
	}

	d, err := r.DoctorRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(d); err == nil {
		if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("doctor cache write failed")
		}
	}
	return d, nil
}

func (r *cachedRepo) Update(ctx context.Context, d *Doctor) error {
	if err := r.DoctorRepository.Update(ctx, d); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, cacheKey(d.ID)); err != nil {
		r.logger.Warn().Err(err).Int64("id", d.ID).Msg("doctor cache invalidation failed")
	}
	return nil
}
