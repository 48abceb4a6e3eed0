package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/teamhub-api/internal/models"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
)

// ErrFlowNotFound is returned for unknown or expired OAuth states.
var ErrFlowNotFound = errors.New("oauth flow not found")

// OAuthFlowRepository keeps polled OAuth flows in Redis until they expire.
type OAuthFlowRepository struct {
	cache *CacheRepository
}

// NewOAuthFlowRepository constructs the repository.
func NewOAuthFlowRepository(client *redis.Client) *OAuthFlowRepository {
	return &OAuthFlowRepository{cache: NewCacheRepository(client, "oauth:flow:")}
}

// Create stores a new flow for ttl.
func (r *OAuthFlowRepository) Create(ctx context.Context, flow *models.OAuthFlow, ttl time.Duration) error {
	return r.cache.Set(ctx, flow.State, flow, ttl)
}

// Update overwrites a flow keeping its remaining TTL. A flow that expired in
// the meantime is reported as ErrFlowNotFound.
func (r *OAuthFlowRepository) Update(ctx context.Context, flow *models.OAuthFlow) error {
	if err := r.cache.Replace(ctx, flow.State, flow); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return ErrFlowNotFound
		}
		return err
	}
	return nil
}

// Get loads a flow by state.
func (r *OAuthFlowRepository) Get(ctx context.Context, state string) (*models.OAuthFlow, error) {
	var flow models.OAuthFlow
	if err := r.cache.Get(ctx, state, &flow); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, ErrFlowNotFound
		}
		return nil, err
	}
	return &flow, nil
}

// Delete drops a flow once its result has been collected.
func (r *OAuthFlowRepository) Delete(ctx context.Context, state string) error {
	return r.cache.Delete(ctx, state)
}
