package futures

import (
	"context"
	"sync"
	"time"

	"github.com/tranmd/whaleaudit/internal/core"
)

// Registry holds the configured providers and tries them in registration
// order until one returns data.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// All returns the registered providers.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, len(r.providers))
	copy(result, r.providers)
	return result
}

// FetchKlines tries each provider in order and returns the first
// non-empty result. All providers failing is a collaborator fault.
func (r *Registry) FetchKlines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) (core.Series, error) {
	var lastErr error
	for _, p := range r.All() {
		series, err := p.FetchKlines(ctx, symbol, interval, start, end, limit)
		if err != nil {
			lastErr = err
			continue
		}
		if len(series) > 0 {
			return series, nil
		}
	}
	if lastErr != nil {
		return nil, core.WrapError(core.ErrMarketDataUnavailable, lastErr)
	}
	// Every provider answered but none had bars; not a transport fault.
	return core.Series{}, nil
}
