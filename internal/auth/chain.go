// Package auth provides the authentication provider chain for
// SignalPress's job submission API (spec.md §6.1 is transport-agnostic;
// this is the ambient HTTP auth boundary around it).
//
// Ships API-key validation by default; additional providers can be
// registered into the same chain without changing the HTTP layer.
package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/signalpress/signalpress/pkg/contracts"
)

// ProviderChain walks registered providers in order until one returns
// an Identity.
//
// Contract:
//   - (*Identity, nil) -> authenticated, stop walking
//   - (nil, nil)       -> this provider doesn't handle this request, try next
//   - (nil, error)     -> auth attempted but failed, reject
//
// If no provider authenticates the request, Authenticate returns an
// error when at least one provider is enabled, and (nil, nil) only when
// none is (auth disabled).
type ProviderChain struct {
	mu        sync.RWMutex
	providers []contracts.AuthProvider
}

func NewProviderChain() *ProviderChain {
	return &ProviderChain{providers: make([]contracts.AuthProvider, 0)}
}

func (c *ProviderChain) RegisterProvider(provider contracts.AuthProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers = append(c.providers, provider)
	log.Info().Str("provider", provider.Name()).Bool("enabled", provider.Enabled()).Msg("auth provider registered")
}

func (c *ProviderChain) Authenticate(ctx context.Context, token string) (*contracts.Identity, error) {
	c.mu.RLock()
	providers := make([]contracts.AuthProvider, len(c.providers))
	copy(providers, c.providers)
	c.mu.RUnlock()

	anyEnabled := false
	for _, p := range providers {
		if !p.Enabled() {
			continue
		}
		anyEnabled = true
		identity, err := p.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		if identity != nil {
			return identity, nil
		}
	}
	if anyEnabled {
		return nil, errors.New("authentication required")
	}
	return nil, nil
}

func (c *ProviderChain) ListProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}
