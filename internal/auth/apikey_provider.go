package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/signalpress/signalpress/pkg/contracts"
)

// APIKeyProvider validates keys configured via the
// SIGNALPRESS_API_KEYS env var (comma-separated list). Default role via
// SIGNALPRESS_API_KEY_ROLE (default: "operator").
type APIKeyProvider struct {
	mu          sync.RWMutex
	keys        map[string]bool
	enabled     bool
	defaultRole string
}

func NewAPIKeyProvider() *APIKeyProvider {
	p := &APIKeyProvider{keys: make(map[string]bool), defaultRole: "operator"}

	if role := os.Getenv("SIGNALPRESS_API_KEY_ROLE"); role != "" {
		p.defaultRole = role
	}

	keysEnv := os.Getenv("SIGNALPRESS_API_KEYS")
	if keysEnv == "" {
		p.enabled = false
		return p
	}
	for _, key := range strings.Split(keysEnv, ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			p.keys[key] = true
			p.enabled = true
		}
	}
	return p
}

func (p *APIKeyProvider) Name() string { return "apikey" }

func (p *APIKeyProvider) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Authenticate validates token (already extracted from the
// Authorization/X-API-Key header or query parameter by the HTTP
// middleware). Returns (nil, nil) if token is empty, letting the next
// provider in the chain try.
func (p *APIKeyProvider) Authenticate(_ context.Context, token string) (*contracts.Identity, error) {
	if token == "" {
		return nil, nil
	}
	if !p.validateKey(token) {
		return nil, fmt.Errorf("invalid API key")
	}

	keyHash := fmt.Sprintf("%x", sha256.Sum256([]byte(token)))
	return &contracts.Identity{
		Subject:     "apikey:" + keyHash[:16],
		Provider:    "apikey",
		Role:        p.defaultRole,
		DisplayName: "API Key User",
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	}, nil
}

func (p *APIKeyProvider) validateKey(candidate string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for key := range p.keys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func (p *APIKeyProvider) AddKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[key] = true
	p.enabled = true
}

func (p *APIKeyProvider) RemoveKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, key)
	if len(p.keys) == 0 {
		p.enabled = false
	}
}
