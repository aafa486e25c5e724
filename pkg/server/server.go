// Package server is the public entry point for wiring a SignalPress
// process: config, telemetry, the publish registry, the job store,
// the cache coordinator, the orchestrator/scheduler pair, and the HTTP
// router. Grounded on the teacher's pkg/server/server.go constructor
// shape (New/NewWithConfig/buildServer, a Shutdown that stops
// background goroutines and flushes telemetry).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/signalpress/signalpress/internal/api"
	"github.com/signalpress/signalpress/internal/api/handlers"
	apimw "github.com/signalpress/signalpress/internal/api/middleware"
	"github.com/signalpress/signalpress/internal/auth"
	"github.com/signalpress/signalpress/internal/cache"
	"github.com/signalpress/signalpress/internal/config"
	"github.com/signalpress/signalpress/internal/dryrun"
	"github.com/signalpress/signalpress/internal/eventbus"
	"github.com/signalpress/signalpress/internal/jobstore"
	"github.com/signalpress/signalpress/internal/orchestrator"
	"github.com/signalpress/signalpress/internal/publish"
	"github.com/signalpress/signalpress/internal/ratelimit"
	"github.com/signalpress/signalpress/internal/rendering"
	"github.com/signalpress/signalpress/internal/scheduler"
	"github.com/signalpress/signalpress/internal/sourcing"
	"github.com/signalpress/signalpress/internal/telemetry"
	"github.com/signalpress/signalpress/internal/tone"
	"github.com/signalpress/signalpress/internal/validation"
	"github.com/signalpress/signalpress/pkg/contracts"
)

// Server holds the initialized SignalPress process.
type Server struct {
	Handler http.Handler

	Store        jobstore.Store
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
	Registry     *publish.Registry
	Cache        *cache.Coordinator
	LocalTier    *cache.LocalTier
	Bus          *eventbus.Bus
	AuthChain    *auth.ProviderChain
	Source       *sourcing.FixtureSource
	DryRunGuard  *dryrun.Guard

	Config *config.Config
	Port   int

	janitorCancel context.CancelFunc
	shutdownFunc  func(context.Context) error
}

// New loads configuration from the environment and builds a Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig builds a Server from an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	return buildServer(ctx, cfg, shutdown)
}

func buildServer(ctx context.Context, cfg *config.Config, shutdown func(context.Context) error) (*Server, error) {
	store := jobstore.NewMemoryStore()
	bus := eventbus.New()
	guard := dryrun.New(cfg.DryRun)
	source := sourcing.NewFixtureSource()
	validator := validation.New([]string{
		publish.ChannelEmail, publish.ChannelWeb,
		publish.ChannelSocialTwitter, publish.ChannelSocialLinkedIn, publish.ChannelSocialFacebook,
	})
	toneMgr := tone.New(nil)
	renderer := rendering.New()

	rates := ratelimit.NewRateLimiters()
	for channel, perHour := range cfg.Orchestrator.ChannelRateLimits {
		burst := publish.DefaultLimits(channel, perHour).BatchSize
		rates.Configure(channel, perHour, burst)
	}

	registry := buildPublishRegistry(cfg)

	orchCfg := orchestrator.Config{
		JobDeadline:    time.Duration(cfg.Orchestrator.JobDeadlineMS) * time.Millisecond,
		ChannelTimeout: time.Duration(cfg.Orchestrator.ChannelTimeoutMS) * time.Millisecond,
		RateLimitWait:  30 * time.Second,
	}
	orch := orchestrator.New(store, bus, registry, guard, source, validator, toneMgr, renderer, rates, orchCfg)

	schedCfg := scheduler.Config{
		CheckInterval:           time.Duration(cfg.Scheduler.CheckIntervalMS) * time.Millisecond,
		MaxConcurrentDeliveries: cfg.Orchestrator.MaxConcurrentJobs,
	}
	sched := scheduler.New(store, orch, rates, schedCfg)
	sched.Start(ctx)

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	janitor := jobstore.NewJanitor(store, time.Hour, cfg.Retention.TerminalJobsDays)
	go janitor.Start(janitorCtx)

	localTier := cache.NewLocalTier()
	tiers := []contracts.CacheTier{localTier}
	if cfg.Cache.RedisAddr != "" {
		tiers = append(tiers, cache.NewRedisTier(cfg.Cache.RedisAddr))
	}
	tiers = append(tiers, cache.NewFixtureTier("cdn"), cache.NewFixtureTier("api"))
	coordinator := cache.NewCoordinator(tiers...)

	authChain := auth.NewProviderChain()
	apiKeyProvider := auth.NewAPIKeyProvider()
	if apiKeyProvider.Enabled() {
		authChain.RegisterProvider(apiKeyProvider)
		log.Info().Msg("signalpress: api key auth enabled")
	} else {
		log.Info().Msg("signalpress: no SIGNALPRESS_API_KEYS configured, auth disabled")
	}

	h := &handlers.Handlers{
		Store: store, Orchestrator: orch, Scheduler: sched,
		Validator: validator, Cache: coordinator, LocalTier: localTier,
		Registry: registry,
		Version:  cfg.Version,
	}

	var authForRouter apimw.AuthChain
	if len(authChain.ListProviders()) > 0 {
		authForRouter = authChain
	}

	router := api.NewRouter(cfg, h, bus, authForRouter)

	return &Server{
		Handler: router, Store: store, Orchestrator: orch, Scheduler: sched,
		Registry: registry, Cache: coordinator, LocalTier: localTier, Bus: bus,
		AuthChain: authChain, Source: source, DryRunGuard: guard,
		Config: cfg, Port: cfg.Port,
		janitorCancel: janitorCancel, shutdownFunc: shutdown,
	}, nil
}

// buildPublishRegistry wires each channel's fixture backend behind a
// ResilientPublisher (retry + circuit breaker + dead letter queue), per
// spec.md §4.3.
func buildPublishRegistry(cfg *config.Config) *publish.Registry {
	registry := publish.NewRegistry()
	dlq := publish.NewMemoryDeadLetterQueue()

	retryCfg := publish.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseMS) * time.Millisecond,
		CapDelay:    time.Duration(cfg.Retry.CapMS) * time.Millisecond,
	}
	circuitCfg := publish.CircuitConfig{
		FailureThreshold: cfg.Circuit.FailureThreshold,
		RecoveryTimeout:  time.Duration(cfg.Circuit.RecoveryTimeoutMS) * time.Millisecond,
	}

	channels := []string{
		publish.ChannelEmail, publish.ChannelWeb,
		publish.ChannelSocialTwitter, publish.ChannelSocialLinkedIn, publish.ChannelSocialFacebook,
	}
	for _, channel := range channels {
		backend := publish.NewFixtureBackend(channel)
		limits := publish.DefaultLimits(channel, cfg.Orchestrator.ChannelRateLimits[channel])
		base := publish.NewChannelPublisher(channel, limits, backend)
		resilient := publish.NewResilientPublisher(base, retryCfg, circuitCfg, dlq)
		registry.Register(resilient)
	}
	return registry
}

// Shutdown stops background goroutines (scheduler loop, retention
// janitor) and flushes telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	if s.janitorCancel != nil {
		s.janitorCancel()
	}
	if s.shutdownFunc != nil {
		return s.shutdownFunc(ctx)
	}
	return nil
}
