package intelligence

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/veilscan/veilscan/pkg/models"
)

// Provider is a single exposure intelligence source: a breach index, a
// people-search aggregator, a paste monitor. Providers return raw candidate
// findings; validation and scoring happen downstream.
type Provider interface {
	Name() string
	Search(ctx context.Context, httpClient *http.Client, ids models.SearchIdentifiers) ([]models.RawFinding, error)
	RateLimit() time.Duration
	RequiresAPIKey() bool
}

// Client fans a profile's identifiers out across all registered providers.
// Each provider gets its own rate limiter; a failing provider is logged and
// skipped so one flaky source never sinks a whole scan.
type Client struct {
	providers    map[string]Provider
	rateLimiters map[string]*AdaptiveLimiter
	httpClient   *http.Client
	logger       *logrus.Logger
	mu           sync.RWMutex
	apiKeys      map[string]string
	userAgent    string
}

// ProviderErrorRecorder receives per-provider outcome counts; the metrics
// collector satisfies it.
type ProviderErrorRecorder interface {
	RecordProviderError(provider string)
	RecordProviderFindings(provider string, count int)
}

func NewClient(logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
				tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			},
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		providers:    make(map[string]Provider),
		rateLimiters: make(map[string]*AdaptiveLimiter),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   45 * time.Second,
		},
		logger:    logger,
		apiKeys:   make(map[string]string),
		userAgent: "VeilScan/1.0",
	}
}

func (c *Client) AddProvider(provider Provider, apiKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := provider.Name()
	if _, exists := c.providers[name]; exists {
		return fmt.Errorf("provider %s already added", name)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", name)
	}

	c.providers[name] = provider
	rlEvery := provider.RateLimit()
	if rlEvery <= 0 {
		rlEvery = 250 * time.Millisecond
	}
	c.rateLimiters[name] = NewAdaptiveLimiter(rate.Every(rlEvery), 1, c.logger)

	if provider.RequiresAPIKey() {
		c.apiKeys[name] = apiKey
	}

	c.logger.Infof("Added intelligence provider: %s", name)
	return nil
}

// SearchAll queries every provider concurrently and merges the raw findings.
// Findings are tagged with the provider that produced them. Provider errors
// are swallowed after logging; only context cancellation aborts the search.
func (c *Client) SearchAll(ctx context.Context, ids models.SearchIdentifiers, recorder ProviderErrorRecorder) ([]models.RawFinding, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make([]models.RawFinding, 0, 64)
	)

	g, ctx := errgroup.WithContext(ctx)

	for name, provider := range c.providers {
		name := name
		provider := provider

		g.Go(func() error {
			limiter := c.rateLimiters[name]
			if err := limiter.Wait(ctx); err != nil {
				return err
			}

			findings, err := provider.Search(ctx, c.httpClient, ids)
			if err != nil {
				limiter.RecordFailure()
				c.logger.Warnf("Provider %s search failed: %v", name, err)
				if recorder != nil {
					recorder.RecordProviderError(name)
				}
				return nil
			}
			limiter.RecordSuccess()

			mu.Lock()
			for i := range findings {
				if findings[i].Provider == "" {
					findings[i].Provider = name
				}
				if !findings[i].SourceType.Valid() {
					findings[i].SourceType = models.SourceOther
				}
				results = append(results, findings[i])
			}
			mu.Unlock()

			if recorder != nil {
				recorder.RecordProviderFindings(name, len(findings))
			}
			c.logger.Debugf("Provider %s returned %d candidate findings", name, len(findings))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	return names
}

func (c *Client) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"providers":      len(c.providers),
		"provider_names": c.Providers(),
	}
}
