// Package secrets resolves the named credentials the SCIM client needs:
// token URL, API base URL, client id and client secret. Values come from a
// pluggable backend (environment, SAP credential store, Keeper Secrets
// Manager) and are cached until an explicit refresh.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Secret names used by the SCIM integration. Backends receive the
// lowercase hyphenated form; the environment backend derives the variable
// name from it (uppercase, hyphen to underscore).
const (
	NameTokenURL     = "dsp-scim-token-url"
	NameBaseURL      = "dsp-scim-base-url"
	NameClientID     = "dsp-scim-client-id"
	NameClientSecret = "dsp-scim-client-secret"
)

// Provider resolves one named secret.
type Provider interface {
	GetPassword(ctx context.Context, name string) (string, error)
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct{}

func (EnvProvider) GetPassword(_ context.Context, name string) (string, error) {
	envName := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	value := os.Getenv(envName)
	if len(value) == 0 {
		return "", fmt.Errorf("environment variable %q not found", envName)
	}
	return value, nil
}

// Config is the resolved SCIM connection configuration.
type Config struct {
	TokenURL     string
	APIBaseURL   string
	ClientID     string
	ClientSecret string
}

// Resolver caches resolved secrets for the process lifetime. Refresh drops
// the cache so rotated secrets are picked up on the next resolution.
type Resolver struct {
	provider Provider

	mu    sync.Mutex
	cache map[string]string
}

func NewResolver(provider Provider) *Resolver {
	return &Resolver{
		provider: provider,
		cache:    make(map[string]string),
	}
}

func (r *Resolver) GetPassword(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	value, ok := r.cache[name]
	r.mu.Unlock()
	if ok {
		return value, nil
	}
	value, err := r.provider.GetPassword(ctx, name)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.cache[name] = value
	r.mu.Unlock()
	return value, nil
}

// Refresh discards every cached value.
func (r *Resolver) Refresh() {
	r.mu.Lock()
	r.cache = make(map[string]string)
	r.mu.Unlock()
}

// SCIMConfig resolves the four SCIM credentials concurrently and awaits
// them jointly. The base URL is trimmed of trailing slashes.
func (r *Resolver) SCIMConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	targets := []struct {
		name string
		dest *string
	}{
		{NameTokenURL, &cfg.TokenURL},
		{NameBaseURL, &cfg.APIBaseURL},
		{NameClientID, &cfg.ClientID},
		{NameClientSecret, &cfg.ClientSecret},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			value, err := r.GetPassword(gctx, target.name)
			if err != nil {
				return err
			}
			*target.dest = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &cfg, nil
}
