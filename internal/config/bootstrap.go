package config

import (
	"log/slog"
	"net/http"

	gateway "github.com/ryuka-api/ryuka/internal"
	"github.com/ryuka-api/ryuka/internal/provider"
)

// BuildRegistry turns the configured sources into a provider registry.
// Disabled providers are skipped; a source left with none is still
// registered so its kind is routable.
func BuildRegistry(cfg *Config, client *http.Client) *provider.Registry {
	reg := provider.NewRegistry()
	for _, s := range cfg.Sources {
		kind := gateway.Kind(s.Kind)
		var eps []gateway.Provider
		for _, p := range s.Providers {
			if !p.IsEnabled() {
				slog.Info("provider disabled", "kind", s.Kind, "provider", p.Name)
				continue
			}
			eps = append(eps, provider.NewEndpoint(endpointConfig(cfg.Fetch, p), client))
		}
		reg.Register(kind, eps...)
		slog.Info("source registered", "kind", s.Kind, "providers", len(eps))
	}
	return reg
}

func endpointConfig(fetch FetchConfig, p ProviderEntry) provider.EndpointConfig {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = fetch.Timeout
	}
	return provider.EndpointConfig{
		Name:        p.Name,
		BaseURL:     p.BaseURL,
		Timeout:     timeout,
		UserAgent:   fetch.UserAgent,
		SuccessPath: p.SuccessPath,
	}
}
