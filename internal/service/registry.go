package service

import (
	"github.com/Someblueman/lootforge/internal/config"
	"github.com/Someblueman/lootforge/internal/provider"
	"github.com/Someblueman/lootforge/internal/provider/local"
	"github.com/Someblueman/lootforge/internal/provider/nano"
	"github.com/Someblueman/lootforge/internal/provider/openai"
)

// buildRegistry mirrors cmd/lootforge/registry.go's construction so the
// HTTP facade routes through the exact same adapters the CLI uses.
func buildRegistry(c *config.Config) *provider.Registry {
	oai := c.Providers["openai"]
	gem := c.Providers["nano"]
	loc := c.Providers["local"]

	return provider.NewRegistry(
		openai.New(openai.Config{APIKey: oai.APIKey, BaseURL: oai.Endpoint, Timeout: oai.Timeout()}),
		nano.New(nano.Config{APIKey: gem.APIKey, Timeout: gem.Timeout()}),
		local.New(local.Config{Endpoint: loc.Endpoint, Timeout: loc.Timeout()}),
	)
}
