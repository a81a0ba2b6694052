package main

import (
	"github.com/Someblueman/lootforge/internal/config"
	"github.com/Someblueman/lootforge/internal/provider"
	"github.com/Someblueman/lootforge/internal/provider/local"
	"github.com/Someblueman/lootforge/internal/provider/nano"
	"github.com/Someblueman/lootforge/internal/provider/openai"
)

// buildRegistry constructs every provider adapter from configuration,
// preferring openai, then nano, then local on auto-select ties, mirroring
// the default provider order most manifests expect.
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
